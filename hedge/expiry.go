package hedge

import (
	"fmt"
	"time"
)

var monthAbbrev = [...]string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

// NextExpiry returns the next calendar date after today falling on weekday.
// When today is already that weekday the following week is returned.
func NextExpiry(today time.Time, weekday time.Weekday) time.Time {
	days := (int(weekday) - int(today.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	y, m, d := today.Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, today.Location())
}

// ExpiryLabel formats t as DDMONYY, e.g. 23OCT26.
func ExpiryLabel(t time.Time) string {
	return fmt.Sprintf("%02d%s%02d", t.Day(), monthAbbrev[t.Month()-1], t.Year()%100)
}
