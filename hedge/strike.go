package hedge

import (
	"errors"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"hedgeflow/models"
)

// ErrNoStrikes is returned when no put is listed for the target expiry.
var ErrNoStrikes = errors.New("no available strike prices found")

// StrikeTarget is floor(price × factor).
func StrikeTarget(price, factor float64) int64 {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(factor)).Floor().IntPart()
}

// FilterPutStrikes returns the strikes of the puts on asset expiring at
// expiryLabel, ascending.
func FilterPutStrikes(catalog []models.InstrumentCatalogEntry, asset, expiryLabel string) []int64 {
	strikes := make([]int64, 0, len(catalog))
	for _, e := range catalog {
		if !e.IsPut || e.ExpiryLabel != expiryLabel || !strings.EqualFold(e.Asset, asset) {
			continue
		}
		strikes = append(strikes, e.Strike)
	}
	slices.Sort(strikes)
	return strikes
}

// FindClosestStrike returns the strike nearest to target. Strikes are
// scanned in ascending order and only a strictly smaller distance replaces
// the current pick, so the lowest of equally close strikes wins.
func FindClosestStrike(target int64, strikes []int64) (int64, error) {
	if len(strikes) == 0 {
		return 0, ErrNoStrikes
	}
	sorted := slices.Clone(strikes)
	slices.Sort(sorted)

	closest := sorted[0]
	minDiff := absDiff(target, closest)
	for _, s := range sorted[1:] {
		if d := absDiff(target, s); d < minDiff {
			minDiff = d
			closest = s
		}
	}
	return closest, nil
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
