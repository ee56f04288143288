package rate

import (
	"fmt"
	"strings"

	"hedgeflow/logger"
)

// ReportRateLimitExceeded records a rate limit rejection from a venue for the
// given instrument and operation.
func ReportRateLimitExceeded(log *logger.Log, venue, instrument, operation string) {
	component := fmt.Sprintf("%s_%s", strings.ToLower(venue), strings.ToLower(operation))
	l := log.WithComponent(component)
	fields := logger.Fields{
		"venue":      strings.ToLower(venue),
		"instrument": instrument,
		"operation":  strings.ToLower(operation),
	}
	l.LogMetric(component, "rate_limit_exceeded", int64(1), "counter", fields)
	l.WithFields(fields).Warn("rate limit exceeded")
}

// ReportIPBan records that a venue refused the caller's address.
func ReportIPBan(log *logger.Log, venue, instrument, operation string) {
	component := fmt.Sprintf("%s_%s", strings.ToLower(venue), strings.ToLower(operation))
	l := log.WithComponent(component)
	fields := logger.Fields{
		"venue":      strings.ToLower(venue),
		"instrument": instrument,
		"operation":  strings.ToLower(operation),
	}
	l.LogMetric(component, "ip_ban", int64(1), "counter", fields)
	l.WithFields(fields).Error("ip banned")
}

// detectLimit inspects an error message returned by a venue and determines
// whether it signals a rate limit or an address ban. Each venue words these
// differently.
func detectLimit(venue, msg string) (rateLimit bool, ipBan bool) {
	lowerMsg := strings.ToLower(msg)
	switch strings.ToLower(venue) {
	case "deribit":
		// 10028 is too_many_requests
		rateLimit = strings.Contains(lowerMsg, "too_many_requests") || strings.Contains(lowerMsg, "10028")
		ipBan = strings.Contains(lowerMsg, "ip_") && (strings.Contains(lowerMsg, "not_allowed") || strings.Contains(lowerMsg, "ban"))
	case "binance":
		rateLimit = strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "rate limit")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")
	case "bybit":
		ipBan = strings.Contains(lowerMsg, "ip rate limit") || (strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban"))
		rateLimit = !ipBan && (strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "too many visits"))
	default:
		rateLimit = strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")
	}
	return
}

// ReportLimitFromMessage checks msg for rate limit or ban wording and records
// the matching metrics. It reports whether anything matched.
func ReportLimitFromMessage(log *logger.Log, venue, instrument, operation, msg string) bool {
	rateLimit, ipBan := detectLimit(venue, msg)
	if rateLimit {
		ReportRateLimitExceeded(log, venue, instrument, operation)
	}
	if ipBan {
		ReportIPBan(log, venue, instrument, operation)
	}
	return rateLimit || ipBan
}
