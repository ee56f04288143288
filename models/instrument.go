package models

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	putSuffix  = "P"
	callSuffix = "C"
)

// InstrumentName builds the canonical option identifier
// {ASSET}-{expiry}-{strike}-P for a put.
func InstrumentName(asset, expiryLabel string, strike int64) string {
	return fmt.Sprintf("%s-%s-%d-%s", strings.ToUpper(asset), expiryLabel, strike, putSuffix)
}

// ParseInstrumentName decodes an option identifier such as
// BTC-23OCT26-100000-P. Names that are not options or whose strike is not an
// integer are rejected.
func ParseInstrumentName(name string) (InstrumentCatalogEntry, bool) {
	parts := strings.Split(name, "-")
	if len(parts) < 4 {
		return InstrumentCatalogEntry{}, false
	}
	side := parts[len(parts)-1]
	if side != putSuffix && side != callSuffix {
		return InstrumentCatalogEntry{}, false
	}
	strike, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return InstrumentCatalogEntry{}, false
	}
	return InstrumentCatalogEntry{
		Name:        name,
		Asset:       parts[0],
		ExpiryLabel: parts[1],
		Strike:      strike,
		IsPut:       side == putSuffix,
	}, true
}
