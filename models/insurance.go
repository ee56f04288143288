package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InsuranceRequestParams is the validated input of one hedge run. It is
// created from the on-chain request arguments and consumed exactly once.
type InsuranceRequestParams struct {
	LoanAmount             decimal.Decimal
	ReferencePurchasePrice int64
	Premium                decimal.Decimal
}

// MarketSnapshot holds the spot reference price fetched for a run.
type MarketSnapshot struct {
	CurrentPrice float64
	FetchedAt    time.Time
}

// InstrumentCatalogEntry is one option listed by the exchange, decoded from
// its canonical instrument name.
type InstrumentCatalogEntry struct {
	Name        string
	Asset       string
	ExpiryLabel string
	Strike      int64
	IsPut       bool
}

// SelectedHedge is the instrument and size chosen for a run.
type SelectedHedge struct {
	InstrumentName string
	StrikePrice    int64
	Quantity       decimal.Decimal
}

// FillResult is what the exchange reports as actually transacted.
type FillResult struct {
	OrderID        string
	ExecutionPrice float64
	OrderState     string
	FilledAmount   float64
}
