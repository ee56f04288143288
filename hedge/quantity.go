package hedge

import "github.com/shopspring/decimal"

// DefaultMinQuantity is the smallest option lot the exchange accepts.
var DefaultMinQuantity = decimal.RequireFromString("0.1")

// HedgeQuantity converts the loan notional into an option amount:
// loan / price rounded to one decimal place, never below minLot.
func HedgeQuantity(loanAmount decimal.Decimal, referencePrice int64, minLot decimal.Decimal) decimal.Decimal {
	amount := loanAmount.Div(decimal.NewFromInt(referencePrice))
	q := amount.Round(1)
	return decimal.Max(minLot, q)
}
