package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	FieldLoanAmount             = "loanAmount"
	FieldReferencePurchasePrice = "referencePurchasePrice"
	FieldPremium                = "premium"
)

var errNotPositive = errors.New("must be greater than zero")

// ParseError reports an invocation argument that could not be turned into
// a usable number.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseRequestParams parses the positional invocation arguments
// [loanAmount, referencePurchasePrice, premium]. Extra arguments are ignored.
func ParseRequestParams(args []string) (InsuranceRequestParams, error) {
	var p InsuranceRequestParams
	if len(args) < 3 {
		return p, fmt.Errorf("expected 3 arguments (loanAmount, referencePurchasePrice, premium), got %d", len(args))
	}

	loan, err := parsePositiveDecimal(FieldLoanAmount, args[0])
	if err != nil {
		return p, err
	}

	raw := strings.TrimSpace(args[1])
	price, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return p, &ParseError{Field: FieldReferencePurchasePrice, Value: args[1], Err: err}
	}
	if price <= 0 {
		return p, &ParseError{Field: FieldReferencePurchasePrice, Value: args[1], Err: errNotPositive}
	}

	premium, err := parsePositiveDecimal(FieldPremium, args[2])
	if err != nil {
		return p, err
	}

	p.LoanAmount = loan
	p.ReferencePurchasePrice = price
	p.Premium = premium
	return p, nil
}

func parsePositiveDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, &ParseError{Field: field, Value: value, Err: err}
	}
	if !d.IsPositive() {
		return decimal.Zero, &ParseError{Field: field, Value: value, Err: errNotPositive}
	}
	return d, nil
}
