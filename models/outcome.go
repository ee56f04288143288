package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// InsuranceOutcome is the record returned to the contract. Premium carries
// the execution price reported by the exchange for the purchased put.
type InsuranceOutcome struct {
	OrderID        string  `json:"orderId"`
	InstrumentName string  `json:"instrumentName"`
	StrikePrice    int64   `json:"strikePrice"`
	Quantity       float64 `json:"quantity"`
	Premium        float64 `json:"premium"`
}

// NewOutcome assembles the outcome of an executed hedge.
func NewOutcome(h SelectedHedge, f FillResult) InsuranceOutcome {
	return InsuranceOutcome{
		OrderID:        f.OrderID,
		InstrumentName: h.InstrumentName,
		StrikePrice:    h.StrikePrice,
		Quantity:       h.Quantity.InexactFloat64(),
		Premium:        f.ExecutionPrice,
	}
}

func (o InsuranceOutcome) validate() error {
	switch {
	case o.OrderID == "":
		return errors.New("orderId is empty")
	case o.InstrumentName == "":
		return errors.New("instrumentName is empty")
	case o.StrikePrice <= 0:
		return errors.New("strikePrice is not set")
	case o.Quantity <= 0:
		return errors.New("quantity is not set")
	}
	return nil
}

// Encode serializes the outcome into the string payload stored on-chain.
func (o InsuranceOutcome) Encode() (string, error) {
	if err := o.validate(); err != nil {
		return "", fmt.Errorf("incomplete outcome: %w", err)
	}
	b, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("failed to encode outcome: %w", err)
	}
	return string(b), nil
}

// DecodeOutcome parses a payload previously produced by Encode, as read back
// from a fulfilled request.
func DecodeOutcome(payload string) (InsuranceOutcome, error) {
	var o InsuranceOutcome
	if err := json.Unmarshal([]byte(payload), &o); err != nil {
		return o, fmt.Errorf("option details are not valid JSON: %w", err)
	}
	if err := o.validate(); err != nil {
		return o, fmt.Errorf("incomplete outcome: %w", err)
	}
	return o, nil
}

// RunRecord is the archived trace of one executed hedge.
type RunRecord struct {
	RunID          string           `json:"runId"`
	Asset          string           `json:"asset"`
	ExpiryLabel    string           `json:"expiry"`
	LoanAmount     string           `json:"loanAmount"`
	ReferencePrice int64            `json:"referencePurchasePrice"`
	InputPremium   string           `json:"inputPremium"`
	SpotPrice      float64          `json:"spotPrice"`
	StrikeTarget   int64            `json:"strikeTarget"`
	OrderState     string           `json:"orderState,omitempty"`
	Outcome        InsuranceOutcome `json:"outcome"`
	Payload        string           `json:"payload"`
	ExecutedAt     time.Time        `json:"executedAt"`
}
