package deribit

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// rpcError is the error member of a JSON-RPC response.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	ID     uint64          `json:"id,omitempty"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// APIError is returned for every unsuccessful exchange response. Raw holds
// the response body exactly as received.
type APIError struct {
	Method     string
	HTTPStatus int
	Code       int
	Message    string
	Raw        string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("deribit %s failed: code %d %s: %s", e.Method, e.Code, e.Message, e.Raw)
	}
	if e.Message != "" {
		return fmt.Sprintf("deribit %s failed: %s (http %d): %s", e.Method, e.Message, e.HTTPStatus, e.Raw)
	}
	return fmt.Sprintf("deribit %s failed: http %d: %s", e.Method, e.HTTPStatus, e.Raw)
}

// Token is the result of a client credentials exchange.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// Instrument is an instrument descriptor from public/get_instruments and
// public/get_instrument.
type Instrument struct {
	InstrumentName      string  `json:"instrument_name"`
	Kind                string  `json:"kind"`
	BaseCurrency        string  `json:"base_currency"`
	OptionType          string  `json:"option_type"`
	Strike              float64 `json:"strike"`
	ExpirationTimestamp int64   `json:"expiration_timestamp"`
	IsActive            bool    `json:"is_active"`
	MinTradeAmount      float64 `json:"min_trade_amount"`
	TickSize            float64 `json:"tick_size"`
}

type indexPrice struct {
	IndexPrice             float64 `json:"index_price"`
	EstimatedDeliveryPrice float64 `json:"estimated_delivery_price"`
}

// BuyRequest describes a private/buy call. Amount is sent verbatim.
type BuyRequest struct {
	InstrumentName string
	Amount         string
	Type           string
	Label          string
}

// Order is the order part of a private/buy response. Price is kept raw
// because market orders may report it as the string "market_price".
type Order struct {
	OrderID      string          `json:"order_id"`
	OrderState   string          `json:"order_state"`
	OrderType    string          `json:"order_type"`
	Direction    string          `json:"direction"`
	Label        string          `json:"label"`
	Price        json.RawMessage `json:"price"`
	AveragePrice *float64        `json:"average_price"`
	Amount       float64         `json:"amount"`
	FilledAmount float64         `json:"filled_amount"`
}

// Trade is a single fill of an order.
type Trade struct {
	TradeID string  `json:"trade_id"`
	Price   float64 `json:"price"`
	Amount  float64 `json:"amount"`
}

// BuyResult is the result of private/buy.
type BuyResult struct {
	Order  Order   `json:"order"`
	Trades []Trade `json:"trades"`
}

// ExecutionPrice returns the order's price when it is a positive number and
// falls back to the average price otherwise. The second value is false when
// neither is usable.
func (o Order) ExecutionPrice() (float64, bool) {
	if p, ok := numericPrice(o.Price); ok && p > 0 {
		return p, true
	}
	if o.AveragePrice != nil && *o.AveragePrice > 0 {
		return *o.AveragePrice, true
	}
	return 0, false
}

func numericPrice(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
