package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	bybit "github.com/bybit-exchange/bybit.go.api"
)

// BybitSource reads the last spot price from the Bybit v5 tickers endpoint.
type BybitSource struct {
	client *bybit.Client
	symbol string
}

func NewBybitSource(baseURL, symbol string, httpClient *http.Client) *BybitSource {
	if baseURL == "" {
		baseURL = bybit.MAINNET
	}
	client := bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(baseURL))
	if httpClient != nil {
		client.HTTPClient = httpClient
	}
	return &BybitSource{client: client, symbol: symbol}
}

func (s *BybitSource) Name() string { return "bybit" }

func (s *BybitSource) SpotPrice(ctx context.Context, asset, quote string) (float64, error) {
	symbol := exchangeSymbol(s.symbol, asset, quote)
	params := map[string]interface{}{
		"category": "spot",
		"symbol":   symbol,
	}
	resp, err := s.client.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return 0, fmt.Errorf("bybit ticker request failed: %w", err)
	}
	if resp.RetCode != 0 {
		return 0, fmt.Errorf("bybit ticker request failed: %d %s", resp.RetCode, resp.RetMsg)
	}
	payload, err := json.Marshal(resp.Result)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal bybit result: %w", err)
	}
	price, err := lastPriceFromTickers(payload, symbol)
	if err != nil {
		return 0, err
	}
	return checkPrice(s.Name(), price)
}

type bybitTickers struct {
	Category string `json:"category"`
	List     []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"list"`
}

func lastPriceFromTickers(payload []byte, symbol string) (float64, error) {
	var res bybitTickers
	if err := json.Unmarshal(payload, &res); err != nil {
		return 0, fmt.Errorf("failed to decode bybit tickers: %w", err)
	}
	for _, t := range res.List {
		if t.Symbol != symbol {
			continue
		}
		v, err := strconv.ParseFloat(t.LastPrice, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid bybit price %q: %w", t.LastPrice, err)
		}
		return v, nil
	}
	return 0, fmt.Errorf("bybit returned no ticker for %s", symbol)
}
