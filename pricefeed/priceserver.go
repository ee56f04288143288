package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// PriceServerSource queries a conversion endpoint of the form
// <url>?amount=1&symbol=BTC&convert=USD answering {"convertedPrice": n}.
type PriceServerSource struct {
	url    string
	client *http.Client
}

func NewPriceServerSource(endpoint string, client *http.Client) *PriceServerSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &PriceServerSource{url: endpoint, client: client}
}

func (s *PriceServerSource) Name() string { return "price_server" }

func (s *PriceServerSource) SpotPrice(ctx context.Context, asset, quote string) (float64, error) {
	q := url.Values{}
	q.Set("amount", "1")
	q.Set("symbol", asset)
	q.Set("convert", quote)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url+"?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("price server request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read price server response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price server HTTP error: %s: %s", resp.Status, body)
	}

	var payload struct {
		ConvertedPrice *float64 `json:"convertedPrice"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("failed to decode price server response: %w", err)
	}
	if payload.ConvertedPrice == nil {
		return 0, fmt.Errorf("price server response has no convertedPrice: %s", body)
	}
	return checkPrice(s.Name(), *payload.ConvertedPrice)
}
