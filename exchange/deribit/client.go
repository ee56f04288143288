package deribit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"hedgeflow/config"
	ratemetrics "hedgeflow/internal/metrics/rate"
	"hedgeflow/logger"
)

const venue = "deribit"

// Client calls the Deribit API v2 through a Transport, pacing requests with
// a token bucket limiter.
type Client struct {
	transport Transport
	limiter   *rate.Limiter
	log       *logger.Log
}

// NewClient creates a client for the configured transport.
func NewClient(cfg config.DeribitConfig) (*Client, error) {
	var transport Transport
	switch cfg.Transport {
	case config.TransportHTTP, "":
		transport = NewHTTPTransport(cfg.URL, NewHTTPClient(cfg.Timeout, cfg.LocalIP, cfg.UserAgent))
	case config.TransportWS:
		transport = NewWSTransport(cfg.WSURL, cfg.Timeout, cfg.UserAgent)
	default:
		return nil, fmt.Errorf("unsupported deribit transport '%s'", cfg.Transport)
	}
	return NewClientWithTransport(transport, cfg.RateLimit), nil
}

// NewClientWithTransport wraps an existing transport.
func NewClientWithTransport(transport Transport, rl config.RateLimitConfig) *Client {
	rps := rl.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := rl.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		transport: transport,
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		log:       logger.GetLogger(),
	}
}

func (c *Client) call(ctx context.Context, method string, params map[string]any, token string, instrument string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	start := time.Now()
	raw, err := c.transport.Call(ctx, method, params, token)
	logger.LogPerformanceEntry(c.log.WithFields(logger.Fields{"method": method}), "deribit_client", method, time.Since(start), nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			ratemetrics.ReportLimitFromMessage(c.log, venue, instrument, method, apiErr.Message+" "+apiErr.Raw)
		}
		return err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// Authenticate exchanges client credentials for an access token.
func (c *Client) Authenticate(ctx context.Context, clientID, clientSecret string) (Token, error) {
	var tok Token
	params := map[string]any{
		"grant_type":    "client_credentials",
		"client_id":     clientID,
		"client_secret": clientSecret,
	}
	if err := c.call(ctx, "public/auth", params, "", "", &tok); err != nil {
		return Token{}, err
	}
	if tok.AccessToken == "" {
		return Token{}, errors.New("deribit public/auth returned no access token")
	}
	return tok, nil
}

// GetIndexPrice returns the current value of an index such as btc_usd.
func (c *Client) GetIndexPrice(ctx context.Context, indexName string) (float64, error) {
	var res indexPrice
	if err := c.call(ctx, "public/get_index_price", map[string]any{"index_name": indexName}, "", "", &res); err != nil {
		return 0, err
	}
	return res.IndexPrice, nil
}

// GetInstruments lists instruments of a kind for a currency.
func (c *Client) GetInstruments(ctx context.Context, currency, kind string, expired bool) ([]Instrument, error) {
	var res []Instrument
	params := map[string]any{
		"currency": currency,
		"kind":     kind,
		"expired":  expired,
	}
	if err := c.call(ctx, "public/get_instruments", params, "", "", &res); err != nil {
		return nil, err
	}
	return res, nil
}

// GetInstrument fetches a single instrument by name.
func (c *Client) GetInstrument(ctx context.Context, name string) (Instrument, error) {
	var res Instrument
	if err := c.call(ctx, "public/get_instrument", map[string]any{"instrument_name": name}, "", name, &res); err != nil {
		return Instrument{}, err
	}
	return res, nil
}

// Buy places a buy order.
func (c *Client) Buy(ctx context.Context, token string, req BuyRequest) (BuyResult, error) {
	var res BuyResult
	params := map[string]any{
		"instrument_name": req.InstrumentName,
		"amount":          json.Number(req.Amount),
		"type":            req.Type,
	}
	if req.Label != "" {
		params["label"] = req.Label
	}
	if err := c.call(ctx, "private/buy", params, token, req.InstrumentName, &res); err != nil {
		return BuyResult{}, err
	}
	return res, nil
}

func (c *Client) Close() error {
	return c.transport.Close()
}
