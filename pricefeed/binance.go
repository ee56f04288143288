package pricefeed

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/adshao/go-binance/v2"
)

// BinanceSource reads the last spot trade price from Binance.
type BinanceSource struct {
	client *binance.Client
	symbol string
}

func NewBinanceSource(baseURL, symbol string, httpClient *http.Client) *BinanceSource {
	client := binance.NewClient("", "")
	if httpClient != nil {
		client.HTTPClient = httpClient
	}
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return &BinanceSource{client: client, symbol: symbol}
}

func (s *BinanceSource) Name() string { return "binance" }

func (s *BinanceSource) SpotPrice(ctx context.Context, asset, quote string) (float64, error) {
	symbol := exchangeSymbol(s.symbol, asset, quote)
	prices, err := s.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance price request failed: %w", err)
	}
	for _, p := range prices {
		if p.Symbol != symbol {
			continue
		}
		v, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid binance price %q: %w", p.Price, err)
		}
		return checkPrice(s.Name(), v)
	}
	return 0, fmt.Errorf("binance returned no price for %s", symbol)
}
