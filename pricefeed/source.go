// Package pricefeed provides the spot reference price used to place the
// strike target.
package pricefeed

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"hedgeflow/config"
	"hedgeflow/exchange/deribit"
)

// Source returns the current spot price of asset quoted in quote.
type Source interface {
	Name() string
	SpotPrice(ctx context.Context, asset, quote string) (float64, error)
}

// New builds the source selected by cfg.Source. The Deribit client is only
// used by the deribit_index source. cfg.URL only applies to price_server.
func New(cfg config.PriceFeedConfig, httpClient *http.Client, dc *deribit.Client) (Source, error) {
	switch cfg.Source {
	case config.PriceSourceServer, "":
		return NewPriceServerSource(cfg.URL, httpClient), nil
	case config.PriceSourceDeribitIndex:
		if dc == nil {
			return nil, fmt.Errorf("deribit_index price source needs a deribit client")
		}
		return NewDeribitIndexSource(dc), nil
	case config.PriceSourceBinance:
		return NewBinanceSource(cfg.BaseURL, cfg.Symbol, httpClient), nil
	case config.PriceSourceBybit:
		return NewBybitSource(cfg.BaseURL, cfg.Symbol, httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported price source '%s'", cfg.Source)
	}
}

// exchangeSymbol maps BTC/USD to the USDT pair used by spot venues unless an
// explicit symbol is configured.
func exchangeSymbol(symbol, asset, quote string) string {
	if symbol != "" {
		return symbol
	}
	q := strings.ToUpper(quote)
	if q == "USD" {
		q = "USDT"
	}
	return strings.ToUpper(asset) + q
}

func checkPrice(source string, price float64) (float64, error) {
	if !(price > 0) {
		return 0, fmt.Errorf("%s returned non-positive price %v", source, price)
	}
	return price, nil
}
