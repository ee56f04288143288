package pricefeed

import (
	"context"
	"strings"

	"hedgeflow/exchange/deribit"
)

// DeribitIndexSource reads the exchange's own index, e.g. btc_usd.
type DeribitIndexSource struct {
	client *deribit.Client
}

func NewDeribitIndexSource(client *deribit.Client) *DeribitIndexSource {
	return &DeribitIndexSource{client: client}
}

func (s *DeribitIndexSource) Name() string { return "deribit_index" }

func (s *DeribitIndexSource) SpotPrice(ctx context.Context, asset, quote string) (float64, error) {
	index := strings.ToLower(asset) + "_" + strings.ToLower(quote)
	price, err := s.client.GetIndexPrice(ctx, index)
	if err != nil {
		return 0, err
	}
	return checkPrice(s.Name(), price)
}
