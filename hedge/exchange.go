package hedge

import (
	"context"

	"github.com/shopspring/decimal"

	"hedgeflow/models"
)

// Exchange is the market and trading venue the pipeline works against.
type Exchange interface {
	// Authenticate returns a bearer token for private calls.
	Authenticate(ctx context.Context) (string, error)
	GetSpotPrice(ctx context.Context, asset, quote string) (models.MarketSnapshot, error)
	// ListInstruments returns the non-expired options listed for asset.
	ListInstruments(ctx context.Context, asset string) ([]models.InstrumentCatalogEntry, error)
	GetInstrument(ctx context.Context, name string) (models.InstrumentCatalogEntry, error)
	PlaceMarketOrder(ctx context.Context, token, instrument string, quantity decimal.Decimal, label string) (models.FillResult, error)
}

// Recorder receives the record of every executed hedge.
type Recorder interface {
	Write(ctx context.Context, rec models.RunRecord) error
}
