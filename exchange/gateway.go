// Package exchange adapts the Deribit client and a spot price source to the
// hedge pipeline.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hedgeflow/exchange/deribit"
	"hedgeflow/hedge"
	"hedgeflow/logger"
	"hedgeflow/models"
	"hedgeflow/pricefeed"
)

// Credentials are the API client credentials used for private calls.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

var _ hedge.Exchange = (*Gateway)(nil)

// Gateway serves the pipeline from Deribit. Spot prices come from prices,
// which may itself be backed by Deribit.
type Gateway struct {
	client *deribit.Client
	prices pricefeed.Source
	creds  Credentials
	log    *logger.Log
}

func NewGateway(client *deribit.Client, prices pricefeed.Source, creds Credentials) *Gateway {
	return &Gateway{
		client: client,
		prices: prices,
		creds:  creds,
		log:    logger.GetLogger(),
	}
}

func (g *Gateway) Authenticate(ctx context.Context) (string, error) {
	if g.creds.ClientID == "" || g.creds.ClientSecret == "" {
		return "", errors.New("deribit client credentials are not configured")
	}
	tok, err := g.client.Authenticate(ctx, g.creds.ClientID, g.creds.ClientSecret)
	if err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", errors.New("deribit returned an empty access token")
	}
	return tok.AccessToken, nil
}

func (g *Gateway) GetSpotPrice(ctx context.Context, asset, quote string) (models.MarketSnapshot, error) {
	price, err := g.prices.SpotPrice(ctx, asset, quote)
	if err != nil {
		return models.MarketSnapshot{}, fmt.Errorf("%s: %w", g.prices.Name(), err)
	}
	g.log.WithComponent("gateway").WithFields(logger.Fields{
		"source": g.prices.Name(),
		"asset":  asset,
		"price":  price,
	}).Debug("fetched spot price")
	return models.MarketSnapshot{CurrentPrice: price, FetchedAt: time.Now().UTC()}, nil
}

// ListInstruments returns the active options for asset. Descriptors whose
// name does not follow the option naming scheme are skipped.
func (g *Gateway) ListInstruments(ctx context.Context, asset string) ([]models.InstrumentCatalogEntry, error) {
	list, err := g.client.GetInstruments(ctx, strings.ToUpper(asset), "option", false)
	if err != nil {
		return nil, err
	}
	out := make([]models.InstrumentCatalogEntry, 0, len(list))
	skipped := 0
	for _, inst := range list {
		e, ok := models.ParseInstrumentName(inst.InstrumentName)
		if !ok {
			skipped++
			continue
		}
		out = append(out, e)
	}
	if skipped > 0 {
		g.log.WithComponent("gateway").WithFields(logger.Fields{
			"asset":   asset,
			"skipped": skipped,
		}).Warn("ignored instruments with unexpected names")
	}
	return out, nil
}

func (g *Gateway) GetInstrument(ctx context.Context, name string) (models.InstrumentCatalogEntry, error) {
	inst, err := g.client.GetInstrument(ctx, name)
	if err != nil {
		return models.InstrumentCatalogEntry{}, err
	}
	e, ok := models.ParseInstrumentName(inst.InstrumentName)
	if !ok {
		return models.InstrumentCatalogEntry{}, fmt.Errorf("unexpected instrument name '%s'", inst.InstrumentName)
	}
	return e, nil
}

// PlaceMarketOrder buys quantity of the named instrument at market.
func (g *Gateway) PlaceMarketOrder(ctx context.Context, token, name string, quantity decimal.Decimal, label string) (models.FillResult, error) {
	res, err := g.client.Buy(ctx, token, deribit.BuyRequest{
		InstrumentName: name,
		Amount:         quantity.String(),
		Type:           "market",
		Label:          label,
	})
	if err != nil {
		return models.FillResult{}, err
	}
	price, ok := res.Order.ExecutionPrice()
	if !ok {
		return models.FillResult{}, fmt.Errorf("%w: order %s (%s)", hedge.ErrNoFillPrice, res.Order.OrderID, res.Order.OrderState)
	}
	return models.FillResult{
		OrderID:        res.Order.OrderID,
		ExecutionPrice: price,
		OrderState:     res.Order.OrderState,
		FilledAmount:   res.Order.FilledAmount,
	}, nil
}
