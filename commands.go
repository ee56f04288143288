package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hedgeflow/config"
	"hedgeflow/exchange"
	"hedgeflow/exchange/deribit"
	"hedgeflow/hedge"
	"hedgeflow/logger"
	"hedgeflow/models"
	"hedgeflow/pricefeed"
	"hedgeflow/server"
	"hedgeflow/writer"
)

// newPipeline wires the exchange client, price source and sinks. The
// returned cleanup closes them.
func newPipeline(ctx context.Context, cfg *config.Config) (*hedge.Pipeline, func(), error) {
	opts, err := hedge.OptionsFromConfig(cfg.Hedge)
	if err != nil {
		return nil, nil, err
	}

	client, err := deribit.NewClient(cfg.Deribit)
	if err != nil {
		return nil, nil, err
	}

	feedTimeout := cfg.PriceFeed.Timeout
	if feedTimeout <= 0 {
		feedTimeout = cfg.Deribit.Timeout
	}
	prices, err := pricefeed.New(cfg.PriceFeed, deribit.NewHTTPClient(feedTimeout, cfg.Deribit.LocalIP, cfg.Deribit.UserAgent), client)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	sinks, err := writer.FromConfig(ctx, cfg.Storage)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	gw := exchange.NewGateway(client, prices, exchange.Credentials{
		ClientID:     cfg.Deribit.ClientID,
		ClientSecret: cfg.Deribit.ClientSecret,
	})

	var rec hedge.Recorder
	if sinks.Len() > 0 {
		rec = sinks
	}

	cleanup := func() {
		log := logger.GetLogger().WithComponent("main")
		if err := sinks.Close(); err != nil {
			log.WithError(err).Warn("failed to close outcome sinks")
		}
		if err := client.Close(); err != nil {
			log.WithError(err).Warn("failed to close exchange client")
		}
	}
	return hedge.NewPipeline(gw, opts, rec), cleanup, nil
}

func runHedge(ctx context.Context, cfg *config.Config, args []string) error {
	p, cleanup, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	rec, err := p.Execute(ctx, args)
	if err != nil {
		return err
	}
	fmt.Println(rec.Payload)
	return nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	p, cleanup, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return server.NewServer(cfg.Server, p, cfg.Metrics.Prometheus, logger.GetLogger()).Run(ctx)
}

// runDecode validates a payload read back from a fulfilled request and logs
// the option it describes.
func runDecode(args []string) error {
	if len(args) != 1 {
		return errors.New("decode expects exactly one payload argument")
	}
	out, err := models.DecodeOutcome(args[0])
	if err != nil {
		return err
	}

	fields := logger.Fields{
		"order_id":   out.OrderID,
		"instrument": out.InstrumentName,
		"strike":     out.StrikePrice,
		"quantity":   out.Quantity,
		"premium":    out.Premium,
	}
	if e, ok := models.ParseInstrumentName(out.InstrumentName); ok {
		fields["asset"] = e.Asset
		fields["expiry"] = e.ExpiryLabel
		if e.Strike != out.StrikePrice {
			logger.GetLogger().WithComponent("decode").WithFields(fields).Warn("strike does not match instrument name")
		}
	}
	logger.GetLogger().WithComponent("decode").WithFields(fields).Info("option details")
	return nil
}

func runExpiry(cfg *config.Config) error {
	weekday, err := config.ParseWeekday(cfg.Hedge.ExpiryWeekday)
	if err != nil {
		return err
	}
	fmt.Println(hedge.ExpiryLabel(hedge.NextExpiry(time.Now().UTC(), weekday)))
	return nil
}
