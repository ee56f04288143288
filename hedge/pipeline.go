package hedge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hedgeflow/config"
	"hedgeflow/internal/metrics"
	"hedgeflow/logger"
	"hedgeflow/models"
)

// Stage names, used in errors, logs and metrics.
const (
	StageInput                = "input"
	StageAuthentication       = "authentication"
	StageMarketData           = "market_data"
	StageStrikeSelection      = "strike_selection"
	StageQuantity             = "quantity"
	StageInstrumentResolution = "instrument_resolution"
	StageOrderExecution       = "order_execution"
	StageResultEncoding       = "result_encoding"
)

var (
	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrNoFillPrice        = errors.New("order reported no execution price")
)

// StageError names the stage that aborted a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage carried by err, or "" when err did not come
// from a pipeline stage.
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Options tune a Pipeline.
type Options struct {
	Asset            string
	QuoteCurrency    string
	DiscountFactor   float64
	ExpiryWeekday    time.Weekday
	MinQuantity      decimal.Decimal
	OrderLabelPrefix string
}

// OptionsFromConfig converts the hedge config section.
func OptionsFromConfig(cfg config.HedgeConfig) (Options, error) {
	weekday, err := config.ParseWeekday(cfg.ExpiryWeekday)
	if err != nil {
		return Options{}, err
	}
	minQty, err := decimal.NewFromString(cfg.MinQuantity)
	if err != nil {
		return Options{}, fmt.Errorf("invalid min_quantity '%s': %w", cfg.MinQuantity, err)
	}
	return Options{
		Asset:            strings.ToUpper(cfg.Asset),
		QuoteCurrency:    strings.ToUpper(cfg.QuoteCurrency),
		DiscountFactor:   cfg.DiscountFactor,
		ExpiryWeekday:    weekday,
		MinQuantity:      minQty,
		OrderLabelPrefix: cfg.OrderLabelPrefix,
	}, nil
}

// Pipeline executes hedge runs. It keeps no per-run state, so Run may be
// called concurrently.
type Pipeline struct {
	exchange Exchange
	opts     Options
	recorder Recorder
	log      *logger.Log

	now   func() time.Time
	newID func() string
}

// NewPipeline creates a pipeline. recorder may be nil.
func NewPipeline(ex Exchange, opts Options, recorder Recorder) *Pipeline {
	if opts.MinQuantity.IsZero() {
		opts.MinQuantity = DefaultMinQuantity
	}
	return &Pipeline{
		exchange: ex,
		opts:     opts,
		recorder: recorder,
		log:      logger.GetLogger(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
	}
}

// Execute parses the raw invocation arguments and runs the hedge.
func (p *Pipeline) Execute(ctx context.Context, args []string) (models.RunRecord, error) {
	params, err := models.ParseRequestParams(args)
	if err != nil {
		metrics.IncrementFailure(StageInput)
		p.log.WithComponent("hedge").WithError(err).WithFields(logger.Fields{"stage": StageInput}).Warn("rejected request arguments")
		return models.RunRecord{}, &StageError{Stage: StageInput, Err: err}
	}
	return p.Run(ctx, params)
}

// Run buys one protective put for params and returns the record of the
// executed hedge. The first failing stage aborts the run.
func (p *Pipeline) Run(ctx context.Context, params models.InsuranceRequestParams) (models.RunRecord, error) {
	runID := p.newID()
	started := p.now()
	expiry := ExpiryLabel(NextExpiry(started, p.opts.ExpiryWeekday))

	log := p.log.WithComponent("hedge").WithFields(logger.Fields{
		"run_id": runID,
		"asset":  p.opts.Asset,
		"expiry": expiry,
	})
	log.WithFields(logger.Fields{
		"loan_amount":              params.LoanAmount.String(),
		"reference_purchase_price": params.ReferencePurchasePrice,
		"premium":                  params.Premium.String(),
	}).Info("starting hedge run")

	rec := models.RunRecord{
		RunID:          runID,
		Asset:          p.opts.Asset,
		ExpiryLabel:    expiry,
		LoanAmount:     params.LoanAmount.String(),
		ReferencePrice: params.ReferencePurchasePrice,
		InputPremium:   params.Premium.String(),
	}

	var token string
	err := p.stage(log, StageAuthentication, func() error {
		var err error
		token, err = p.exchange.Authenticate(ctx)
		return err
	})
	if err != nil {
		return rec, err
	}

	var (
		snapshot models.MarketSnapshot
		catalog  []models.InstrumentCatalogEntry
	)
	err = p.stage(log, StageMarketData, func() error {
		var err error
		snapshot, err = p.exchange.GetSpotPrice(ctx, p.opts.Asset, p.opts.QuoteCurrency)
		if err != nil {
			return fmt.Errorf("spot price: %w", err)
		}
		catalog, err = p.exchange.ListInstruments(ctx, p.opts.Asset)
		if err != nil {
			return fmt.Errorf("instrument list: %w", err)
		}
		return nil
	})
	if err != nil {
		return rec, err
	}
	rec.SpotPrice = snapshot.CurrentPrice

	var strike int64
	err = p.stage(log, StageStrikeSelection, func() error {
		rec.StrikeTarget = StrikeTarget(snapshot.CurrentPrice, p.opts.DiscountFactor)
		strikes := FilterPutStrikes(catalog, p.opts.Asset, expiry)
		var err error
		strike, err = FindClosestStrike(rec.StrikeTarget, strikes)
		if err != nil {
			return err
		}
		log.WithFields(logger.Fields{
			"spot_price":    snapshot.CurrentPrice,
			"strike_target": rec.StrikeTarget,
			"candidates":    len(strikes),
			"strike":        strike,
		}).Info("selected strike")
		return nil
	})
	if err != nil {
		return rec, err
	}

	var quantity decimal.Decimal
	err = p.stage(log, StageQuantity, func() error {
		quantity = HedgeQuantity(params.LoanAmount, params.ReferencePurchasePrice, p.opts.MinQuantity)
		if !quantity.IsPositive() {
			return fmt.Errorf("non-positive quantity %s", quantity)
		}
		return nil
	})
	if err != nil {
		return rec, err
	}

	name := models.InstrumentName(p.opts.Asset, expiry, strike)
	err = p.stage(log, StageInstrumentResolution, func() error {
		entry, err := p.exchange.GetInstrument(ctx, name)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInstrumentNotFound, name, err)
		}
		if entry.Name != name {
			return fmt.Errorf("%w: %s", ErrInstrumentNotFound, name)
		}
		return nil
	})
	if err != nil {
		return rec, err
	}

	hedge := models.SelectedHedge{InstrumentName: name, StrikePrice: strike, Quantity: quantity}
	var fill models.FillResult
	err = p.stage(log, StageOrderExecution, func() error {
		var err error
		fill, err = p.exchange.PlaceMarketOrder(ctx, token, name, quantity, p.opts.OrderLabelPrefix+runID)
		return err
	})
	if err != nil {
		return rec, err
	}
	rec.OrderState = fill.OrderState
	log.WithFields(logger.Fields{
		"order_id":        fill.OrderID,
		"instrument":      name,
		"quantity":        quantity.String(),
		"execution_price": fill.ExecutionPrice,
		"order_state":     fill.OrderState,
	}).Info("put purchased")

	rec.Outcome = models.NewOutcome(hedge, fill)
	err = p.stage(log, StageResultEncoding, func() error {
		var err error
		rec.Payload, err = rec.Outcome.Encode()
		return err
	})
	if err != nil {
		return rec, err
	}
	rec.ExecutedAt = p.now()

	metrics.IncrementExecuted(p.opts.Asset)
	log.LogMetric("hedge", "hedges_executed", 1, "counter", logger.Fields{"asset": p.opts.Asset})
	log.LogMetric("hedge", "run_duration", rec.ExecutedAt.Sub(started).Milliseconds(), "duration", nil)

	if p.recorder != nil {
		if err := p.recorder.Write(ctx, rec); err != nil {
			log.WithError(err).Warn("failed to archive hedge record")
		}
	}
	return rec, nil
}

func (p *Pipeline) stage(log *logger.Entry, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	metrics.ObserveStage(name, elapsed)
	logger.LogPerformanceEntry(log, "hedge", name, elapsed, logger.Fields{"stage": name})
	if err == nil {
		return nil
	}

	metrics.IncrementFailure(name)
	log.LogMetric("hedge", "hedge_failures", 1, "counter", logger.Fields{"stage": name})
	log.WithError(err).WithFields(logger.Fields{"stage": name}).Error("hedge run aborted")
	return &StageError{Stage: name, Err: err}
}
