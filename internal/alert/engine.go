// Package alert evaluates the watchlist against live prices and sends
// notifications for targets that have been reached.
package alert

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	apperrors "stock-alert/internal/errors"
	"stock-alert/internal/logging"
	"stock-alert/internal/models"
	"stock-alert/internal/notify"
	"stock-alert/internal/pricing"
)

// Engine runs evaluation passes. Records are processed one at a time,
// in order; the engine never touches storage.
type Engine struct {
	source   pricing.Source
	notifier notify.Notifier
	pacing   Pacing
	clock    Clock
	logger   zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPacing sets the request pacing policy.
func WithPacing(p Pacing) Option {
	return func(e *Engine) { e.pacing = p }
}

// WithClock sets the time source used for timestamps and waits.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the engine's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger.With().Str("component", "alert").Logger() }
}

// NewEngine creates an engine over a price source and a notifier.
func NewEngine(source pricing.Source, notifier notify.Notifier, opts ...Option) *Engine {
	e := &Engine{
		source:   source,
		notifier: notifier,
		pacing:   DefaultPacing(),
		clock:    RealClock(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateAll checks every record once and returns the updated copy.
//
// Per-record failures never abort the pass. If ctx is cancelled the pass
// stops between records or during a wait, and the partial result is
// returned together with ctx.Err(); alerts already sent are reflected in it.
func (e *Engine) EvaluateAll(ctx context.Context, records []models.WatchRecord) (*PassResult, error) {
	res := &PassResult{
		Records: models.CloneRecords(records),
		Report:  &Report{Started: e.clock.Now()},
	}
	if res.Records == nil {
		res.Records = []models.WatchRecord{}
	}

	var (
		fetched bool
		wait    = e.pacing.MinInterval
		stopErr error
	)

	for i := range res.Records {
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}

		rec := &res.Records[i]
		logger := logging.WithSymbol(e.logger, rec.Symbol)
		if rec.Alerted {
			res.Report.add(newEntry(*rec, OutcomeSkipped, e.clock.Now()))
			continue
		}

		if fetched && wait > 0 {
			if err := e.clock.Sleep(ctx, wait); err != nil {
				stopErr = err
				break
			}
		}
		fetched = true
		wait = e.pacing.MinInterval

		price, err := e.fetch(ctx, rec.Symbol)
		if err != nil {
			if ctx.Err() != nil {
				stopErr = ctx.Err()
				break
			}
			kind := apperrors.KindOf(err)
			if kind == apperrors.FetchRateLimited {
				wait = e.pacing.afterRateLimit()
			}
			logging.LogFetchFailure(e.logger, rec.Symbol, string(kind), err)
			res.Report.add(newEntry(*rec, OutcomeFetchFailed, e.clock.Now()).withError(string(kind), err))
			continue
		}

		entry := newEntry(*rec, OutcomeWatching, e.clock.Now())
		entry.Price = price
		if !rec.Triggered(price) {
			logger.Debug().Float64("price", price).Msg("Target not reached")
			res.Report.add(entry)
			continue
		}

		if err := e.notifier.Notify(ctx, models.NewAlert(*rec, price, entry.At)); err != nil {
			logger.Error().Err(err).Msg("Alert delivery failed")
			entry.Outcome = OutcomeAlertFailed
			res.Report.add(entry.withError(apperrors.NotifyDeliveryFailed, err))
			continue
		}

		rec.Alerted = true
		res.Dirty = true
		entry.Outcome = OutcomeAlertSent
		res.Report.add(entry)
		logging.LogAlert(e.logger, rec.Symbol, rec.Direction.String(), rec.Target, price)
	}

	res.Report.Finished = e.clock.Now()
	res.Report.Cancelled = stopErr != nil

	logging.LogPass(e.logger,
		len(res.Report.Entries)-res.Report.Count(OutcomeSkipped),
		res.Report.Count(OutcomeAlertSent),
		res.Report.Count(OutcomeFetchFailed)+res.Report.Count(OutcomeAlertFailed),
		res.Dirty,
		res.Report.Duration(),
	)

	return res, stopErr
}

// fetch gets one price under the per-fetch timeout and checks it is usable.
func (e *Engine) fetch(ctx context.Context, symbol string) (float64, error) {
	fetchCtx := ctx
	if e.pacing.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, e.pacing.FetchTimeout)
		defer cancel()
	}

	price, err := e.source.Price(fetchCtx, symbol)
	if err != nil {
		if ctx.Err() == nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			if apperrors.KindOf(err) != apperrors.FetchTimeout {
				return 0, apperrors.NewFetchError(symbol, apperrors.FetchTimeout, err)
			}
		}
		var fe *apperrors.FetchError
		if !errors.As(err, &fe) {
			return 0, apperrors.NewFetchError(symbol, apperrors.KindOf(err), err)
		}
		return 0, err
	}

	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, apperrors.NewFetchError(symbol, apperrors.FetchMalformedResponse,
			fmt.Errorf("unusable price %v", price))
	}
	return price, nil
}
