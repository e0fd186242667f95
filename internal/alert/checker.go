package alert

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	apperrors "stock-alert/internal/errors"
	"stock-alert/internal/logging"
	"stock-alert/internal/watchlist"
)

// saveTimeout bounds the save that follows an interrupted pass.
const saveTimeout = 30 * time.Second

// Checker runs passes over the watchlist and persists their results.
type Checker struct {
	engine    *Engine
	watchlist *watchlist.Manager
	logger    zerolog.Logger
}

// NewChecker creates a Checker.
func NewChecker(engine *Engine, wl *watchlist.Manager, logger zerolog.Logger) *Checker {
	return &Checker{
		engine:    engine,
		watchlist: wl,
		logger:    logger.With().Str("component", "checker").Logger(),
	}
}

// Check runs one pass and records the alerts it sent with a single save.
//
// Only the alerted flags of the sent symbols are written back, so edits made
// to the stored watchlist during the pass survive. A cancelled pass still
// saves the alerts it sent; ctx.Err() is returned alongside the partial
// report. A failed save is returned as a *errors.PersistError.
func (c *Checker) Check(ctx context.Context) (*Report, error) {
	logger := logging.WithOperation(c.logger, "check")
	res, passErr := c.engine.EvaluateAll(ctx, c.watchlist.Records())

	if res.Dirty {
		var sent []string
		for _, e := range res.Report.Entries {
			if e.Outcome == OutcomeAlertSent {
				sent = append(sent, e.Symbol)
			}
		}

		// Persist even when ctx is already cancelled.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		defer cancel()

		if err := c.watchlist.MarkAlerted(saveCtx, sent); err != nil {
			logger.Error().Err(err).Strs("symbols", sent).Msg("Failed to save alerts after pass")
			return res.Report, errors.Join(err, passErr)
		}
	}

	return res.Report, passErr
}

// Run checks the watchlist, then waits interval before the next pass,
// until ctx is cancelled. onPass, if not nil, receives every pass result.
// The stored watchlist is re-read before each pass unless the previous
// save failed, in which case memory holds the newer state.
func (c *Checker) Run(ctx context.Context, interval time.Duration, onPass func(*Report, error)) error {
	if interval <= 0 {
		return errors.New("watch interval must be positive")
	}

	logger := logging.WithOperation(c.logger, "watch")
	clock := c.engine.clock
	reload := false
	for {
		if reload {
			c.watchlist.Reload(ctx)
		}

		report, err := c.Check(ctx)
		if onPass != nil {
			onPass(report, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var persistErr *apperrors.PersistError
		reload = !errors.As(err, &persistErr)

		logger.Info().Dur("interval", interval).Msg("Waiting for next pass")
		if err := clock.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}
