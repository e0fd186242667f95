package pricing

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/rs/zerolog"

	apperrors "stock-alert/internal/errors"
	"stock-alert/internal/logging"
)

// quoteFunc fetches a single quote; it matches quote.Get.
type quoteFunc func(symbol string) (*finance.Quote, error)

// Yahoo reads the regular market price from Yahoo Finance.
type Yahoo struct {
	get    quoteFunc
	logger zerolog.Logger
}

// NewYahoo creates a new Yahoo Finance price source.
func NewYahoo(logger zerolog.Logger) *Yahoo {
	return &Yahoo{
		get:    quote.Get,
		logger: logger.With().Str("provider", ProviderYahoo).Logger(),
	}
}

type quoteResult struct {
	q   *finance.Quote
	err error
}

// Price returns the regular market price for symbol.
func (y *Yahoo) Price(ctx context.Context, symbol string) (price float64, err error) {
	start := time.Now()
	defer func() {
		logging.LogAPICall(logging.WithSymbol(y.logger, symbol), "GET", "quote", time.Since(start), err)
	}()

	// The client library has no context support; abandon the call on cancellation.
	done := make(chan quoteResult, 1)
	go func() {
		q, err := y.get(symbol)
		done <- quoteResult{q: q, err: err}
	}()

	select {
	case <-ctx.Done():
		return 0, apperrors.NewFetchError(symbol, classifyTransport(ctx.Err()), ctx.Err())
	case res := <-done:
		if res.err != nil {
			return 0, apperrors.NewFetchError(symbol, classifyTransport(res.err), res.err)
		}
		if res.q == nil {
			return 0, apperrors.NewFetchError(symbol, apperrors.FetchDataUnavailable,
				fmt.Errorf("no quote returned for %s", symbol))
		}
		return res.q.RegularMarketPrice, nil
	}
}
