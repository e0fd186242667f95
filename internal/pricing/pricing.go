// Package pricing fetches current stock prices from market data providers.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"stock-alert/internal/config"
	apperrors "stock-alert/internal/errors"
)

// Provider names accepted by New.
const (
	ProviderAlphaVantage = "alphavantage"
	ProviderYahoo        = "yahoo"
)

// Source returns the latest price for a symbol. Failures are
// *errors.FetchError values classified by kind.
type Source interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

// New creates the price source selected by the provider configuration.
func New(cfg *config.Config, logger zerolog.Logger) (Source, error) {
	switch cfg.Provider.Name {
	case ProviderAlphaVantage:
		return NewAlphaVantage(AlphaVantageConfig{
			BaseURL: cfg.Provider.BaseURL,
			APIKey:  cfg.Credentials.APIKey,
			Timeout: cfg.Provider.Timeout,
		}, logger), nil
	case ProviderYahoo:
		return NewYahoo(logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", apperrors.ErrConfigInvalid, cfg.Provider.Name)
	}
}

// classifyTransport maps a request error to a fetch kind.
func classifyTransport(err error) apperrors.FetchKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.FetchTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.FetchTimeout
	}
	return apperrors.FetchTransportError
}
