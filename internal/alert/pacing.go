package alert

import (
	"context"
	"time"

	"stock-alert/internal/config"
)

// Pacing spaces out price requests to stay inside the provider's quota.
type Pacing struct {
	// MinInterval is the wait between two successive fetches in a pass.
	MinInterval time.Duration
	// RateLimitCooldown is the wait before the next fetch after a rate limit.
	RateLimitCooldown time.Duration
	// FetchTimeout bounds a single fetch; zero disables it.
	FetchTimeout time.Duration
}

// DefaultPacing fits the Alpha Vantage free tier of five calls per minute.
func DefaultPacing() Pacing {
	return Pacing{
		MinInterval:       config.MinRequestInterval,
		RateLimitCooldown: config.MinRateLimitCooldown,
		FetchTimeout:      10 * time.Second,
	}
}

// PacingFromConfig builds a Pacing from provider settings.
func PacingFromConfig(cfg config.ProviderConfig) Pacing {
	return Pacing{
		MinInterval:       cfg.MinInterval,
		RateLimitCooldown: cfg.RateLimitCooldown,
		FetchTimeout:      cfg.Timeout,
	}
}

// afterRateLimit is the wait before the next fetch once a rate limit was seen.
func (p Pacing) afterRateLimit() time.Duration {
	if p.RateLimitCooldown > p.MinInterval {
		return p.RateLimitCooldown
	}
	return p.MinInterval
}

// Clock abstracts time so passes can be tested without waiting.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RealClock returns the wall clock.
func RealClock() Clock {
	return realClock{}
}
