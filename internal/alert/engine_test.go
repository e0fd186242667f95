package alert

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stock-alert/internal/errors"
	"stock-alert/internal/models"
)

func newTestEngine(src *fakeSource, n *fakeNotifier, clock *fakeClock) *Engine {
	return NewEngine(src, n, WithClock(clock), WithPacing(DefaultPacing()), WithLogger(zerolog.Nop()))
}

func TestDirectionBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		dir     models.Direction
		price   float64
		trigger bool
	}{
		{"above at target", models.DirectionAbove, 100.0, true},
		{"above just under", models.DirectionAbove, 99.99, false},
		{"above over", models.DirectionAbove, 150, true},
		{"below at target", models.DirectionBelow, 100.0, true},
		{"below just over", models.DirectionBelow, 100.01, false},
		{"below under", models.DirectionBelow, 50, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			src.prices["AAPL"] = tt.price
			n := newFakeNotifier()

			res, err := newTestEngine(src, n, newFakeClock()).EvaluateAll(context.Background(),
				[]models.WatchRecord{record(t, "AAPL", 100, tt.dir)})
			require.NoError(t, err)

			assert.Equal(t, tt.trigger, res.Records[0].Alerted)
			assert.Equal(t, tt.trigger, res.Dirty)
			if tt.trigger {
				require.Len(t, n.Sent(), 1)
				sent := n.Sent()[0]
				assert.Equal(t, "AAPL", sent.Symbol)
				assert.Equal(t, tt.price, sent.Price)
				assert.Equal(t, 100.0, sent.Target)
				assert.Equal(t, tt.dir, sent.Direction)
				assert.Equal(t, OutcomeAlertSent, res.Report.Entries[0].Outcome)
			} else {
				assert.Empty(t, n.Sent())
				assert.Equal(t, OutcomeWatching, res.Report.Entries[0].Outcome)
				assert.Equal(t, tt.price, res.Report.Entries[0].Price)
			}
		})
	}
}

func TestSecondPassIsIdempotent(t *testing.T) {
	src := newFakeSource()
	src.prices["AAPL"] = 160
	src.prices["TSLA"] = 150
	n := newFakeNotifier()
	e := newTestEngine(src, n, newFakeClock())

	input := []models.WatchRecord{
		record(t, "AAPL", 150, models.DirectionAbove),
		record(t, "TSLA", 180, models.DirectionBelow),
	}

	first, err := e.EvaluateAll(context.Background(), input)
	require.NoError(t, err)
	assert.Len(t, n.Sent(), 2)
	assert.False(t, input[0].Alerted, "input must not be mutated")

	second, err := e.EvaluateAll(context.Background(), first.Records)
	require.NoError(t, err)
	assert.Len(t, n.Sent(), 2)
	assert.False(t, second.Dirty)
	assert.Equal(t, 2, second.Report.Count(OutcomeSkipped))
	assert.Len(t, src.Calls(), 2, "skipped records are not fetched")
}

func TestFetchFailureIsIsolated(t *testing.T) {
	src := newFakeSource()
	src.prices["AAPL"] = 200
	src.errs["MSFT"] = apperrors.NewFetchError("MSFT", apperrors.FetchTransportError, errors.New("connection reset"))
	src.prices["TSLA"] = 100
	n := newFakeNotifier()

	input := []models.WatchRecord{
		record(t, "AAPL", 150, models.DirectionAbove),
		record(t, "MSFT", 300, models.DirectionAbove),
		record(t, "TSLA", 120, models.DirectionBelow),
	}
	res, err := newTestEngine(src, n, newFakeClock()).EvaluateAll(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"}, src.Calls())
	assert.True(t, res.Records[0].Alerted)
	assert.Equal(t, input[1], res.Records[1])
	assert.True(t, res.Records[2].Alerted)

	entry, ok := res.Report.Entry("MSFT")
	require.True(t, ok)
	assert.Equal(t, OutcomeFetchFailed, entry.Outcome)
	assert.Equal(t, string(apperrors.FetchTransportError), entry.Kind)
	assert.ErrorIs(t, entry.Err, apperrors.ErrFetchTransport)
}

func TestUnusablePriceIsMalformed(t *testing.T) {
	for _, price := range []float64{0, -3, math.NaN(), math.Inf(1)} {
		src := newFakeSource()
		src.prices["AAPL"] = price
		n := newFakeNotifier()

		res, err := newTestEngine(src, n, newFakeClock()).EvaluateAll(context.Background(),
			[]models.WatchRecord{record(t, "AAPL", 100, models.DirectionBelow)})
		require.NoError(t, err)

		assert.False(t, res.Records[0].Alerted)
		assert.Empty(t, n.Sent())
		assert.Equal(t, string(apperrors.FetchMalformedResponse), res.Report.Entries[0].Kind)
	}
}

func TestNotifyFailureRetriggersNextPass(t *testing.T) {
	src := newFakeSource()
	src.prices["AAPL"] = 160
	n := newFakeNotifier()
	n.fail["AAPL"] = true
	e := newTestEngine(src, n, newFakeClock())

	input := []models.WatchRecord{record(t, "AAPL", 150, models.DirectionAbove)}

	first, err := e.EvaluateAll(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, first.Records[0].Alerted)
	assert.False(t, first.Dirty)
	assert.Equal(t, OutcomeAlertFailed, first.Report.Entries[0].Outcome)
	assert.Equal(t, apperrors.NotifyDeliveryFailed, first.Report.Entries[0].Kind)
	assert.ErrorIs(t, first.Report.Entries[0].Err, apperrors.ErrDeliveryFailed)

	n.fail["AAPL"] = false
	second, err := e.EvaluateAll(context.Background(), first.Records)
	require.NoError(t, err)
	assert.True(t, second.Records[0].Alerted)
	assert.Len(t, n.Sent(), 1)
}

func TestPacingBetweenFetches(t *testing.T) {
	src := newFakeSource()
	for _, s := range []string{"AAPL", "MSFT", "TSLA", "NVDA"} {
		src.prices[s] = 1
	}
	clock := newFakeClock()

	input := []models.WatchRecord{
		alerted(t, "GOOG", 100, models.DirectionAbove),
		record(t, "AAPL", 100, models.DirectionAbove),
		alerted(t, "AMZN", 100, models.DirectionAbove),
		record(t, "MSFT", 100, models.DirectionAbove),
		record(t, "TSLA", 100, models.DirectionAbove),
		alerted(t, "META", 100, models.DirectionAbove),
		record(t, "NVDA", 100, models.DirectionAbove),
	}
	_, err := newTestEngine(src, newFakeNotifier(), clock).EvaluateAll(context.Background(), input)
	require.NoError(t, err)

	// No wait before the first fetch or for skipped records.
	assert.Equal(t, []time.Duration{12 * time.Second, 12 * time.Second, 12 * time.Second}, clock.Sleeps())
}

func TestRateLimitCooldownDoesNotDropWork(t *testing.T) {
	src := newFakeSource()
	src.prices["AAPL"] = 200
	src.errs["MSFT"] = apperrors.NewFetchError("MSFT", apperrors.FetchRateLimited, errors.New("call frequency"))
	src.prices["TSLA"] = 200
	src.prices["NVDA"] = 200
	clock := newFakeClock()
	n := newFakeNotifier()

	input := []models.WatchRecord{
		record(t, "AAPL", 100, models.DirectionAbove),
		record(t, "MSFT", 100, models.DirectionAbove),
		record(t, "TSLA", 100, models.DirectionAbove),
		record(t, "NVDA", 100, models.DirectionAbove),
	}
	res, err := newTestEngine(src, n, clock).EvaluateAll(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{12 * time.Second, 60 * time.Second, 12 * time.Second}, clock.Sleeps())
	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA", "NVDA"}, src.Calls(), "rate-limited symbol is not retried")
	assert.Len(t, n.Sent(), 3)
	assert.False(t, res.Records[1].Alerted)
	assert.Equal(t, string(apperrors.FetchRateLimited), res.Report.Entries[1].Kind)
}

func TestCooldownShorterThanSpacingUsesSpacing(t *testing.T) {
	src := newFakeSource()
	src.errs["AAPL"] = apperrors.NewFetchError("AAPL", apperrors.FetchRateLimited, errors.New("limited"))
	src.prices["MSFT"] = 1
	clock := newFakeClock()

	e := NewEngine(src, newFakeNotifier(), WithClock(clock), WithPacing(Pacing{
		MinInterval:       20 * time.Second,
		RateLimitCooldown: 5 * time.Second,
	}))
	_, err := e.EvaluateAll(context.Background(), []models.WatchRecord{
		record(t, "AAPL", 100, models.DirectionAbove),
		record(t, "MSFT", 100, models.DirectionAbove),
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{20 * time.Second}, clock.Sleeps())
}

func TestFetchTimeoutIsClassified(t *testing.T) {
	src := newFakeSource()
	src.block["AAPL"] = true
	src.prices["MSFT"] = 500
	n := newFakeNotifier()

	e := NewEngine(src, n, WithClock(newFakeClock()), WithPacing(Pacing{FetchTimeout: 20 * time.Millisecond}))
	res, err := e.EvaluateAll(context.Background(), []models.WatchRecord{
		record(t, "AAPL", 100, models.DirectionAbove),
		record(t, "MSFT", 100, models.DirectionAbove),
	})
	require.NoError(t, err)

	assert.Equal(t, string(apperrors.FetchTimeout), res.Report.Entries[0].Kind)
	assert.ErrorIs(t, res.Report.Entries[0].Err, apperrors.ErrFetchTimeout)
	assert.True(t, res.Records[1].Alerted)
}

func TestCancellationKeepsSentAlerts(t *testing.T) {
	src := newFakeSource()
	src.prices["AAPL"] = 200
	src.prices["MSFT"] = 200
	src.prices["TSLA"] = 200
	clock := newFakeClock()
	n := newFakeNotifier()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Interrupt during the wait before the third fetch.
	clock.onSleep = func(count int) {
		if count == 2 {
			cancel()
		}
	}

	input := []models.WatchRecord{
		record(t, "AAPL", 100, models.DirectionAbove),
		record(t, "MSFT", 100, models.DirectionAbove),
		record(t, "TSLA", 100, models.DirectionAbove),
	}
	res, err := newTestEngine(src, n, clock).EvaluateAll(ctx, input)
	assert.ErrorIs(t, err, context.Canceled)

	require.NotNil(t, res)
	assert.True(t, res.Dirty)
	assert.True(t, res.Report.Cancelled)
	assert.True(t, res.Records[0].Alerted)
	assert.True(t, res.Records[1].Alerted)
	assert.False(t, res.Records[2].Alerted)
	assert.Len(t, res.Records, 3)
	assert.Len(t, res.Report.Entries, 2)
	assert.Equal(t, []string{"AAPL", "MSFT"}, src.Calls())
}

func TestEmptyWatchlist(t *testing.T) {
	res, err := newTestEngine(newFakeSource(), newFakeNotifier(), newFakeClock()).EvaluateAll(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, res.Records)
	assert.Empty(t, res.Report.Entries)
	assert.False(t, res.Dirty)
}

func TestReportStrings(t *testing.T) {
	src := newFakeSource()
	src.prices["AAPL"] = 151.256
	src.prices["MSFT"] = 90
	n := newFakeNotifier()

	res, err := newTestEngine(src, n, newFakeClock()).EvaluateAll(context.Background(), []models.WatchRecord{
		record(t, "AAPL", 150, models.DirectionAbove),
		record(t, "MSFT", 100, models.DirectionAbove),
		alerted(t, "TSLA", 100, models.DirectionBelow),
		record(t, "NVDA", 100, models.DirectionBelow),
	})
	require.NoError(t, err)

	lines := strings.Split(res.Report.String(), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "AAPL: $151.26 (target: $150.00 above), alert sent", lines[0])
	assert.Equal(t, "MSFT: $90.00 (target: $100.00 above)", lines[1])
	assert.Equal(t, "TSLA: already triggered, use 'reset' to check again", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "NVDA: price unavailable (FetchDataUnavailable)"))
	assert.Equal(t, "3 checked, 1 alerts sent, 1 failed", lines[4])
	assert.Equal(t, 1, res.Report.Count(OutcomeAlertSent))
}
