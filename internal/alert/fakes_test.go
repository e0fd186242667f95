package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "stock-alert/internal/errors"
	"stock-alert/internal/models"
)

// fakeClock records requested waits and advances instantly.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	n := len(c.sleeps)
	hook := c.onSleep
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// fakeSource serves configured prices and errors.
type fakeSource struct {
	mu     sync.Mutex
	prices map[string]float64
	errs   map[string]error
	block  map[string]bool
	calls  []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		prices: make(map[string]float64),
		errs:   make(map[string]error),
		block:  make(map[string]bool),
	}
}

func (s *fakeSource) Price(ctx context.Context, symbol string) (float64, error) {
	s.mu.Lock()
	s.calls = append(s.calls, symbol)
	price, hasPrice := s.prices[symbol]
	err := s.errs[symbol]
	block := s.block[symbol]
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if err != nil {
		return 0, err
	}
	if !hasPrice {
		return 0, apperrors.NewFetchError(symbol, apperrors.FetchDataUnavailable, errors.New("no data"))
	}
	return price, nil
}

func (s *fakeSource) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// fakeNotifier records delivered alerts and fails for selected symbols.
type fakeNotifier struct {
	mu     sync.Mutex
	fail   map[string]bool
	sent   []models.Alert
	onSend func(models.Alert)
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{fail: make(map[string]bool)}
}

func (n *fakeNotifier) Notify(ctx context.Context, alert models.Alert) error {
	n.mu.Lock()
	fail := n.fail[alert.Symbol]
	if !fail {
		n.sent = append(n.sent, alert)
	}
	hook := n.onSend
	n.mu.Unlock()

	if fail {
		return apperrors.NewNotifyError(alert.Symbol, "fake", errors.New("smtp unavailable"))
	}
	if hook != nil {
		hook(alert)
	}
	return nil
}

func (n *fakeNotifier) Sent() []models.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Alert(nil), n.sent...)
}

// memStore is an in-memory WatchRecordStore.
type memStore struct {
	mu      sync.Mutex
	records []models.WatchRecord
	saves   int
	failErr error
}

func (s *memStore) Load(ctx context.Context) []models.WatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneRecords(s.records)
}

func (s *memStore) Save(ctx context.Context, records []models.WatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.saves++
	s.records = models.CloneRecords(records)
	return nil
}

func (s *memStore) Close() error { return nil }

func record(t *testing.T, symbol string, target float64, dir models.Direction) models.WatchRecord {
	t.Helper()
	rec, err := models.NewWatchRecord(symbol, target, dir, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return rec
}

func alerted(t *testing.T, symbol string, target float64, dir models.Direction) models.WatchRecord {
	rec := record(t, symbol, target, dir)
	rec.Alerted = true
	return rec
}
