// Package watchlist manages the in-memory watchlist and keeps it in sync
// with its store.
package watchlist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "stock-alert/internal/errors"
	"stock-alert/internal/models"
	"stock-alert/internal/store"
)

// Manager owns the watchlist. Every mutation is persisted before it returns.
type Manager struct {
	mu      sync.RWMutex
	records []models.WatchRecord
	store   store.WatchRecordStore
	now     func() time.Time
	logger  zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used to stamp new records.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the manager's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger.With().Str("component", "watchlist").Logger() }
}

// Open loads the current watchlist from s.
func Open(ctx context.Context, s store.WatchRecordStore, opts ...Option) *Manager {
	m := &Manager{
		store:  s,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.records = s.Load(ctx)
	if m.records == nil {
		m.records = []models.WatchRecord{}
	}
	m.logger.Debug().Int("records", len(m.records)).Msg("Watchlist loaded")
	return m
}

// Add appends a new, non-alerted record.
func (m *Manager) Add(ctx context.Context, symbol string, target float64, direction string) (models.WatchRecord, error) {
	dir, err := models.ParseDirection(direction)
	if err != nil {
		return models.WatchRecord{}, err
	}
	rec, err := models.NewWatchRecord(symbol, target, dir, m.now())
	if err != nil {
		return models.WatchRecord{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexOf(rec.Symbol) >= 0 {
		return models.WatchRecord{}, fmt.Errorf("%w: %s", apperrors.ErrDuplicateSymbol, rec.Symbol)
	}

	next := append(models.CloneRecords(m.records), rec)
	if err := m.commit(ctx, "add", next); err != nil {
		return models.WatchRecord{}, err
	}

	m.logger.Info().
		Str("symbol", rec.Symbol).
		Float64("target", rec.Target).
		Str("direction", rec.Direction.String()).
		Msg("Added to watchlist")
	return rec, nil
}

// Remove deletes the record for symbol.
func (m *Manager) Remove(ctx context.Context, symbol string) error {
	sym, err := models.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(sym)
	if idx < 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrSymbolNotFound, sym)
	}

	next := make([]models.WatchRecord, 0, len(m.records)-1)
	next = append(next, m.records[:idx]...)
	next = append(next, m.records[idx+1:]...)
	if err := m.commit(ctx, "remove", next); err != nil {
		return err
	}

	m.logger.Info().Str("symbol", sym).Msg("Removed from watchlist")
	return nil
}

// ResetAlerts clears every alerted flag and returns how many were set.
// Nothing is written when no record was alerted.
func (m *Manager) ResetAlerts(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := models.CloneRecords(m.records)
	changed := 0
	for i := range next {
		if next[i].Alerted {
			next[i].Alerted = false
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}

	if err := m.commit(ctx, "reset", next); err != nil {
		return 0, err
	}

	m.logger.Info().Int("count", changed).Msg("Alerts reset")
	return changed, nil
}

// Records returns a copy of the watchlist in order.
func (m *Manager) Records() []models.WatchRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.CloneRecords(m.records)
}

// Get returns the record for symbol.
func (m *Manager) Get(symbol string) (models.WatchRecord, bool) {
	sym, err := models.NormalizeSymbol(symbol)
	if err != nil {
		return models.WatchRecord{}, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if idx := m.indexOf(sym); idx >= 0 {
		return m.records[idx], true
	}
	return models.WatchRecord{}, false
}

// Len returns the number of records.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// MarkAlerted sets the alerted flag on symbols and persists the change.
// The stored list is re-read first, so records added, removed or reset by
// another process while a pass ran are kept; symbols no longer stored are
// ignored. If the save fails, memory still holds the marked list and the
// returned *errors.PersistError reports the divergence.
func (m *Manager) MarkAlerted(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}

	latest := m.store.Load(ctx)
	if latest == nil {
		latest = []models.WatchRecord{}
	}

	want := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		want[sym] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	changed := 0
	for i := range latest {
		if want[latest[i].Symbol] && !latest[i].Alerted {
			latest[i].Alerted = true
			changed++
		}
	}
	m.records = latest
	if changed == 0 {
		return nil
	}

	if err := m.store.Save(ctx, latest); err != nil {
		return apperrors.NewPersistError("mark alerted", err)
	}
	m.logger.Debug().Strs("symbols", symbols).Int("changed", changed).Msg("Alerts recorded")
	return nil
}

// Reload replaces the in-memory list with the stored one, picking up edits
// made by other processes.
func (m *Manager) Reload(ctx context.Context) {
	records := m.store.Load(ctx)
	if records == nil {
		records = []models.WatchRecord{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}

// commit saves next and installs it only if the save succeeded, so a failed
// edit leaves memory and storage unchanged. Callers hold m.mu.
func (m *Manager) commit(ctx context.Context, op string, next []models.WatchRecord) error {
	if err := m.store.Save(ctx, next); err != nil {
		return fmt.Errorf("%w: %s not saved: %w", apperrors.ErrDatabaseError, op, err)
	}
	m.records = next
	return nil
}

func (m *Manager) indexOf(symbol string) int {
	for i, r := range m.records {
		if r.Symbol == symbol {
			return i
		}
	}
	return -1
}
