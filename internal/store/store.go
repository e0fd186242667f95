// Package store persists the watchlist.
package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"stock-alert/internal/config"
	apperrors "stock-alert/internal/errors"
	"stock-alert/internal/models"
)

// Backend names accepted by Open.
const (
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// WatchRecordStore loads and saves the whole watchlist at once.
type WatchRecordStore interface {
	// Load returns the persisted records in order. Missing or unreadable
	// state yields an empty list; the problem is logged, never returned.
	Load(ctx context.Context) []models.WatchRecord
	// Save atomically replaces the persisted records.
	Save(ctx context.Context, records []models.WatchRecord) error
	Close() error
}

// Open creates the store selected by the storage configuration.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (WatchRecordStore, error) {
	logger = logger.With().Str("component", "store").Str("backend", cfg.Storage.Backend).Logger()

	switch cfg.Storage.Backend {
	case BackendJSON:
		return NewJSONStore(cfg.Storage.Path, logger), nil
	case BackendSQLite:
		return NewSQLiteStore(cfg.Storage.Path, logger)
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg.Storage.PostgresDSN, logger)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", apperrors.ErrConfigInvalid, cfg.Storage.Backend)
	}
}
