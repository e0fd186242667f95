package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	apperrors "stock-alert/internal/errors"
	"stock-alert/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS watch_records (
	symbol TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	target DOUBLE PRECISION NOT NULL,
	direction TEXT NOT NULL CHECK (direction IN ('above', 'below')),
	alerted BOOLEAN NOT NULL DEFAULT FALSE,
	added TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresStore implements WatchRecordStore using PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresStore connects to dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string, logger zerolog.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, apperrors.Wrap(err, "parse postgres dsn")
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, apperrors.Wrap(err, "connect to postgres")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.Wrap(err, "ping postgres")
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, apperrors.Wrap(err, "initialize schema")
	}

	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Load reads every record in insertion order.
func (s *PostgresStore) Load(ctx context.Context) []models.WatchRecord {
	rows, err := s.pool.Query(ctx, `
		SELECT symbol, target, direction, alerted, added
		FROM watch_records
		ORDER BY position ASC
	`)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to query watchlist, starting empty")
		return []models.WatchRecord{}
	}

	stored, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (persistedRecord, error) {
		var p persistedRecord
		err := row.Scan(&p.Symbol, &p.Target, &p.Direction, &p.Alerted, &p.Added)
		return p, err
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read watchlist, starting empty")
		return []models.WatchRecord{}
	}

	return fromPersisted(stored, s.logger)
}

// Save replaces all rows in one transaction.
func (s *PostgresStore) Save(ctx context.Context, records []models.WatchRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperrors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM watch_records`); err != nil {
		return apperrors.Wrap(err, "clear watchlist")
	}

	batch := &pgx.Batch{}
	for i, r := range records {
		p := toPersisted(r)
		batch.Queue(`
			INSERT INTO watch_records (symbol, position, target, direction, alerted, added, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`, p.Symbol, i, p.Target, p.Direction, p.Alerted, p.Added)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return apperrors.Wrap(err, "insert watchlist")
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.Wrap(err, "commit watchlist")
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
