package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	apperrors "stock-alert/internal/errors"
	"stock-alert/internal/models"
)

// SQLiteStore implements WatchRecordStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath.
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS watch_records (
		symbol TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		target REAL NOT NULL,
		direction TEXT NOT NULL,
		alerted INTEGER NOT NULL DEFAULT 0,
		added TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_watch_records_position ON watch_records(position);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Load reads every record in insertion order.
func (s *SQLiteStore) Load(ctx context.Context) []models.WatchRecord {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, target, direction, alerted, added
		FROM watch_records
		ORDER BY position ASC
	`)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to query watchlist, starting empty")
		return []models.WatchRecord{}
	}
	defer rows.Close()

	var stored []persistedRecord
	for rows.Next() {
		var p persistedRecord
		if err := rows.Scan(&p.Symbol, &p.Target, &p.Direction, &p.Alerted, &p.Added); err != nil {
			s.logger.Error().Err(err).Msg("Failed to scan watchlist row, starting empty")
			return []models.WatchRecord{}
		}
		stored = append(stored, p)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to read watchlist, starting empty")
		return []models.WatchRecord{}
	}

	return fromPersisted(stored, s.logger)
}

// Save replaces all rows in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, records []models.WatchRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM watch_records`); err != nil {
		return fmt.Errorf("failed to clear watchlist: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO watch_records (symbol, position, target, direction, alerted, added, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		p := toPersisted(r)
		if _, err := stmt.ExecContext(ctx, p.Symbol, i, p.Target, p.Direction, p.Alerted, p.Added); err != nil {
			return apperrors.Wrapf(err, "failed to save %s", p.Symbol)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit watchlist: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
