package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"stock-alert/internal/models"
)

// JSONStore keeps the watchlist in a single JSON file.
type JSONStore struct {
	path   string
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewJSONStore creates a JSON file store at path.
func NewJSONStore(path string, logger zerolog.Logger) *JSONStore {
	return &JSONStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the watchlist file.
func (s *JSONStore) Load(ctx context.Context) []models.WatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Error().Err(err).Str("path", s.path).Msg("Failed to read watchlist, starting empty")
		}
		return []models.WatchRecord{}
	}

	var rows []persistedRecord
	if err := json.Unmarshal(data, &rows); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Watchlist file corrupted, starting empty")
		return []models.WatchRecord{}
	}

	return fromPersisted(rows, s.logger)
}

// Save writes the watchlist to a temporary file and renames it into place.
func (s *JSONStore) Save(ctx context.Context, records []models.WatchRecord) error {
	rows := make([]persistedRecord, len(records))
	for i, r := range records {
		rows[i] = toPersisted(r)
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode watchlist: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create watchlist directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write watchlist: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync watchlist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close watchlist: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace watchlist: %w", err)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *JSONStore) Close() error {
	return nil
}
