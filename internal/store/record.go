package store

import (
	"time"

	"github.com/rs/zerolog"

	"stock-alert/internal/models"
)

// persistedRecord is the stored form of a watch record.
type persistedRecord struct {
	Symbol    string  `json:"symbol"`
	Target    float64 `json:"target"`
	Direction string  `json:"direction"`
	Alerted   bool    `json:"alerted"`
	Added     string  `json:"added"`
}

func toPersisted(r models.WatchRecord) persistedRecord {
	added := ""
	if !r.AddedOn.IsZero() {
		added = r.AddedOn.Format(models.DateLayout)
	}
	return persistedRecord{
		Symbol:    r.Symbol,
		Target:    r.Target,
		Direction: r.Direction.String(),
		Alerted:   r.Alerted,
		Added:     added,
	}
}

func (p persistedRecord) toModel() (models.WatchRecord, error) {
	dir, err := models.ParseDirection(p.Direction)
	if err != nil {
		return models.WatchRecord{}, err
	}
	sym, err := models.NormalizeSymbol(p.Symbol)
	if err != nil {
		return models.WatchRecord{}, err
	}

	// The added date is informational; an unparsable one is dropped.
	added, _ := time.ParseInLocation(models.DateLayout, p.Added, time.Local)

	rec := models.WatchRecord{
		Symbol:    sym,
		Target:    p.Target,
		Direction: dir,
		Alerted:   p.Alerted,
		AddedOn:   added,
	}
	if err := rec.Validate(); err != nil {
		return models.WatchRecord{}, err
	}
	return rec, nil
}

// fromPersisted converts stored rows, dropping invalid and duplicate entries.
func fromPersisted(rows []persistedRecord, logger zerolog.Logger) []models.WatchRecord {
	records := make([]models.WatchRecord, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		rec, err := row.toModel()
		if err != nil {
			logger.Warn().Err(err).Int("index", i).Str("symbol", row.Symbol).Msg("Dropping invalid watchlist entry")
			continue
		}
		if seen[rec.Symbol] {
			logger.Warn().Int("index", i).Str("symbol", rec.Symbol).Msg("Dropping duplicate watchlist entry")
			continue
		}
		seen[rec.Symbol] = true
		records = append(records, rec)
	}
	return records
}
