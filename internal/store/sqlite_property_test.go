package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"stock-alert/internal/models"
)

// genRecords builds a watchlist of n distinct symbols from generated parts.
func genRecords(n int, targets []float64, flags []bool) []models.WatchRecord {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	records := make([]models.WatchRecord, 0, n)
	for i := 0; i < n; i++ {
		dir := models.DirectionAbove
		if flags[i%len(flags)] {
			dir = models.DirectionBelow
		}
		rec, err := models.NewWatchRecord(fmt.Sprintf("SYM%d", i), targets[i%len(targets)], dir, base.AddDate(0, 0, i))
		if err != nil {
			panic(err)
		}
		rec.Alerted = flags[(i+1)%len(flags)]
		records = append(records, rec)
	}
	return records
}

// Property: saving a watchlist and loading it back yields the same records in
// the same order, for both file-backed stores.
func TestProperty_StoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	sqliteStore, err := NewSQLiteStore(filepath.Join(dir, "watchlist.db"), zerolog.Nop())
	require.NoError(t, err)
	defer sqliteStore.Close()

	stores := map[string]WatchRecordStore{
		"json":   NewJSONStore(filepath.Join(dir, "watchlist.json"), zerolog.Nop()),
		"sqlite": sqliteStore,
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	for name, s := range stores {
		s := s
		properties.Property(name+": save then load preserves records and order", prop.ForAll(
			func(n int, targets []float64, flags []bool) bool {
				ctx := context.Background()
				want := genRecords(n, targets, flags)

				if err := s.Save(ctx, want); err != nil {
					t.Logf("save failed: %v", err)
					return false
				}
				got := s.Load(ctx)

				if len(got) != len(want) {
					return false
				}
				for i := range want {
					if got[i].Symbol != want[i].Symbol ||
						got[i].Target != want[i].Target ||
						got[i].Direction != want[i].Direction ||
						got[i].Alerted != want[i].Alerted ||
						!got[i].AddedOn.Equal(want[i].AddedOn) {
						return false
					}
				}
				return true
			},
			gen.IntRange(0, 25),
			gen.SliceOfN(5, gen.Float64Range(0.01, 100000)),
			gen.SliceOfN(5, gen.Bool()),
		))
	}

	properties.TestingRun(t)
}
