package store

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"stock-alert/internal/models"
)

// setupPostgres starts a PostgreSQL container and returns its DSN.
func setupPostgres(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("stockalert"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")
	return dsn
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := setupPostgres(t)
	ctx := context.Background()

	s, err := NewPostgresStore(ctx, dsn, zerolog.Nop())
	require.NoError(t, err)

	assert.Empty(t, s.Load(ctx))

	want := sampleRecords(t)
	require.NoError(t, s.Save(ctx, want))
	assert.Equal(t, want, s.Load(ctx))

	reordered := []models.WatchRecord{want[1], want[2]}
	require.NoError(t, s.Save(ctx, reordered))
	require.NoError(t, s.Close())

	// Schema creation is idempotent and state survives reconnects.
	s, err = NewPostgresStore(ctx, dsn, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, reordered, s.Load(ctx))

	require.NoError(t, s.Save(ctx, nil))
	assert.Empty(t, s.Load(ctx))
}

func TestPostgresStoreSaveIsAtomic(t *testing.T) {
	dsn := setupPostgres(t)
	ctx := context.Background()

	s, err := NewPostgresStore(ctx, dsn, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	want := sampleRecords(t)
	require.NoError(t, s.Save(ctx, want))

	bad := append(models.CloneRecords(want), want[0])
	assert.Error(t, s.Save(ctx, bad))
	assert.Equal(t, want, s.Load(ctx))
}

func TestPostgresStoreBadDSN(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), "://not-a-dsn", zerolog.Nop())
	assert.Error(t, err)
}
