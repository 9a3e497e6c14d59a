//go:build integration

package postgres_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/substance-resolver/internal/config"
	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/internal/infrastructure/database/postgres"
	"github.com/turtacn/substance-resolver/internal/testutil"
)

func startPostgres(t *testing.T) config.DatabaseConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "substances",
				"POSTGRES_USER":     "resolver",
				"POSTGRES_PASSWORD": "resolver",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	p, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	return config.DatabaseConfig{
		Host:     host,
		Port:     p,
		User:     "resolver",
		Password: "resolver",
		DBName:   "substances",
		SSLMode:  "disable",
	}
}

func TestPostgres_MigrateImportLoad(t *testing.T) {
	cfg := startPostgres(t)
	ctx := context.Background()

	m, err := postgres.NewMigrator(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Up())
	st, err := m.Status()
	require.NoError(t, err)
	assert.Equal(t, uint(1), st.Version)
	assert.False(t, st.Dirty)
	require.NoError(t, m.Close())

	conn, err := postgres.NewConnection(ctx, cfg, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.HealthCheck(ctx))

	want := testutil.SampleStore(t)
	tables := testutil.SampleTables()
	require.NoError(t, postgres.ImportTables(ctx, conn.DB(), &tables))

	store, err := substance.Load(ctx, postgres.NewSource(conn.DB()), nil)
	require.NoError(t, err)
	assert.Equal(t, want.Stats().References, store.Stats().References)
	assert.Equal(t, want.Stats().Synonyms, store.Stats().Synonyms)
	assert.Equal(t, want.Stats().UnjoinedSynonyms, store.Stats().UnjoinedSynonyms)
}
