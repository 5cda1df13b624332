// ABOUTME: Integration tests for the Postgres request log store
// ABOUTME: Starts PostgreSQL with testcontainers; skipped in -short mode or without Docker

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/2389/fanout-gateway/internal/config"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "gateway",
			"POSTGRES_PASSWORD": "gateway",
			"POSTGRES_DB":       "gateway",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://gateway:gateway@%s:%s/gateway?sslmode=disable", host, port.Port())
}

func TestPostgresStore_Contract(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	runStoreContract(t, func(t *testing.T) RequestLogStore {
		// Each case starts from an empty table.
		pool, err := pgxpool.New(ctx, dsn)
		require.NoError(t, err)
		_, _ = pool.Exec(ctx, "DROP TABLE IF EXISTS request_logs")
		pool.Close()

		s, err := NewPostgresStore(ctx, dsn, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpen_Postgres(t *testing.T) {
	dsn := startPostgres(t)

	s, err := Open(context.Background(), config.DatabaseConfig{Driver: config.DriverPostgres, DSN: dsn}, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.IsType(t, &PostgresStore{}, s)
}

func TestNewPostgresStore_BadDSN(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), "not a dsn ::", nil)
	assert.Error(t, err)
}
