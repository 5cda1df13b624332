// ABOUTME: PostgreSQL implementation of RequestLogStore using pgx connection pools
// ABOUTME: Selected with database.driver "postgres" for deployments that share a database server

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements RequestLogStore on PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects to dsn, verifies the connection, and creates the schema.
func NewPostgresStore(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, logger: logger}
	if err := s.createSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("Postgres store initialized", "max_conns", poolCfg.MaxConns)
	return s, nil
}

func (s *PostgresStore) createSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS request_logs (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			prompt TEXT NOT NULL,
			winner TEXT,
			response_text TEXT NOT NULL,
			duration_ms BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_request_logs_winner
			ON request_logs(winner);

		CREATE INDEX IF NOT EXISTS idx_request_logs_created
			ON request_logs(created_at);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.logger.Info("closing Postgres store")
	s.pool.Close()
	return nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// AppendRequestLog inserts one record.
func (s *PostgresStore) AppendRequestLog(ctx context.Context, rec *RequestLog) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO request_logs (id, prompt, winner, response_text, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.Prompt, nullString(rec.Winner), rec.ResponseText, rec.DurationMS, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting request log: %w", err)
	}
	return nil
}

// Leaderboard counts wins per backend.
func (s *PostgresStore) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	return pgLeaderboard(ctx, s.pool)
}

// RecentRequestLogs returns the newest records first.
func (s *PostgresStore) RecentRequestLogs(ctx context.Context, limit int) ([]*RequestLog, error) {
	return pgRecent(ctx, s.pool, limit)
}

// ReadAggregates reads both aggregates inside one repeatable-read transaction.
func (s *PostgresStore) ReadAggregates(ctx context.Context, limit int) (*Aggregates, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning read: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	board, err := pgLeaderboard(ctx, tx)
	if err != nil {
		return nil, err
	}
	recent, err := pgRecent(ctx, tx, limit)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return nil, fmt.Errorf("ending read: %w", err)
	}
	return &Aggregates{Leaderboard: board, Recent: recent}, nil
}

type pgQueryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func pgLeaderboard(ctx context.Context, q pgQueryer) ([]LeaderboardEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT winner, COUNT(*) AS win_count
		FROM request_logs
		WHERE winner IS NOT NULL AND winner <> ''
		GROUP BY winner
		ORDER BY win_count DESC, winner ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Winner, &e.WinCount); err != nil {
			return nil, fmt.Errorf("scanning leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating leaderboard rows: %w", err)
	}
	return entries, nil
}

func pgRecent(ctx context.Context, q pgQueryer, limit int) ([]*RequestLog, error) {
	if limit <= 0 {
		return []*RequestLog{}, nil
	}
	if limit > 1000 {
		limit = 1000
	}

	rows, err := q.Query(ctx, `
		SELECT id, prompt, winner, response_text, duration_ms, created_at
		FROM request_logs
		ORDER BY seq DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying request logs: %w", err)
	}
	defer rows.Close()

	logs := []*RequestLog{}
	for rows.Next() {
		var rec RequestLog
		var winner *string
		if err := rows.Scan(&rec.ID, &rec.Prompt, &winner, &rec.ResponseText, &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning request log row: %w", err)
		}
		if winner != nil {
			rec.Winner = *winner
		}
		logs = append(logs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating request log rows: %w", err)
	}
	return logs, nil
}

var _ RequestLogStore = (*PostgresStore)(nil)
