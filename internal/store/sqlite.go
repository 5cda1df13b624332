// ABOUTME: SQLite implementation of RequestLogStore using modernc.org/sqlite
// ABOUTME: Splits one writer connection from a reader pool so dashboard reads never queue behind appends

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteOptions tunes NewSQLiteStore.
type SQLiteOptions struct {
	// MaxReadConns bounds the reader pool. Zero means 4.
	MaxReadConns int
	Logger       *slog.Logger
}

// SQLiteStore implements RequestLogStore using SQLite
type SQLiteStore struct {
	writer *sql.DB
	reader *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. The path ":memory:" gives a
// private in-memory database served by a single connection.
func NewSQLiteStore(path string, opts SQLiteOptions) (*SQLiteStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	maxReaders := opts.MaxReadConns
	if maxReaders <= 0 {
		maxReaders = 4
	}

	if path == ":memory:" {
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(1)
		s := &SQLiteStore{writer: db, reader: db, logger: logger}
		if err := s.createSchema(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
		logger.Info("SQLite store initialized", "path", path)
		return s, nil
	}

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)"

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows one writer at a time.
	writer.SetMaxOpenConns(1)

	// WAL lets readers run alongside the writer.
	if _, err := writer.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{writer: writer, logger: logger}
	if err := s.createSchema(); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	reader, err := sql.Open("sqlite", dsn+"&_pragma=query_only(1)")
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("opening reader pool: %w", err)
	}
	reader.SetMaxOpenConns(maxReaders)
	reader.SetMaxIdleConns(maxReaders)
	s.reader = reader

	logger.Info("SQLite store initialized", "path", path, "max_read_conns", maxReaders)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS request_logs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			prompt TEXT NOT NULL,
			winner TEXT,
			response_text TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_request_logs_winner
			ON request_logs(winner);

		CREATE INDEX IF NOT EXISTS idx_request_logs_created
			ON request_logs(created_at);
	`

	_, err := s.writer.Exec(schema)
	return err
}

// Close closes both connection pools
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	var readerErr error
	if s.reader != s.writer {
		readerErr = s.reader.Close()
	}
	if err := s.writer.Close(); err != nil {
		return err
	}
	return readerErr
}

// Ping checks the reader pool.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.reader.PingContext(ctx)
}

// AppendRequestLog inserts one record.
func (s *SQLiteStore) AppendRequestLog(ctx context.Context, rec *RequestLog) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	query := `
		INSERT INTO request_logs (id, prompt, winner, response_text, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.writer.ExecContext(ctx, query,
		rec.ID,
		rec.Prompt,
		nullString(rec.Winner),
		rec.ResponseText,
		rec.DurationMS,
		rec.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting request log: %w", err)
	}

	s.logger.Debug("appended request log", "id", rec.ID, "winner", rec.Winner)
	return nil
}

// nullString returns nil for empty strings, otherwise the string
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Leaderboard counts wins per backend.
func (s *SQLiteStore) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	return leaderboard(ctx, s.reader)
}

// RecentRequestLogs returns the newest records first.
func (s *SQLiteStore) RecentRequestLogs(ctx context.Context, limit int) ([]*RequestLog, error) {
	return recentRequestLogs(ctx, s.reader, limit)
}

// ReadAggregates reads the leaderboard and recent records from one snapshot.
func (s *SQLiteStore) ReadAggregates(ctx context.Context, limit int) (*Aggregates, error) {
	tx, err := s.reader.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	board, err := leaderboard(ctx, tx)
	if err != nil {
		return nil, err
	}
	recent, err := recentRequestLogs(ctx, tx, limit)
	if err != nil {
		return nil, err
	}
	return &Aggregates{Leaderboard: board, Recent: recent}, nil
}

func leaderboard(ctx context.Context, q queryer) ([]LeaderboardEntry, error) {
	query := `
		SELECT winner, COUNT(*) AS win_count
		FROM request_logs
		WHERE winner IS NOT NULL AND winner <> ''
		GROUP BY winner
		ORDER BY win_count DESC, winner ASC
	`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	defer func() { _ = rows.Close() }()

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

func recentRequestLogs(ctx context.Context, q queryer, limit int) ([]*RequestLog, error) {
	if limit <= 0 {
		return []*RequestLog{}, nil
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT id, prompt, winner, response_text, duration_ms, created_at
		FROM request_logs
		ORDER BY seq DESC
		LIMIT ?
	`

	rows, err := q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying request logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	logs := []*RequestLog{}
	for rows.Next() {
		var rec RequestLog
		var winner sql.NullString
		var createdAtStr string

		if err := rows.Scan(
			&rec.ID,
			&rec.Prompt,
			&winner,
			&rec.ResponseText,
			&rec.DurationMS,
			&createdAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning request log row: %w", err)
		}
		rec.Winner = winner.String

		rec.CreatedAt, err = time.Parse(timeFormat, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		logs = append(logs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating request log rows: %w", err)
	}
	return logs, nil
}

var _ RequestLogStore = (*SQLiteStore)(nil)
