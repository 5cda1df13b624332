// ABOUTME: Store interface and data types for fanout-gateway persistence
// ABOUTME: Defines the append-only request log and the aggregates read back from it

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/fanout-gateway/internal/config"
)

// ErrInvalidRecord is returned when a request log is missing required fields.
var ErrInvalidRecord = errors.New("invalid request log")

// RequestLog is one completed request. Records are only ever appended.
type RequestLog struct {
	ID           string
	Prompt       string
	Winner       string // empty when no backend succeeded
	ResponseText string
	DurationMS   int64
	CreatedAt    time.Time
}

// LeaderboardEntry counts the requests a backend has won.
type LeaderboardEntry struct {
	Winner   string
	WinCount int64
}

// Aggregates is everything the dashboard reads in one call.
type Aggregates struct {
	Leaderboard []LeaderboardEntry
	Recent      []*RequestLog
}

// RequestLogStore persists request logs and computes aggregates over them.
type RequestLogStore interface {
	// AppendRequestLog inserts one record. It never updates or deletes.
	AppendRequestLog(ctx context.Context, rec *RequestLog) error

	// Leaderboard returns win counts per backend, highest first, ties broken
	// by name. Records without a winner are not counted.
	Leaderboard(ctx context.Context) ([]LeaderboardEntry, error)

	// RecentRequestLogs returns up to limit records, most recently appended first.
	RecentRequestLogs(ctx context.Context, limit int) ([]*RequestLog, error)

	// ReadAggregates returns the leaderboard and the recent records together.
	ReadAggregates(ctx context.Context, limit int) (*Aggregates, error)

	// Ping reports whether the store can serve reads.
	Ping(ctx context.Context) error

	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (RequestLogStore, error) {
	switch cfg.Driver {
	case "", config.DriverSQLite:
		return NewSQLiteStore(cfg.Path, SQLiteOptions{MaxReadConns: cfg.MaxReadConns, Logger: logger})
	case config.DriverPostgres:
		return NewPostgresStore(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func validateRecord(rec *RequestLog) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	if rec.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	}
	if rec.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is required", ErrInvalidRecord)
	}
	return nil
}

// readAggregates composes the two reads for stores without a cheaper path.
func readAggregates(ctx context.Context, s RequestLogStore, limit int) (*Aggregates, error) {
	board, err := s.Leaderboard(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.RecentRequestLogs(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &Aggregates{Leaderboard: board, Recent: recent}, nil
}
