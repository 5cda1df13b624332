// Package store persists the gateway's request log.
//
// # Architecture
//
// RequestLogStore is append-only: one record per completed request, never
// updated or deleted. Everything the dashboard shows is computed from those
// records at read time:
//
//   - Leaderboard: win counts per backend, highest first
//   - RecentRequestLogs: the newest records, newest first
//   - ReadAggregates: both of the above from one consistent read
//
// # Implementations
//
//   - SQLiteStore: default. One writer connection plus a reader pool over a
//     WAL-mode file, so reads proceed while an append is in flight.
//   - PostgresStore: pgx pool, selected with database.driver "postgres".
//   - MockStore: in-memory, for tests, with injectable failures.
//
// Open picks the implementation from config.DatabaseConfig.
//
// # Ordering
//
// Each table carries an auto-incrementing seq column. "Most recent" means
// highest seq, which is append order regardless of clock resolution.
package store
