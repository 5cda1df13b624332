// ABOUTME: Contract tests for the request log schema the dashboard and external readers depend on
// ABOUTME: Opens a real SQLite store, then inspects columns, types, and indexes through a raw handle

package contract

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fanout-gateway/internal/store"
)

// column is one row of PRAGMA table_info that the contract cares about.
type column struct {
	Type    string
	NotNull bool
}

// requestLogColumns is the shape of request_logs. Renaming, dropping, or
// loosening any of these breaks readers outside this process.
var requestLogColumns = map[string]column{
	"seq":           {Type: "INTEGER"},
	"id":            {Type: "TEXT", NotNull: true},
	"prompt":        {Type: "TEXT", NotNull: true},
	"winner":        {Type: "TEXT"}, // NULL when no backend answered
	"response_text": {Type: "TEXT", NotNull: true},
	"duration_ms":   {Type: "INTEGER", NotNull: true},
	"created_at":    {Type: "TEXT", NotNull: true},
}

var requestLogIndexes = []string{
	"idx_request_logs_winner",
	"idx_request_logs_created",
}

// openSchemaDB creates a store on disk and returns it with a second, raw
// handle for inspection.
func openSchemaDB(t *testing.T) (*store.SQLiteStore, *sql.DB) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "contract.db")

	s, err := store.NewSQLiteStore(dbPath, store.SQLiteOptions{})
	require.NoError(t, err)

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
		_ = s.Close()
	})
	return s, db
}

func tableInfo(t *testing.T, db *sql.DB, table string) map[string]column {
	t.Helper()
	rows, err := db.QueryContext(context.Background(), "PRAGMA table_info("+table+")")
	require.NoError(t, err)
	defer rows.Close()

	cols := make(map[string]column)
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		require.NoError(t, rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk))
		cols[name] = column{Type: typ, NotNull: notNull == 1}
	}
	require.NoError(t, rows.Err())
	return cols
}

func TestRequestLogColumns(t *testing.T) {
	_, db := openSchemaDB(t)
	actual := tableInfo(t, db, "request_logs")
	require.NotEmpty(t, actual, "request_logs should exist")

	for name, want := range requestLogColumns {
		got, ok := actual[name]
		if !assert.True(t, ok, "column request_logs.%s should exist", name) {
			continue
		}
		assert.Equal(t, want.Type, got.Type, "request_logs.%s type", name)
		if want.NotNull {
			assert.True(t, got.NotNull, "request_logs.%s should be NOT NULL", name)
		}
	}

	for name := range actual {
		if _, ok := requestLogColumns[name]; !ok {
			t.Logf("INFO: request_logs.%s is not in the contract yet", name)
		}
	}
}

func TestRequestLogIndexes(t *testing.T) {
	_, db := openSchemaDB(t)

	rows, err := db.QueryContext(context.Background(),
		"SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = 'request_logs'")
	require.NoError(t, err)
	defer rows.Close()

	found := make(map[string]bool)
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	for _, idx := range requestLogIndexes {
		assert.True(t, found[idx], "index %s should exist", idx)
	}
}

// TestRequestLogRowsAreAppendedInOrder checks what an outside reader sees:
// one row per append with seq increasing and RFC3339 timestamps.
func TestRequestLogRowsAreAppendedInOrder(t *testing.T) {
	s, db := openSchemaDB(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, winner := range []string{"grok", "", "claude"} {
		require.NoError(t, s.AppendRequestLog(ctx, &store.RequestLog{
			ID:           string(rune('a' + i)),
			Prompt:       "p",
			Winner:       winner,
			ResponseText: "r",
			DurationMS:   int64(10 * (i + 1)),
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
		}))
	}

	rows, err := db.QueryContext(ctx, "SELECT seq, id, winner, created_at FROM request_logs ORDER BY seq")
	require.NoError(t, err)
	defer rows.Close()

	var (
		lastSeq int64
		ids     []string
		winners []string
	)
	for rows.Next() {
		var (
			seq       int64
			id        string
			winner    sql.NullString
			createdAt string
		)
		require.NoError(t, rows.Scan(&seq, &id, &winner, &createdAt))
		assert.Greater(t, seq, lastSeq)
		lastSeq = seq

		_, err := time.Parse(time.RFC3339Nano, createdAt)
		assert.NoError(t, err, "created_at %q", createdAt)

		ids = append(ids, id)
		winners = append(winners, winner.String)
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, []string{"grok", "", "claude"}, winners)

	var nulls int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM request_logs WHERE winner IS NULL").Scan(&nulls))
	assert.Equal(t, 1, nulls, "an empty winner is stored as NULL so the leaderboard skips it")
}
