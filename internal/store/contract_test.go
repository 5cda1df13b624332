// ABOUTME: Behaviour shared by every RequestLogStore implementation
// ABOUTME: Each implementation's test file runs these cases against a fresh store

package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(i int, winner string) *RequestLog {
	return &RequestLog{
		ID:           fmt.Sprintf("rec-%04d", i),
		Prompt:       fmt.Sprintf("prompt %d", i),
		Winner:       winner,
		ResponseText: fmt.Sprintf("response %d", i),
		DurationMS:   int64(10 + i),
		CreatedAt:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func runStoreContract(t *testing.T, newStore func(t *testing.T) RequestLogStore) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		s := newStore(t)

		board, err := s.Leaderboard(ctx)
		require.NoError(t, err)
		assert.Empty(t, board)
		assert.NotNil(t, board)

		recent, err := s.RecentRequestLogs(ctx, 5)
		require.NoError(t, err)
		assert.Empty(t, recent)
		assert.NotNil(t, recent)

		require.NoError(t, s.Ping(ctx))
	})

	t.Run("leaderboard counts and orders wins", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.AppendRequestLog(ctx, newRecord(1, "X")))
		require.NoError(t, s.AppendRequestLog(ctx, newRecord(2, "Y")))
		require.NoError(t, s.AppendRequestLog(ctx, newRecord(3, "X")))

		board, err := s.Leaderboard(ctx)
		require.NoError(t, err)
		assert.Equal(t, []LeaderboardEntry{
			{Winner: "X", WinCount: 2},
			{Winner: "Y", WinCount: 1},
		}, board)
	})

	t.Run("leaderboard ties break by name and skip empty winners", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.AppendRequestLog(ctx, newRecord(1, "zeta")))
		require.NoError(t, s.AppendRequestLog(ctx, newRecord(2, "")))
		require.NoError(t, s.AppendRequestLog(ctx, newRecord(3, "alpha")))
		require.NoError(t, s.AppendRequestLog(ctx, newRecord(4, "")))

		board, err := s.Leaderboard(ctx)
		require.NoError(t, err)
		assert.Equal(t, []LeaderboardEntry{
			{Winner: "alpha", WinCount: 1},
			{Winner: "zeta", WinCount: 1},
		}, board)
	})

	t.Run("recent logs newest first and limited", func(t *testing.T) {
		s := newStore(t)

		for i := 1; i <= 6; i++ {
			require.NoError(t, s.AppendRequestLog(ctx, newRecord(i, "grok")))
		}

		recent, err := s.RecentRequestLogs(ctx, 5)
		require.NoError(t, err)
		require.Len(t, recent, 5)
		for i, rec := range recent {
			assert.Equal(t, fmt.Sprintf("rec-%04d", 6-i), rec.ID)
		}

		assert.Equal(t, "prompt 6", recent[0].Prompt)
		assert.Equal(t, "response 6", recent[0].ResponseText)
		assert.Equal(t, int64(16), recent[0].DurationMS)
		assert.True(t, recent[0].CreatedAt.Equal(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)))
	})

	t.Run("recent logs follow append order not timestamps or ids", func(t *testing.T) {
		s := newStore(t)

		base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		late := newRecord(1, "grok")
		late.ID = "zzz"
		late.CreatedAt = base.Add(time.Hour)
		early := newRecord(2, "grok")
		early.ID = "aaa"
		early.CreatedAt = base

		require.NoError(t, s.AppendRequestLog(ctx, late))
		require.NoError(t, s.AppendRequestLog(ctx, early))

		recent, err := s.RecentRequestLogs(ctx, 5)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "aaa", recent[0].ID)
		assert.Equal(t, "zzz", recent[1].ID)
	})

	t.Run("empty winner round trips", func(t *testing.T) {
		s := newStore(t)

		rec := newRecord(1, "")
		rec.ResponseText = "no backend responded"
		require.NoError(t, s.AppendRequestLog(ctx, rec))

		recent, err := s.RecentRequestLogs(ctx, 5)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, "", recent[0].Winner)
		assert.Equal(t, "no backend responded", recent[0].ResponseText)
	})

	t.Run("read aggregates", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.AppendRequestLog(ctx, newRecord(1, "a")))
		require.NoError(t, s.AppendRequestLog(ctx, newRecord(2, "b")))
		require.NoError(t, s.AppendRequestLog(ctx, newRecord(3, "b")))

		agg, err := s.ReadAggregates(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []LeaderboardEntry{{Winner: "b", WinCount: 2}, {Winner: "a", WinCount: 1}}, agg.Leaderboard)
		require.Len(t, agg.Recent, 2)
		assert.Equal(t, "rec-0003", agg.Recent[0].ID)
	})

	t.Run("rejects invalid records", func(t *testing.T) {
		s := newStore(t)

		err := s.AppendRequestLog(ctx, &RequestLog{Prompt: "no id", CreatedAt: time.Now()})
		assert.ErrorIs(t, err, ErrInvalidRecord)

		err = s.AppendRequestLog(ctx, &RequestLog{ID: "x"})
		assert.ErrorIs(t, err, ErrInvalidRecord)

		err = s.AppendRequestLog(ctx, nil)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("concurrent appends are all kept", func(t *testing.T) {
		s := newStore(t)

		const n = 50
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := range n {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.AppendRequestLog(ctx, newRecord(i, "w"))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		board, err := s.Leaderboard(ctx)
		require.NoError(t, err)
		require.Len(t, board, 1)
		assert.Equal(t, int64(n), board[0].WinCount)
	})
}
