// ABOUTME: Mock RequestLogStore implementation for testing
// ABOUTME: Keeps records in memory and can be told to fail appends or reads

package store

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrMockFailure is returned by MockStore when a failure is injected.
var ErrMockFailure = errors.New("mock store failure")

// MockStore is an in-memory RequestLogStore for testing.
type MockStore struct {
	mu         sync.RWMutex
	logs       []*RequestLog // append order
	failAppend bool
	failReads  bool
	closed     bool
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// FailAppends makes every following AppendRequestLog fail.
func (m *MockStore) FailAppends(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAppend = fail
}

// FailReads makes every following read fail.
func (m *MockStore) FailReads(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failReads = fail
}

// Len reports how many records were appended.
func (m *MockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.logs)
}

// All returns a copy of every record in append order.
func (m *MockStore) All() []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RequestLog, len(m.logs))
	for i, l := range m.logs {
		out[i] = *l
	}
	return out
}

// AppendRequestLog stores a copy of rec.
func (m *MockStore) AppendRequestLog(ctx context.Context, rec *RequestLog) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failAppend {
		return ErrMockFailure
	}

	// Make a copy to avoid external modification
	r := *rec
	m.logs = append(m.logs, &r)
	return nil
}

// Leaderboard counts wins per backend.
func (m *MockStore) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failReads {
		return nil, ErrMockFailure
	}

	counts := make(map[string]int64)
	for _, l := range m.logs {
		if l.Winner != "" {
			counts[l.Winner]++
		}
	}

	entries := make([]LeaderboardEntry, 0, len(counts))
	for w, c := range counts {
		entries = append(entries, LeaderboardEntry{Winner: w, WinCount: c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].WinCount != entries[j].WinCount {
			return entries[i].WinCount > entries[j].WinCount
		}
		return entries[i].Winner < entries[j].Winner
	})
	return entries, nil
}

// RecentRequestLogs returns up to limit records, newest first.
func (m *MockStore) RecentRequestLogs(ctx context.Context, limit int) ([]*RequestLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failReads {
		return nil, ErrMockFailure
	}

	out := []*RequestLog{}
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		r := *m.logs[i]
		out = append(out, &r)
	}
	return out, nil
}

// ReadAggregates returns both aggregates.
func (m *MockStore) ReadAggregates(ctx context.Context, limit int) (*Aggregates, error) {
	return readAggregates(ctx, m, limit)
}

// Ping fails when reads are failing or the store is closed.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failReads || m.closed {
		return ErrMockFailure
	}
	return nil
}

// Close marks the store closed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ RequestLogStore = (*MockStore)(nil)
