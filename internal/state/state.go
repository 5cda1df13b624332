// ABOUTME: Process-wide gateway state shared by the RPC and HTTP front-ends
// ABOUTME: Holds the atomic request counter, start time, and the store and registry handles

package state

import (
	"sync/atomic"
	"time"

	"github.com/2389/fanout-gateway/internal/adapter"
	"github.com/2389/fanout-gateway/internal/store"
)

// State is created once at startup and passed to every component that needs it.
// The store and registry never change after New.
type State struct {
	requests atomic.Uint64
	started  time.Time
	store    store.RequestLogStore
	registry *adapter.Registry
	now      func() time.Time
}

// New creates the shared state with a zero counter.
func New(s store.RequestLogStore, registry *adapter.Registry) *State {
	return &State{
		started:  time.Now(),
		store:    s,
		registry: registry,
		now:      time.Now,
	}
}

// RecordRequest adds one completed request and returns the new total.
func (s *State) RecordRequest() uint64 {
	return s.requests.Add(1)
}

// TotalRequests returns the number of completed requests since startup.
func (s *State) TotalRequests() uint64 {
	return s.requests.Load()
}

// StartedAt returns when the state was created.
func (s *State) StartedAt() time.Time {
	return s.started
}

// Uptime returns the time since startup.
func (s *State) Uptime() time.Duration {
	return s.now().Sub(s.started)
}

// Store returns the persistence gateway.
func (s *State) Store() store.RequestLogStore {
	return s.store
}

// Registry returns the adapter registry.
func (s *State) Registry() *adapter.Registry {
	return s.registry
}

// ActiveModels lists chat adapters in registration order.
func (s *State) ActiveModels() []string {
	chat := s.registry.ByCapability(adapter.CapabilityChat)
	names := make([]string, len(chat))
	for i, a := range chat {
		names[i] = a.Name()
	}
	return names
}
