// ABOUTME: In-memory Publisher that records events for tests
// ABOUTME: Can be told to fail so callers' best-effort handling can be checked

package events

import (
	"context"
	"errors"
	"sync"
)

// ErrRecorderFailure is returned by Recorder when failures are enabled.
var ErrRecorderFailure = errors.New("recorder failure")

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []RequestCompleted
	fail   bool
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Fail makes every following Publish return ErrRecorderFailure.
func (r *Recorder) Fail(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fail
}

// Publish records a copy of event.
func (r *Recorder) Publish(_ context.Context, event *RequestCompleted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return ErrRecorderFailure
	}
	r.events = append(r.events, *event)
	return nil
}

// Events returns the recorded events in publish order.
func (r *Recorder) Events() []RequestCompleted {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RequestCompleted, len(r.events))
	copy(out, r.events)
	return out
}

// Close does nothing.
func (r *Recorder) Close() error {
	return nil
}

var _ Publisher = (*Recorder)(nil)
