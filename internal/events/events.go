// ABOUTME: Request-completed events emitted after each request log is appended
// ABOUTME: Defines the Publisher interface with NATS and no-op implementations

package events

import (
	"context"
	"time"
)

// RequestCompleted summarises one finished scatter-gather request.
// It carries outcomes and timing only, never prompt or response text.
type RequestCompleted struct {
	RecordID     string            `json:"record_id"`
	Winner       string            `json:"winner,omitempty"`
	Succeeded    int               `json:"succeeded"`
	Attempted    int               `json:"attempted"`
	CostEstimate float64           `json:"cost_estimate"`
	DurationMS   int64             `json:"duration_ms"`
	Outcomes     map[string]string `json:"outcomes"`
	Timestamp    time.Time         `json:"timestamp"`
}

// Publisher emits request-completed events to downstream systems.
type Publisher interface {
	Publish(ctx context.Context, event *RequestCompleted) error
	Close() error
}

// NoopPublisher is a disabled publisher.
type NoopPublisher struct{}

// NewNoopPublisher returns a publisher that drops all events.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// Publish accepts the event and does nothing.
func (p *NoopPublisher) Publish(_ context.Context, _ *RequestCompleted) error {
	return nil
}

// Close releases resources (none).
func (p *NoopPublisher) Close() error {
	return nil
}

var _ Publisher = (*NoopPublisher)(nil)
