// ABOUTME: Request, result, and response types for the scatter-gather orchestrator
// ABOUTME: Also defines the orchestrator's error kinds and per-call outcomes

package scatter

import (
	"errors"
	"time"
)

// NoResponseText is the consolidated text when no chat adapter succeeded.
const NoResponseText = "no backend responded"

// Errors returned by Handle. Adapter failures never appear here; they are
// reported per adapter in Response.Results.
var (
	// ErrNoAdapters means no chat adapter is registered, so nothing was attempted.
	ErrNoAdapters = errors.New("no chat adapters configured")
	// ErrEmptyPrompt means the prompt text was empty or whitespace.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrPersistence means the request ran but its log record could not be stored.
	ErrPersistence = errors.New("persisting request log failed")
	// ErrAtCapacity means the in-flight limit stayed full until the caller gave up.
	ErrAtCapacity = errors.New("gateway at capacity")
	// ErrDraining means the gateway is shutting down and takes no new requests.
	ErrDraining = errors.New("gateway is shutting down")
)

// Prompt is one inbound request.
type Prompt struct {
	Text string
	// ModelHint is advisory. It can switch on search enrichment but never
	// narrows which chat adapters run.
	ModelHint string
}

// Outcome classifies one adapter call.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeTimedOut
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is what one adapter produced for one request.
type Result struct {
	Adapter string
	Outcome Outcome
	Text    string
	Err     error
	Elapsed time.Duration
	Cost    float64
}

// Response is the aggregated outcome of one request.
type Response struct {
	// Text is the winner's text, or NoResponseText.
	Text string
	// Winner is the first successful chat adapter in registration order, or empty.
	Winner string
	// Cost sums the estimates of every successful call, enrichment included.
	Cost      float64
	Succeeded int
	// Results holds one entry per chat adapter, in registration order.
	Results []Result
	// Enrichment holds search adapter results when enrichment ran.
	Enrichment []Result
	RecordID   string
	Duration   time.Duration
}
