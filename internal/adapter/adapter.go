// ABOUTME: Backend adapter contract shared by every LLM and search provider
// ABOUTME: Defines the Adapter interface, reply shape, error kinds, and the ordered registry

package adapter

import (
	"context"
	"errors"
	"fmt"
)

// Capability says what kind of work an adapter does.
type Capability string

const (
	// CapabilityChat adapters answer the prompt and compete for the win.
	CapabilityChat Capability = "chat"
	// CapabilitySearch adapters supply context and never win.
	CapabilitySearch Capability = "search"
)

// Error kinds reported by adapters. Implementations wrap one of these so
// callers can classify failures with errors.Is.
var (
	ErrUnauthenticated = errors.New("backend rejected credentials")
	ErrUnavailable     = errors.New("backend unavailable")
	ErrInvalidResponse = errors.New("backend returned an invalid response")
)

// Reply is the successful outcome of one adapter invocation.
type Reply struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

// Adapter turns a prompt into a reply from one external backend.
//
// Invoke is a single attempt. It must honour ctx cancellation, must not retry,
// and must be safe to call from many goroutines at once.
type Adapter interface {
	Name() string
	Capability() Capability
	Invoke(ctx context.Context, prompt string) (Reply, error)
}

// Registry is the fixed, ordered set of adapters known at startup.
// Registration order decides the winner when several adapters succeed.
type Registry struct {
	adapters []Adapter
}

// NewRegistry builds a registry in the given order. Names must be non-empty
// and unique.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	seen := make(map[string]bool, len(adapters))
	list := make([]Adapter, 0, len(adapters))
	for i, a := range adapters {
		if a == nil {
			return nil, fmt.Errorf("adapter %d is nil", i)
		}
		name := a.Name()
		if name == "" {
			return nil, fmt.Errorf("adapter %d has an empty name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate adapter name %q", name)
		}
		seen[name] = true
		list = append(list, a)
	}
	return &Registry{adapters: list}, nil
}

// All returns every adapter in registration order.
func (r *Registry) All() []Adapter {
	if r == nil {
		return nil
	}
	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// ByCapability returns the adapters with capability c, keeping registration order.
func (r *Registry) ByCapability(c Capability) []Adapter {
	if r == nil {
		return nil
	}
	var out []Adapter
	for _, a := range r.adapters {
		if a.Capability() == c {
			out = append(out, a)
		}
	}
	return out
}

// Names returns adapter names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.adapters))
	for i, a := range r.adapters {
		names[i] = a.Name()
	}
	return names
}

// Len reports how many adapters are registered.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.adapters)
}
