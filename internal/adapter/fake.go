// ABOUTME: Scriptable in-process adapter used by tests across packages
// ABOUTME: Replies after an optional delay, fails with a fixed error, or runs a custom function

package adapter

import (
	"context"
	"sync/atomic"
	"time"
)

// Fake is an Adapter whose behaviour is fixed at construction.
type Fake struct {
	name       string
	capability Capability

	// Text is returned on success.
	Text string
	// Cost is reported on success.
	Cost float64
	// Delay is waited before replying. The wait ends early if ctx is done
	// unless IgnoreContext is set.
	Delay         time.Duration
	IgnoreContext bool
	// Err, when set, is returned after Delay instead of a reply.
	Err error
	// Fn, when set, replaces all of the above.
	Fn func(ctx context.Context, prompt string) (Reply, error)

	calls      atomic.Int64
	lastPrompt atomic.Value
}

// NewFake creates a chat Fake that answers with text.
func NewFake(name, text string) *Fake {
	return &Fake{name: name, capability: CapabilityChat, Text: text}
}

// NewFakeSearch creates a search Fake that answers with text.
func NewFakeSearch(name, text string) *Fake {
	return &Fake{name: name, capability: CapabilitySearch, Text: text}
}

// Name implements Adapter.
func (f *Fake) Name() string { return f.name }

// Capability implements Adapter.
func (f *Fake) Capability() Capability { return f.capability }

// Invoke implements Adapter.
func (f *Fake) Invoke(ctx context.Context, prompt string) (Reply, error) {
	f.calls.Add(1)
	f.lastPrompt.Store(prompt)

	if f.Fn != nil {
		return f.Fn(ctx, prompt)
	}

	if f.Delay > 0 {
		if f.IgnoreContext {
			time.Sleep(f.Delay)
		} else {
			t := time.NewTimer(f.Delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return Reply{}, ctx.Err()
			}
		}
	}

	if f.Err != nil {
		return Reply{}, f.Err
	}
	return Reply{Text: f.Text, Cost: f.Cost}, nil
}

// Calls reports how many times Invoke ran.
func (f *Fake) Calls() int64 { return f.calls.Load() }

// LastPrompt returns the prompt of the most recent call.
func (f *Fake) LastPrompt() string {
	s, _ := f.lastPrompt.Load().(string)
	return s
}

var _ Adapter = (*Fake)(nil)
