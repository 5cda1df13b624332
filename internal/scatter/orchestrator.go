// ABOUTME: Scatter-gather orchestrator that fans one prompt out to every chat adapter
// ABOUTME: Joins all calls, picks the winner by registration order, logs the request, and bumps the counter

package scatter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/2389/fanout-gateway/internal/adapter"
	"github.com/2389/fanout-gateway/internal/config"
	"github.com/2389/fanout-gateway/internal/events"
	"github.com/2389/fanout-gateway/internal/state"
	"github.com/2389/fanout-gateway/internal/store"
	"github.com/2389/fanout-gateway/internal/telemetry"
)

const instrumentationName = "github.com/2389/fanout-gateway/internal/scatter"

// Config tunes the orchestrator.
type Config struct {
	// AdapterTimeout bounds each adapter call. Zero means 30s.
	AdapterTimeout time.Duration
	// MaxInFlight caps concurrent requests across the process. Zero means no cap.
	MaxInFlight int
	// MaxConcurrencyPerRequest caps concurrent adapter calls within one request.
	// Zero means every adapter runs at once.
	MaxConcurrencyPerRequest int
	Enrichment               EnrichmentPolicy
}

// EnrichmentPolicy decides when search adapters run before the chat fan-out.
type EnrichmentPolicy struct {
	Always bool
	// Hints match the prompt's model hint, case-insensitively.
	Hints []string
	// Keywords match anywhere in the prompt text, case-insensitively.
	Keywords []string
}

// ConfigFromScatter converts the file configuration.
func ConfigFromScatter(c config.ScatterConfig) Config {
	return Config{
		AdapterTimeout:           c.AdapterTimeout,
		MaxInFlight:              c.MaxInFlight,
		MaxConcurrencyPerRequest: c.MaxConcurrencyPerRequest,
		Enrichment: EnrichmentPolicy{
			Always:   c.Enrichment.Always,
			Hints:    c.Enrichment.Hints,
			Keywords: c.Enrichment.Keywords,
		},
	}
}

// Options holds the orchestrator's collaborators. Zero values get defaults.
type Options struct {
	Config    Config
	Publisher events.Publisher
	Logger    *slog.Logger
	// Meter and Tracer default to the global providers.
	Meter  metric.Meter
	Tracer trace.Tracer
}

// Orchestrator runs scatter-gather requests against the shared state.
type Orchestrator struct {
	state     *state.State
	cfg       Config
	inflight  *semaphore.Weighted
	publisher events.Publisher
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *instruments

	// mu guards draining and the Add side of running.
	mu       sync.Mutex
	draining bool
	running  sync.WaitGroup

	newID func() string
	now   func() time.Time
}

// New creates an orchestrator bound to st.
func New(st *state.State, opts Options) (*Orchestrator, error) {
	if st == nil {
		return nil, errors.New("state is required")
	}

	cfg := opts.Config
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = config.DefaultAdapterTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}

	meter := opts.Meter
	if meter == nil {
		meter = telemetry.Meter(instrumentationName)
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer(instrumentationName)
	}

	m, err := newInstruments(meter)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		state:     st,
		cfg:       cfg,
		publisher: publisher,
		logger:    logger.With("component", "scatter"),
		tracer:    tracer,
		metrics:   m,
		newID:     func() string { return ulid.Make().String() },
		now:       time.Now,
	}
	if cfg.MaxInFlight > 0 {
		o.inflight = semaphore.NewWeighted(int64(cfg.MaxInFlight))
	}
	return o, nil
}

// Handle runs one request: fan out, join, aggregate, log, count.
//
// It fails only for its own faults: an empty prompt, no chat adapters, the
// in-flight limit, a drain in progress, or a failed log append. Adapter
// failures are reported in the response. Once dispatched, the request runs to
// completion even if ctx is cancelled.
func (o *Orchestrator) Handle(ctx context.Context, p Prompt) (*Response, error) {
	if strings.TrimSpace(p.Text) == "" {
		return nil, ErrEmptyPrompt
	}

	registry := o.state.Registry()
	chat := registry.ByCapability(adapter.CapabilityChat)
	if len(chat) == 0 {
		return nil, ErrNoAdapters
	}

	if !o.begin() {
		return nil, ErrDraining
	}
	defer o.running.Done()

	if o.inflight != nil {
		if err := o.inflight.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAtCapacity, err)
		}
		defer o.inflight.Release(1)
	}

	// Detach from the caller; dispatched work is never cancelled by the client.
	work := context.WithoutCancel(ctx)
	work, span := o.tracer.Start(work, "scatter.Handle", trace.WithAttributes(
		attribute.Int("scatter.adapters", len(chat)),
		attribute.String("scatter.model_hint", p.ModelHint),
	))
	defer span.End()

	start := o.now()

	prompt := p.Text
	var enrichment []Result
	if o.shouldEnrich(p) {
		if search := registry.ByCapability(adapter.CapabilitySearch); len(search) > 0 {
			enrichment = o.fanOut(work, search, p.Text)
			if background := joinSucceeded(enrichment); background != "" {
				prompt = "Context:\n" + background + "\n\nQuestion: " + p.Text
			}
		}
	}

	results := o.fanOut(work, chat, prompt)
	resp := aggregate(results, enrichment)
	resp.Duration = o.now().Sub(start)

	rec := &store.RequestLog{
		ID:           o.newID(),
		Prompt:       p.Text,
		Winner:       resp.Winner,
		ResponseText: resp.Text,
		DurationMS:   resp.Duration.Milliseconds(),
		CreatedAt:    o.now().UTC(),
	}
	if err := o.state.Store().AppendRequestLog(work, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persisting request log")
		o.logger.Error("failed to persist request log", "id", rec.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	resp.RecordID = rec.ID

	total := o.state.RecordRequest()

	span.SetAttributes(
		attribute.String("scatter.winner", resp.Winner),
		attribute.Int("scatter.succeeded", resp.Succeeded),
	)
	o.metrics.recordRequest(work, resp)
	o.publish(work, resp, len(chat)+len(enrichment))

	o.logger.Info("request completed",
		"id", rec.ID,
		"winner", resp.Winner,
		"succeeded", resp.Succeeded,
		"attempted", len(chat),
		"enriched", len(enrichment) > 0,
		"duration_ms", rec.DurationMS,
		"total_requests", total,
	)
	return resp, nil
}

func (o *Orchestrator) begin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.draining {
		return false
	}
	o.running.Add(1)
	return true
}

// Drain stops accepting requests and waits for running ones to log and
// count. It returns ctx's error if they are still running when ctx ends.
func (o *Orchestrator) Drain(ctx context.Context) error {
	o.mu.Lock()
	o.draining = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight requests: %w", ctx.Err())
	}
}

// DrainBudget is how long a request can still take once started: two
// adapter timeouts when enrichment may run, one otherwise.
func (o *Orchestrator) DrainBudget() time.Duration {
	pol := o.cfg.Enrichment
	if pol.Always || len(pol.Hints) > 0 || len(pol.Keywords) > 0 {
		return 2 * o.cfg.AdapterTimeout
	}
	return o.cfg.AdapterTimeout
}

func (o *Orchestrator) shouldEnrich(p Prompt) bool {
	pol := o.cfg.Enrichment
	if pol.Always {
		return true
	}
	for _, h := range pol.Hints {
		if h != "" && strings.EqualFold(strings.TrimSpace(p.ModelHint), h) {
			return true
		}
	}
	text := strings.ToLower(p.Text)
	for _, k := range pol.Keywords {
		if k != "" && strings.Contains(text, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// fanOut invokes every adapter concurrently and waits for all of them.
// results[i] always belongs to adapters[i].
func (o *Orchestrator) fanOut(ctx context.Context, adapters []adapter.Adapter, prompt string) []Result {
	results := make([]Result, len(adapters))

	var g errgroup.Group
	if o.cfg.MaxConcurrencyPerRequest > 0 {
		g.SetLimit(o.cfg.MaxConcurrencyPerRequest)
	}
	for i, a := range adapters {
		g.Go(func() error {
			results[i] = o.invoke(ctx, a, prompt)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

type callOutcome struct {
	reply adapter.Reply
	err   error
}

// invoke runs one adapter call under its own deadline. The call runs in its
// own goroutine so an adapter that ignores ctx still times out here.
func (o *Orchestrator) invoke(ctx context.Context, a adapter.Adapter, prompt string) Result {
	name := a.Name()
	ctx, span := o.tracer.Start(ctx, "scatter.invoke", trace.WithAttributes(attribute.String("adapter", name)))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.AdapterTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan callOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callOutcome{err: fmt.Errorf("%s: adapter panicked: %v", name, r)}
			}
		}()
		reply, err := a.Invoke(callCtx, prompt)
		done <- callOutcome{reply: reply, err: err}
	}()

	res := Result{Adapter: name}
	select {
	case out := <-done:
		res.Elapsed = time.Since(start)
		switch {
		case errors.Is(callCtx.Err(), context.DeadlineExceeded):
			res.Outcome = OutcomeTimedOut
			res.Err = fmt.Errorf("%s: no reply within %s", name, o.cfg.AdapterTimeout)
		case out.err != nil:
			res.Outcome = OutcomeFailed
			res.Err = out.err
		default:
			res.Outcome = OutcomeOK
			res.Text = out.reply.Text
			res.Cost = out.reply.Cost
		}
	case <-callCtx.Done():
		res.Elapsed = time.Since(start)
		res.Outcome = OutcomeTimedOut
		res.Err = fmt.Errorf("%s: no reply within %s", name, o.cfg.AdapterTimeout)
	}

	span.SetAttributes(attribute.String("outcome", res.Outcome.String()))
	if res.Err != nil {
		span.RecordError(res.Err)
		o.logger.Warn("adapter call did not succeed",
			"adapter", name,
			"outcome", res.Outcome.String(),
			"elapsed_ms", res.Elapsed.Milliseconds(),
			"error", res.Err,
		)
	}
	o.metrics.recordCall(ctx, res)
	return res
}

// aggregate applies the winner policy to results that are already in
// registration order.
func aggregate(results, enrichment []Result) *Response {
	resp := &Response{
		Text:       NoResponseText,
		Results:    results,
		Enrichment: enrichment,
	}
	for _, r := range results {
		if r.Outcome != OutcomeOK {
			continue
		}
		resp.Succeeded++
		resp.Cost += r.Cost
		if resp.Winner == "" {
			resp.Winner = r.Adapter
			resp.Text = r.Text
		}
	}
	for _, r := range enrichment {
		if r.Outcome == OutcomeOK {
			resp.Cost += r.Cost
		}
	}
	return resp
}

func joinSucceeded(results []Result) string {
	var parts []string
	for _, r := range results {
		if r.Outcome == OutcomeOK && strings.TrimSpace(r.Text) != "" {
			parts = append(parts, r.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// publish emits the completion event. Failures are logged and dropped.
func (o *Orchestrator) publish(ctx context.Context, resp *Response, attempted int) {
	outcomes := make(map[string]string, len(resp.Results)+len(resp.Enrichment))
	for _, r := range resp.Enrichment {
		outcomes[r.Adapter] = r.Outcome.String()
	}
	for _, r := range resp.Results {
		outcomes[r.Adapter] = r.Outcome.String()
	}

	ev := &events.RequestCompleted{
		RecordID:     resp.RecordID,
		Winner:       resp.Winner,
		Succeeded:    resp.Succeeded,
		Attempted:    attempted,
		CostEstimate: resp.Cost,
		DurationMS:   resp.Duration.Milliseconds(),
		Outcomes:     outcomes,
		Timestamp:    o.now().UTC(),
	}
	if err := o.publisher.Publish(ctx, ev); err != nil {
		o.logger.Warn("failed to publish request event", "id", resp.RecordID, "error", err)
	}
}
