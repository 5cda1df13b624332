// ABOUTME: Tests for the scatter-gather orchestrator
// ABOUTME: Covers the full barrier, registration-order winner, degradation, counting, enrichment, and limits

package scatter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/2389/fanout-gateway/internal/adapter"
	"github.com/2389/fanout-gateway/internal/events"
	"github.com/2389/fanout-gateway/internal/state"
	"github.com/2389/fanout-gateway/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	orch      *Orchestrator
	state     *state.State
	store     *store.MockStore
	publisher *events.Recorder
}

func newHarness(t *testing.T, cfg Config, adapters ...adapter.Adapter) *harness {
	t.Helper()

	reg, err := adapter.NewRegistry(adapters...)
	require.NoError(t, err)

	ms := store.NewMockStore()
	st := state.New(ms, reg)
	rec := events.NewRecorder()

	if cfg.AdapterTimeout == 0 {
		cfg.AdapterTimeout = time.Second
	}
	o, err := New(st, Options{Config: cfg, Publisher: rec, Logger: testLogger()})
	require.NoError(t, err)

	return &harness{orch: o, state: st, store: ms, publisher: rec}
}

func TestHandle_WaitsForEveryAdapter(t *testing.T) {
	fast := adapter.NewFake("fast", "quick answer")
	medium := adapter.NewFake("medium", "medium answer")
	medium.Delay = 60 * time.Millisecond
	slow := adapter.NewFake("slow", "slow answer")
	slow.Delay = 150 * time.Millisecond

	h := newHarness(t, Config{}, fast, medium, slow)

	start := time.Now()
	resp, err := h.orch.Handle(context.Background(), Prompt{Text: "hello"})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, 3, resp.Succeeded)
	require.Len(t, resp.Results, 3)
	for _, f := range []*adapter.Fake{fast, medium, slow} {
		assert.Equal(t, int64(1), f.Calls(), f.Name())
		assert.Equal(t, "hello", f.LastPrompt())
	}
}

func TestHandle_WinnerFollowsRegistrationOrder(t *testing.T) {
	// first is registered first but finishes last.
	first := adapter.NewFake("first", "from first")
	first.Delay = 80 * time.Millisecond
	second := adapter.NewFake("second", "from second")

	h := newHarness(t, Config{}, first, second)

	for range 5 {
		resp, err := h.orch.Handle(context.Background(), Prompt{Text: "who wins"})
		require.NoError(t, err)
		assert.Equal(t, "first", resp.Winner)
		assert.Equal(t, "from first", resp.Text)
	}
}

func TestHandle_ResultsInRegistrationOrder(t *testing.T) {
	a := adapter.NewFake("a", "A")
	a.Delay = 40 * time.Millisecond
	b := adapter.NewFake("b", "B")
	b.Err = adapter.ErrUnavailable
	c := adapter.NewFake("c", "C")

	h := newHarness(t, Config{}, a, b, c)
	resp, err := h.orch.Handle(context.Background(), Prompt{Text: "x"})
	require.NoError(t, err)

	require.Len(t, resp.Results, 3)
	assert.Equal(t, "a", resp.Results[0].Adapter)
	assert.Equal(t, OutcomeOK, resp.Results[0].Outcome)
	assert.Equal(t, "b", resp.Results[1].Adapter)
	assert.Equal(t, OutcomeFailed, resp.Results[1].Outcome)
	assert.ErrorIs(t, resp.Results[1].Err, adapter.ErrUnavailable)
	assert.Equal(t, "c", resp.Results[2].Adapter)
	assert.Equal(t, 2, resp.Succeeded)
	assert.Equal(t, "a", resp.Winner)
}

func TestHandle_FirstSuccessSkipsFailures(t *testing.T) {
	broken := adapter.NewFake("broken", "")
	broken.Err = adapter.ErrUnauthenticated
	ok := adapter.NewFake("ok", "answer")

	h := newHarness(t, Config{}, broken, ok)
	resp, err := h.orch.Handle(context.Background(), Prompt{Text: "x"})
	require.NoError(t, err)

	assert.Equal(t, "ok", resp.Winner)
	assert.Equal(t, "answer", resp.Text)
	assert.Equal(t, 1, resp.Succeeded)
}

func TestHandle_AllFailStillRecordsAndCounts(t *testing.T) {
	down := adapter.NewFake("down", "")
	down.Err = adapter.ErrUnavailable
	stuck := adapter.NewFake("stuck", "too late")
	stuck.Delay = time.Second

	h := newHarness(t, Config{AdapterTimeout: 50 * time.Millisecond}, down, stuck)

	resp, err := h.orch.Handle(context.Background(), Prompt{Text: "anyone?"})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.Succeeded)
	assert.Equal(t, "", resp.Winner)
	assert.Equal(t, NoResponseText, resp.Text)
	assert.Equal(t, OutcomeFailed, resp.Results[0].Outcome)
	assert.Equal(t, OutcomeTimedOut, resp.Results[1].Outcome)

	assert.Equal(t, uint64(1), h.state.TotalRequests())
	logs := h.store.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "", logs[0].Winner)
	assert.Equal(t, NoResponseText, logs[0].ResponseText)
	assert.Equal(t, "anyone?", logs[0].Prompt)
	assert.Equal(t, resp.RecordID, logs[0].ID)
}

func TestHandle_TimesOutAdapterThatIgnoresContext(t *testing.T) {
	rude := adapter.NewFake("rude", "eventually")
	rude.Delay = 2 * time.Second
	rude.IgnoreContext = true
	polite := adapter.NewFake("polite", "now")

	h := newHarness(t, Config{AdapterTimeout: 50 * time.Millisecond}, rude, polite)

	start := time.Now()
	resp, err := h.orch.Handle(context.Background(), Prompt{Text: "x"})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, OutcomeTimedOut, resp.Results[0].Outcome)
	assert.Equal(t, "polite", resp.Winner)
}

func TestHandle_PanickingAdapterIsIsolated(t *testing.T) {
	boom := adapter.NewFake("boom", "")
	boom.Fn = func(ctx context.Context, prompt string) (adapter.Reply, error) {
		panic("adapter bug")
	}
	ok := adapter.NewFake("ok", "fine")

	h := newHarness(t, Config{}, boom, ok)
	resp, err := h.orch.Handle(context.Background(), Prompt{Text: "x"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, resp.Results[0].Outcome)
	assert.Contains(t, resp.Results[0].Err.Error(), "panicked")
	assert.Equal(t, "ok", resp.Winner)
}

func TestHandle_CountsExactlyOncePerRequestUnderLoad(t *testing.T) {
	a := adapter.NewFake("a", "A")
	a.Delay = 5 * time.Millisecond
	b := adapter.NewFake("b", "B")

	h := newHarness(t, Config{}, a, b)

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orch.Handle(context.Background(), Prompt{Text: "load"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(n), h.state.TotalRequests())
	assert.Equal(t, n, h.store.Len())
	assert.Equal(t, int64(n), a.Calls())
	assert.Equal(t, int64(n), b.Calls())
}

func TestHandle_NoAdapters(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.orch.Handle(context.Background(), Prompt{Text: "x"})
	assert.ErrorIs(t, err, ErrNoAdapters)
	assert.Equal(t, uint64(0), h.state.TotalRequests())
	assert.Equal(t, 0, h.store.Len())
	assert.Empty(t, h.publisher.Events())
}

func TestHandle_OnlySearchAdaptersIsNoAdapters(t *testing.T) {
	search := adapter.NewFakeSearch("tavily", "results")
	h := newHarness(t, Config{Enrichment: EnrichmentPolicy{Always: true}}, search)

	_, err := h.orch.Handle(context.Background(), Prompt{Text: "x"})
	assert.ErrorIs(t, err, ErrNoAdapters)
	assert.Equal(t, int64(0), search.Calls())
}

func TestHandle_EmptyPrompt(t *testing.T) {
	a := adapter.NewFake("a", "A")
	h := newHarness(t, Config{}, a)

	_, err := h.orch.Handle(context.Background(), Prompt{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Equal(t, int64(0), a.Calls())
	assert.Equal(t, 0, h.store.Len())
}

func TestHandle_PersistenceFailure(t *testing.T) {
	a := adapter.NewFake("a", "A")
	h := newHarness(t, Config{}, a)
	h.store.FailAppends(true)

	_, err := h.orch.Handle(context.Background(), Prompt{Text: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, uint64(0), h.state.TotalRequests())
	assert.Empty(t, h.publisher.Events())

	// Reads still work.
	board, err := h.store.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Empty(t, board)
}

func TestHandle_CallerCancellationDoesNotAbortWork(t *testing.T) {
	a := adapter.NewFake("a", "A")
	a.Delay = 30 * time.Millisecond

	h := newHarness(t, Config{}, a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := h.orch.Handle(ctx, Prompt{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "a", resp.Winner)
	assert.Equal(t, 1, h.store.Len())
}

func TestHandle_EnrichmentByKeyword(t *testing.T) {
	search := adapter.NewFakeSearch("tavily", "Go 1.25: released")
	search.Cost = 0.008
	chat := adapter.NewFake("grok", "answer")
	chat.Cost = 0.002

	h := newHarness(t, Config{Enrichment: EnrichmentPolicy{Keywords: []string{"latest"}}}, search, chat)

	resp, err := h.orch.Handle(context.Background(), Prompt{Text: "What is the LATEST Go release?"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), search.Calls())
	assert.Equal(t, "What is the LATEST Go release?", search.LastPrompt())
	assert.True(t, strings.HasPrefix(chat.LastPrompt(), "Context:\nGo 1.25: released\n\nQuestion: "))

	assert.Equal(t, "grok", resp.Winner)
	require.Len(t, resp.Enrichment, 1)
	assert.Equal(t, OutcomeOK, resp.Enrichment[0].Outcome)
	require.Len(t, resp.Results, 1)
	assert.InDelta(t, 0.01, resp.Cost, 1e-12)

	// The stored prompt is what the user sent.
	assert.Equal(t, "What is the LATEST Go release?", h.store.All()[0].Prompt)
}

func TestHandle_EnrichmentByHint(t *testing.T) {
	search := adapter.NewFakeSearch("tavily", "ctx")
	chat := adapter.NewFake("grok", "answer")
	h := newHarness(t, Config{Enrichment: EnrichmentPolicy{Hints: []string{"tavily"}}}, search, chat)

	_, err := h.orch.Handle(context.Background(), Prompt{Text: "hi", ModelHint: "Tavily"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), search.Calls())

	_, err = h.orch.Handle(context.Background(), Prompt{Text: "hi", ModelHint: "race-mode"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), search.Calls())
	assert.Equal(t, "hi", chat.LastPrompt())
}

func TestHandle_EnrichmentFailureLeavesPromptAlone(t *testing.T) {
	search := adapter.NewFakeSearch("tavily", "")
	search.Err = adapter.ErrUnavailable
	chat := adapter.NewFake("grok", "answer")

	h := newHarness(t, Config{Enrichment: EnrichmentPolicy{Always: true}}, search, chat)
	resp, err := h.orch.Handle(context.Background(), Prompt{Text: "plain"})
	require.NoError(t, err)

	assert.Equal(t, "plain", chat.LastPrompt())
	assert.Equal(t, OutcomeFailed, resp.Enrichment[0].Outcome)
	assert.Equal(t, 1, resp.Succeeded)
}

func TestHandle_SearchNeverWins(t *testing.T) {
	search := adapter.NewFakeSearch("tavily", "search text")
	chat := adapter.NewFake("grok", "")
	chat.Err = adapter.ErrInvalidResponse

	h := newHarness(t, Config{Enrichment: EnrichmentPolicy{Always: true}}, search, chat)
	resp, err := h.orch.Handle(context.Background(), Prompt{Text: "q"})
	require.NoError(t, err)

	assert.Equal(t, "", resp.Winner)
	assert.Equal(t, NoResponseText, resp.Text)
	assert.Equal(t, 0, resp.Succeeded)
}

func TestHandle_MaxInFlight(t *testing.T) {
	release := make(chan struct{})
	blocking := adapter.NewFake("blocking", "")
	blocking.Fn = func(ctx context.Context, prompt string) (adapter.Reply, error) {
		if prompt == "hold" {
			<-release
		}
		return adapter.Reply{Text: "done"}, nil
	}

	h := newHarness(t, Config{MaxInFlight: 1, AdapterTimeout: 5 * time.Second}, blocking)

	firstDone := make(chan error, 1)
	go func() {
		_, err := h.orch.Handle(context.Background(), Prompt{Text: "hold"})
		firstDone <- err
	}()

	require.Eventually(t, func() bool { return blocking.Calls() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := h.orch.Handle(ctx, Prompt{Text: "second"})
	assert.ErrorIs(t, err, ErrAtCapacity)

	close(release)
	require.NoError(t, <-firstDone)

	_, err = h.orch.Handle(context.Background(), Prompt{Text: "third"})
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), h.state.TotalRequests())
}

func TestHandle_InvokesEveryAdapterConcurrently(t *testing.T) {
	const n = 5
	const hold = 100 * time.Millisecond

	// Every call blocks until all n have started. Sequential dispatch would
	// leave the first call waiting until its timeout.
	var started sync.WaitGroup
	started.Add(n)
	allIn := make(chan struct{})
	go func() {
		started.Wait()
		close(allIn)
	}()

	var current, peak atomic.Int64
	meet := func(ctx context.Context, prompt string) (adapter.Reply, error) {
		c := current.Add(1)
		defer current.Add(-1)
		for {
			p := peak.Load()
			if c <= p || peak.CompareAndSwap(p, c) {
				break
			}
		}
		started.Done()
		select {
		case <-allIn:
		case <-ctx.Done():
			return adapter.Reply{}, ctx.Err()
		}
		time.Sleep(hold)
		return adapter.Reply{Text: "ok"}, nil
	}

	var fakes []adapter.Adapter
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		f := adapter.NewFake(name, "")
		f.Fn = meet
		fakes = append(fakes, f)
	}

	h := newHarness(t, Config{AdapterTimeout: 2 * time.Second}, fakes...)

	start := time.Now()
	resp, err := h.orch.Handle(context.Background(), Prompt{Text: "x"})
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.Equal(t, n, resp.Succeeded)
	assert.Equal(t, int64(n), peak.Load())
	assert.Less(t, elapsed, time.Duration(n)*hold)
}

func TestHandle_MaxConcurrencyPerRequest(t *testing.T) {
	var current, peak atomic.Int64
	track := func(ctx context.Context, prompt string) (adapter.Reply, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		return adapter.Reply{Text: "ok"}, nil
	}

	var fakes []adapter.Adapter
	for _, name := range []string{"a", "b", "c", "d"} {
		f := adapter.NewFake(name, "")
		f.Fn = track
		fakes = append(fakes, f)
	}

	h := newHarness(t, Config{MaxConcurrencyPerRequest: 2}, fakes...)
	resp, err := h.orch.Handle(context.Background(), Prompt{Text: "x"})
	require.NoError(t, err)

	assert.Equal(t, 4, resp.Succeeded)
	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestDrain_WaitsForRunningRequests(t *testing.T) {
	slow := adapter.NewFake("slow", "late answer")
	slow.Delay = 150 * time.Millisecond
	h := newHarness(t, Config{}, slow)

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.Handle(context.Background(), Prompt{Text: "x"})
		done <- err
	}()
	require.Eventually(t, func() bool { return slow.Calls() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.orch.Drain(context.Background()))

	assert.Equal(t, 1, h.store.Len(), "the running request is logged before Drain returns")
	assert.Equal(t, uint64(1), h.state.TotalRequests())
	require.NoError(t, <-done)

	_, err := h.orch.Handle(context.Background(), Prompt{Text: "after"})
	assert.ErrorIs(t, err, ErrDraining)
	assert.Equal(t, int64(1), slow.Calls())
}

func TestDrain_GivesUpWhenContextEnds(t *testing.T) {
	slow := adapter.NewFake("slow", "late answer")
	slow.Delay = 300 * time.Millisecond
	h := newHarness(t, Config{}, slow)

	go func() { _, _ = h.orch.Handle(context.Background(), Prompt{Text: "x"}) }()
	require.Eventually(t, func() bool { return slow.Calls() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.orch.Drain(ctx), context.DeadlineExceeded)

	require.NoError(t, h.orch.Drain(context.Background()))
}

func TestDrainBudget(t *testing.T) {
	h := newHarness(t, Config{AdapterTimeout: 3 * time.Second}, adapter.NewFake("a", "A"))
	assert.Equal(t, 3*time.Second, h.orch.DrainBudget())

	h = newHarness(t, Config{
		AdapterTimeout: 3 * time.Second,
		Enrichment:     EnrichmentPolicy{Keywords: []string{"latest"}},
	}, adapter.NewFake("a", "A"))
	assert.Equal(t, 6*time.Second, h.orch.DrainBudget())
}

func TestHandle_PublishesEvent(t *testing.T) {
	a := adapter.NewFake("a", "A")
	b := adapter.NewFake("b", "")
	b.Err = errors.New("nope")

	h := newHarness(t, Config{}, a, b)
	resp, err := h.orch.Handle(context.Background(), Prompt{Text: "x"})
	require.NoError(t, err)

	evs := h.publisher.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, resp.RecordID, evs[0].RecordID)
	assert.Equal(t, "a", evs[0].Winner)
	assert.Equal(t, 2, evs[0].Attempted)
	assert.Equal(t, 1, evs[0].Succeeded)
	assert.Equal(t, map[string]string{"a": "ok", "b": "failed"}, evs[0].Outcomes)
}

func TestHandle_PublishFailureIsNotFatal(t *testing.T) {
	a := adapter.NewFake("a", "A")
	h := newHarness(t, Config{}, a)
	h.publisher.Fail(true)

	_, err := h.orch.Handle(context.Background(), Prompt{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), h.state.TotalRequests())
}

func TestHandle_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	a := adapter.NewFake("a", "A")
	b := adapter.NewFake("b", "")
	b.Err = adapter.ErrUnavailable

	reg, err := adapter.NewRegistry(a, b)
	require.NoError(t, err)
	st := state.New(store.NewMockStore(), reg)

	o, err := New(st, Options{Logger: testLogger(), Meter: provider.Meter("test")})
	require.NoError(t, err)

	_, err = o.Handle(context.Background(), Prompt{Text: "x"})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), sums["gateway.requests"])
	assert.Equal(t, int64(2), sums["gateway.adapter.calls"])
}

func TestAggregate(t *testing.T) {
	resp := aggregate([]Result{
		{Adapter: "x", Outcome: OutcomeTimedOut},
		{Adapter: "y", Outcome: OutcomeOK, Text: "Y", Cost: 0.5},
		{Adapter: "z", Outcome: OutcomeOK, Text: "Z", Cost: 0.25},
	}, nil)

	assert.Equal(t, "y", resp.Winner)
	assert.Equal(t, "Y", resp.Text)
	assert.Equal(t, 2, resp.Succeeded)
	assert.InDelta(t, 0.75, resp.Cost, 1e-12)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "ok", OutcomeOK.String())
	assert.Equal(t, "timed_out", OutcomeTimedOut.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
