// ABOUTME: OpenTelemetry instruments recorded by the orchestrator
// ABOUTME: Counts requests and adapter calls and records adapter latency

package scatter

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	requests        metric.Int64Counter
	adapterCalls    metric.Int64Counter
	adapterDuration metric.Float64Histogram
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	requests, err := meter.Int64Counter("gateway.requests",
		metric.WithDescription("Completed scatter-gather requests"))
	if err != nil {
		return nil, fmt.Errorf("creating requests counter: %w", err)
	}

	calls, err := meter.Int64Counter("gateway.adapter.calls",
		metric.WithDescription("Adapter invocations by outcome"))
	if err != nil {
		return nil, fmt.Errorf("creating adapter calls counter: %w", err)
	}

	duration, err := meter.Float64Histogram("gateway.adapter.duration",
		metric.WithDescription("Adapter invocation latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("creating adapter duration histogram: %w", err)
	}

	return &instruments{requests: requests, adapterCalls: calls, adapterDuration: duration}, nil
}

func (m *instruments) recordCall(ctx context.Context, r Result) {
	m.adapterCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("adapter", r.Adapter),
		attribute.String("outcome", r.Outcome.String()),
	))
	m.adapterDuration.Record(ctx, float64(r.Elapsed.Microseconds())/1000,
		metric.WithAttributes(attribute.String("adapter", r.Adapter)))
}

func (m *instruments) recordRequest(ctx context.Context, resp *Response) {
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("answered", resp.Succeeded > 0),
	))
}
