// Package observability provides opt-in OpenTelemetry instrumentation of
// the poll loop. When neither a metrics address nor an OTLP endpoint is
// configured the monitor starts no listener and dials nothing.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics initializes the OpenTelemetry metrics provider with a
// Prometheus exporter. It returns the HTTP handler for the /metrics
// endpoint and a shutdown function for graceful cleanup on exit.
func InitMetrics() (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	otel.SetMeterProvider(provider)

	return promhttp.Handler(), provider.Shutdown, nil
}

// MonitorMetrics instruments the refresh loop. A nil *MonitorMetrics is
// valid and records nothing, so the loop needs no conditional wiring.
type MonitorMetrics struct {
	cycles        metric.Int64Counter
	degradedReads metric.Int64Counter
	queueMisses   metric.Int64Counter
	cycleSeconds  metric.Float64Histogram
}

// NewMonitorMetrics registers the poll-loop instruments on the global
// meter provider.
func NewMonitorMetrics() (*MonitorMetrics, error) {
	meter := otel.Meter("wfmon")

	cycles, err := meter.Int64Counter("wfmon.poll.cycles",
		metric.WithDescription("Completed poll cycles"))
	if err != nil {
		return nil, err
	}
	degraded, err := meter.Int64Counter("wfmon.poll.degraded_reads",
		metric.WithDescription("Cycles where the event database read degraded"))
	if err != nil {
		return nil, err
	}
	misses, err := meter.Int64Counter("wfmon.queue.misses",
		metric.WithDescription("Cycles where the live queue was unreachable"))
	if err != nil {
		return nil, err
	}
	seconds, err := meter.Float64Histogram("wfmon.poll.duration_seconds",
		metric.WithDescription("Wall-clock duration of one synthesis-and-merge cycle"))
	if err != nil {
		return nil, err
	}

	return &MonitorMetrics{
		cycles:        cycles,
		degradedReads: degraded,
		queueMisses:   misses,
		cycleSeconds:  seconds,
	}, nil
}

// RecordCycle records one completed cycle.
func (m *MonitorMetrics) RecordCycle(ctx context.Context, d time.Duration, degraded bool) {
	if m == nil {
		return
	}
	m.cycles.Add(ctx, 1)
	m.cycleSeconds.Record(ctx, d.Seconds())
	if degraded {
		m.degradedReads.Add(ctx, 1)
	}
}

// RecordQueueMiss records a cycle where the live queue degraded to empty.
func (m *MonitorMetrics) RecordQueueMiss(ctx context.Context) {
	if m == nil {
		return
	}
	m.queueMisses.Add(ctx, 1)
}
