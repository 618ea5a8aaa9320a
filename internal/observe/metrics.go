// Package observe provides application-wide observability primitives for
// Fae: OpenTelemetry metrics, tracing spans around pipeline stages and agent
// turns, structured logging helpers, and secret redaction at the telemetry
// boundary.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] for deployments that
// scrape; the core itself never opens a listener. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Fae metrics.
const meterName = "github.com/saorsa-labs/fae"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks LLM inference latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// TurnDuration tracks end-to-end turn latency: final transcript in to
	// first playback frame out.
	TurnDuration metric.Float64Histogram

	// ToolExecutionDuration tracks tool execution latency.
	ToolExecutionDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// Turns counts completed conversation turns. Use with attribute:
	//   attribute.String("stop_reason", ...)
	Turns metric.Int64Counter

	// MemoryCaptures counts asynchronous memory captures. Use with
	// attribute: attribute.String("status", ...)
	MemoryCaptures metric.Int64Counter

	// LeaseRenewals counts scheduler lease acquisitions and renewals. Use
	// with attribute: attribute.String("decision", "leader"|"follower"|"takeover")
	LeaseRenewals metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// PipelineEvents counts coordinator fault events. Use with attribute:
	//   attribute.String("event", "congested"|"underrun"|"error")
	PipelineEvents metric.Int64Counter

	// --- Gauges ---

	// PipelineRunning tracks whether a pipeline run is live (0 or 1).
	PipelineRunning metric.Int64UpDownCounter

	// QueuedTurns tracks the depth of the transcript→agent queue.
	QueuedTurns metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("fae.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("fae.llm.duration",
		metric.WithDescription("Latency of LLM inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("fae.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("fae.turn.duration",
		metric.WithDescription("End-to-end turn latency from final transcript to first playback frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = m.Float64Histogram("fae.tool_execution.duration",
		metric.WithDescription("Latency of tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("fae.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("fae.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.Turns, err = m.Int64Counter("fae.turns",
		metric.WithDescription("Total completed conversation turns by stop reason."),
	); err != nil {
		return nil, err
	}
	if met.MemoryCaptures, err = m.Int64Counter("fae.memory.captures",
		metric.WithDescription("Total asynchronous memory captures by status."),
	); err != nil {
		return nil, err
	}
	if met.LeaseRenewals, err = m.Int64Counter("fae.scheduler.lease_renewals",
		metric.WithDescription("Total scheduler lease acquisitions and renewals by decision."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("fae.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.PipelineEvents, err = m.Int64Counter("fae.pipeline.events",
		metric.WithDescription("Total coordinator fault events by event name."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.PipelineRunning, err = m.Int64UpDownCounter("fae.pipeline.running",
		metric.WithDescription("Whether a pipeline run is currently live."),
	); err != nil {
		return nil, err
	}
	if met.QueuedTurns, err = m.Int64UpDownCounter("fae.pipeline.queued_turns",
		metric.WithDescription("Depth of the transcript-to-agent queue."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultOnce guards lazy creation of the package default instance.
var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// DefaultMetrics returns the package-level [Metrics] built from the global
// OTel meter provider. The first call creates it; creation failure panics
// because it indicates a programming error in instrument definitions.
func DefaultMetrics() *Metrics {
	defaultOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordTurn is a convenience method that records a completed conversation
// turn.
func (m *Metrics) RecordTurn(ctx context.Context, stopReason string) {
	m.Turns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stop_reason", stopReason)),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
