// Package observe provides application-wide observability primitives for
// PinkSync: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all PinkSync metrics.
const meterName = "github.com/pinkycollie/pinksync"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// ExtractionDuration tracks per-frame feature extraction latency.
	ExtractionDuration metric.Float64Histogram

	// InferenceDuration tracks full-accuracy sign→text inference latency.
	InferenceDuration metric.Float64Histogram

	// PartialInferenceDuration tracks the low-latency partial path.
	PartialInferenceDuration metric.Float64Histogram

	// GenerationDuration tracks text→sign generation latency.
	GenerationDuration metric.Float64Histogram

	// --- Counters ---

	// FramesProcessed counts frames seen by the extractor. Use with attribute:
	//   attribute.String("outcome", "features"|"no_features"|"fault")
	FramesProcessed metric.Int64Counter

	// Translations counts completed translations. Use with attributes:
	//   attribute.String("direction", ...), attribute.String("status", ...)
	Translations metric.Int64Counter

	// StreamEvents counts events emitted to live connections. Use with
	// attribute: attribute.String("type", ...)
	StreamEvents metric.Int64Counter

	// SynthesisDispatches counts dispatched sign-video synthesis jobs.
	SynthesisDispatches metric.Int64Counter

	// MemoryHits counts translation-memory similarity hits.
	MemoryHits metric.Int64Counter

	// --- Error counters ---

	// PersistenceFailures counts best-effort store writes that failed.
	// Use with attribute: attribute.String("record", ...)
	PersistenceFailures metric.Int64Counter

	// ModelErrors counts detector and inference model faults. Use with
	// attribute: attribute.String("capability", ...)
	ModelErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live streaming sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for frame-level and utterance-level pipeline latencies.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ExtractionDuration, err = m.Float64Histogram("pinksync.extraction.duration",
		metric.WithDescription("Latency of per-frame feature extraction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InferenceDuration, err = m.Float64Histogram("pinksync.inference.duration",
		metric.WithDescription("Latency of full-accuracy sign-to-text inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PartialInferenceDuration, err = m.Float64Histogram("pinksync.inference.partial.duration",
		metric.WithDescription("Latency of low-latency partial inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GenerationDuration, err = m.Float64Histogram("pinksync.generation.duration",
		metric.WithDescription("Latency of text-to-sign sequence generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesProcessed, err = m.Int64Counter("pinksync.frames.processed",
		metric.WithDescription("Total frames seen by the feature extractor, by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Translations, err = m.Int64Counter("pinksync.translations",
		metric.WithDescription("Total completed translations by direction and status."),
	); err != nil {
		return nil, err
	}
	if met.StreamEvents, err = m.Int64Counter("pinksync.stream.events",
		metric.WithDescription("Total events emitted to live connections by type."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDispatches, err = m.Int64Counter("pinksync.synthesis.dispatches",
		metric.WithDescription("Total dispatched sign-video synthesis jobs."),
	); err != nil {
		return nil, err
	}
	if met.MemoryHits, err = m.Int64Counter("pinksync.memory.hits",
		metric.WithDescription("Total translation-memory similarity hits."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.PersistenceFailures, err = m.Int64Counter("pinksync.persistence.failures",
		metric.WithDescription("Total best-effort store writes that failed, by record kind."),
	); err != nil {
		return nil, err
	}
	if met.ModelErrors, err = m.Int64Counter("pinksync.model.errors",
		metric.WithDescription("Total detector and inference model faults by capability."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("pinksync.active_sessions",
		metric.WithDescription("Number of live streaming sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("pinksync.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
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

// RecordFrame records one extractor frame outcome ("features", "no_features",
// or "fault").
func (m *Metrics) RecordFrame(ctx context.Context, outcome string) {
	m.FramesProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordTranslation records a completed translation with the standard
// attribute set.
func (m *Metrics) RecordTranslation(ctx context.Context, direction, status string) {
	m.Translations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("direction", direction),
			attribute.String("status", status),
		),
	)
}

// RecordStreamEvent records one emitted live-connection event by type.
func (m *Metrics) RecordStreamEvent(ctx context.Context, eventType string) {
	m.StreamEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", eventType)),
	)
}

// RecordPersistenceFailure records a failed best-effort store write.
func (m *Metrics) RecordPersistenceFailure(ctx context.Context, record string) {
	m.PersistenceFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("record", record)),
	)
}

// RecordModelError records a detector or inference model fault.
func (m *Metrics) RecordModelError(ctx context.Context, capability string) {
	m.ModelErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("capability", capability)),
	)
}
