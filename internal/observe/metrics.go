// Package observe provides application-wide observability primitives for
// Telwerk: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
//
// All Record* helper methods are nil-receiver safe so callers can hold an
// optional *Metrics without guarding every call site.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Telwerk metrics.
const meterName = "github.com/mboersen/telwerk"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per matching stage ---

	// FastPathDuration tracks exact-lookup latency.
	FastPathDuration metric.Float64Histogram

	// HeavyPathDuration tracks phonetic/fuzzy cascade latency.
	HeavyPathDuration metric.Float64Histogram

	// IndexBuildDuration tracks alias index (re)build latency.
	IndexBuildDuration metric.Float64Histogram

	// --- Counters ---

	// Matches counts completed parse decisions. Use with attributes:
	//   attribute.String("source", ...), attribute.String("outcome", ...)
	Matches metric.Int64Counter

	// PendingTimeouts counts pending-buffer items dropped after their
	// retries expired.
	PendingTimeouts metric.Int64Counter

	// IndexRebuilds counts index rebuilds. Use with attribute:
	//   attribute.String("trigger", ...)
	IndexRebuilds metric.Int64Counter

	// --- Gauges ---

	// PendingDepth tracks the number of utterances queued for background
	// matching.
	PendingDepth metric.Int64UpDownCounter

	// IndexSize tracks the number of alias records in the live index.
	IndexSize metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for the sub-second matching pipeline.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.FastPathDuration, err = m.Float64Histogram("telwerk.fastpath.duration",
		metric.WithDescription("Latency of the exact-lookup fast path."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HeavyPathDuration, err = m.Float64Histogram("telwerk.heavypath.duration",
		metric.WithDescription("Latency of the phonetic/fuzzy heavy path."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.IndexBuildDuration, err = m.Float64Histogram("telwerk.index.build.duration",
		metric.WithDescription("Latency of alias index builds."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Matches, err = m.Int64Counter("telwerk.matches",
		metric.WithDescription("Total parse decisions by source and outcome."),
	); err != nil {
		return nil, err
	}
	if met.PendingTimeouts, err = m.Int64Counter("telwerk.pending.timeouts",
		metric.WithDescription("Total pending-buffer items dropped after retries expired."),
	); err != nil {
		return nil, err
	}
	if met.IndexRebuilds, err = m.Int64Counter("telwerk.index.rebuilds",
		metric.WithDescription("Total index rebuilds by trigger."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.PendingDepth, err = m.Int64UpDownCounter("telwerk.pending.depth",
		metric.WithDescription("Number of utterances queued for background matching."),
	); err != nil {
		return nil, err
	}
	if met.IndexSize, err = m.Int64UpDownCounter("telwerk.index.size",
		metric.WithDescription("Number of alias records in the live index."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("telwerk.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordFastPath records one fast-path lookup.
func (m *Metrics) RecordFastPath(ctx context.Context, d time.Duration, hit bool) {
	if m == nil {
		return
	}
	m.FastPathDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.Bool("hit", hit)))
}

// RecordHeavyPath records one heavy-path run.
func (m *Metrics) RecordHeavyPath(ctx context.Context, d time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.HeavyPathDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.Bool("ok", ok)))
}

// RecordMatch counts one completed parse decision.
func (m *Metrics) RecordMatch(ctx context.Context, source, outcome string) {
	if m == nil {
		return
	}
	m.Matches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	))
}

// RecordPendingDepth adjusts the pending-buffer depth gauge by delta.
func (m *Metrics) RecordPendingDepth(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.PendingDepth.Add(ctx, delta)
}

// RecordPendingTimeout counts one dropped pending item.
func (m *Metrics) RecordPendingTimeout(ctx context.Context) {
	if m == nil {
		return
	}
	m.PendingTimeouts.Add(ctx, 1)
}

// RecordIndexRebuild records one index rebuild and the resulting size delta.
func (m *Metrics) RecordIndexRebuild(ctx context.Context, trigger string, d time.Duration, sizeDelta int64) {
	if m == nil {
		return
	}
	m.IndexRebuilds.Add(ctx, 1,
		metric.WithAttributes(attribute.String("trigger", trigger)))
	m.IndexBuildDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("trigger", trigger)))
	m.IndexSize.Add(ctx, sizeDelta)
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
			panic("observe: creating default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}
