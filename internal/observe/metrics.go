// Package observe provides application-wide observability primitives for
// Signpost: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all Signpost metrics.
const meterName = "github.com/kaede-app/signpost"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// RecommendationDuration tracks end-to-end recommendation pipeline latency.
	RecommendationDuration metric.Float64Histogram

	// EmbeddingDuration tracks embedding provider call latency.
	EmbeddingDuration metric.Float64Histogram

	// HistoryDuration tracks recommendation-history store latency.
	HistoryDuration metric.Float64Histogram

	// --- Counters ---

	// RecommendationRequests counts pipeline invocations. Use with attribute:
	//   attribute.String("status", "ok"|"empty")
	RecommendationRequests metric.Int64Counter

	// TierMatches counts returned matches by tier. Use with attribute:
	//   attribute.String("tier", "criteria"|"semantic"|"keyword")
	TierMatches metric.Int64Counter

	// EmbedCacheEvents counts embedding cache lookups. Use with attribute:
	//   attribute.String("result", "hit"|"miss")
	EmbedCacheEvents metric.Int64Counter

	// CooldownSuppressed counts candidates dropped by the cooldown filter.
	CooldownSuppressed metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts collaborator errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveRequests tracks in-flight recommendation requests.
	ActiveRequests metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for a
// pipeline whose slowest leg is a single embedding API round-trip.
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
	if met.RecommendationDuration, err = m.Float64Histogram("signpost.recommendation.duration",
		metric.WithDescription("End-to-end latency of the recommendation pipeline."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmbeddingDuration, err = m.Float64Histogram("signpost.embedding.duration",
		metric.WithDescription("Latency of embedding provider calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HistoryDuration, err = m.Float64Histogram("signpost.history.duration",
		metric.WithDescription("Latency of recommendation-history store operations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.RecommendationRequests, err = m.Int64Counter("signpost.recommendation.requests",
		metric.WithDescription("Total recommendation pipeline invocations by status."),
	); err != nil {
		return nil, err
	}
	if met.TierMatches, err = m.Int64Counter("signpost.recommendation.tier_matches",
		metric.WithDescription("Total returned matches by matching tier."),
	); err != nil {
		return nil, err
	}
	if met.EmbedCacheEvents, err = m.Int64Counter("signpost.embedding.cache_events",
		metric.WithDescription("Embedding cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.CooldownSuppressed, err = m.Int64Counter("signpost.cooldown.suppressed",
		metric.WithDescription("Candidates dropped because the service was recently shown."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("signpost.provider.errors",
		metric.WithDescription("Total collaborator errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRequests, err = m.Int64UpDownCounter("signpost.active_requests",
		metric.WithDescription("Number of in-flight recommendation requests."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("signpost.http.request.duration",
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

// RecordTierMatch records one returned match for the given tier.
func (m *Metrics) RecordTierMatch(ctx context.Context, tier string) {
	m.TierMatches.Add(ctx, 1,
		metric.WithAttributes(attribute.String("tier", tier)),
	)
}

// RecordCacheEvent records an embedding cache lookup result ("hit" or "miss").
func (m *Metrics) RecordCacheEvent(ctx context.Context, result string) {
	m.EmbedCacheEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordProviderError records a collaborator error with the standard
// attribute set.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordRequest records one pipeline invocation with its outcome status.
func (m *Metrics) RecordRequest(ctx context.Context, status string) {
	m.RecommendationRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
