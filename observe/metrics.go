package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records client-side counters and latencies.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRequest records one API request with its duration and outcome.
	RecordRequest(ctx context.Context, meta OperationMeta, duration time.Duration, err error)

	// RecordCacheEvent counts a query cache event (hit, miss, join, evict, invalidate, discard).
	RecordCacheEvent(ctx context.Context, event string)

	// RecordCartMutation counts one cart reducer action.
	RecordCartMutation(ctx context.Context, action string)
}

type metricsImpl struct {
	requestCount   metric.Int64Counter
	requestErrors  metric.Int64Counter
	requestLatency metric.Float64Histogram
	cacheEvents    metric.Int64Counter
	cartMutations  metric.Int64Counter
}

// NewMetrics creates the storefront instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	requestCount, err := meter.Int64Counter(
		"storefront.request.total",
		metric.WithDescription("Total number of API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestErrors, err := meter.Int64Counter(
		"storefront.request.errors",
		metric.WithDescription("Total number of failed API requests"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	requestLatency, err := meter.Float64Histogram(
		"storefront.request.duration_ms",
		metric.WithDescription("API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheEvents, err := meter.Int64Counter(
		"storefront.cache.events",
		metric.WithDescription("Query cache events by kind"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	cartMutations, err := meter.Int64Counter(
		"storefront.cart.mutations",
		metric.WithDescription("Cart mutations by action"),
		metric.WithUnit("{mutation}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		requestCount:   requestCount,
		requestErrors:  requestErrors,
		requestLatency: requestLatency,
		cacheEvents:    cacheEvents,
		cartMutations:  cartMutations,
	}, nil
}

func (m *metricsImpl) RecordRequest(ctx context.Context, meta OperationMeta, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("op.id", meta.ID()),
	}
	if meta.Method != "" {
		attrs = append(attrs, attribute.String("http.request.method", meta.Method))
	}
	opt := metric.WithAttributes(attrs...)

	m.requestCount.Add(ctx, 1, opt)
	if err != nil {
		m.requestErrors.Add(ctx, 1, opt)
	}
	m.requestLatency.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordCacheEvent(ctx context.Context, event string) {
	m.cacheEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

func (m *metricsImpl) RecordCartMutation(ctx context.Context, action string) {
	m.cartMutations.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

type noopMetrics struct{}

func (noopMetrics) RecordRequest(context.Context, OperationMeta, time.Duration, error) {}
func (noopMetrics) RecordCacheEvent(context.Context, string)                           {}
func (noopMetrics) RecordCartMutation(context.Context, string)                         {}
