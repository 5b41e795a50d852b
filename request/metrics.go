package request

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Reasons attached to evelib.cache.misses.
const (
	missAbsent  = "absent"
	missStale   = "stale"
	missCorrupt = "corrupt"
	missBypass  = "bypass"
	missError   = "error"
)

type pipelineMetrics struct {
	hits     metric.Int64Counter
	misses   metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

func newPipelineMetrics(meter metric.Meter) (*pipelineMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("evelib")
	}

	hits, err := meter.Int64Counter(
		"evelib.cache.hits",
		metric.WithDescription("Requests served from a valid cache entry"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	misses, err := meter.Int64Counter(
		"evelib.cache.misses",
		metric.WithDescription("Requests that required a live fetch"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter(
		"evelib.cache.errors",
		metric.WithDescription("Cache store failures absorbed or returned by the pipeline"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"evelib.fetch.duration_ms",
		metric.WithDescription("Live fetch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &pipelineMetrics{hits: hits, misses: misses, errors: errs, duration: duration}, nil
}

func (m *pipelineMetrics) hit(ctx context.Context) {
	m.hits.Add(ctx, 1)
}

func (m *pipelineMetrics) miss(ctx context.Context, reason string) {
	m.misses.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *pipelineMetrics) cacheError(ctx context.Context, op string) {
	m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *pipelineMetrics) fetched(ctx context.Context, d time.Duration, err error) {
	m.duration.Record(ctx, float64(d.Milliseconds()),
		metric.WithAttributes(attribute.Bool("error", err != nil)))
}
