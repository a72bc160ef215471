package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/embedfn/pkg/embeddings"

// Metrics holds all embedding-related metrics. A nil *Metrics is valid and
// records nothing, so callers never need to guard.
type Metrics struct {
	meter        metric.Meter
	logger       *zap.Logger
	initDuration metric.Float64Histogram
	initOutcomes metric.Int64Counter
	duration     metric.Float64Histogram
	batchSize    metric.Int64Histogram
	errors       metric.Int64Counter
}

// NewMetrics creates a new Metrics instance for embedding operations.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.initDuration, err = m.meter.Float64Histogram(
		"embedfn.initialization.duration_seconds",
		metric.WithDescription("Duration of embedding function initialization, labeled by engine and the chain stage that served (primary, shim_retry, fallback_api, hash)"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		m.logger.Warn("failed to create initialization duration histogram", zap.Error(err))
	}

	m.initOutcomes, err = m.meter.Int64Counter(
		"embedfn.initialization.outcomes_total",
		metric.WithDescription("Initialization outcomes by engine and chain stage. A rising hash share means the configured engine is unhealthy."),
		metric.WithUnit("{initialization}"),
	)
	if err != nil {
		m.logger.Warn("failed to create initialization outcome counter", zap.Error(err))
	}

	m.duration, err = m.meter.Float64Histogram(
		"embedfn.embedding.generation_duration_seconds",
		metric.WithDescription("Duration of embedding generation in seconds, labeled by model and operation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.batchSize, err = m.meter.Int64Histogram(
		"embedfn.embedding.batch_size",
		metric.WithDescription("Number of texts per embedding call"),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 25, 50, 100, 250, 500),
	)
	if err != nil {
		m.logger.Warn("failed to create batch size histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"embedfn.embedding.errors_total",
		metric.WithDescription("Total embedding generation errors by model and operation"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}
}

// RecordInitialization records one initialization attempt.
func (m *Metrics) RecordInitialization(ctx context.Context, engine, stage string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("engine", engineLabel(engine)),
		attribute.String("stage", stage),
	}

	if m.initDuration != nil {
		m.initDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if m.initOutcomes != nil {
		m.initOutcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordGeneration records embedding generation metrics.
func (m *Metrics) RecordGeneration(ctx context.Context, model, operation string, duration time.Duration, batchSize int, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("model", model),
		attribute.String("operation", operation),
	}

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if batchSize > 0 && m.batchSize != nil {
		m.batchSize.Record(ctx, int64(batchSize), metric.WithAttributes(attrs...))
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// engineLabel makes the local engine's empty name readable in telemetry.
func engineLabel(engine string) string {
	if engine == EngineLocal {
		return "local"
	}
	return engine
}
