package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records training metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEpoch records one completed epoch with its losses and duration.
	RecordEpoch(ctx context.Context, epoch int, trainLoss, evalLoss float64, duration time.Duration)

	// RecordRun records a training run ending, successfully or not.
	RecordRun(ctx context.Context, success bool, duration time.Duration)

	// RecordCheckpoint records a checkpoint save.
	RecordCheckpoint(ctx context.Context, epoch int, sizeBytes int64)

	// RecordBestModel records a best-model snapshot update.
	RecordBestModel(ctx context.Context, epoch int, evalLoss float64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	epochs         metric.Int64Counter
	epochLatency   metric.Float64Histogram
	trainLoss      metric.Float64Histogram
	evalLoss       metric.Float64Histogram
	runs           metric.Int64Counter
	runLatency     metric.Float64Histogram
	checkpointSize metric.Int64Histogram
	bestUpdates    metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("spintrain")

	epochs, err := meter.Int64Counter("spintrain.epochs",
		metric.WithDescription("Number of completed epochs"),
	)
	if err != nil {
		return nil, err
	}

	epochLatency, err := meter.Float64Histogram("spintrain.epoch.latency_ms",
		metric.WithDescription("Epoch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	trainLoss, err := meter.Float64Histogram("spintrain.train.loss",
		metric.WithDescription("Average training loss per epoch"),
	)
	if err != nil {
		return nil, err
	}

	evalLoss, err := meter.Float64Histogram("spintrain.eval.loss",
		metric.WithDescription("Average validation loss per epoch"),
	)
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter("spintrain.runs",
		metric.WithDescription("Number of training runs"),
	)
	if err != nil {
		return nil, err
	}

	runLatency, err := meter.Float64Histogram("spintrain.run.latency_ms",
		metric.WithDescription("Training run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	checkpointSize, err := meter.Int64Histogram("spintrain.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	bestUpdates, err := meter.Int64Counter("spintrain.best_model.updates",
		metric.WithDescription("Number of best-model snapshot updates"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		epochs:         epochs,
		epochLatency:   epochLatency,
		trainLoss:      trainLoss,
		evalLoss:       evalLoss,
		runs:           runs,
		runLatency:     runLatency,
		checkpointSize: checkpointSize,
		bestUpdates:    bestUpdates,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordEpoch records one completed epoch.
func (m *otelMetrics) RecordEpoch(ctx context.Context, epoch int, trainLoss, evalLoss float64, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Int("epoch", epoch),
	}

	m.epochs.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.epochLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.trainLoss.Record(ctx, trainLoss, metric.WithAttributes(attrs...))
	m.evalLoss.Record(ctx, evalLoss, metric.WithAttributes(attrs...))
}

// RecordRun records a training run ending.
func (m *otelMetrics) RecordRun(ctx context.Context, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.runLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordCheckpoint records a checkpoint save.
func (m *otelMetrics) RecordCheckpoint(ctx context.Context, epoch int, sizeBytes int64) {
	attrs := []attribute.KeyValue{
		attribute.Int("epoch", epoch),
	}
	m.checkpointSize.Record(ctx, sizeBytes, metric.WithAttributes(attrs...))
}

// RecordBestModel records a best-model snapshot update.
func (m *otelMetrics) RecordBestModel(ctx context.Context, epoch int, evalLoss float64) {
	attrs := []attribute.KeyValue{
		attribute.Int("epoch", epoch),
	}
	m.bestUpdates.Add(ctx, 1, metric.WithAttributes(attrs...))
}
