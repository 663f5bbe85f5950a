package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the spintrain tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("spintrain")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartRunSpan starts a span for the entire training run.
	StartRunSpan(ctx context.Context, runID string, runIndex int) (context.Context, trace.Span)

	// StartEpochSpan starts a span for one epoch.
	// The epoch span should be a child of the run span.
	StartEpochSpan(ctx context.Context, epoch int) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartRunSpan starts a span for the entire training run.
func (m *otelSpanManager) StartRunSpan(ctx context.Context, runID string, runIndex int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "spintrain.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.index", runIndex),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartEpochSpan starts a span for one epoch.
func (m *otelSpanManager) StartEpochSpan(ctx context.Context, epoch int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "spintrain.epoch",
		trace.WithAttributes(
			attribute.Int("epoch", epoch),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
