package operations

import (
	"context"
	"fmt"
	"time"

	"opsunify/internal/infrastructure"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "opsunify.run"
)

// RunTracer provides OpenTelemetry instrumentation for pipeline runs
type RunTracer struct {
	tracer          trace.Tracer
	meter           metric.Meter
	businessMetrics *infrastructure.BusinessMetrics
}

// NewRunTracer creates a new run tracer
func NewRunTracer(providers *infrastructure.OTelProviders) (*RunTracer, error) {
	businessMetrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	return &RunTracer{
		tracer:          otel.Tracer(TracerName),
		meter:           providers.Meter,
		businessMetrics: businessMetrics,
	}, nil
}

// TraceRunExecution creates a span for the entire run execution
func (rt *RunTracer) TraceRunExecution(ctx context.Context, runID, variant string) (context.Context, trace.Span) {
	ctx, span := rt.tracer.Start(ctx, "run.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.variant", variant),
		),
	)

	rt.businessMetrics.OperationExecutionsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("variant", variant),
		),
	)

	rt.businessMetrics.OperationActiveOperations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("variant", variant),
		),
	)

	return ctx, span
}

// TraceStepExecution creates a span for an individual step execution
func (rt *RunTracer) TraceStepExecution(ctx context.Context, runID, stepID string) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("run.step.%s", stepID)
	ctx, span := rt.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("step.id", stepID),
		),
	)

	rt.businessMetrics.OperationStepsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("step", stepID),
		),
	)

	return ctx, span
}

// RecordRunCompletion records run completion with metrics and span events
func (rt *RunTracer) RecordRunCompletion(ctx context.Context, span trace.Span, runID string, duration time.Duration, status string, rowsOut int64) {
	span.SetAttributes(
		attribute.String("run.status", status),
		attribute.Float64("run.duration_seconds", duration.Seconds()),
		attribute.Int64("run.rows_out", rowsOut),
	)

	rt.businessMetrics.OperationExecutionDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)

	rt.businessMetrics.OperationActiveOperations.Add(ctx, -1)

	infrastructure.AddSpanEvent(ctx, "run.completed", map[string]interface{}{
		"run_id":   runID,
		"status":   status,
		"duration": duration.Seconds(),
		"rows_out": rowsOut,
	})

	if status == string(RunStatusCompleted) {
		span.SetStatus(codes.Ok, "run completed successfully")
	} else {
		span.SetStatus(codes.Error, fmt.Sprintf("run finished with status: %s", status))
	}
}

// RecordStepCompletion records step completion with metrics and span events
func (rt *RunTracer) RecordStepCompletion(ctx context.Context, span trace.Span, runID, stepID string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	span.SetAttributes(
		attribute.String("step.status", status),
		attribute.Float64("step.duration_seconds", duration.Seconds()),
	)

	rt.businessMetrics.OperationStepDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("step", stepID),
			attribute.String("status", status),
		),
	)

	infrastructure.AddSpanEvent(ctx, "step.completed", map[string]interface{}{
		"step_id":  stepID,
		"status":   status,
		"duration": duration.Seconds(),
	})

	if success {
		span.SetStatus(codes.Ok, "step completed successfully")
	} else {
		span.SetStatus(codes.Error, "step execution failed")
	}
}

// RecordStepError records a step error with proper error tracking
func (rt *RunTracer) RecordStepError(ctx context.Context, runID, stepID string, err error) {
	infrastructure.RecordError(ctx, err,
		trace.WithAttributes(
			attribute.String("step_id", stepID),
			attribute.String("error.type", "step_execution_error"),
		),
	)

	rt.businessMetrics.OperationErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("step", stepID),
		),
	)
}

// RecordRunError records a run error with proper error tracking. The active
// run gauge is decremented by RecordRunCompletion, which runs for every run
// regardless of outcome.
func (rt *RunTracer) RecordRunError(ctx context.Context, runID string, err error) {
	infrastructure.RecordError(ctx, err,
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("error.type", "run_execution_error"),
		),
	)

	rt.businessMetrics.OperationErrors.Add(ctx, 1)
}

// RecordRunCancellation records a run cancellation
func (rt *RunTracer) RecordRunCancellation(ctx context.Context, runID, reason string) {
	rt.businessMetrics.OperationCancellations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("reason", reason),
		),
	)

	infrastructure.AddSpanEvent(ctx, "run.cancelled", map[string]interface{}{
		"run_id": runID,
		"reason": reason,
	})
}

// BusinessMetrics exposes the tracer's instruments so callers can record
// run-level aggregates alongside the spans. Safe on a nil tracer.
func (rt *RunTracer) BusinessMetrics() *infrastructure.BusinessMetrics {
	if rt == nil {
		return nil
	}
	return rt.businessMetrics
}

var globalRunTracer *RunTracer

// InitGlobalRunTracer initializes the global run tracer
func InitGlobalRunTracer(providers *infrastructure.OTelProviders) error {
	tracer, err := NewRunTracer(providers)
	if err != nil {
		return err
	}
	globalRunTracer = tracer
	return nil
}

// GetRunTracer returns the global run tracer, or nil when tracing is not
// initialized
func GetRunTracer() *RunTracer {
	return globalRunTracer
}
