package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"matchset/internal/infrastructure"
)

const (
	// TracerName identifies pipeline spans in trace output
	TracerName = "matchset.pipeline"
)

// PipelineTracer provides OpenTelemetry instrumentation for pipeline runs
type PipelineTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewPipelineTracer creates a tracer recording on the providers' meter
func NewPipelineTracer(providers *infrastructure.TelemetryProviders) (*PipelineTracer, error) {
	metrics, err := infrastructure.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	return &PipelineTracer{
		tracer:  otel.Tracer(TracerName),
		metrics: metrics,
	}, nil
}

// TraceRun creates the span covering a whole pipeline run
func (pt *PipelineTracer) TraceRun(ctx context.Context, runID string) (context.Context, trace.Span) {
	ctx, span := pt.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
		),
	)

	pt.metrics.RunsTotal.Add(ctx, 1)
	pt.metrics.ActiveRuns.Add(ctx, 1)

	return ctx, span
}

// TraceStep creates the span covering one step execution
func (pt *PipelineTracer) TraceStep(ctx context.Context, runID, stepID string) (context.Context, trace.Span) {
	ctx, span := pt.tracer.Start(ctx, fmt.Sprintf("pipeline.step.%s", stepID),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("step.id", stepID),
		),
	)

	return ctx, span
}

// RecordStepCompletion records step completion with metrics and span status
func (pt *PipelineTracer) RecordStepCompletion(ctx context.Context, span trace.Span, stepID string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	span.SetAttributes(
		attribute.String("step.status", status),
		attribute.Float64("step.duration_seconds", duration.Seconds()),
	)

	attrs := metric.WithAttributes(
		attribute.String("step_id", stepID),
		attribute.String("status", status),
	)
	pt.metrics.StepExecutions.Add(ctx, 1, attrs)
	pt.metrics.StepDuration.Record(ctx, duration.Seconds(), attrs)

	if err != nil {
		infrastructure.RecordError(ctx, err, trace.WithAttributes(
			attribute.String("step_id", stepID),
		))
		return
	}
	span.SetStatus(codes.Ok, "step completed")
}

// RecordRunCompletion records run completion with metrics, totals and span
// events. It must be called exactly once per traced run.
func (pt *PipelineTracer) RecordRunCompletion(ctx context.Context, span trace.Span, runID string, duration time.Duration, status RunStatus, totals RunTotals) {
	span.SetAttributes(
		attribute.String("run.status", string(status)),
		attribute.Float64("run.duration_seconds", duration.Seconds()),
		attribute.Int("run.entities", totals.Entities),
		attribute.Int("run.derived_rows", totals.DerivedRows),
		attribute.Int("run.matchup_rows", totals.MatchupRows),
	)

	pt.metrics.RunDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("status", string(status))))
	pt.metrics.ActiveRuns.Add(ctx, -1)
	pt.metrics.EntitiesProcessed.Add(ctx, int64(totals.Entities))
	pt.metrics.RecordsDerived.Add(ctx, int64(totals.DerivedRows))
	pt.metrics.MatchupRows.Add(ctx, int64(totals.MatchupRows))

	infrastructure.AddSpanEvent(ctx, "pipeline.run.finished", map[string]interface{}{
		"run_id":       runID,
		"status":       string(status),
		"duration":     duration.Seconds(),
		"entities":     totals.Entities,
		"matchup_rows": totals.MatchupRows,
	})

	if status == RunStatusCompleted {
		span.SetStatus(codes.Ok, "run completed")
		return
	}
	pt.metrics.RunErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", string(status))))
	span.SetStatus(codes.Error, fmt.Sprintf("run finished with status %s", status))
}
