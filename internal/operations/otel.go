package operations

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"sovpanel/internal/infrastructure"
	"sovpanel/internal/ingest"
	"sovpanel/internal/panel"
)

// OperationTracer instruments pipeline runs with spans and metrics.
// A nil *OperationTracer is valid and records nothing.
type OperationTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewOperationTracer creates a tracer over the process providers
func NewOperationTracer(providers *infrastructure.OTelProviders) (*OperationTracer, error) {
	metrics, err := infrastructure.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	tracer := providers.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(infrastructure.MeterName)
	}
	return &OperationTracer{tracer: tracer, metrics: metrics}, nil
}

// TraceRun creates the span of a whole run
func (pt *OperationTracer) TraceRun(ctx context.Context, runID string, steps int) (context.Context, trace.Span) {
	if pt == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return pt.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.steps", steps),
		),
	)
}

// RecordRunCompletion closes out the run span and counts the run
func (pt *OperationTracer) RecordRunCompletion(ctx context.Context, span trace.Span, status OperationStatus, duration time.Duration, drops int) {
	if pt == nil {
		return
	}
	span.SetAttributes(
		attribute.String("run.status", string(status)),
		attribute.Float64("run.duration_seconds", duration.Seconds()),
		attribute.Int("run.dropped", drops),
	)
	pt.metrics.RunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))

	if status == OperationStatusCompleted {
		span.SetStatus(codes.Ok, "run completed")
	} else {
		span.SetStatus(codes.Error, fmt.Sprintf("run ended with status %s", status))
	}
}

// TraceStep creates a span for one step
func (pt *OperationTracer) TraceStep(ctx context.Context, runID, stepID string) (context.Context, trace.Span) {
	if pt == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return pt.tracer.Start(ctx, "pipeline.step."+stepID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("step.id", stepID),
		),
	)
}

// RecordStepCompletion records the outcome and duration of a step
func (pt *OperationTracer) RecordStepCompletion(ctx context.Context, span trace.Span, stepID string, duration time.Duration, err error) {
	if pt == nil {
		return
	}
	status := string(StepStatusCompleted)
	if err != nil {
		status = string(StepStatusFailed)
		infrastructure.RecordError(ctx, err, trace.WithAttributes(
			attribute.String("step.id", stepID),
			attribute.String("error.type", string(GetErrorType(err))),
		))
	} else {
		span.SetStatus(codes.Ok, "step completed")
	}
	span.SetAttributes(
		attribute.String("step.status", status),
		attribute.Float64("step.duration_seconds", duration.Seconds()),
	)

	attrs := metric.WithAttributes(attribute.String("step", stepID), attribute.String("status", status))
	pt.metrics.StepsTotal.Add(ctx, 1, attrs)
	pt.metrics.StepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("step", stepID)))
}

// RecordLoad counts the kept and dropped observations of one source
func (pt *OperationTracer) RecordLoad(ctx context.Context, stats ingest.LoadStats) {
	if pt == nil {
		return
	}
	pt.metrics.RowsLoaded.Add(ctx, int64(stats.Kept), metric.WithAttributes(attribute.String("source", stats.Source)))
	for reason, n := range stats.Drops {
		pt.RecordDrops(ctx, stats.Source, reason, n)
	}
	infrastructure.AddSpanEvent(ctx, "source.loaded", map[string]interface{}{
		"source":  stats.Source,
		"files":   stats.Files,
		"kept":    stats.Kept,
		"dropped": stats.Dropped(),
	})
}

// RecordDrops counts observations dropped outside the loader
func (pt *OperationTracer) RecordDrops(ctx context.Context, source, reason string, n int) {
	if pt == nil || n <= 0 {
		return
	}
	pt.metrics.RowsDropped.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("reason", reason),
	))
}

// RecordMerge counts a merged variable and the current panel size
func (pt *OperationTracer) RecordMerge(ctx context.Context, report panel.MergeReport) {
	if pt == nil {
		return
	}
	pt.metrics.MergesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(report.Kind))))
	pt.metrics.PanelRows.Record(ctx, int64(report.RowsAfter))
	infrastructure.AddSpanEvent(ctx, "variable.merged", map[string]interface{}{
		"variable":   report.Variable,
		"rows_after": report.RowsAfter,
		"new_keys":   report.NewKeys,
		"matched":    report.Matched,
	})
}

// RecordWorldBank counts the requests and failed pairs of a batch
func (pt *OperationTracer) RecordWorldBank(ctx context.Context, requests, failures int) {
	if pt == nil {
		return
	}
	pt.metrics.WorldBankRequests.Add(ctx, int64(requests))
	pt.metrics.WorldBankFailures.Add(ctx, int64(failures))
}
