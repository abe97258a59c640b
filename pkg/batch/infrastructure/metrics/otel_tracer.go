package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	model "github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	metrics "github.com/Dryik/migration-tool/pkg/batch/core/metrics"
)

// OpenTelemetryTracer is an implementation of metrics.Tracer using OpenTelemetry.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer named after the instrumentation scope.
func NewOpenTelemetryTracer(provider trace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: provider.Tracer(instrumentationName)}
}

// StartRunSpan starts a span for one Process or Resume run of a model.
func (t *OpenTelemetryTracer) StartRunSpan(ctx context.Context, modelName string, dryRun bool) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "import "+modelName,
		trace.WithAttributes(
			attribute.String("migration.model", modelName),
			attribute.Bool("migration.dry_run", dryRun),
		))
	return ctx, func() { span.End() }
}

// StartBatchSpan starts a child span for one chunk.
func (t *OpenTelemetryTracer) StartBatchSpan(ctx context.Context, modelName string, unit *model.BatchUnit) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("batch %d", unit.BatchID),
		trace.WithAttributes(
			attribute.String("migration.model", modelName),
			attribute.Int("migration.batch_id", unit.BatchID),
			attribute.Int("migration.start_index", unit.StartIndex),
			attribute.Int("migration.record_count", unit.RecordCount),
		))
	return ctx, func() {
		span.SetAttributes(attribute.String("migration.batch_status", unit.Status.String()))
		if unit.Status == model.BatchStatusFailed {
			span.SetStatus(codes.Error, unit.ErrorMessage)
		}
		span.End()
	}
}

// RecordError records an error in the current span.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("migration.module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent records an event in the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)

func toAttributes(values map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprint(val)))
		}
	}
	return attrs
}
