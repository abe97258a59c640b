package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	model "github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	metrics "github.com/Dryik/migration-tool/pkg/batch/core/metrics"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

const instrumentationName = "github.com/Dryik/migration-tool"

// OTelRecorder implements metrics.MetricRecorder with OpenTelemetry instruments.
type OTelRecorder struct {
	runs            metric.Int64Counter
	runDuration     metric.Float64Histogram
	batches         metric.Int64Counter
	batchDuration   metric.Float64Histogram
	recordsWritten  metric.Int64Counter
	recordFailures  metric.Int64Counter
	retries         metric.Int64Counter
	duplicates      metric.Int64Counter
	cacheLookups    metric.Int64Counter
	operationTiming metric.Float64Histogram
}

// NewOTelRecorder creates the instruments on a meter of provider.
func NewOTelRecorder(provider metric.MeterProvider) (*OTelRecorder, error) {
	meter := provider.Meter(instrumentationName)
	r := &OTelRecorder{}
	var err error

	if r.runs, err = meter.Int64Counter("migration.runs", metric.WithDescription("Model import runs by outcome.")); err != nil {
		return nil, err
	}
	if r.runDuration, err = meter.Float64Histogram("migration.run.duration", metric.WithUnit("s"), metric.WithDescription("Duration of model import runs.")); err != nil {
		return nil, err
	}
	if r.batches, err = meter.Int64Counter("migration.batches", metric.WithDescription("Finished chunks by status.")); err != nil {
		return nil, err
	}
	if r.batchDuration, err = meter.Float64Histogram("migration.batch.duration", metric.WithUnit("s"), metric.WithDescription("Duration of chunk writes.")); err != nil {
		return nil, err
	}
	if r.recordsWritten, err = meter.Int64Counter("migration.records.written", metric.WithDescription("Records created or updated on the remote store.")); err != nil {
		return nil, err
	}
	if r.recordFailures, err = meter.Int64Counter("migration.records.failed", metric.WithDescription("Records isolated as failed.")); err != nil {
		return nil, err
	}
	if r.retries, err = meter.Int64Counter("migration.retries", metric.WithDescription("Retried gateway calls.")); err != nil {
		return nil, err
	}
	if r.duplicates, err = meter.Int64Counter("migration.duplicates", metric.WithDescription("Duplicate verdicts by match type.")); err != nil {
		return nil, err
	}
	if r.cacheLookups, err = meter.Int64Counter("migration.schema_cache.lookups", metric.WithDescription("Schema cache lookups.")); err != nil {
		return nil, err
	}
	if r.operationTiming, err = meter.Float64Histogram("migration.operation.duration", metric.WithUnit("s"), metric.WithDescription("Duration of individual operations.")); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *OTelRecorder) RecordRunStart(ctx context.Context, modelName string) {
	logger.Debugf("Metrics: run of '%s' started.", modelName)
}

func (r *OTelRecorder) RecordRunEnd(ctx context.Context, result *model.BatchResult) {
	if result == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", result.Model),
		attribute.String("status", runOutcome(result)),
	)
	r.runs.Add(ctx, 1, attrs)
	r.runDuration.Record(ctx, result.Duration().Seconds(), attrs)
}

func (r *OTelRecorder) RecordBatch(ctx context.Context, modelName string, unit *model.BatchUnit) {
	attrs := metric.WithAttributes(
		attribute.String("model", modelName),
		attribute.String("status", unit.Status.String()),
	)
	r.batches.Add(ctx, 1, attrs)
	if d := unit.Duration(); d > 0 {
		r.batchDuration.Record(ctx, d.Seconds(), attrs)
	}
}

func (r *OTelRecorder) RecordRecordsWritten(ctx context.Context, modelName, op string, count int) {
	r.recordsWritten.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("model", modelName),
		attribute.String("op", op),
	))
}

func (r *OTelRecorder) RecordRecordFailure(ctx context.Context, modelName, reason string) {
	r.recordFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", modelName),
		attribute.String("reason", reason),
	))
}

func (r *OTelRecorder) RecordRetry(ctx context.Context, modelName, reason string) {
	r.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", modelName),
		attribute.String("reason", reason),
	))
}

func (r *OTelRecorder) RecordDuplicates(ctx context.Context, modelName string, matchType model.MatchType, count int) {
	r.duplicates.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("model", modelName),
		attribute.String("match_type", string(matchType)),
	))
}

func (r *OTelRecorder) RecordCacheLookup(ctx context.Context, storeID string, hit bool) {
	r.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", storeID),
		attribute.String("result", lookupResult(hit)),
	))
}

func (r *OTelRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(tags)+1)
	attrs = append(attrs, attribute.String("name", name))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.operationTiming.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

var _ metrics.MetricRecorder = (*OTelRecorder)(nil)
