package metrics_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/fx/fxtest"

	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	coremetrics "github.com/Dryik/migration-tool/pkg/batch/core/metrics"
	"github.com/Dryik/migration-tool/pkg/batch/infrastructure/metrics"
)

func finishedUnit(status model.BatchStatus) *model.BatchUnit {
	start := time.Now()
	end := start.Add(250 * time.Millisecond)
	return &model.BatchUnit{BatchID: 1, StartIndex: 2, EndIndex: 4, RecordCount: 2, Status: status, StartedAt: &start, CompletedAt: &end}
}

func TestPrometheusRecorder(t *testing.T) {
	r := metrics.NewPrometheusRecorder()
	ctx := context.Background()

	r.RecordRunStart(ctx, "res.partner")
	r.RecordBatch(ctx, "res.partner", finishedUnit(model.BatchStatusCompleted))
	r.RecordRecordsWritten(ctx, "res.partner", coremetrics.OpCreate, 5)
	r.RecordRecordsWritten(ctx, "res.partner", coremetrics.OpCreate, 2)
	r.RecordRecordFailure(ctx, "res.partner", "application")
	r.RecordRetry(ctx, "res.partner", "connectivity")
	r.RecordDuplicates(ctx, "res.partner", model.MatchInBatch, 3)
	r.RecordCacheLookup(ctx, "odoo@17.0", false)
	r.RecordDuration(ctx, "gateway_call", time.Millisecond, map[string]string{"method": "create", "model": "res.partner"})
	now := time.Now()
	r.RecordRunEnd(ctx, &model.BatchResult{Model: "res.partner", ProcessedRecords: 8, FailedRecords: 1, StartedAt: now.Add(-time.Second), CompletedAt: now})

	reg := r.GetRegistry()
	count, err := testutil.GatherAndCount(reg, "migration_records_written_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expected := `
# HELP migration_records_written_total Total records created or updated on the remote store.
# TYPE migration_records_written_total counter
migration_records_written_total{model="res.partner",op="create"} 7
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "migration_records_written_total"))

	expected = `
# HELP migration_run_status_total Total number of finished model import runs by outcome.
# TYPE migration_run_status_total counter
migration_run_status_total{model="res.partner",status="partial"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "migration_run_status_total"))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `migration_duplicates_total{match_type="in_batch",model="res.partner"} 3`)
	assert.Contains(t, rec.Body.String(), `migration_schema_cache_lookups_total{result="miss",store="odoo@17.0"} 1`)
}

func TestOTelRecorder(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	r, err := metrics.NewOTelRecorder(mp)
	require.NoError(t, err)
	ctx := context.Background()

	r.RecordRecordsWritten(ctx, "res.partner", coremetrics.OpCreate, 4)
	r.RecordBatch(ctx, "res.partner", finishedUnit(model.BatchStatusFailed))
	r.RecordCacheLookup(ctx, "odoo@17.0", true)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]metricdata.Metrics{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = m
	}
	require.Contains(t, names, "migration.records.written")
	require.Contains(t, names, "migration.batches")
	require.Contains(t, names, "migration.batch.duration")
	require.Contains(t, names, "migration.schema_cache.lookups")

	sum, ok := names["migration.records.written"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(4), sum.DataPoints[0].Value)
}

func TestOpenTelemetryTracer(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := metrics.NewOpenTelemetryTracer(tp)

	ctx, endRun := tracer.StartRunSpan(context.Background(), "res.partner", false)
	unit := finishedUnit(model.BatchStatusInProgress)
	batchCtx, endBatch := tracer.StartBatchSpan(ctx, "res.partner", unit)
	tracer.RecordEvent(batchCtx, "retry", map[string]interface{}{"attempt": 2, "reason": "connectivity"})
	tracer.RecordError(batchCtx, "writer", errors.New("boom"))
	unit.Status = model.BatchStatusFailed
	unit.ErrorMessage = "boom"
	endBatch()
	endRun()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	batch, run := spans[0], spans[1]
	assert.Equal(t, "batch 1", batch.Name())
	assert.Equal(t, "import res.partner", run.Name())
	assert.Equal(t, run.SpanContext().SpanID(), batch.Parent().SpanID())
	assert.Len(t, batch.Events(), 2) // retry + exception
	assert.Equal(t, "Error", batch.Status().Code.String())
}

func TestModuleConstructors(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	cfg := &config.ObservabilityConfig{Metrics: config.MetricsNone}
	rec, err := metrics.NewMetricRecorder(lc, cfg)
	require.NoError(t, err)
	assert.IsType(t, &coremetrics.NoOpMetricRecorder{}, rec)

	cfg.Metrics = config.MetricsPrometheus
	rec, err = metrics.NewMetricRecorder(lc, cfg)
	require.NoError(t, err)
	assert.IsType(t, &metrics.PrometheusRecorder{}, rec)

	tr, err := metrics.NewTracer(lc, cfg)
	require.NoError(t, err)
	assert.IsType(t, &coremetrics.NoOpTracer{}, tr)

	lc.RequireStart()
	lc.RequireStop()
}
