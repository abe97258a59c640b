package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	model "github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	metrics "github.com/Dryik/migration-tool/pkg/batch/core/metrics"
	logger "github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Run metrics
	runStartedCounter  *prometheus.CounterVec
	runStatusCounter   *prometheus.CounterVec
	runDurationSeconds *prometheus.HistogramVec
	runThroughput      *prometheus.GaugeVec

	// Batch metrics
	batchStatusCounter   *prometheus.CounterVec
	batchDurationSeconds *prometheus.HistogramVec

	// Record metrics
	recordsWrittenCounter *prometheus.CounterVec
	recordFailureCounter  *prometheus.CounterVec
	retryCounter          *prometheus.CounterVec
	duplicateCounter      *prometheus.CounterVec

	cacheLookupCounter       *prometheus.CounterVec
	operationDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder with its own registry, including
// the Go runtime and process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		runStartedCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "migration_run_started_total",
			Help: "Total number of model import runs started.",
		}, []string{"model"}),
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "migration_run_status_total",
			Help: "Total number of finished model import runs by outcome.",
		}, []string{"model", "status"}),
		runDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "migration_run_duration_seconds",
			Help:    "Duration of model import runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"model", "status"}),
		runThroughput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "migration_run_records_per_second",
			Help: "Throughput of the last finished run per model.",
		}, []string{"model"}),
		batchStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "migration_batch_status_total",
			Help: "Total number of finished chunks by status.",
		}, []string{"model", "status"}),
		batchDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "migration_batch_duration_seconds",
			Help:    "Duration of chunk writes.",
			Buckets: prometheus.DefBuckets,
		}, []string{"model", "status"}),
		recordsWrittenCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "migration_records_written_total",
			Help: "Total records created or updated on the remote store.",
		}, []string{"model", "op"}),
		recordFailureCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "migration_record_failures_total",
			Help: "Total records isolated as failed, by error kind.",
		}, []string{"model", "reason"}),
		retryCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "migration_retries_total",
			Help: "Total retried gateway calls, by error kind.",
		}, []string{"model", "reason"}),
		duplicateCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "migration_duplicates_total",
			Help: "Total duplicate verdicts by match type.",
		}, []string{"model", "match_type"}),
		cacheLookupCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "migration_schema_cache_lookups_total",
			Help: "Schema cache lookups by result.",
		}, []string{"store", "result"}),
		operationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "migration_operation_duration_seconds",
			Help:    "Duration of individual operations such as gateway calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name", "method", "model"}),
	}

	registry.MustRegister(
		r.runStartedCounter,
		r.runStatusCounter,
		r.runDurationSeconds,
		r.runThroughput,
		r.batchStatusCounter,
		r.batchDurationSeconds,
		r.recordsWrittenCounter,
		r.recordFailureCounter,
		r.retryCounter,
		r.duplicateCounter,
		r.cacheLookupCounter,
		r.operationDurationSeconds,
	)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *PrometheusRecorder) RecordRunStart(ctx context.Context, modelName string) {
	r.runStartedCounter.WithLabelValues(modelName).Inc()
	logger.Debugf("Metrics: run of '%s' started.", modelName)
}

func (r *PrometheusRecorder) RecordRunEnd(ctx context.Context, result *model.BatchResult) {
	if result == nil {
		return
	}
	status := runOutcome(result)
	r.runStatusCounter.WithLabelValues(result.Model, status).Inc()
	r.runDurationSeconds.WithLabelValues(result.Model, status).Observe(result.Duration().Seconds())
	r.runThroughput.WithLabelValues(result.Model).Set(result.RecordsPerSecond())
	logger.Debugf("Metrics: run of '%s' ended (%s). Duration: %.3fs", result.Model, status, result.Duration().Seconds())
}

func (r *PrometheusRecorder) RecordBatch(ctx context.Context, modelName string, unit *model.BatchUnit) {
	status := unit.Status.String()
	r.batchStatusCounter.WithLabelValues(modelName, status).Inc()
	if d := unit.Duration(); d > 0 {
		r.batchDurationSeconds.WithLabelValues(modelName, status).Observe(d.Seconds())
	}
}

func (r *PrometheusRecorder) RecordRecordsWritten(ctx context.Context, modelName, op string, count int) {
	r.recordsWrittenCounter.WithLabelValues(modelName, op).Add(float64(count))
}

func (r *PrometheusRecorder) RecordRecordFailure(ctx context.Context, modelName, reason string) {
	r.recordFailureCounter.WithLabelValues(modelName, reason).Inc()
}

func (r *PrometheusRecorder) RecordRetry(ctx context.Context, modelName, reason string) {
	r.retryCounter.WithLabelValues(modelName, reason).Inc()
}

func (r *PrometheusRecorder) RecordDuplicates(ctx context.Context, modelName string, matchType model.MatchType, count int) {
	r.duplicateCounter.WithLabelValues(modelName, string(matchType)).Add(float64(count))
}

func (r *PrometheusRecorder) RecordCacheLookup(ctx context.Context, storeID string, hit bool) {
	r.cacheLookupCounter.WithLabelValues(storeID, lookupResult(hit)).Inc()
}

// RecordDuration observes duration. Only the "method" and "model" tags are
// kept as labels.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDurationSeconds.WithLabelValues(name, tags["method"], tags["model"]).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)

// runOutcome labels a finished run.
func runOutcome(result *model.BatchResult) string {
	switch {
	case result.DryRun:
		return "dry_run"
	case result.Stopped:
		return "stopped"
	case result.FailedRecords > 0 || result.SkippedRecords > 0:
		return "partial"
	default:
		return "completed"
	}
}

func lookupResult(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
