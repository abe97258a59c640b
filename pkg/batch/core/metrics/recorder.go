// Package metrics defines the metric and tracing abstractions used by the
// writer, the identity resolver and the schema cache. Backends live in
// infrastructure/metrics.
package metrics

import (
	"context"
	"time"

	model "github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
)

// Write operations reported by RecordRecordsWritten.
const (
	OpCreate = "create"
	OpUpdate = "update"
)

// MetricRecorder is an abstract interface for recording import metrics.
//
// This facilitates integration with different metrics backends (e.g.,
// Prometheus, OpenTelemetry Metrics).
type MetricRecorder interface {
	// RecordRunStart records the start of a Process or Resume run for a model.
	RecordRunStart(ctx context.Context, modelName string)

	// RecordRunEnd records the aggregate result of a run.
	RecordRunEnd(ctx context.Context, result *model.BatchResult)

	// RecordBatch records one finished chunk, including its status and
	// duration.
	RecordBatch(ctx context.Context, modelName string, unit *model.BatchUnit)

	// RecordRecordsWritten records records created or updated on the remote
	// store. op is OpCreate or OpUpdate.
	RecordRecordsWritten(ctx context.Context, modelName, op string, count int)

	// RecordRecordFailure records one record isolated as failed.
	//
	// reason: the error kind (e.g. "application").
	RecordRecordFailure(ctx context.Context, modelName, reason string)

	// RecordRetry records one retried gateway call.
	RecordRetry(ctx context.Context, modelName, reason string)

	// RecordDuplicates records duplicate verdicts of the identity resolver.
	RecordDuplicates(ctx context.Context, modelName string, matchType model.MatchType, count int)

	// RecordCacheLookup records a schema cache lookup and whether it hit.
	RecordCacheLookup(ctx context.Context, storeID string, hit bool)

	// RecordDuration records the execution time of a specific operation.
	//
	// name: e.g. "gateway_call".
	// tags: additional attributes, e.g. `{"method": "create", "model": "res.partner"}`.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
