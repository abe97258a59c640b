package metrics

import (
	"context"
	"time"

	model "github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordRunStart(ctx context.Context, modelName string) {}
func (r *NoOpMetricRecorder) RecordRunEnd(ctx context.Context, result *model.BatchResult) {}
func (r *NoOpMetricRecorder) RecordBatch(ctx context.Context, modelName string, unit *model.BatchUnit) {
}
func (r *NoOpMetricRecorder) RecordRecordsWritten(ctx context.Context, modelName, op string, count int) {
}
func (r *NoOpMetricRecorder) RecordRecordFailure(ctx context.Context, modelName, reason string) {}
func (r *NoOpMetricRecorder) RecordRetry(ctx context.Context, modelName, reason string) {}
func (r *NoOpMetricRecorder) RecordDuplicates(ctx context.Context, modelName string, matchType model.MatchType, count int) {
}
func (r *NoOpMetricRecorder) RecordCacheLookup(ctx context.Context, storeID string, hit bool) {}
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartRunSpan(ctx context.Context, modelName string, dryRun bool) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartBatchSpan(ctx context.Context, modelName string, unit *model.BatchUnit) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var _ Tracer = (*NoOpTracer)(nil)
