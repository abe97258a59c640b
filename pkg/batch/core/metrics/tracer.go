package metrics

import (
	"context"

	model "github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
)

// Tracer is an abstract interface for distributed tracing of import runs.
type Tracer interface {
	// StartRunSpan starts a span covering one Process or Resume run.
	//
	// Returns: a context carrying the span, and a function ending it.
	StartRunSpan(ctx context.Context, modelName string, dryRun bool) (context.Context, func())

	// StartBatchSpan starts a child span for one chunk.
	StartBatchSpan(ctx context.Context, modelName string, unit *model.BatchUnit) (context.Context, func())

	// RecordError records an error in the current span.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event in the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
