package writer

import (
	"context"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
)

// Preparer turns a source record into the values written to the remote
// store. Marker keys left on the returned record are stripped before the
// gateway call. A returned error fails that record only, except
// authentication faults which abort the run.
type Preparer interface {
	Prepare(ctx context.Context, modelName string, rec model.Record) (model.Record, error)
}

// PreparerFunc adapts a function to Preparer.
type PreparerFunc func(ctx context.Context, modelName string, rec model.Record) (model.Record, error)

// Prepare calls f.
func (f PreparerFunc) Prepare(ctx context.Context, modelName string, rec model.Record) (model.Record, error) {
	return f(ctx, modelName, rec)
}

// PassThrough sends records unchanged.
var PassThrough Preparer = PreparerFunc(func(_ context.Context, _ string, rec model.Record) (model.Record, error) {
	return rec, nil
})
