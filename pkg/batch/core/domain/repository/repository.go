// Package repository defines the persistence contract for resumable batch
// state.
package repository

import (
	"context"

	model "github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
)

// StateStore persists one BatchState per model. The batch writer is the only
// writer of a given model's state; two jobs for the same model must not run
// at the same time.
type StateStore interface {
	// Save fully replaces the stored state of state.Model.
	Save(ctx context.Context, state *model.BatchState) error

	// Load returns the stored state of a model. found is false when no state
	// exists; a nil error with found false is not a failure.
	Load(ctx context.Context, modelName string) (state *model.BatchState, found bool, err error)

	// Delete removes the state of one model, or of every model when
	// modelName is empty. Deleting a missing state is not an error.
	Delete(ctx context.Context, modelName string) error

	// List returns the models that currently have stored state.
	List(ctx context.Context) ([]string, error)
}
