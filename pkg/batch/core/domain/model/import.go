package model

import "time"

// ModelImportStatus is the outcome of one model within a multi-model import.
type ModelImportStatus string

const (
	ModelImportPending   ModelImportStatus = "pending"
	ModelImportCompleted ModelImportStatus = "completed"
	ModelImportPartial   ModelImportStatus = "partial"
	ModelImportFailed    ModelImportStatus = "failed"
	ModelImportSkipped   ModelImportStatus = "skipped"
)

// ModelImportResult is the per-model part of an ImportResult.
type ModelImportResult struct {
	Model           string            `json:"model"`
	Status          ModelImportStatus `json:"status"`
	InputRecords    int               `json:"input_records"`
	DuplicateCount  int               `json:"duplicate_count"`
	UpdateCount     int               `json:"update_count"`
	Batch           *BatchResult      `json:"batch,omitempty"`
	Error           string            `json:"error,omitempty"`
	DependencyLevel int               `json:"dependency_level"`
}

// CreatedIDs returns the ids the model's writer created.
func (r *ModelImportResult) CreatedIDs() []int64 {
	if r.Batch == nil {
		return nil
	}
	return r.Batch.CreatedIDs
}

// ImportResult aggregates a multi-model import run. Models are listed in
// execution order.
type ImportResult struct {
	RunID       string               `json:"run_id"`
	DryRun      bool                 `json:"dry_run"`
	Models      []*ModelImportResult `json:"models"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt time.Time            `json:"completed_at"`
}

// Model returns the result of one model.
func (r *ImportResult) Model(name string) (*ModelImportResult, bool) {
	for _, m := range r.Models {
		if m.Model == name {
			return m, true
		}
	}
	return nil, false
}

// TotalCreated sums created records over all models.
func (r *ImportResult) TotalCreated() int {
	n := 0
	for _, m := range r.Models {
		if m.Batch != nil {
			n += m.Batch.CreatedRecords
		}
	}
	return n
}

// TotalFailed sums failed records over all models.
func (r *ImportResult) TotalFailed() int {
	n := 0
	for _, m := range r.Models {
		if m.Batch != nil {
			n += m.Batch.FailedRecords
		}
	}
	return n
}

// Succeeded reports whether no model failed.
func (r *ImportResult) Succeeded() bool {
	for _, m := range r.Models {
		if m.Status == ModelImportFailed {
			return false
		}
	}
	return true
}
