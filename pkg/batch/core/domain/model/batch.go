package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
)

// BatchStatus is the lifecycle state of one chunk.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusInProgress BatchStatus = "in_progress"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
	BatchStatusSkipped    BatchStatus = "skipped"
)

// String returns the string representation of the BatchStatus.
func (s BatchStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusSkipped:
		return true
	default:
		return false
	}
}

// BatchUnit is one contiguous chunk of the input. Only the writer changes its
// status, through Start, Complete, Fail and Skip; everybody else reads
// snapshots.
type BatchUnit struct {
	BatchID      int         `json:"batch_id"`
	StartIndex   int         `json:"start_index"`
	EndIndex     int         `json:"end_index"`
	RecordCount  int         `json:"record_count"`
	Status       BatchStatus `json:"status"`
	CreatedIDs   []int64     `json:"created_ids"`
	UpdatedIDs   []int64     `json:"updated_ids"`
	ErrorMessage string      `json:"error_message,omitempty"`
	RetryCount   int         `json:"retry_count"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// NewBatchUnit returns a pending unit covering records[start:end].
func NewBatchUnit(batchID, start, end int) *BatchUnit {
	return &BatchUnit{
		BatchID:     batchID,
		StartIndex:  start,
		EndIndex:    end,
		RecordCount: end - start,
		Status:      BatchStatusPending,
		CreatedIDs:  []int64{},
		UpdatedIDs:  []int64{},
	}
}

func (b *BatchUnit) transition(to BatchStatus, allowed ...BatchStatus) error {
	for _, from := range allowed {
		if b.Status == from {
			b.Status = to
			return nil
		}
	}
	return exception.NewBatchErrorf("model", "illegal batch transition %s -> %s for batch %d", b.Status, to, b.BatchID)
}

// Start moves a pending unit to in progress.
func (b *BatchUnit) Start(now time.Time) error {
	if err := b.transition(BatchStatusInProgress, BatchStatusPending); err != nil {
		return err
	}
	b.StartedAt = &now
	return nil
}

// Complete marks an in-progress unit completed with the ids it wrote.
func (b *BatchUnit) Complete(now time.Time, created, updated []int64) error {
	if err := b.transition(BatchStatusCompleted, BatchStatusInProgress); err != nil {
		return err
	}
	b.CreatedIDs = append(b.CreatedIDs, created...)
	b.UpdatedIDs = append(b.UpdatedIDs, updated...)
	b.CompletedAt = &now
	return nil
}

// Fail marks an in-progress unit failed. Ids written before the failure are
// kept so partial success remains visible.
func (b *BatchUnit) Fail(now time.Time, message string, created, updated []int64) error {
	if err := b.transition(BatchStatusFailed, BatchStatusInProgress); err != nil {
		return err
	}
	b.CreatedIDs = append(b.CreatedIDs, created...)
	b.UpdatedIDs = append(b.UpdatedIDs, updated...)
	b.ErrorMessage = message
	b.CompletedAt = &now
	return nil
}

// Skip marks a unit that never started as skipped.
func (b *BatchUnit) Skip() error {
	return b.transition(BatchStatusSkipped, BatchStatusPending)
}

// Duration returns the wall time of a finished unit.
func (b *BatchUnit) Duration() time.Duration {
	if b.StartedAt == nil || b.CompletedAt == nil {
		return 0
	}
	return b.CompletedAt.Sub(*b.StartedAt)
}

// IDList is a list of remote ids that persists as a JSON column.
type IDList []int64

// Value implements the `driver.Valuer` interface.
func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]int64(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface.
func (l *IDList) Scan(value interface{}) error {
	if value == nil {
		*l = IDList{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for IDList: %T", value)
	}
	if len(b) == 0 {
		*l = IDList{}
		return nil
	}
	if err := json.Unmarshal(b, (*[]int64)(l)); err != nil {
		return fmt.Errorf("failed to unmarshal IDList JSON: %w", err)
	}
	return nil
}

// BatchState is the resumable progress of one model import. It is written by
// the writer after every chunk and read once when a run resumes.
type BatchState struct {
	Model                   string    `json:"model"`
	TotalRecords            int       `json:"total_records"`
	ChunkSize               int       `json:"chunk_size"`
	LastCompletedBatchIndex int       `json:"last_completed_batch_index"`
	CreatedIDs              IDList    `json:"created_ids"`
	SourceFileIdentity      string    `json:"source_file_identity"`
	StartedAt               time.Time `json:"started_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// StateFileName returns the state object name of a model:
// "res.partner" becomes "res_partner_state.json".
func StateFileName(model string) string {
	return strings.ReplaceAll(model, ".", "_") + "_state.json"
}

// RecordError is the failure of one record, or of a whole chunk when
// RecordIndex is negative.
type RecordError struct {
	BatchID     int    `json:"batch_id"`
	RecordIndex int    `json:"record_index"`
	SourceRow   int    `json:"source_row"`
	Message     string `json:"message"`
}

// BatchResult aggregates one Process or Resume run.
type BatchResult struct {
	Model            string        `json:"model"`
	TotalRecords     int           `json:"total_records"`
	ProcessedRecords int           `json:"processed_records"`
	CreatedRecords   int           `json:"created_records"`
	UpdatedRecords   int           `json:"updated_records"`
	FailedRecords    int           `json:"failed_records"`
	SkippedRecords   int           `json:"skipped_records"`
	CreatedIDs       []int64       `json:"created_ids"`
	Batches          []*BatchUnit  `json:"batches"`
	Errors           []RecordError `json:"errors"`
	ResumedFrom      int           `json:"resumed_from"`
	DryRun           bool          `json:"dry_run"`
	Stopped          bool          `json:"stopped"`
	StartedAt        time.Time     `json:"started_at"`
	CompletedAt      time.Time     `json:"completed_at"`
}

// Duration returns the wall time of the run.
func (r *BatchResult) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// RecordsPerSecond is the throughput of the records processed by this run.
// Records already handled by a previous run (ResumedFrom) are not counted.
func (r *BatchResult) RecordsPerSecond() float64 {
	elapsed := r.Duration().Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(r.ProcessedRecords-r.ResumedFrom) / elapsed
}

// SuccessRate is the percentage of processed records that were written.
func (r *BatchResult) SuccessRate() float64 {
	if r.ProcessedRecords == 0 {
		return 0
	}
	return float64(r.CreatedRecords+r.UpdatedRecords) / float64(r.ProcessedRecords) * 100
}

// BatchesByStatus counts units per status.
func (r *BatchResult) BatchesByStatus() map[BatchStatus]int {
	counts := make(map[BatchStatus]int)
	for _, b := range r.Batches {
		counts[b.Status]++
	}
	return counts
}
