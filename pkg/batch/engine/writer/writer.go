// Package writer implements the chunked batch writer: records are split into
// fixed-size chunks that are written sequentially through the gateway, with
// per-call retry, record isolation and resumable progress persisted after
// every chunk.
package writer

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/repository"
	"github.com/Dryik/migration-tool/pkg/batch/core/gateway"
	"github.com/Dryik/migration-tool/pkg/batch/core/metrics"
	"github.com/Dryik/migration-tool/pkg/batch/engine/step/retry"
	"github.com/Dryik/migration-tool/pkg/batch/engine/step/skip"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

const moduleName = "writer"

// DefaultChunkSize is used when the configured chunk size is not positive.
const DefaultChunkSize = 500

// Progress is reported after every chunk that ran.
type Progress struct {
	Model            string
	BatchID          int
	Status           model.BatchStatus
	ProcessedRecords int
	TotalRecords     int
}

// ProgressFunc receives Progress updates. It is called on the writer's
// goroutine and must not block.
type ProgressFunc func(Progress)

// Options controls one Process or Resume run.
type Options struct {
	// DryRun prepares records without sending anything or persisting state.
	DryRun bool
	// StopOnError skips the remaining chunks after the first failed chunk.
	StopOnError bool
	OnProgress  ProgressFunc
	// SourceIdentity is stored in the batch state to tell inputs apart.
	SourceIdentity string
}

// Writer writes records of one model at a time. Use Fork to run several
// models concurrently; a single Writer must not run two imports at once.
type Writer struct {
	gw          gateway.Gateway
	store       repository.StateStore
	cfg         config.BatchConfig
	retryPolicy retry.RetryPolicy
	skipFactory *skip.DefaultSkipPolicyFactory
	metrics     metrics.MetricRecorder
	tracer      metrics.Tracer
	now         func() time.Time

	stopRequested atomic.Bool
}

// New creates a Writer. store may be nil, in which case nothing is persisted
// and Resume always starts from the beginning.
func New(gw gateway.Gateway, store repository.StateStore, cfg *config.BatchConfig, recorder metrics.MetricRecorder, tracer metrics.Tracer) *Writer {
	c := config.BatchConfig{}
	if cfg != nil {
		c = *cfg
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &Writer{
		gw:          gw,
		store:       store,
		cfg:         c,
		retryPolicy: retry.NewDefaultRetryPolicyFactory().Create(c.Retry, c.RetryableExceptions),
		skipFactory: skip.NewDefaultSkipPolicyFactory(),
		metrics:     recorder,
		tracer:      tracer,
		now:         time.Now,
	}
}

// Fork returns a new Writer sharing the dependencies of w but with its own
// stop flag.
func (w *Writer) Fork() *Writer {
	return &Writer{
		gw:          w.gw,
		store:       w.store,
		cfg:         w.cfg,
		retryPolicy: w.retryPolicy,
		skipFactory: w.skipFactory,
		metrics:     w.metrics,
		tracer:      w.tracer,
		now:         w.now,
	}
}

// ChunkSize returns the configured chunk size.
func (w *Writer) ChunkSize() int {
	return w.cfg.ChunkSize
}

// RequestStop asks the running import to stop before its next chunk. The
// chunk in flight always finishes. A stop requested before Process or
// Resume starts applies to that run; the request is cleared when the run
// returns.
func (w *Writer) RequestStop() {
	w.stopRequested.Store(true)
}

// Process writes records from the beginning, replacing any persisted state
// of modelName.
//
// The returned error is non-nil only for faults that abort the run:
// authentication, state persistence and context cancellation. Record and
// chunk failures are reported in the result.
func (w *Writer) Process(ctx context.Context, records []model.Record, modelName string, preparer Preparer, opts Options) (*model.BatchResult, error) {
	defer w.stopRequested.Store(false)
	now := w.now()
	state := &model.BatchState{
		Model:                   modelName,
		TotalRecords:            len(records),
		ChunkSize:               w.cfg.ChunkSize,
		LastCompletedBatchIndex: -1,
		CreatedIDs:              model.IDList{},
		SourceFileIdentity:      opts.SourceIdentity,
		StartedAt:               now,
		UpdatedAt:               now,
	}
	return w.run(ctx, records, 0, state, preparer, opts)
}

// Resume continues an interrupted import of modelName from the chunk after
// the last one recorded in the persisted state. Chunk ids stay absolute and
// the persisted created ids come first in the result. Without persisted
// state Resume behaves like Process.
func (w *Writer) Resume(ctx context.Context, records []model.Record, modelName string, preparer Preparer, opts Options) (*model.BatchResult, error) {
	defer w.stopRequested.Store(false)
	if w.store == nil {
		return w.Process(ctx, records, modelName, preparer, opts)
	}

	state, found, err := w.store.Load(ctx, modelName)
	if err != nil {
		return nil, exception.NewStateError(moduleName, fmt.Sprintf("failed to load batch state of '%s'", modelName), err)
	}
	if !found {
		logger.Infof("No batch state found for '%s'. Starting from the beginning.", modelName)
		return w.Process(ctx, records, modelName, preparer, opts)
	}

	if opts.SourceIdentity != "" && state.SourceFileIdentity != "" && opts.SourceIdentity != state.SourceFileIdentity {
		logger.Warnf("Resuming '%s' with source '%s' but the batch state was written for '%s'.", modelName, opts.SourceIdentity, state.SourceFileIdentity)
	}
	if state.ChunkSize <= 0 {
		state.ChunkSize = w.cfg.ChunkSize
	}
	if state.CreatedIDs == nil {
		state.CreatedIDs = model.IDList{}
	}

	resumeIndex := (state.LastCompletedBatchIndex + 1) * state.ChunkSize
	if resumeIndex >= len(records) {
		logger.Infof("Import of '%s' already complete (%d records, %d created). Nothing to resume.", modelName, len(records), len(state.CreatedIDs))
		now := w.now()
		return &model.BatchResult{
			Model:            modelName,
			TotalRecords:     len(records),
			ProcessedRecords: len(records),
			CreatedRecords:   len(state.CreatedIDs),
			CreatedIDs:       append([]int64{}, state.CreatedIDs...),
			Batches:          []*model.BatchUnit{},
			Errors:           []model.RecordError{},
			ResumedFrom:      len(records),
			DryRun:           opts.DryRun,
			StartedAt:        now,
			CompletedAt:      now,
		}, nil
	}

	logger.Infof("Resuming '%s' at record %d (batch %d, chunk size %d).", modelName, resumeIndex, state.LastCompletedBatchIndex+1, state.ChunkSize)
	state.TotalRecords = len(records)
	if opts.SourceIdentity != "" {
		state.SourceFileIdentity = opts.SourceIdentity
	}
	return w.run(ctx, records[resumeIndex:], resumeIndex, state, preparer, opts)
}

// PersistedState returns the persisted batch state of modelName. found is
// false when there is none or the writer has no state store.
func (w *Writer) PersistedState(ctx context.Context, modelName string) (state *model.BatchState, found bool, err error) {
	if w.store == nil {
		return nil, false, nil
	}
	state, found, err = w.store.Load(ctx, modelName)
	if err != nil {
		return nil, false, exception.NewStateError(moduleName, fmt.Sprintf("failed to load batch state of '%s'", modelName), err)
	}
	return state, found, nil
}

// ClearState removes the persisted state of modelName, or of every model
// when modelName is empty.
func (w *Writer) ClearState(ctx context.Context, modelName string) error {
	if w.store == nil {
		return nil
	}
	if err := w.store.Delete(ctx, modelName); err != nil {
		return exception.NewStateError(moduleName, fmt.Sprintf("failed to clear batch state of '%s'", modelName), err)
	}
	if modelName == "" {
		logger.Infof("Cleared batch state of all models.")
	} else {
		logger.Infof("Cleared batch state of '%s'.", modelName)
	}
	return nil
}

// partition splits n records starting at absolute index offset into units
// of chunkSize, numbering them from offset/chunkSize.
func partition(n, offset, chunkSize int) []*model.BatchUnit {
	units := make([]*model.BatchUnit, 0, (n+chunkSize-1)/chunkSize)
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		units = append(units, model.NewBatchUnit((offset+start)/chunkSize, offset+start, offset+end))
	}
	return units
}

// run processes records, the tail of the full input starting at absolute
// index offset, continuing state.
func (w *Writer) run(ctx context.Context, records []model.Record, offset int, state *model.BatchState, preparer Preparer, opts Options) (*model.BatchResult, error) {
	if preparer == nil {
		preparer = PassThrough
	}
	modelName := state.Model

	ctx, endSpan := w.tracer.StartRunSpan(ctx, modelName, opts.DryRun)
	defer endSpan()
	w.metrics.RecordRunStart(ctx, modelName)

	result := &model.BatchResult{
		Model:            modelName,
		TotalRecords:     state.TotalRecords,
		ProcessedRecords: offset,
		CreatedRecords:   len(state.CreatedIDs),
		CreatedIDs:       append([]int64{}, state.CreatedIDs...),
		Batches:          []*model.BatchUnit{},
		Errors:           []model.RecordError{},
		ResumedFrom:      offset,
		DryRun:           opts.DryRun,
		StartedAt:        w.now(),
	}

	units := partition(len(records), offset, state.ChunkSize)
	skips := w.skipFactory.Create(w.cfg.MaxFailedRecords, nil)
	logger.Infof("Writing %d '%s' records in %d batches of %d (dry run: %t).", len(records), modelName, len(units), state.ChunkSize, opts.DryRun)

	var runErr error
	stopReason := ""
	for _, unit := range units {
		result.Batches = append(result.Batches, unit)

		if runErr == nil && stopReason == "" {
			if w.stopRequested.Load() {
				stopReason = "stop requested"
			} else if err := ctx.Err(); err != nil {
				runErr = err
			}
		}
		if runErr != nil || stopReason != "" {
			_ = unit.Skip()
			result.SkippedRecords += unit.RecordCount
			w.metrics.RecordBatch(ctx, modelName, unit)
			continue
		}

		chunk := records[unit.StartIndex-offset : unit.EndIndex-offset]
		_ = unit.Start(w.now())
		out := w.writeChunk(ctx, modelName, unit, chunk, preparer, opts.DryRun)
		unit.RetryCount = out.retries

		if out.fatal == nil && !opts.DryRun && w.store != nil {
			state.LastCompletedBatchIndex = unit.BatchID
			state.CreatedIDs = append(state.CreatedIDs, out.created...)
			state.UpdatedAt = w.now()
			if err := w.store.Save(ctx, state); err != nil {
				out.fatal = exception.NewStateError(moduleName, fmt.Sprintf("failed to persist batch state of '%s' after batch %d", modelName, unit.BatchID), err)
			}
		}

		w.finishUnit(ctx, result, unit, out)

		if out.fatal != nil {
			runErr = out.fatal
			logger.Errorf("Import of '%s' aborted at batch %d: %v", modelName, unit.BatchID, out.fatal)
			w.tracer.RecordError(ctx, moduleName, out.fatal)
			continue
		}

		for _, f := range out.failures {
			if !skips.ShouldSkip(f.err) {
				stopReason = fmt.Sprintf("failed record limit of %d reached", skips.GetSkipLimit())
				break
			}
			skips.IncrementSkipCount()
		}
		if unit.Status == model.BatchStatusFailed && opts.StopOnError && stopReason == "" {
			stopReason = "stop on error"
		}
		if stopReason != "" {
			logger.Warnf("Stopping import of '%s' after batch %d: %s.", modelName, unit.BatchID, stopReason)
		}

		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Model:            modelName,
				BatchID:          unit.BatchID,
				Status:           unit.Status,
				ProcessedRecords: result.ProcessedRecords,
				TotalRecords:     result.TotalRecords,
			})
		}
	}

	result.Stopped = stopReason != ""
	result.CompletedAt = w.now()
	w.metrics.RecordRunEnd(ctx, result)
	logger.Infof("Import of '%s' finished: %d processed, %d created, %d updated, %d failed, %d skipped in %s.",
		modelName, result.ProcessedRecords, result.CreatedRecords, result.UpdatedRecords, result.FailedRecords, result.SkippedRecords, result.Duration())
	return result, runErr
}

// finishUnit moves unit to its terminal status and folds it into result.
func (w *Writer) finishUnit(ctx context.Context, result *model.BatchResult, unit *model.BatchUnit, out *chunkOutcome) {
	now := w.now()
	modelName := result.Model

	result.ProcessedRecords += unit.RecordCount
	result.CreatedRecords += len(out.created)
	result.UpdatedRecords += len(out.updated)
	result.CreatedIDs = append(result.CreatedIDs, out.created...)

	for _, f := range out.failures {
		result.Errors = append(result.Errors, model.RecordError{
			BatchID:     unit.BatchID,
			RecordIndex: f.index,
			SourceRow:   f.row,
			Message:     exception.ExtractErrorMessage(f.err),
		})
		w.metrics.RecordRecordFailure(ctx, modelName, string(exception.KindOf(f.err)))
	}

	switch {
	case out.fatal != nil:
		unwritten := unit.RecordCount - len(out.created) - len(out.updated)
		result.FailedRecords += unwritten
		msg := exception.ExtractErrorMessage(out.fatal)
		result.Errors = append(result.Errors, model.RecordError{BatchID: unit.BatchID, RecordIndex: -1, SourceRow: -1, Message: msg})
		_ = unit.Fail(now, msg, out.created, out.updated)
	case len(out.failures) > 0:
		result.FailedRecords += len(out.failures)
		_ = unit.Fail(now, out.message(), out.created, out.updated)
		logger.Warnf("Batch %d of '%s' failed for %d of %d records: %s", unit.BatchID, modelName, len(out.failures), unit.RecordCount, unit.ErrorMessage)
	default:
		_ = unit.Complete(now, out.created, out.updated)
		logger.Debugf("Batch %d of '%s' completed: %d created, %d updated, %d retries.", unit.BatchID, modelName, len(out.created), len(out.updated), unit.RetryCount)
	}

	if len(out.created) > 0 {
		w.metrics.RecordRecordsWritten(ctx, modelName, metrics.OpCreate, len(out.created))
	}
	if len(out.updated) > 0 {
		w.metrics.RecordRecordsWritten(ctx, modelName, metrics.OpUpdate, len(out.updated))
	}
	w.metrics.RecordBatch(ctx, modelName, unit)
}

// failure is one record that could not be written.
type failure struct {
	index int
	row   int
	err   error
}

type chunkOutcome struct {
	created  []int64
	updated  []int64
	failures []failure
	retries  int
	fatal    error
}

func (o *chunkOutcome) message() string {
	parts := make([]string, 0, len(o.failures))
	for _, f := range o.failures {
		parts = append(parts, fmt.Sprintf("row %d: %s", f.row, exception.ExtractErrorMessage(f.err)))
	}
	return strings.Join(parts, "; ")
}
