package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/engine/step/retry"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// pendingWrite is a prepared record waiting for its gateway call.
type pendingWrite struct {
	index   int
	row     int
	payload map[string]interface{}
	target  int64
}

// writeChunk prepares and writes one chunk. Creates go first as a single
// multi-create, then updates one write per record.
func (w *Writer) writeChunk(ctx context.Context, modelName string, unit *model.BatchUnit, chunk []model.Record, preparer Preparer, dryRun bool) *chunkOutcome {
	ctx, endSpan := w.tracer.StartBatchSpan(ctx, modelName, unit)
	defer endSpan()

	out := &chunkOutcome{created: []int64{}, updated: []int64{}}
	var creates, updates []pendingWrite

	for i, rec := range chunk {
		index := unit.StartIndex + i
		row := rec.SourceRow(index)

		prepared, err := preparer.Prepare(ctx, modelName, rec)
		if err != nil {
			if w.isFatal(ctx, err) {
				out.fatal = err
				return out
			}
			if !exception.IsBatchError(err) {
				err = exception.NewApplicationError(moduleName, "record preparation failed", err)
			}
			out.failures = append(out.failures, failure{index: index, row: row, err: err})
			continue
		}

		pw := pendingWrite{index: index, row: row, payload: prepared.Payload()}
		if target, ok := rec.UpdateTarget(); ok {
			pw.target = target
			updates = append(updates, pw)
		} else {
			creates = append(creates, pw)
		}
	}

	if dryRun {
		logger.Debugf("Dry run: batch %d of '%s' prepared %d creates and %d updates.", unit.BatchID, modelName, len(creates), len(updates))
		return out
	}

	if len(creates) > 0 {
		w.createAll(ctx, modelName, unit, creates, out)
		if out.fatal != nil {
			return out
		}
	}
	for _, u := range updates {
		w.update(ctx, modelName, u, out)
		if out.fatal != nil {
			return out
		}
	}
	return out
}

// createAll sends creates in one call. When the remote store rejects the
// call, the records are re-sent one at a time so only the offending ones fail.
func (w *Writer) createAll(ctx context.Context, modelName string, unit *model.BatchUnit, creates []pendingWrite, out *chunkOutcome) {
	payloads := make([]map[string]interface{}, 0, len(creates))
	for _, c := range creates {
		payloads = append(payloads, c.payload)
	}

	ids, err := w.create(ctx, modelName, payloads, out)
	switch {
	case err == nil:
		out.created = append(out.created, ids...)
	case w.isFatal(ctx, err):
		out.fatal = err
	case exception.IsApplication(err) && len(creates) > 1:
		logger.Warnf("Batch %d of '%s': create of %d records rejected, isolating records one by one: %v", unit.BatchID, modelName, len(creates), err)
		for _, c := range creates {
			ids, err := w.create(ctx, modelName, []map[string]interface{}{c.payload}, out)
			if err == nil {
				out.created = append(out.created, ids...)
				continue
			}
			if w.isFatal(ctx, err) {
				out.fatal = err
				return
			}
			out.failures = append(out.failures, failure{index: c.index, row: c.row, err: err})
		}
	default:
		for _, c := range creates {
			out.failures = append(out.failures, failure{index: c.index, row: c.row, err: err})
		}
	}
}

func (w *Writer) create(ctx context.Context, modelName string, payloads []map[string]interface{}, out *chunkOutcome) ([]int64, error) {
	var ids []int64
	err := w.call(ctx, modelName, "create", out, func(ctx context.Context) error {
		var err error
		ids, err = w.gw.CreateMany(ctx, modelName, payloads)
		return err
	})
	if err == nil && len(ids) != len(payloads) {
		err = exception.NewApplicationError(moduleName, fmt.Sprintf("create returned %d ids for %d records", len(ids), len(payloads)), nil)
	}
	return ids, err
}

func (w *Writer) update(ctx context.Context, modelName string, u pendingWrite, out *chunkOutcome) {
	var ok bool
	err := w.call(ctx, modelName, "write", out, func(ctx context.Context) error {
		var err error
		ok, err = w.gw.Write(ctx, modelName, []int64{u.target}, u.payload)
		return err
	})
	if err == nil && !ok {
		err = exception.NewApplicationError(moduleName, fmt.Sprintf("write of %s,%d was not acknowledged", modelName, u.target), nil)
	}
	switch {
	case err == nil:
		out.updated = append(out.updated, u.target)
	case w.isFatal(ctx, err):
		out.fatal = err
	default:
		out.failures = append(out.failures, failure{index: u.index, row: u.row, err: err})
	}
}

// call runs one gateway call under the retry policy and adds its retries to
// the chunk's count.
func (w *Writer) call(ctx context.Context, modelName, method string, out *chunkOutcome, fn func(ctx context.Context) error) error {
	start := time.Now()
	retries, err := w.doWithRetry(ctx, modelName, method, fn)
	out.retries += retries
	w.metrics.RecordDuration(ctx, "gateway_call", time.Since(start), map[string]string{"method": method, "model": modelName})
	return err
}

func (w *Writer) doWithRetry(ctx context.Context, modelName, method string, fn func(ctx context.Context) error) (int, error) {
	maxAttempts := w.retryPolicy.GetMaxAttempts()
	return retry.Do(ctx, w.retryPolicy, fn, func(attempt int, err error, delay time.Duration) {
		logger.Warnf("Gateway %s on '%s' failed (Attempt %d/%d). Retrying in %s: %v", method, modelName, attempt, maxAttempts, delay, err)
		w.metrics.RecordRetry(ctx, modelName, string(exception.KindOf(err)))
	})
}

// isFatal reports faults that abort the whole run.
func (w *Writer) isFatal(ctx context.Context, err error) bool {
	return exception.IsAuthentication(err) || exception.KindOf(err) == exception.KindState || ctx.Err() != nil
}
