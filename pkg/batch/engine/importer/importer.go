// Package importer runs multi-model imports: models are ordered by their
// declared dependencies, each model is discovered, deduplicated, prepared and
// written, and a failed model stops the models that depend on it.
package importer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/Dryik/migration-tool/pkg/batch/core/config/jsl"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/core/gateway"
	"github.com/Dryik/migration-tool/pkg/batch/engine/dedupe"
	"github.com/Dryik/migration-tool/pkg/batch/engine/prepare"
	"github.com/Dryik/migration-tool/pkg/batch/engine/reference"
	"github.com/Dryik/migration-tool/pkg/batch/engine/schema/inspector"
	"github.com/Dryik/migration-tool/pkg/batch/engine/writer"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

const moduleName = "importer"

// DefaultWorkers is the number of models of one level imported at once.
const DefaultWorkers = 2

// ModelJob is the import of one model.
type ModelJob struct {
	Model string
	// Records are imported as given. When nil, Source is loaded through the
	// run's RecordSource.
	Records   []model.Record
	Source    string
	Mapping   map[string]string
	DependsOn []string
	Dedupe    dedupe.Options
	Prepare   prepare.Options
	// Resume continues from the model's persisted batch state.
	Resume bool
}

// Options controls one Run.
type Options struct {
	DryRun      bool
	StopOnError bool
	OnProgress  writer.ProgressFunc
	// Source loads jobs without inline records.
	Source RecordSource
}

// FromDefinition converts a job definition into model jobs. Dedupe settings
// the definition leaves out come from defaults.
func FromDefinition(def *jsl.Job, defaults dedupe.Options) []ModelJob {
	jobs := make([]ModelJob, 0, len(def.Models))
	for _, step := range def.Models {
		d := defaults
		if o := step.Dedupe; o != nil {
			if len(o.KeyFields) > 0 {
				d.KeyFields = append([]string(nil), o.KeyFields...)
			}
			if o.Strategy != "" {
				if s, err := model.ParseDedupeStrategy(o.Strategy); err == nil {
					d.Strategy = s
				}
			}
			if o.CaseSensitive != nil {
				d.CaseSensitive = *o.CaseSensitive
			}
			if o.CheckRemote != nil {
				d.CheckRemote = *o.CheckRemote
			}
			if o.CheckInBatch != nil {
				d.CheckInBatch = *o.CheckInBatch
			}
		}

		var refs map[string]prepare.ReferenceRule
		if len(step.References) > 0 {
			refs = make(map[string]prepare.ReferenceRule, len(step.References))
			for field, r := range step.References {
				refs[field] = prepare.ReferenceRule{Model: r.Model, SearchField: r.SearchField}
			}
		}

		jobs = append(jobs, ModelJob{
			Model:     step.Model,
			Source:    step.Source,
			Mapping:   step.Mapping,
			DependsOn: step.DependsOn,
			Dedupe:    d,
			Prepare: prepare.Options{
				Defaults:   step.Defaults,
				SkipFields: step.SkipFields,
				References: refs,
			},
			Resume: step.Resume,
		})
	}
	return jobs
}

// Importer runs ModelJobs. Use Fork to run several imports concurrently with
// independent stop handling.
type Importer struct {
	gw        gateway.Gateway
	inspector *inspector.Inspector
	dedupe    *dedupe.Resolver
	writer    *writer.Writer
	refs      *reference.Resolver
	workers   int

	stopRequested atomic.Bool
	mu            sync.Mutex
	running       map[string]*writer.Writer
}

// New creates an Importer. refs may be nil, in which case many-to-one values
// must already be ids.
func New(gw gateway.Gateway, insp *inspector.Inspector, dd *dedupe.Resolver, w *writer.Writer, refs *reference.Resolver, workers int) *Importer {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Importer{
		gw:        gw,
		inspector: insp,
		dedupe:    dd,
		writer:    w,
		refs:      refs,
		workers:   workers,
		running:   make(map[string]*writer.Writer),
	}
}

// Fork returns an Importer sharing the dependencies of i with its own stop flag.
func (i *Importer) Fork() *Importer {
	return New(i.gw, i.inspector, i.dedupe, i.writer, i.refs, i.workers)
}

// RequestStop stops the models being written after their current chunk and
// skips every model that has not started. A stop requested before Run
// starts applies to that run.
func (i *Importer) RequestStop() {
	i.stopRequested.Store(true)
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, w := range i.running {
		w.RequestStop()
	}
}

// Run imports jobs level by level. Models of one level run concurrently,
// bounded by the worker count.
//
// Model failures are reported in the result. The returned error is non-nil
// only when a writer aborted (authentication, state persistence or
// cancellation); the models that did not run are then marked skipped.
func (i *Importer) Run(ctx context.Context, jobs []ModelJob, opts Options) (*model.ImportResult, error) {
	defer i.stopRequested.Store(false)
	result := &model.ImportResult{
		RunID:     uuid.New().String(),
		DryRun:    opts.DryRun,
		Models:    make([]*model.ModelImportResult, 0, len(jobs)),
		StartedAt: time.Now(),
	}

	levels := Plan(jobs)
	dependents := hasDependents(jobs)
	logger.Infof("Import run %s: %d models in %d levels (dry run: %t).", result.RunID, len(jobs), len(levels), opts.DryRun)

	var runErr error
	haltReason := ""
	for lvl, level := range levels {
		if runErr == nil && haltReason == "" && i.stopRequested.Load() {
			haltReason = "stop requested"
		}
		if runErr != nil || haltReason != "" {
			reason := haltReason
			if runErr != nil {
				reason = exception.ExtractErrorMessage(runErr)
			}
			for _, job := range level {
				result.Models = append(result.Models, skipped(job, lvl, reason))
			}
			continue
		}

		logger.Infof("Import run %s: level %d with %v.", result.RunID, lvl, modelNames(level))
		results := make([]*model.ModelImportResult, len(level))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(i.workers)
		for idx, job := range level {
			idx, job := idx, job
			g.Go(func() error {
				res, err := i.runModel(gctx, job, lvl, opts)
				results[idx] = res
				return err
			})
		}
		runErr = g.Wait()
		result.Models = append(result.Models, results...)

		for _, res := range results {
			if !dependents[res.Model] {
				continue
			}
			if res.Status == model.ModelImportFailed || res.Status == model.ModelImportPartial {
				haltReason = fmt.Sprintf("dependency '%s' finished with status %s", res.Model, res.Status)
				logger.Warnf("Import run %s: stopping after level %d, %s.", result.RunID, lvl, haltReason)
				break
			}
		}
	}

	result.CompletedAt = time.Now()
	logger.Infof("Import run %s finished: %d created, %d failed in %s.", result.RunID, result.TotalCreated(), result.TotalFailed(), result.CompletedAt.Sub(result.StartedAt))
	return result, runErr
}

func skipped(job ModelJob, level int, reason string) *model.ModelImportResult {
	return &model.ModelImportResult{
		Model:           job.Model,
		Status:          model.ModelImportSkipped,
		InputRecords:    len(job.Records),
		Error:           reason,
		DependencyLevel: level,
	}
}

func (i *Importer) runModel(ctx context.Context, job ModelJob, level int, opts Options) (*model.ModelImportResult, error) {
	res := &model.ModelImportResult{Model: job.Model, Status: model.ModelImportPending, DependencyLevel: level}
	fail := func(format string, a ...interface{}) (*model.ModelImportResult, error) {
		res.Status = model.ModelImportFailed
		res.Error = fmt.Sprintf(format, a...)
		logger.Errorf("Import of '%s' failed: %s", job.Model, res.Error)
		return res, nil
	}

	records := job.Records
	if records == nil && job.Source != "" {
		if opts.Source == nil {
			return fail("no record source configured for '%s'", job.Source)
		}
		loaded, err := opts.Source.Load(ctx, job)
		if err != nil {
			return fail("%v", err)
		}
		records = loaded
	}
	records = applyMapping(records, job.Mapping)
	res.InputRecords = len(records)

	desc, ok := i.inspector.GetModel(ctx, job.Model)
	if !ok {
		return fail("model '%s' is not available on the remote store", job.Model)
	}
	if !desc.CanCreate {
		return fail("no create permission on model '%s'", job.Model)
	}

	w := i.writer.Fork()
	dopts := job.Dedupe
	if job.Resume {
		// The writer resumes by position, so dedupe must route records as
		// the interrupted run did: records that run created are not remote
		// duplicates of themselves.
		state, found, err := w.PersistedState(ctx, job.Model)
		if err != nil {
			res.Status = model.ModelImportFailed
			res.Error = exception.ExtractErrorMessage(err)
			return res, err
		}
		if found {
			dopts.ExcludeRemoteIDs = append([]int64(nil), state.CreatedIDs...)
		}
	}
	dd, err := i.dedupe.FindDuplicates(ctx, records, job.Model, dopts)
	if err != nil {
		if exception.IsAuthentication(err) {
			res.Status = model.ModelImportFailed
			res.Error = exception.ExtractErrorMessage(err)
			return res, err
		}
		return fail("duplicate detection failed: %s", exception.ExtractErrorMessage(err))
	}
	res.DuplicateCount = len(dd.DuplicateRecords)
	res.UpdateCount = len(dd.UpdateRecords)

	if i.stopRequested.Load() {
		res.Status = model.ModelImportSkipped
		res.Error = "stop requested"
		return res, nil
	}
	i.track(job.Model, w)
	defer i.untrack(job.Model)

	prep := prepare.NewSchemaPreparer(desc, i.refs, job.Prepare)
	wopts := writer.Options{
		DryRun:         opts.DryRun,
		StopOnError:    opts.StopOnError,
		OnProgress:     opts.OnProgress,
		SourceIdentity: job.Source,
	}
	if job.Resume {
		res.Batch, err = w.Resume(ctx, dd.Writable(), job.Model, prep, wopts)
	} else {
		res.Batch, err = w.Process(ctx, dd.Writable(), job.Model, prep, wopts)
	}
	if !opts.DryRun {
		i.dedupe.Invalidate(job.Model)
	}
	if err != nil {
		res.Status = model.ModelImportFailed
		res.Error = exception.ExtractErrorMessage(err)
		return res, err
	}

	res.Status = statusOf(res.Batch)
	logger.Infof("Import of '%s' %s: %d input, %d duplicates, %d updates.", job.Model, res.Status, res.InputRecords, res.DuplicateCount, res.UpdateCount)
	return res, nil
}

func statusOf(b *model.BatchResult) model.ModelImportStatus {
	if b.FailedRecords == 0 && b.SkippedRecords == 0 && !b.Stopped {
		return model.ModelImportCompleted
	}
	if b.ProcessedRecords-b.ResumedFrom-b.FailedRecords > 0 || b.ResumedFrom > 0 {
		return model.ModelImportPartial
	}
	return model.ModelImportFailed
}

func (i *Importer) track(modelName string, w *writer.Writer) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.running[modelName] = w
	if i.stopRequested.Load() {
		w.RequestStop()
	}
}

func (i *Importer) untrack(modelName string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.running, modelName)
}

// Rollback deletes the records created by result, models in reverse
// execution order, and returns the number of records deleted per model.
// Every model is attempted; failures are aggregated.
func (i *Importer) Rollback(ctx context.Context, result *model.ImportResult) (map[string]int, error) {
	deleted := make(map[string]int)
	if result == nil || result.DryRun {
		return deleted, nil
	}

	var errs *multierror.Error
	for idx := len(result.Models) - 1; idx >= 0; idx-- {
		m := result.Models[idx]
		ids := m.CreatedIDs()
		if len(ids) == 0 {
			continue
		}
		ok, err := i.gw.Unlink(ctx, m.Model, ids)
		if err == nil && !ok {
			err = exception.NewApplicationError(moduleName, "unlink returned false", nil)
		}
		if err != nil {
			logger.Errorf("Rollback of %d '%s' records failed: %v", len(ids), m.Model, err)
			errs = multierror.Append(errs, fmt.Errorf("rollback of '%s': %w", m.Model, err))
			continue
		}
		deleted[m.Model] = len(ids)
		logger.Infof("Rolled back %d '%s' records.", len(ids), m.Model)
	}
	return deleted, errs.ErrorOrNil()
}
