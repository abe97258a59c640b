package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/fx"

	storageAdapter "github.com/Dryik/migration-tool/pkg/batch/adapter/storage"
	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/config/jsl"
	"github.com/Dryik/migration-tool/pkg/batch/engine/dedupe"
	"github.com/Dryik/migration-tool/pkg/batch/engine/importer"
	"github.com/Dryik/migration-tool/pkg/batch/engine/job"
	"github.com/Dryik/migration-tool/pkg/batch/engine/schema/inspector"
	"github.com/Dryik/migration-tool/pkg/batch/engine/writer"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// cancelGrace bounds the wait for a cancelled job to finish its chunk.
const cancelGrace = 2 * time.Minute

// RunnerParams are the Fx dependencies of ImportRunner.
type RunnerParams struct {
	fx.In
	Definition *jsl.Job
	Manager    *job.Manager
	Inspector  *inspector.Inspector
	Storage    storageAdapter.StorageConnectionResolver `optional:"true"`
	Dedupe     *config.DedupeConfig
	Schema     *config.SchemaConfig
	Batch      *config.BatchConfig
}

// ImportRunner submits the job definition to the job manager and reports
// the outcome.
type ImportRunner struct {
	p RunnerParams
}

// NewImportRunner creates the runner.
func NewImportRunner(p RunnerParams) *ImportRunner {
	return &ImportRunner{p: p}
}

// Run imports every model of the definition and blocks until the job ends.
// Cancelling ctx asks the job to stop after the chunk in flight.
func (r *ImportRunner) Run(ctx context.Context) (job.Snapshot, error) {
	def := r.p.Definition
	if r.p.Schema.PreloadCommonModels {
		r.p.Inspector.PreloadCommonModels(ctx)
	}

	jobs := importer.FromDefinition(def, dedupe.OptionsFromConfig(r.p.Dedupe))
	r.preflight(ctx, jobs)

	opts := importer.Options{
		DryRun:      def.DryRun,
		StopOnError: def.StopOnError || r.p.Batch.StopOnError,
		OnProgress:  logProgress,
	}
	if r.p.Storage != nil && def.SourceStorage != "" {
		opts.Source = importer.NewStorageSource(r.p.Storage, def.SourceStorage, def.SourceBucket)
	}

	id, err := r.p.Manager.Submit(job.Spec{Name: def.Name, Jobs: jobs, Options: opts})
	if err != nil {
		return job.Snapshot{}, err
	}
	logger.Infof("Import job '%s' submitted (ID: %s).", def.Name, id)

	snap, err := r.p.Manager.Wait(ctx, id)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return job.Snapshot{}, err
	}

	logger.Warnf("Stopping import job '%s' (ID: %s).", def.Name, id)
	if cancelErr := r.p.Manager.Cancel(id); cancelErr != nil {
		logger.Warnf("Cancel of job %s: %v", id, cancelErr)
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), cancelGrace)
	defer cancel()
	return r.p.Manager.Wait(waitCtx, id)
}

// preflight warns about mappings onto unknown fields and required fields
// no mapping provides.
func (r *ImportRunner) preflight(ctx context.Context, jobs []importer.ModelJob) {
	for _, j := range jobs {
		if len(j.Mapping) == 0 {
			continue
		}
		valid, invalid := r.p.Inspector.ValidateMapping(ctx, j.Model, j.Mapping)
		for _, field := range invalid {
			logger.Warnf("Mapping of '%s' targets '%s', which is not importable.", j.Model, field)
		}
		for _, f := range r.p.Inspector.MissingRequiredFields(ctx, j.Model, append(valid, defaultKeys(j)...)) {
			logger.Warnf("Required field '%s' of '%s' is neither mapped nor defaulted.", f.Name, j.Model)
		}
	}
}

func defaultKeys(j importer.ModelJob) []string {
	keys := make([]string, 0, len(j.Prepare.Defaults))
	for k := range j.Prepare.Defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func logProgress(p writer.Progress) {
	logger.Infof("%s: batch %d %s (%d/%d records)", p.Model, p.BatchID, p.Status, p.ProcessedRecords, p.TotalRecords)
}

// Report logs one line per model and the job totals.
func Report(snap job.Snapshot) {
	logger.Infof("Import job '%s' (ID: %s) finished with status %s.", snap.Name, snap.ID, snap.Status)
	if snap.Error != "" {
		logger.Errorf("Import job '%s': %s", snap.Name, snap.Error)
	}
	if snap.Result == nil {
		return
	}
	for _, m := range snap.Result.Models {
		created, failed := 0, 0
		if m.Batch != nil {
			created, failed = m.Batch.CreatedRecords, m.Batch.FailedRecords
		}
		logger.Infof("  %-30s %-9s input=%d duplicates=%d created=%d failed=%d %s",
			m.Model, m.Status, m.InputRecords, m.DuplicateCount, created, failed, m.Error)
	}
	logger.Infof("Created %d records, %d failed, in %s.",
		snap.Result.TotalCreated(), snap.Result.TotalFailed(), snap.Result.CompletedAt.Sub(snap.Result.StartedAt).Round(time.Millisecond))
}
