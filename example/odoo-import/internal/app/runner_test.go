package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageAdapter "github.com/Dryik/migration-tool/pkg/batch/adapter/storage"
	"github.com/Dryik/migration-tool/pkg/batch/adapter/storage/local"
	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/config/jsl"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/engine/dedupe"
	"github.com/Dryik/migration-tool/pkg/batch/engine/importer"
	"github.com/Dryik/migration-tool/pkg/batch/engine/job"
	"github.com/Dryik/migration-tool/pkg/batch/engine/reference"
	"github.com/Dryik/migration-tool/pkg/batch/engine/schema/inspector"
	"github.com/Dryik/migration-tool/pkg/batch/engine/writer"
	"github.com/Dryik/migration-tool/pkg/batch/test"
)

const partnersJSON = `[
  {"company_name": "Azure Interior", "mail": "info@azure.example"},
  {"company_name": "Deco Addict", "mail": "hello@deco.example"},
  {"company_name": "Azure Again", "mail": "INFO@AZURE.EXAMPLE"}
]`

func newRunner(t *testing.T, gw *test.FakeGateway) *ImportRunner {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partners.json"), []byte(partnersJSON), 0o644))

	cfg := config.NewConfig()
	cfg.Migration.Storage["sources"] = map[string]interface{}{"type": "local", "base_dir": dir}
	storage := storageAdapter.NewConnectionResolver(cfg, local.NewLocalProvider(cfg))

	insp := inspector.New(gw, nil, nil, inspector.Options{StoreID: "test"})
	keys := map[string][]string{"res.partner": {"email"}}
	w := writer.New(gw, nil, &config.BatchConfig{ChunkSize: 2, Retry: config.RetryConfig{MaxAttempts: 1}}, nil, nil)
	imp := importer.New(gw, insp, dedupe.NewResolver(gw, 100, keys, nil), w, reference.NewResolver(gw, nil), 1)
	manager := job.NewManager(imp, 1, 4)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})

	def := &jsl.Job{
		ID:            "partners",
		Name:          "Partners",
		SourceStorage: "sources",
		Models: []jsl.ModelStep{{
			Model:   "res.partner",
			Source:  "partners.json",
			Mapping: map[string]string{"company_name": "name", "mail": "email", "legacy": "no_such_field"},
		}},
	}
	return NewImportRunner(RunnerParams{
		Definition: def,
		Manager:    manager,
		Inspector:  insp,
		Storage:    storage,
		Dedupe:     &cfg.Migration.Dedupe,
		Schema:     &cfg.Migration.Schema,
		Batch:      &cfg.Migration.Batch,
	})
}

func TestImportRunner_Run(t *testing.T) {
	gw := test.NewFakeGateway()
	gw.AddModel(test.PartnerModel())
	gw.Seed("res.partner", model.Record{"name": "Existing", "email": "existing@example.com"})

	snap, err := newRunner(t, gw).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, snap.Status)
	require.NotNil(t, snap.Result)

	res, ok := snap.Result.Model("res.partner")
	require.True(t, ok)
	assert.Equal(t, 3, res.InputRecords)
	assert.Equal(t, 1, res.DuplicateCount)
	require.NotNil(t, res.Batch)
	assert.Equal(t, 2, res.Batch.CreatedRecords)
	assert.Len(t, gw.Records("res.partner"), 3)

	Report(snap)
}

func TestImportRunner_CancelledContext(t *testing.T) {
	gw := test.NewFakeGateway()
	gw.AddModel(test.PartnerModel())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap, err := newRunner(t, gw).Run(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Status.IsTerminal())
}
