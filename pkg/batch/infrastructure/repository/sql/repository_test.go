package sql_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gormadapter "github.com/Dryik/migration-tool/pkg/batch/adapter/database/gorm"
	"github.com/Dryik/migration-tool/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	statesql "github.com/Dryik/migration-tool/pkg/batch/infrastructure/repository/sql"
)

func newStore(t *testing.T) *statesql.SQLStateStore {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Migration.Database["state"] = map[string]interface{}{
		"type":     "sqlite",
		"database": filepath.Join(t.TempDir(), "state.db"),
	}
	resolver := gormadapter.NewConnectionResolver(cfg, sqlite.NewProvider(cfg))
	t.Cleanup(func() { _ = resolver.CloseAll() })

	batch := cfg.Migration.Batch
	batch.StateDBRef = "state"
	store, err := statesql.NewFromConfig(context.Background(), resolver, &batch)
	require.NoError(t, err)

	conn, err := resolver.ResolveDBConnection(context.Background(), "state")
	require.NoError(t, err)
	require.NoError(t, statesql.Migrate(context.Background(), conn))
	return store
}

func state(modelName string, last int, ids ...int64) *model.BatchState {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	return &model.BatchState{
		Model:                   modelName,
		TotalRecords:            9,
		ChunkSize:               3,
		LastCompletedBatchIndex: last,
		CreatedIDs:              ids,
		SourceFileIdentity:      "partners.csv",
		StartedAt:               now,
		UpdatedAt:               now.Add(time.Minute),
	}
}

func TestSQLStateStore_SaveLoadUpsert(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, found, err := s.Load(ctx, "res.partner")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Save(ctx, state("res.partner", 0, 1, 2, 3)))
	require.NoError(t, s.Save(ctx, state("res.partner", 1, 1, 2, 3, 4, 5, 6)))

	got, found, err := s.Load(ctx, "res.partner")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "res.partner", got.Model)
	assert.Equal(t, 9, got.TotalRecords)
	assert.Equal(t, 3, got.ChunkSize)
	assert.Equal(t, 1, got.LastCompletedBatchIndex)
	assert.Equal(t, model.IDList{1, 2, 3, 4, 5, 6}, got.CreatedIDs)
	assert.Equal(t, "partners.csv", got.SourceFileIdentity)
	want := state("res.partner", 1)
	assert.True(t, want.StartedAt.Equal(got.StartedAt), "started_at %v", got.StartedAt)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated_at %v", got.UpdatedAt)
}

func TestSQLStateStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Save(ctx, state("res.partner", 0)))
	require.NoError(t, s.Save(ctx, state("product.template", 0)))

	models, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"product.template", "res.partner"}, models)

	require.NoError(t, s.Delete(ctx, "res.partner"))
	models, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"product.template"}, models)

	require.NoError(t, s.Delete(ctx, ""))
	models, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestNewFromConfig_UnknownDatabase(t *testing.T) {
	cfg := config.NewConfig()
	resolver := gormadapter.NewConnectionResolver(cfg, sqlite.NewProvider(cfg))
	batch := cfg.Migration.Batch
	batch.StateDBRef = "missing"
	_, err := statesql.NewFromConfig(context.Background(), resolver, &batch)
	assert.Error(t, err)
}
