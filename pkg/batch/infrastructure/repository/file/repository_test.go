package file_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageConfig "github.com/Dryik/migration-tool/pkg/batch/adapter/storage/config"
	"github.com/Dryik/migration-tool/pkg/batch/adapter/storage/local"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/infrastructure/repository/file"
)

func newStore(t *testing.T) *file.FileStateStore {
	t.Helper()
	conn, err := local.NewLocalAdapter(storageConfig.StorageConfig{Type: "local", BaseDir: t.TempDir()}, "state")
	require.NoError(t, err)
	return file.NewFileStateStore(conn, "", "states")
}

func state(modelName string, last int, ids ...int64) *model.BatchState {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &model.BatchState{
		Model:                   modelName,
		TotalRecords:            10,
		ChunkSize:               3,
		LastCompletedBatchIndex: last,
		CreatedIDs:              ids,
		SourceFileIdentity:      "partners.json",
		StartedAt:               now,
		UpdatedAt:               now,
	}
}

func TestFileStateStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, found, err := s.Load(ctx, "res.partner")
	require.NoError(t, err)
	assert.False(t, found)

	want := state("res.partner", 1, 11, 12, 13)
	require.NoError(t, s.Save(ctx, want))

	got, found, err := s.Load(ctx, "res.partner")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)

	require.NoError(t, s.Save(ctx, state("res.partner", 2, 11, 12, 13, 14)))
	got, _, err = s.Load(ctx, "res.partner")
	require.NoError(t, err)
	assert.Equal(t, 2, got.LastCompletedBatchIndex)
	assert.Equal(t, model.IDList{11, 12, 13, 14}, got.CreatedIDs)
}

func TestFileStateStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Save(ctx, state("res.partner", 0)))
	require.NoError(t, s.Save(ctx, state("product.template", 0)))
	require.NoError(t, s.Save(ctx, state("account.account", 0)))

	models, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"account.account", "product.template", "res.partner"}, models)

	require.NoError(t, s.Delete(ctx, "product.template"))
	require.NoError(t, s.Delete(ctx, "product.template"))
	models, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"account.account", "res.partner"}, models)

	require.NoError(t, s.Delete(ctx, ""))
	models, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, models)
}
