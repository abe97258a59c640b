package repository_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gormadapter "github.com/Dryik/migration-tool/pkg/batch/adapter/database/gorm"
	"github.com/Dryik/migration-tool/pkg/batch/adapter/database/gorm/sqlite"
	storageAdapter "github.com/Dryik/migration-tool/pkg/batch/adapter/storage"
	"github.com/Dryik/migration-tool/pkg/batch/adapter/storage/local"
	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/infrastructure/repository"
	"github.com/Dryik/migration-tool/pkg/batch/infrastructure/repository/file"
	"github.com/Dryik/migration-tool/pkg/batch/infrastructure/repository/inmemory"
	statesql "github.com/Dryik/migration-tool/pkg/batch/infrastructure/repository/sql"
)

func TestNewStateStore_Selects(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Migration.Storage["local"] = map[string]interface{}{"type": "local", "base_dir": t.TempDir()}
	cfg.Migration.Database["state"] = map[string]interface{}{
		"type":     "sqlite",
		"database": filepath.Join(t.TempDir(), "state.db"),
	}
	storage := storageAdapter.NewConnectionResolver(cfg, local.NewLocalProvider(cfg))
	db := gormadapter.NewConnectionResolver(cfg, sqlite.NewProvider(cfg))
	t.Cleanup(func() { _ = db.CloseAll() })

	batch := cfg.Migration.Batch
	params := repository.Params{Batch: &batch, Storage: storage, Database: db}

	batch.StateStore = config.StateStoreFile
	s, err := repository.NewStateStore(params)
	require.NoError(t, err)
	assert.IsType(t, &file.FileStateStore{}, s)
	require.NoError(t, s.Save(context.Background(), &model.BatchState{Model: "res.partner"}))

	batch.StateStore = config.StateStoreSQL
	s, err = repository.NewStateStore(params)
	require.NoError(t, err)
	assert.IsType(t, &statesql.SQLStateStore{}, s)

	batch.StateStore = config.StateStoreMemory
	s, err = repository.NewStateStore(params)
	require.NoError(t, err)
	assert.IsType(t, &inmemory.InMemoryStateStore{}, s)

	batch.StateStore = "redis"
	_, err = repository.NewStateStore(params)
	assert.Error(t, err)
}

func TestNewStateStore_FileWithoutResolver(t *testing.T) {
	batch := config.NewConfig().Migration.Batch
	batch.StateStore = config.StateStoreFile
	_, err := repository.NewStateStore(repository.Params{Batch: &batch})
	assert.Error(t, err)
}
