// Package repository selects the batch state store named by
// batch.state_store.
package repository

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/Dryik/migration-tool/pkg/batch/adapter/database"
	storageAdapter "github.com/Dryik/migration-tool/pkg/batch/adapter/storage"
	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	domainRepository "github.com/Dryik/migration-tool/pkg/batch/core/domain/repository"
	"github.com/Dryik/migration-tool/pkg/batch/infrastructure/repository/file"
	"github.com/Dryik/migration-tool/pkg/batch/infrastructure/repository/inmemory"
	statesql "github.com/Dryik/migration-tool/pkg/batch/infrastructure/repository/sql"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// Params are the Fx dependencies of the state store.
type Params struct {
	fx.In
	Batch    *config.BatchConfig
	Storage  storageAdapter.StorageConnectionResolver `optional:"true"`
	Database database.DBConnectionResolver            `optional:"true"`
}

// NewStateStore builds the configured store.
func NewStateStore(p Params) (domainRepository.StateStore, error) {
	ctx := context.Background()
	switch p.Batch.StateStore {
	case config.StateStoreMemory:
		logger.Warnf("Batch state is kept in memory; interrupted imports cannot be resumed.")
		return inmemory.NewInMemoryStateStore(), nil
	case config.StateStoreSQL:
		return statesql.NewFromConfig(ctx, p.Database, p.Batch)
	case config.StateStoreFile, "":
		if p.Storage == nil {
			return nil, exception.NewConfigError("state_store", "file state store requires a storage resolver", nil)
		}
		conn, err := p.Storage.ResolveStorageConnection(ctx, p.Batch.StateStorageRef)
		if err != nil {
			return nil, exception.NewStateError("state_store", fmt.Sprintf("failed to resolve state storage '%s'", p.Batch.StateStorageRef), err)
		}
		logger.Infof("Batch state stored under '%s' of storage '%s'.", p.Batch.StateDir, p.Batch.StateStorageRef)
		return file.NewFileStateStore(conn, "", p.Batch.StateDir), nil
	default:
		return nil, exception.NewConfigError("state_store", fmt.Sprintf("unknown state store '%s'", p.Batch.StateStore), nil)
	}
}

// Module provides the domain StateStore.
var Module = fx.Provide(NewStateStore)
