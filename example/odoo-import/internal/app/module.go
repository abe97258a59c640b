// Package app wires the odoo-import example: configuration, storage and
// database providers, the JSON-RPC gateway and the import engine.
package app

import (
	"go.uber.org/fx"

	"github.com/Dryik/migration-tool/pkg/batch/adapter/database"
	gormadapter "github.com/Dryik/migration-tool/pkg/batch/adapter/database/gorm"
	"github.com/Dryik/migration-tool/pkg/batch/adapter/database/gorm/mysql"
	"github.com/Dryik/migration-tool/pkg/batch/adapter/database/gorm/postgres"
	"github.com/Dryik/migration-tool/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/Dryik/migration-tool/pkg/batch/adapter/gateway/jsonrpc"
	storageAdapter "github.com/Dryik/migration-tool/pkg/batch/adapter/storage"
	"github.com/Dryik/migration-tool/pkg/batch/adapter/storage/gcs"
	"github.com/Dryik/migration-tool/pkg/batch/adapter/storage/local"
	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/config/bootstrap"
	"github.com/Dryik/migration-tool/pkg/batch/engine/dedupe"
	"github.com/Dryik/migration-tool/pkg/batch/engine/importer"
	"github.com/Dryik/migration-tool/pkg/batch/engine/job"
	"github.com/Dryik/migration-tool/pkg/batch/engine/schema/cache"
	"github.com/Dryik/migration-tool/pkg/batch/engine/schema/inspector"
	"github.com/Dryik/migration-tool/pkg/batch/engine/writer"
	"github.com/Dryik/migration-tool/pkg/batch/infrastructure/metrics"
	"github.com/Dryik/migration-tool/pkg/batch/infrastructure/repository"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// DBProviderMap is used by main.go to select database providers.
var DBProviderMap = map[string]func(cfg *config.Config) database.DBProvider{
	"postgres": postgres.NewProvider,
	"mysql":    mysql.NewProvider,
	"sqlite":   sqlite.NewProvider,
}

// DBProviderOption contributes a provider to the database provider group.
func DBProviderOption(provider func(cfg *config.Config) database.DBProvider) fx.Option {
	return fx.Provide(fx.Annotate(provider, fx.ResultTags(`group:"`+database.ProviderGroup+`"`)))
}

// Module bundles every component the import needs.
var Module = fx.Options(
	logger.Module,
	config.Module,
	bootstrap.Module,

	storageAdapter.Module,
	local.Module,
	gcs.Module,
	gormadapter.Module,

	repository.Module,
	metrics.Module,
	jsonrpc.Module,

	cache.Module,
	inspector.Module,
	dedupe.Module,
	writer.Module,
	importer.Module,
	job.Module,

	fx.Provide(NewImportRunner),
)
