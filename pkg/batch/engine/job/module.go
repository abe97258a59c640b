package job

import (
	"context"

	"go.uber.org/fx"

	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/engine/importer"
)

// NewFromConfig creates the Manager and shuts it down with the application.
func NewFromConfig(lc fx.Lifecycle, imp *importer.Importer, cfg *config.JobsConfig) *Manager {
	m := NewManager(imp, cfg.Workers, cfg.QueueSize)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return m.Shutdown(ctx)
		},
	})
	return m
}

// Module provides the job Manager.
var Module = fx.Provide(NewFromConfig)
