package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/Dryik/migration-tool/pkg/batch/adapter/database"
)

// Module provides the ConnectionResolver over every DBProvider in the
// "db_providers" group. Dialect modules (sqlite, mysql, postgres) supply the providers.
var Module = fx.Options(
	fx.Provide(NewConnectionResolverFromParams),
	fx.Provide(func(r *ConnectionResolver) database.DBConnectionResolver { return r }),
	fx.Invoke(func(lc fx.Lifecycle, r *ConnectionResolver) {
		lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return r.CloseAll() }})
	}),
)
