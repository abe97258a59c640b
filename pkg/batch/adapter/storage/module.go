package storage

import (
	"context"

	"go.uber.org/fx"
)

// Module provides the ConnectionResolver over all registered providers and
// closes their connections on shutdown. Backend modules (local.Module,
// gcs.Module) contribute the providers.
var Module = fx.Options(
	fx.Provide(NewConnectionResolverFromParams),
	fx.Provide(func(r *ConnectionResolver) StorageConnectionResolver { return r }),
	fx.Invoke(func(lc fx.Lifecycle, r *ConnectionResolver) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return r.CloseAll()
			},
		})
	}),
)
