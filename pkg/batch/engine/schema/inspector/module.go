package inspector

import (
	"go.uber.org/fx"

	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/gateway"
	"github.com/Dryik/migration-tool/pkg/batch/engine/schema/cache"
	"github.com/Dryik/migration-tool/pkg/batch/engine/schema/classifier"
)

// Params are the Fx dependencies of the inspector.
type Params struct {
	fx.In
	Gateway gateway.Gateway
	Cache   *cache.Cache `optional:"true"`
	Schema  *config.SchemaConfig
	Remote  *config.RemoteConfig
}

// StoreID derives the cache key of the remote store from its connection settings.
func StoreID(remote config.RemoteConfig) string {
	if remote.Database != "" {
		return remote.Database
	}
	return remote.URL
}

// NewFromConfig is the Fx constructor of Inspector.
func NewFromConfig(p Params) *Inspector {
	return New(p.Gateway, p.Cache, classifier.New(p.Schema.StrictUnknown), Options{
		StoreID:   StoreID(*p.Remote),
		AutoCache: p.Schema.AutoCache,
	})
}

// Module provides the Inspector.
var Module = fx.Provide(NewFromConfig)
