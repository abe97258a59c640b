package cache

import (
	"context"

	"go.uber.org/fx"

	storageAdapter "github.com/Dryik/migration-tool/pkg/batch/adapter/storage"
	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/metrics"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// Params are the Fx dependencies of the cache.
type Params struct {
	fx.In
	Schema   *config.SchemaConfig
	Resolver storageAdapter.StorageConnectionResolver `optional:"true"`
	Recorder metrics.MetricRecorder                   `optional:"true"`
}

// NewFromConfig builds the cache over the storage connection named by
// schema.cache_storage. When the connection cannot be resolved the cache
// runs with the memory tier only.
func NewFromConfig(p Params) *Cache {
	var conn storageAdapter.StorageConnection
	if p.Resolver != nil && p.Schema.CacheStorageRef != "" {
		c, err := p.Resolver.ResolveStorageConnection(context.Background(), p.Schema.CacheStorageRef)
		if err != nil {
			logger.Warnf("Schema cache storage '%s' unavailable, using memory only: %v", p.Schema.CacheStorageRef, err)
		} else {
			conn = c
		}
	}
	return New(conn, p.Recorder, Options{TTL: p.Schema.CacheTTL(), Dir: p.Schema.CacheDir})
}

// Module provides the schema cache.
var Module = fx.Provide(NewFromConfig)
