package gorm

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/Dryik/migration-tool/pkg/batch/adapter/database"
	dbconfig "github.com/Dryik/migration-tool/pkg/batch/adapter/database/config"
	config "github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// ConnectionResolver is the GORM implementation of database.DBConnectionResolver.
type ConnectionResolver struct {
	providers map[string]database.DBProvider
	cfg       *config.Config
}

var _ database.DBConnectionResolver = (*ConnectionResolver)(nil)

// ResolverParams collects every DBProvider registered in the Fx graph.
type ResolverParams struct {
	fx.In
	Providers []database.DBProvider `group:"db_providers"`
	Cfg       *config.Config
}

// NewConnectionResolver creates a resolver over the given providers.
func NewConnectionResolver(cfg *config.Config, providers ...database.DBProvider) *ConnectionResolver {
	byType := make(map[string]database.DBProvider, len(providers))
	for _, p := range providers {
		byType[p.Type()] = p
	}
	return &ConnectionResolver{providers: byType, cfg: cfg}
}

// NewConnectionResolverFromParams is the Fx constructor of ConnectionResolver.
func NewConnectionResolverFromParams(p ResolverParams) *ConnectionResolver {
	return NewConnectionResolver(p.Cfg, p.Providers...)
}

// ResolveDBConnection returns the named connection, forcing a reconnect when
// the cached one fails a ping.
func (r *ConnectionResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	dbConfig, err := dbconfig.Lookup(r.cfg, name)
	if err != nil {
		return nil, err
	}
	provider, ok := r.providers[dbConfig.Type]
	if !ok {
		return nil, fmt.Errorf("no database provider found for type '%s' (connection '%s')", dbConfig.Type, name)
	}

	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection '%s': %w", name, err)
	}
	if err := conn.Ping(ctx); err != nil {
		logger.Warnf("Database connection '%s' failed ping, reconnecting: %v", name, err)
		conn, err = provider.ForceReconnect(name)
		if err != nil {
			return nil, fmt.Errorf("failed to reconnect database connection '%s': %w", name, err)
		}
	}
	return conn, nil
}

// ResolveGormDB resolves the named connection and returns its GORM handle.
func (r *ConnectionResolver) ResolveGormDB(ctx context.Context, name string) (*gorm.DB, error) {
	conn, err := r.ResolveDBConnection(ctx, name)
	if err != nil {
		return nil, err
	}
	return GormDB(conn)
}

// CloseAll closes every provider's connections.
func (r *ConnectionResolver) CloseAll() error {
	var result *multierror.Error
	for typ, p := range r.providers {
		if err := p.CloseAll(); err != nil {
			result = multierror.Append(result, fmt.Errorf("database provider '%s': %w", typ, err))
		}
	}
	return result.ErrorOrNil()
}
