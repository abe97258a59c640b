package sql

import (
	"context"
	"fmt"

	"github.com/Dryik/migration-tool/pkg/batch/adapter/database"
	gormadapter "github.com/Dryik/migration-tool/pkg/batch/adapter/database/gorm"
	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
)

// NewFromConfig resolves batch.state_db, migrates the state table and
// returns a store over it.
func NewFromConfig(ctx context.Context, resolver database.DBConnectionResolver, cfg *config.BatchConfig) (*SQLStateStore, error) {
	if resolver == nil {
		return nil, exception.NewConfigError(module, "sql state store requires a database resolver", nil)
	}
	conn, err := resolver.ResolveDBConnection(ctx, cfg.StateDBRef)
	if err != nil {
		return nil, exception.NewStateError(module, fmt.Sprintf("failed to resolve state database '%s'", cfg.StateDBRef), err)
	}
	if err := Migrate(ctx, conn); err != nil {
		return nil, err
	}
	db, err := gormadapter.GormDB(conn)
	if err != nil {
		return nil, exception.NewStateError(module, "state database is not usable", err)
	}
	return NewSQLStateStore(db), nil
}
