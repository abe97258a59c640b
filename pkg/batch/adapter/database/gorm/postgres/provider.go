// Package postgres provides a GORM DBProvider for PostgreSQL databases.
package postgres

import (
	"fmt"

	"go.uber.org/fx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Dryik/migration-tool/pkg/batch/adapter/database"
	dbconfig "github.com/Dryik/migration-tool/pkg/batch/adapter/database/config"
	gormadapter "github.com/Dryik/migration-tool/pkg/batch/adapter/database/gorm"
	"github.com/Dryik/migration-tool/pkg/batch/core/config"
)

// ProviderType is the database type handled by this package.
const ProviderType = "postgres"

func init() {
	gormadapter.RegisterDialector(ProviderType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString builds the key/value DSN expected by gorm.io/driver/postgres.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslmode)
	if c.Schema != "" {
		dsn += " search_path=" + c.Schema
	}
	return dsn
}

// NewProvider creates a DBProvider for PostgreSQL.
func NewProvider(cfg *config.Config) database.DBProvider {
	return gormadapter.NewBaseProvider(cfg, ProviderType)
}

// Module contributes the PostgreSQL provider to the "db_providers" group.
var Module = fx.Provide(fx.Annotate(
	NewProvider,
	fx.ResultTags(`group:"`+database.ProviderGroup+`"`),
))
