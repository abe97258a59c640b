// Package mysql provides a GORM DBProvider for MySQL databases.
package mysql

import (
	"fmt"

	"go.uber.org/fx"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/Dryik/migration-tool/pkg/batch/adapter/database"
	dbconfig "github.com/Dryik/migration-tool/pkg/batch/adapter/database/config"
	gormadapter "github.com/Dryik/migration-tool/pkg/batch/adapter/database/gorm"
	"github.com/Dryik/migration-tool/pkg/batch/core/config"
)

// ProviderType is the database type handled by this package.
const ProviderType = "mysql"

func init() {
	gormadapter.RegisterDialector(ProviderType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString builds the DSN expected by gorm.io/driver/mysql:
// user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local
func ConnectionString(c dbconfig.DatabaseConfig) string {
	var authPart string
	if c.User != "" {
		authPart = c.User
		if c.Password != "" {
			authPart = fmt.Sprintf("%s:%s", c.User, c.Password)
		}
		authPart += "@"
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%stcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		authPart, c.Host, port, c.Database)
}

// NewProvider creates a DBProvider for MySQL.
func NewProvider(cfg *config.Config) database.DBProvider {
	return gormadapter.NewBaseProvider(cfg, ProviderType)
}

// Module contributes the MySQL provider to the "db_providers" group.
var Module = fx.Provide(fx.Annotate(
	NewProvider,
	fx.ResultTags(`group:"`+database.ProviderGroup+`"`),
))
