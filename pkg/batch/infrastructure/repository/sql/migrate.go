package sql

import (
	"context"
	gosql "database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/Dryik/migration-tool/pkg/batch/adapter/database"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// MigrationsTable tracks the applied state store migrations.
const MigrationsTable = "migration_tool_schema_migrations"

//go:embed migrations
var migrationFS embed.FS

func migrationDriver(dbType string, db *gosql.DB) (migratedb.Driver, error) {
	switch dbType {
	case "postgres":
		return postgres.WithInstance(db, &postgres.Config{MigrationsTable: MigrationsTable})
	case "mysql":
		return mysql.WithInstance(db, &mysql.Config{MigrationsTable: MigrationsTable})
	case "sqlite":
		return sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: MigrationsTable})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", dbType)
	}
}

// Migrate applies the pending state table migrations of conn's dialect.
// The migrate instance is not closed since that would close the shared pool.
func Migrate(ctx context.Context, conn database.DBConnection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sqlDB, err := conn.GetSQLDB()
	if err != nil {
		return exception.NewStateError(module, "failed to get underlying sql.DB", err)
	}

	source, err := iofs.New(migrationFS, "migrations/"+conn.Type())
	if err != nil {
		return exception.NewStateError(module, fmt.Sprintf("no migrations for database type '%s'", conn.Type()), err)
	}
	defer source.Close()

	driver, err := migrationDriver(conn.Type(), sqlDB)
	if err != nil {
		return exception.NewStateError(module, "failed to create migration driver", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, conn.Type(), driver)
	if err != nil {
		return exception.NewStateError(module, "failed to create migrate instance", err)
	}

	logger.Infof("Applying state store migrations on '%s' (%s).", conn.Name(), conn.Type())
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return exception.NewStateError(module, fmt.Sprintf("state store migration failed on '%s'", conn.Name()), err)
	}
	version, dirty, err := m.Version()
	if err == nil {
		logger.Debugf("State store schema of '%s' at version %d (dirty: %t).", conn.Name(), version, dirty)
	}
	return nil
}
