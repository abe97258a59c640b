// Package database defines the SQL connection abstraction used by the SQL
// state store. Concrete providers live under database/gorm.
package database

import (
	"context"
	"database/sql"

	dbconfig "github.com/Dryik/migration-tool/pkg/batch/adapter/database/config"
)

// ProviderGroup is the Fx value group collecting DBProviders.
const ProviderGroup = "db_providers"

// DBConnection represents an open, named database connection.
type DBConnection interface {
	// Type returns the database type ("sqlite", "mysql", "postgres").
	Type() string
	// Name returns the configured connection name.
	Name() string
	// Close closes the underlying pool.
	Close() error
	// Config returns the configuration the connection was opened with.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB.
	GetSQLDB() (*sql.DB, error)
	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
}

// DBProvider opens and caches connections of one database type.
type DBProvider interface {
	// GetConnection retrieves a database connection with the specified name.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the database type handled by this provider.
	Type() string
	// ForceReconnect closes and re-establishes the named connection.
	ForceReconnect(name string) (DBConnection, error)
}

// DBConnectionResolver resolves a configured connection name to a live
// connection, reconnecting when the cached one no longer answers.
type DBConnectionResolver interface {
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}
