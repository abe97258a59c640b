// Package config holds the configuration of a single SQL connection.
package config

import (
	"fmt"

	coreConfig "github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/configbinder"
)

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Type     string     `yaml:"type"`             // Database type ("postgres", "mysql", "sqlite").
	Host     string     `yaml:"host"`             // Database host address.
	Port     int        `yaml:"port"`             // Database port number.
	Database string     `yaml:"database"`         // Database name, or file path for SQLite.
	User     string     `yaml:"user"`             // Database user.
	Password string     `yaml:"password"`         // Database password.
	Schema   string     `yaml:"schema,omitempty"` // Schema name for PostgreSQL.
	Sslmode  string     `yaml:"sslmode"`          // SSL mode for the connection.
	LogLevel string     `yaml:"log_level"`        // GORM log level (SILENT, ERROR, WARN, INFO).
	Pool     PoolConfig `yaml:"pool"`             // Connection pool settings.
}

// Lookup decodes the named connection from migration.database.
func Lookup(cfg *coreConfig.Config, name string) (DatabaseConfig, error) {
	var dc DatabaseConfig
	raw, ok := cfg.Migration.Database[name]
	if !ok {
		return dc, fmt.Errorf("database configuration '%s' not found", name)
	}
	props, ok := raw.(map[string]interface{})
	if !ok {
		return dc, fmt.Errorf("invalid database configuration format for '%s': expected a mapping, got %T", name, raw)
	}
	if err := configbinder.BindProperties(props, &dc); err != nil {
		return dc, fmt.Errorf("failed to decode database config for '%s': %w", name, err)
	}
	if dc.Pool.MaxOpenConns == 0 {
		dc.Pool.MaxOpenConns = 5
	}
	if dc.Pool.MaxIdleConns == 0 {
		dc.Pool.MaxIdleConns = 2
	}
	return dc, nil
}
