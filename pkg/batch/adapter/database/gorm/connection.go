package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/Dryik/migration-tool/pkg/batch/adapter/database"
	dbconfig "github.com/Dryik/migration-tool/pkg/batch/adapter/database/config"
)

// Connection is a named GORM connection.
type Connection struct {
	db   *gorm.DB
	cfg  dbconfig.DatabaseConfig
	name string
}

var _ database.DBConnection = (*Connection)(nil)

// NewConnection wraps an open *gorm.DB.
func NewConnection(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string) *Connection {
	return &Connection{db: db, cfg: cfg, name: name}
}

// DB returns the GORM handle.
func (c *Connection) DB() *gorm.DB { return c.db }

func (c *Connection) Type() string { return c.cfg.Type }

func (c *Connection) Name() string { return c.name }

func (c *Connection) Config() dbconfig.DatabaseConfig { return c.cfg }

func (c *Connection) GetSQLDB() (*sql.DB, error) {
	return c.db.DB()
}

func (c *Connection) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying pool.
func (c *Connection) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB for '%s': %w", c.name, err)
	}
	return sqlDB.Close()
}

// GormDB extracts the *gorm.DB from a connection opened by this package.
func GormDB(conn database.DBConnection) (*gorm.DB, error) {
	c, ok := conn.(*Connection)
	if !ok {
		return nil, fmt.Errorf("connection '%s' is not a GORM connection (%T)", conn.Name(), conn)
	}
	return c.db, nil
}
