package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dbconfig "github.com/Dryik/migration-tool/pkg/batch/adapter/database/config"
	"github.com/Dryik/migration-tool/pkg/batch/adapter/database/gorm/postgres"
)

func TestConnectionString(t *testing.T) {
	dsn := postgres.ConnectionString(dbconfig.DatabaseConfig{Host: "pg", Port: 5432, User: "u", Password: "p", Database: "state", Schema: "migration"})
	assert.Equal(t, "host=pg port=5432 user=u password=p dbname=state sslmode=disable search_path=migration", dsn)
}
