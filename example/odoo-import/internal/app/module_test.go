package app

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/Dryik/migration-tool/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/config/jsl"
)

func TestModule_GraphIsComplete(t *testing.T) {
	cfg := config.NewConfig()
	err := fx.ValidateApp(
		fx.Supply(
			config.EmbeddedConfig([]byte("migration: {}")),
			jsl.JSLDefinitionBytes([]byte("id: validate")),
			cfg,
		),
		DBProviderOption(sqlite.NewProvider),
		Module,
		fx.Invoke(func(*ImportRunner) {}),
	)
	require.NoError(t, err)
}

func TestDBProviderMap(t *testing.T) {
	for _, name := range []string{"postgres", "mysql", "sqlite"} {
		_, ok := DBProviderMap[name]
		require.True(t, ok, name)
	}
}
