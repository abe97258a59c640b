package configbinder_test

import (
	"testing"
	"time"

	"github.com/Dryik/migration-tool/pkg/batch/support/util/configbinder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type connection struct {
	Type     string        `yaml:"type"`
	BaseDir  string        `yaml:"base_dir"`
	Port     int           `yaml:"port"`
	Enabled  bool          `yaml:"enabled"`
	Timeout  time.Duration `yaml:"timeout"`
	KeyNames []string      `yaml:"key_names"`
}

func TestBindProperties(t *testing.T) {
	var c connection
	err := configbinder.BindProperties(map[string]interface{}{
		"type":      "local",
		"base_dir":  "/tmp/cache",
		"port":      "5432",
		"enabled":   "true",
		"timeout":   "30s",
		"key_names": "name,phone",
	}, &c)
	require.NoError(t, err)

	assert.Equal(t, "local", c.Type)
	assert.Equal(t, "/tmp/cache", c.BaseDir)
	assert.Equal(t, 5432, c.Port)
	assert.True(t, c.Enabled)
	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.Equal(t, []string{"name", "phone"}, c.KeyNames)
}

func TestBindProperties_Empty(t *testing.T) {
	c := connection{Type: "gcs"}
	require.NoError(t, configbinder.BindProperties(nil, &c))
	assert.Equal(t, "gcs", c.Type)
}

func TestBindStringProperties_InvalidValue(t *testing.T) {
	var c connection
	err := configbinder.BindStringProperties(map[string]string{"port": "not-a-number"}, &c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection")
}
