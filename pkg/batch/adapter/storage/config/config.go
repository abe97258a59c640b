// Package config holds the configuration of a single storage connection.
package config

import (
	"fmt"

	coreConfig "github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/configbinder"
)

// StorageConfig holds configuration for a single storage connection.
type StorageConfig struct {
	Type            string `yaml:"type"`             // Type of storage ("local" or "gcs").
	BucketName      string `yaml:"bucket_name"`      // Default bucket name for operations.
	CredentialsFile string `yaml:"credentials_file"` // Path to a service account key for GCS.
	BaseDir         string `yaml:"base_dir"`         // Base directory for local file system operations.
	Endpoint        string `yaml:"endpoint"`         // Custom API endpoint, e.g. a GCS emulator.
	Anonymous       bool   `yaml:"anonymous"`        // Skip authentication (emulators, public buckets).
}

// Lookup decodes the named connection from migration.storage.
func Lookup(cfg *coreConfig.Config, name string) (StorageConfig, error) {
	var sc StorageConfig
	raw, ok := cfg.Migration.Storage[name]
	if !ok {
		return sc, fmt.Errorf("storage configuration for name '%s' not found", name)
	}
	props, ok := raw.(map[string]interface{})
	if !ok {
		return sc, fmt.Errorf("invalid storage configuration format for '%s': expected a mapping, got %T", name, raw)
	}
	if err := configbinder.BindProperties(props, &sc); err != nil {
		return sc, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	return sc, nil
}
