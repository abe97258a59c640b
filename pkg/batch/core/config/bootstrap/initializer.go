// Package bootstrap turns the embedded job definition into the parsed
// *jsl.Job the application runs, and applies startup settings.
package bootstrap

import (
	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	jsl "github.com/Dryik/migration-tool/pkg/batch/core/config/jsl"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// BatchInitializer holds the raw job definition supplied by the application.
type BatchInitializer struct {
	jslBytes jsl.JSLDefinitionBytes
}

// NewBatchInitializer creates a new instance of BatchInitializer.
func NewBatchInitializer(jslBytes jsl.JSLDefinitionBytes) *BatchInitializer {
	return &BatchInitializer{
		jslBytes: jslBytes,
	}
}

// GetJSLDefinitionBytes returns the raw job definition.
func (i *BatchInitializer) GetJSLDefinitionBytes() jsl.JSLDefinitionBytes {
	return i.jslBytes
}

// LoadJobDefinition parses and validates the job definition.
func (i *BatchInitializer) LoadJobDefinition() (*jsl.Job, error) {
	if len(i.jslBytes) == 0 {
		return nil, exception.NewConfigError("bootstrap", "no job definition supplied", nil)
	}
	logger.Infof("Loading JSL definitions.")
	return jsl.LoadJSLDefinitionFromBytes(i.jslBytes)
}

// NewJobDefinition is the Fx provider of the parsed job definition.
func NewJobDefinition(initializer *BatchInitializer) (*jsl.Job, error) {
	return initializer.LoadJobDefinition()
}

// ApplyLoggingConfigHook applies the configured log level.
func ApplyLoggingConfigHook(cfg *config.Config) {
	if cfg.Migration.System.Logging.Level != "" {
		logger.SetLogLevel(cfg.Migration.System.Logging.Level)
		logger.Debugf("Log level set to: %s", cfg.Migration.System.Logging.Level)
	}
}
