package config

import "go.uber.org/fx"

// NewLoggingConfigProvider extracts *LoggingConfig from *Config so components
// can depend on the logging section alone.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Migration.System.Logging
}

// NewRemoteConfigProvider extracts the remote store section.
func NewRemoteConfigProvider(cfg *Config) *RemoteConfig {
	return &cfg.Migration.Remote
}

// NewBatchConfigProvider extracts the batch writer section.
func NewBatchConfigProvider(cfg *Config) *BatchConfig {
	return &cfg.Migration.Batch
}

// NewSchemaConfigProvider extracts the schema section.
func NewSchemaConfigProvider(cfg *Config) *SchemaConfig {
	return &cfg.Migration.Schema
}

// NewDedupeConfigProvider extracts the dedupe section.
func NewDedupeConfigProvider(cfg *Config) *DedupeConfig {
	return &cfg.Migration.Dedupe
}

// NewJobsConfigProvider extracts the job manager section.
func NewJobsConfigProvider(cfg *Config) *JobsConfig {
	return &cfg.Migration.Jobs
}

// NewObservabilityConfigProvider extracts the observability section.
func NewObservabilityConfigProvider(cfg *Config) *ObservabilityConfig {
	return &cfg.Migration.Observability
}

// Module provides the configuration sections and the EnvironmentExpander.
// *Config itself is supplied by the application (see LoadConfig) or provided
// with NewConfigProvider.
var Module = fx.Options(
	fx.Provide(
		NewLoggingConfigProvider,
		NewRemoteConfigProvider,
		NewBatchConfigProvider,
		NewSchemaConfigProvider,
		NewDedupeConfigProvider,
		NewJobsConfigProvider,
		NewObservabilityConfigProvider,
	),
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
)
