// Package config provides the configuration structures of the migration tool
// and the loader that fills them from defaults, embedded YAML, a .env file and
// environment variables.
package config

import (
	"time"
)

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelTrace  LogLevel = "TRACE"
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// State store kinds.
const (
	StateStoreFile   = "file"
	StateStoreSQL    = "sql"
	StateStoreMemory = "memory"
)

// Metrics backends.
const (
	MetricsPrometheus = "prometheus"
	MetricsOTel       = "otel"
	MetricsNone       = "none"
)

// OTLP protocols.
const (
	OTLPProtocolHTTP = "http"
	OTLPProtocolGRPC = "grpc"
)

// RemoteConfig describes the remote store and how to talk to it.
type RemoteConfig struct {
	URL            string  `yaml:"url"`             // Base URL of the remote store, e.g. https://erp.example.com.
	Database       string  `yaml:"database"`        // Database name on the remote store.
	Username       string  `yaml:"username"`        // Login.
	Password       string  `yaml:"password"`        // Password or API key.
	TimeoutSeconds int     `yaml:"timeout_seconds"` // Per-request timeout.
	RateLimit      float64 `yaml:"rate_limit"`      // Requests per second; 0 disables limiting.
	RateBurst      int     `yaml:"rate_burst"`      // Burst size of the rate limiter.
}

// Timeout returns the per-request timeout.
func (c RemoteConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryConfig holds the retry budget of one gateway call. Intervals are in
// milliseconds.
type RetryConfig struct {
	MaxAttempts     int     `yaml:"max_attempts"`
	InitialInterval int     `yaml:"initial_interval"`
	MaxInterval     int     `yaml:"max_interval"` // 0 means uncapped.
	Factor          float64 `yaml:"factor"`
}

// BatchConfig configures the chunked batch writer.
type BatchConfig struct {
	ChunkSize           int         `yaml:"chunk_size"`
	StateStore          string      `yaml:"state_store"`   // file, sql or memory.
	StateDir            string      `yaml:"state_dir"`     // Prefix of state objects within the state storage.
	StateStorageRef     string      `yaml:"state_storage"` // Named storage connection used by the file state store.
	StateDBRef          string      `yaml:"state_db"`      // Named database connection used by the sql state store.
	StopOnError         bool        `yaml:"stop_on_error"`
	MaxFailedRecords    int         `yaml:"max_failed_records"` // 0 means unlimited.
	Retry               RetryConfig `yaml:"retry"`
	RetryableExceptions []string    `yaml:"retryable_exceptions"`
}

// SchemaConfig configures discovery and the schema descriptor cache.
type SchemaConfig struct {
	CacheStorageRef     string `yaml:"cache_storage"` // Named storage connection of the persisted cache tier; empty disables it.
	CacheDir            string `yaml:"cache_dir"`     // Prefix of cache objects within the cache storage.
	CacheTTLHours       int    `yaml:"cache_ttl_hours"`
	StrictUnknown       bool   `yaml:"strict_unknown"`
	AutoCache           bool   `yaml:"auto_cache"`
	PreloadCommonModels bool   `yaml:"preload_common_models"`
}

// CacheTTL returns the cache entry lifetime; zero means entries never expire.
func (c SchemaConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// DedupeConfig configures the identity resolver.
type DedupeConfig struct {
	PageSize      int                 `yaml:"page_size"`
	CaseSensitive bool                `yaml:"case_sensitive"`
	CheckRemote   bool                `yaml:"check_remote"`
	CheckInBatch  bool                `yaml:"check_in_batch"`
	Strategy      string              `yaml:"strategy"`
	KeyFields     map[string][]string `yaml:"key_fields"` // Per-model key overrides.
}

// JobsConfig sizes the job manager.
type JobsConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG", "TRACE").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// MaskedParameterKeys lists keys whose values are masked when configuration
	// or job parameters are logged.
	MaskedParameterKeys []string `yaml:"masked_parameter_keys"`
}

// OTLPConfig configures the OTLP exporters.
type OTLPConfig struct {
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // http or grpc.
	Insecure bool   `yaml:"insecure"`
}

// ObservabilityConfig selects the metrics backend and tracing.
type ObservabilityConfig struct {
	Metrics        string     `yaml:"metrics"` // prometheus, otel or none.
	TracingEnabled bool       `yaml:"tracing_enabled"`
	ServiceName    string     `yaml:"service_name"`
	MetricsAddr    string     `yaml:"metrics_addr"` // Listen address of the Prometheus /metrics endpoint; empty disables it.
	OTLP           OTLPConfig `yaml:"otlp"`
}

// MigrationConfig holds all configuration under the "migration" top-level key.
type MigrationConfig struct {
	Remote        RemoteConfig        `yaml:"remote"`
	Batch         BatchConfig         `yaml:"batch"`
	Schema        SchemaConfig        `yaml:"schema"`
	Dedupe        DedupeConfig        `yaml:"dedupe"`
	Jobs          JobsConfig          `yaml:"jobs"`
	System        SystemConfig        `yaml:"system"`
	Security      SecurityConfig      `yaml:"security"`
	Observability ObservabilityConfig `yaml:"observability"`
	// Storage holds named storage connections, decoded per connection by the
	// storage providers.
	Storage map[string]interface{} `yaml:"storage"`
	// Database holds named SQL connections, decoded per connection by the
	// gorm provider.
	Database map[string]interface{} `yaml:"database"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Migration MigrationConfig `yaml:"migration"`
	// EmbeddedConfig holds the raw embedded YAML, not loaded from YAML itself.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// GlobalConfig is the configuration instance shared across the application.
// It is set by NewConfigProvider.
var GlobalConfig *Config

// GetMaskedParameterKeys returns the keys to mask in logs.
func GetMaskedParameterKeys() []string {
	if GlobalConfig == nil {
		return []string{"password"}
	}
	return GlobalConfig.Migration.Security.MaskedParameterKeys
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Migration: MigrationConfig{
			Remote: RemoteConfig{
				TimeoutSeconds: 120,
				RateLimit:      0,
				RateBurst:      1,
			},
			Batch: BatchConfig{
				ChunkSize:       500,
				StateStore:      StateStoreFile,
				StateDir:        "batch_state",
				StateStorageRef: "local",
				StateDBRef:      "state",
				Retry: RetryConfig{
					MaxAttempts:     3,
					InitialInterval: 2000,
					MaxInterval:     60000,
					Factor:          2.0,
				},
				RetryableExceptions: []string{
					"context.DeadlineExceeded",
				},
			},
			Schema: SchemaConfig{
				CacheStorageRef: "local",
				CacheDir:        "schema_cache",
				CacheTTLHours:   24,
				AutoCache:       true,
			},
			Dedupe: DedupeConfig{
				PageSize:     5000,
				CheckRemote:  true,
				CheckInBatch: true,
				Strategy:     "skip",
			},
			Jobs: JobsConfig{
				Workers:   2,
				QueueSize: 100,
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Security: SecurityConfig{
				MaskedParameterKeys: []string{"password", "api_key", "secret"},
			},
			Observability: ObservabilityConfig{
				Metrics:     MetricsNone,
				ServiceName: "migration-tool",
				OTLP: OTLPConfig{
					Endpoint: "localhost:4318",
					Protocol: OTLPProtocolHTTP,
				},
			},
			Storage:  map[string]interface{}{},
			Database: map[string]interface{}{},
		},
	}
}
