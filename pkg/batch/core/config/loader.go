package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"

	"go.uber.org/fx"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig      // EmbeddedConfig contains the raw bytes of the configuration file.
	EnvFilePath    string              `name:"envFilePath" optional:"true"` // EnvFilePath is the path to the .env file, if any.
	Expander       EnvironmentExpander `optional:"true"`
}

// loadConfig builds the configuration in four layers: defaults from NewConfig,
// the embedded YAML (with ${VAR} placeholders expanded), the .env file, and
// finally MIGRATION_* environment variables derived from the yaml tags.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}
	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewConfigError(moduleName, "failed to expand environment placeholders", err)
	}

	cfg := NewConfig()
	// Decoding onto the defaults keeps every key the YAML does not mention,
	// including booleans whose default is true.
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, exception.NewConfigError(moduleName, "failed to unmarshal embedded config", err)
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewConfigError(moduleName, "failed to load config from environment variables", err)
	}
	cfg.EmbeddedConfig = embeddedConfig

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads *Config, publishes it as
// GlobalConfig and applies the configured log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, params.Expander)
	if err != nil {
		return nil, err
	}

	GlobalConfig = cfg

	logger.SetLogLevel(cfg.Migration.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Migration.System.Logging.Level)
	return cfg, nil
}

// LoadConfig loads configuration from the embedded YAML, the .env file and
// environment variables.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig, nil)
}

// Validate checks value ranges, enumerations and configured exception names.
func Validate(cfg *Config) error {
	m := cfg.Migration
	var problems []string

	if m.Batch.ChunkSize <= 0 {
		problems = append(problems, fmt.Sprintf("batch.chunk_size must be positive, got %d", m.Batch.ChunkSize))
	}
	if m.Batch.Retry.MaxAttempts < 1 {
		problems = append(problems, fmt.Sprintf("batch.retry.max_attempts must be at least 1, got %d", m.Batch.Retry.MaxAttempts))
	}
	if m.Batch.Retry.InitialInterval < 0 || m.Batch.Retry.MaxInterval < 0 {
		problems = append(problems, "batch.retry intervals must not be negative")
	}
	if m.Batch.MaxFailedRecords < 0 {
		problems = append(problems, "batch.max_failed_records must not be negative")
	}
	switch m.Batch.StateStore {
	case StateStoreFile, StateStoreSQL, StateStoreMemory:
	default:
		problems = append(problems, fmt.Sprintf("batch.state_store must be one of file, sql, memory, got %q", m.Batch.StateStore))
	}
	if m.Schema.CacheTTLHours < 0 {
		problems = append(problems, "schema.cache_ttl_hours must not be negative")
	}
	if m.Dedupe.PageSize <= 0 {
		problems = append(problems, fmt.Sprintf("dedupe.page_size must be positive, got %d", m.Dedupe.PageSize))
	}
	switch strings.ToLower(m.Dedupe.Strategy) {
	case "", "skip", "update", "create":
	default:
		problems = append(problems, fmt.Sprintf("dedupe.strategy must be one of skip, update, create, got %q", m.Dedupe.Strategy))
	}
	if m.Jobs.Workers < 1 {
		problems = append(problems, fmt.Sprintf("jobs.workers must be at least 1, got %d", m.Jobs.Workers))
	}
	switch m.Observability.Metrics {
	case MetricsPrometheus, MetricsOTel, MetricsNone, "":
	default:
		problems = append(problems, fmt.Sprintf("observability.metrics must be one of prometheus, otel, none, got %q", m.Observability.Metrics))
	}
	switch m.Observability.OTLP.Protocol {
	case OTLPProtocolHTTP, OTLPProtocolGRPC, "":
	default:
		problems = append(problems, fmt.Sprintf("observability.otlp.protocol must be http or grpc, got %q", m.Observability.OTLP.Protocol))
	}
	if err := checkExceptionClasses(m.Batch.RetryableExceptions, "batch.retryable_exceptions"); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return exception.NewConfigError(moduleName, "invalid configuration", fmt.Errorf("%s", strings.Join(problems, "; ")))
	}
	return nil
}

// checkExceptionClasses validates that all exception names in the list are
// registered in the exception registry.
func checkExceptionClasses(classNames []string, configKey string) error {
	for _, name := range classNames {
		if !exception.IsErrorTypeRegistered(name) {
			return fmt.Errorf("%s references unknown exception class '%s'", configKey, name)
		}
	}
	return nil
}

// loadStructFromEnv recursively loads configuration values into a struct from
// environment variables named after the "yaml" tags, e.g.
// MIGRATION_BATCH_CHUNK_SIZE for Migration.Batch.ChunkSize.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		switch field.Kind() {
		case reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		case reflect.Map:
			if field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.Interface {
				loadNamedConnectionsFromEnv(field, envVarName+"_")
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadNamedConnectionsFromEnv overlays named connection maps such as
// migration.storage from variables like MIGRATION_STORAGE_LOCAL_BASE_DIR,
// which sets storage["local"]["base_dir"]. Connection names therefore cannot
// contain underscores when configured through the environment.
func loadNamedConnectionsFromEnv(mapField reflect.Value, prefix string) {
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(env, prefix), "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyAndField := strings.SplitN(parts[0], "_", 2)
		if len(keyAndField) != 2 || keyAndField[1] == "" {
			continue
		}
		name := strings.ToLower(keyAndField[0])
		key := strings.ToLower(keyAndField[1])

		if mapField.IsNil() {
			mapField.Set(reflect.MakeMap(mapField.Type()))
		}
		conn := map[string]interface{}{}
		if existing := mapField.MapIndex(reflect.ValueOf(name)); existing.IsValid() {
			if m, ok := existing.Interface().(map[string]interface{}); ok {
				conn = m
			}
		}
		conn[key] = parts[1]
		mapField.SetMapIndex(reflect.ValueOf(name), reflect.ValueOf(conn))
	}
}

// setField sets a scalar or string-slice field from its string form.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		items := make([]string, 0)
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
	}
	return nil
}
