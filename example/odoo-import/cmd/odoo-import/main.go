package main

import (
	"context"
	_ "embed"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/fx"

	"github.com/Dryik/migration-tool/example/odoo-import/internal/app"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// embeddedConfig is the application configuration. ${VAR} placeholders are
// expanded from the environment and the .env file.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// embeddedJSL is the job definition: which models to import and from where.
//
//go:embed resources/job.yaml
var embeddedJSL []byte

// getDBProviderOptions selects the database providers named by DB_ADAPTORS
// (comma separated). All of them are registered by default.
func getDBProviderOptions() []fx.Option {
	adaptors := os.Getenv("DB_ADAPTORS")
	if adaptors == "" {
		adaptors = "postgres,mysql,sqlite"
	}

	options := make([]fx.Option, 0)
	for _, name := range strings.Split(adaptors, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if provider, ok := app.DBProviderMap[name]; ok {
			options = append(options, app.DBProviderOption(provider))
			logger.Debugf("DB Provider '%s' selected and registered.", name)
		} else {
			logger.Warnf("DB Provider '%s' is configured but not supported. Skipping.", name)
		}
	}
	return options
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Stopping the import after the current chunk...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	if err := app.RunApplication(ctx, envFilePath, embeddedConfig, embeddedJSL, getDBProviderOptions()); err != nil {
		logger.Errorf("odoo-import failed: %v", err)
		os.Exit(1)
	}
}
