package app

import (
	"context"

	"go.uber.org/fx"

	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/config/jsl"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// RunApplication loads the configuration, starts the Fx application and runs
// the import once. It returns when the import has finished and the
// application has shut down.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, embeddedJSL jsl.JSLDefinitionBytes, dbProviderOptions []fx.Option) error {
	cfg, err := config.LoadConfig(envFilePath, embeddedConfig)
	if err != nil {
		return err
	}
	config.GlobalConfig = cfg

	var runErr error
	app := fx.New(
		fx.Supply(
			embeddedConfig,
			embeddedJSL,
			cfg,
			fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
		),
		fx.Options(dbProviderOptions...),
		Module,
		fx.Invoke(fx.Annotate(
			func(lc fx.Lifecycle, shutdowner fx.Shutdowner, runner *ImportRunner, ctx context.Context) {
				startImport(lc, shutdowner, runner, ctx, &runErr)
			},
			fx.ParamTags(``, ``, ``, `name:"appCtx"`),
		)),
	)

	app.Run()
	if err := app.Err(); err != nil {
		return err
	}
	return runErr
}

// startImport runs the import on a goroutine once the application has
// started, then requests shutdown.
func startImport(lc fx.Lifecycle, shutdowner fx.Shutdowner, runner *ImportRunner, appCtx context.Context, runErr *error) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Errorf("Panic recovered in import: %v", r)
					}
					logger.Infof("Requesting application shutdown after import completion.")
					if err := shutdowner.Shutdown(); err != nil {
						logger.Errorf("Failed to shutdown application: %v", err)
					}
				}()

				snap, err := runner.Run(appCtx)
				if err != nil {
					logger.Errorf("Import failed: %v", err)
					*runErr = err
					return
				}
				Report(snap)
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			logger.Infof("Application is shutting down.")
			return nil
		},
	})
}
