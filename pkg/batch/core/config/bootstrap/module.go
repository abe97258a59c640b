package bootstrap

import (
	"go.uber.org/fx"
)

// Module provides the BatchInitializer and the parsed *jsl.Job, and applies
// the logging configuration.
var Module = fx.Options(
	fx.Provide(NewBatchInitializer),
	fx.Provide(NewJobDefinition),
	fx.Invoke(ApplyLoggingConfigHook),
)
