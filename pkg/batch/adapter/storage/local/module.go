package local

import (
	"go.uber.org/fx"

	storageAdapter "github.com/Dryik/migration-tool/pkg/batch/adapter/storage"
)

// Module contributes the LocalProvider to the storage provider group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewLocalProvider,
		fx.ResultTags(`group:"`+storageAdapter.ProviderGroup+`"`),
	)),
)
