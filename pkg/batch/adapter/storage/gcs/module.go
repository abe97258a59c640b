package gcs

import (
	"go.uber.org/fx"

	storageAdapter "github.com/Dryik/migration-tool/pkg/batch/adapter/storage"
)

// Module contributes the GCS Provider to the storage provider group.
var Module = fx.Provide(fx.Annotate(
	NewProvider,
	fx.ResultTags(`group:"`+storageAdapter.ProviderGroup+`"`),
))
