package dedupe

import (
	"go.uber.org/fx"

	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/core/gateway"
	"github.com/Dryik/migration-tool/pkg/batch/core/metrics"
)

// Params are the Fx dependencies of the resolver.
type Params struct {
	fx.In
	Gateway  gateway.Gateway
	Dedupe   *config.DedupeConfig
	Recorder metrics.MetricRecorder `optional:"true"`
}

// NewFromConfig is the Fx constructor of Resolver.
func NewFromConfig(p Params) *Resolver {
	return NewResolver(p.Gateway, p.Dedupe.PageSize, p.Dedupe.KeyFields, p.Recorder)
}

// OptionsFromConfig returns the configured defaults for FindDuplicates.
// Validate has already rejected unknown strategies.
func OptionsFromConfig(cfg *config.DedupeConfig) Options {
	strategy, err := model.ParseDedupeStrategy(cfg.Strategy)
	if err != nil {
		strategy = model.DedupeSkip
	}
	return Options{
		Strategy:      strategy,
		CaseSensitive: cfg.CaseSensitive,
		CheckRemote:   cfg.CheckRemote,
		CheckInBatch:  cfg.CheckInBatch,
	}
}

// Module provides the Resolver.
var Module = fx.Provide(NewFromConfig)
