package writer

import (
	"go.uber.org/fx"

	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/repository"
	"github.com/Dryik/migration-tool/pkg/batch/core/gateway"
	"github.com/Dryik/migration-tool/pkg/batch/core/metrics"
)

// Params are the Fx dependencies of the writer.
type Params struct {
	fx.In
	Gateway  gateway.Gateway
	Store    repository.StateStore
	Batch    *config.BatchConfig
	Recorder metrics.MetricRecorder `optional:"true"`
	Tracer   metrics.Tracer         `optional:"true"`
}

// NewFromConfig is the Fx constructor of Writer.
func NewFromConfig(p Params) *Writer {
	return New(p.Gateway, p.Store, p.Batch, p.Recorder, p.Tracer)
}

// Module provides the Writer.
var Module = fx.Provide(NewFromConfig)
