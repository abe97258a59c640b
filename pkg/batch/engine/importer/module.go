package importer

import (
	"go.uber.org/fx"

	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/gateway"
	"github.com/Dryik/migration-tool/pkg/batch/engine/dedupe"
	"github.com/Dryik/migration-tool/pkg/batch/engine/reference"
	"github.com/Dryik/migration-tool/pkg/batch/engine/schema/inspector"
	"github.com/Dryik/migration-tool/pkg/batch/engine/writer"
)

// Params are the Fx dependencies of the importer.
type Params struct {
	fx.In
	Gateway    gateway.Gateway
	Inspector  *inspector.Inspector
	Dedupe     *dedupe.Resolver
	Writer     *writer.Writer
	References *reference.Resolver `optional:"true"`
	Jobs       *config.JobsConfig
}

// NewFromConfig is the Fx constructor of Importer.
func NewFromConfig(p Params) *Importer {
	refs := p.References
	if refs == nil {
		refs = reference.NewResolver(p.Gateway, reference.NewCache())
	}
	return New(p.Gateway, p.Inspector, p.Dedupe, p.Writer, refs, p.Jobs.Workers)
}

// Module provides the Importer.
var Module = fx.Provide(NewFromConfig)
