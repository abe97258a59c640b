package bootstrap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dryik/migration-tool/pkg/batch/core/config/bootstrap"
	"github.com/Dryik/migration-tool/pkg/batch/core/config/jsl"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
)

const jobYAML = `
id: partners
name: Partner import
models:
  - model: res.partner
    source: partners.json
    depends-on: [res.partner.category]
  - model: res.partner.category
    source: categories.json
`

func TestNewJobDefinition(t *testing.T) {
	def, err := bootstrap.NewJobDefinition(bootstrap.NewBatchInitializer(jsl.JSLDefinitionBytes(jobYAML)))
	require.NoError(t, err)
	assert.Equal(t, "partners", def.ID)
	require.Len(t, def.Models, 2)
	assert.Equal(t, []string{"res.partner.category"}, def.Models[0].DependsOn)
}

func TestNewJobDefinition_Empty(t *testing.T) {
	_, err := bootstrap.NewJobDefinition(bootstrap.NewBatchInitializer(nil))
	require.Error(t, err)
	assert.Equal(t, exception.KindConfig, exception.KindOf(err))
}
