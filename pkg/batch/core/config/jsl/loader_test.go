package jsl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dryik/migration-tool/pkg/batch/core/config/jsl"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
)

const validJob = `
id: partners
name: Partner import
stop-on-error: true
source-storage: sources
models:
  - model: res.partner
    source: partners.json
    depends-on: [res.partner.category]
    mapping:
      Company Name: name
    dedupe:
      key-fields: [name]
      strategy: update
      check-remote: false
    defaults:
      is_company: true
    references:
      country_id:
        search-field: code
  - model: res.partner.category
    source: categories.json
`

func TestLoadJSLDefinitionFromBytes(t *testing.T) {
	job, err := jsl.LoadJSLDefinitionFromBytes([]byte(validJob))
	require.NoError(t, err)

	assert.Equal(t, "partners", job.ID)
	assert.True(t, job.StopOnError)
	assert.False(t, job.DryRun)
	assert.Equal(t, "sources", job.SourceStorage)
	require.Len(t, job.Models, 2)

	partner := job.Models[0]
	assert.Equal(t, []string{"res.partner.category"}, partner.DependsOn)
	assert.Equal(t, "name", partner.Mapping["Company Name"])
	require.NotNil(t, partner.Dedupe)
	assert.Equal(t, "update", partner.Dedupe.Strategy)
	require.NotNil(t, partner.Dedupe.CheckRemote)
	assert.False(t, *partner.Dedupe.CheckRemote)
	assert.Nil(t, partner.Dedupe.CheckInBatch)
	assert.Equal(t, true, partner.Defaults["is_company"])
	assert.Equal(t, "code", partner.References["country_id"].SearchField)
}

func TestLoadJSLDefinitionFromBytes_Invalid(t *testing.T) {
	cases := map[string]string{
		"syntax":         "id: [",
		"missing id":     "name: x\nmodels: [{model: a}]",
		"missing name":   "id: x\nmodels: [{model: a}]",
		"no models":      "id: x\nname: y",
		"duplicate":      "id: x\nname: y\nmodels: [{model: a}, {model: a}]",
		"unknown dep":    "id: x\nname: y\nmodels: [{model: a, depends-on: [b]}]",
		"bad strategy":   "id: x\nname: y\nmodels: [{model: a, dedupe: {strategy: merge}}]",
		"empty model id": "id: x\nname: y\nmodels: [{source: a.json}]",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := jsl.LoadJSLDefinitionFromBytes([]byte(doc))
			require.Error(t, err)
			assert.Equal(t, exception.KindConfig, exception.KindOf(err))
		})
	}
}
