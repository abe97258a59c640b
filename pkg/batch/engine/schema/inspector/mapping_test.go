package inspector_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Dryik/migration-tool/pkg/batch/engine/schema/inspector"
)

func TestFieldMappingSuggestions(t *testing.T) {
	insp := inspector.New(newGateway(), nil, nil, inspector.Options{})

	got := insp.FieldMappingSuggestions(context.Background(), "res.partner",
		[]string{"Name", "Country", "mail", "Related", "Phones", "zzz"})

	expected := []inspector.MappingSuggestion{
		{Column: "Name", Field: "name", Method: inspector.MatchExactName, Score: 1},
		{Column: "Country", Field: "country_id", Method: inspector.MatchExactLabel, Score: 1},
		{Column: "mail", Field: "email", Method: inspector.MatchPartialName, Score: 1},
		{Column: "Related", Field: "parent_id", Method: inspector.MatchPartialLabel, Score: 1},
		{Column: "zzz", Method: inspector.MatchNone},
	}
	assert.Equal(t, expected[:4], got[:4])
	assert.Equal(t, "phone", got[4].Field)
	assert.Equal(t, inspector.MatchFuzzy, got[4].Method)
	assert.GreaterOrEqual(t, got[4].Score, inspector.FuzzyThreshold)
	assert.Equal(t, expected[4], got[5])
}

func TestFieldMappingSuggestions_UnknownModel(t *testing.T) {
	insp := inspector.New(newGateway(), nil, nil, inspector.Options{})
	got := insp.FieldMappingSuggestions(context.Background(), "no.such.model", []string{"a"})
	assert.Equal(t, []inspector.MappingSuggestion{{Column: "a", Method: inspector.MatchNone}}, got)
}

func TestValidateMapping(t *testing.T) {
	insp := inspector.New(newGateway(), nil, nil, inspector.Options{})

	valid, invalid := insp.ValidateMapping(context.Background(), "res.partner", map[string]string{
		"Customer": "name",
		"Mail":     "email",
		"Created":  "create_date",
		"Tags":     "category_id",
		"Unknown":  "nope",
	})
	assert.Equal(t, []string{"name", "email"}, valid)
	assert.Equal(t, []string{"create_date", "category_id", "nope"}, invalid)
}

func TestMissingRequiredFields(t *testing.T) {
	insp := inspector.New(newGateway(), nil, nil, inspector.Options{})
	ctx := context.Background()

	missing := insp.MissingRequiredFields(ctx, "res.partner", []string{"email"})
	assert.Len(t, missing, 1)
	assert.Equal(t, "name", missing[0].Name)
	assert.Empty(t, insp.MissingRequiredFields(ctx, "res.partner", []string{"name"}))
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, inspector.Similarity("Phone_Number", "phone number"), 1e-9)
	assert.InDelta(t, 5.0/6.0, inspector.Similarity("phones", "phone"), 1e-9)
	assert.InDelta(t, 1.0, inspector.Similarity("", ""), 1e-9)
	assert.InDelta(t, 1.0, inspector.Similarity("Ünïcode", "ünïcode"), 1e-9)

	assert.GreaterOrEqual(t, inspector.Similarity("Emails", "email"), inspector.FuzzyThreshold)
	assert.Less(t, inspector.Similarity("emial", "email"), inspector.FuzzyThreshold)
}
