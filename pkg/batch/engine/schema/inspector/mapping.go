package inspector

import (
	"context"
	"sort"
	"strings"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
)

// FuzzyThreshold is the minimum normalized similarity of a fuzzy suggestion.
const FuzzyThreshold = 0.8

// MatchMethod tells how a suggestion was found.
type MatchMethod string

const (
	MatchExactName    MatchMethod = "exact_name"
	MatchExactLabel   MatchMethod = "exact_label"
	MatchPartialName  MatchMethod = "partial_name"
	MatchPartialLabel MatchMethod = "partial_label"
	MatchFuzzy        MatchMethod = "fuzzy"
	MatchNone         MatchMethod = "none"
)

// MappingSuggestion proposes a target field for one source column. Field is
// empty when nothing matched.
type MappingSuggestion struct {
	Column string      `json:"column"`
	Field  string      `json:"field,omitempty"`
	Method MatchMethod `json:"method"`
	Score  float64     `json:"score"`
}

// FieldMappingSuggestions proposes an importable field for every column,
// trying exact name, exact label, partial name, partial label and finally
// normalized edit-distance similarity.
func (i *Inspector) FieldMappingSuggestions(ctx context.Context, modelName string, columns []string) []MappingSuggestion {
	out := make([]MappingSuggestion, 0, len(columns))
	desc, ok := i.GetModel(ctx, modelName)
	if !ok {
		for _, col := range columns {
			out = append(out, MappingSuggestion{Column: col, Method: MatchNone})
		}
		return out
	}

	fields := desc.ImportableFields()
	for _, col := range columns {
		out = append(out, suggest(col, fields))
	}
	return out
}

func suggest(column string, fields []model.FieldDescriptor) MappingSuggestion {
	col := strings.ToLower(strings.TrimSpace(column))
	s := MappingSuggestion{Column: column, Method: MatchNone}
	if col == "" {
		return s
	}

	try := func(method MatchMethod, match func(f model.FieldDescriptor) bool) bool {
		for _, f := range fields {
			if match(f) {
				s.Field, s.Method, s.Score = f.Name, method, 1.0
				return true
			}
		}
		return false
	}

	switch {
	case try(MatchExactName, func(f model.FieldDescriptor) bool { return strings.ToLower(f.Name) == col }):
	case try(MatchExactLabel, func(f model.FieldDescriptor) bool { return strings.ToLower(f.Label) == col }):
	case try(MatchPartialName, func(f model.FieldDescriptor) bool { return strings.Contains(strings.ToLower(f.Name), col) }):
	case try(MatchPartialLabel, func(f model.FieldDescriptor) bool { return strings.Contains(strings.ToLower(f.Label), col) }):
	default:
		best, bestScore := "", 0.0
		for _, f := range fields {
			score := max(similarity(col, f.Name), similarity(col, f.Label))
			if score > bestScore {
				best, bestScore = f.Name, score
			}
		}
		if bestScore >= FuzzyThreshold {
			s.Field, s.Method, s.Score = best, MatchFuzzy, bestScore
		}
	}
	return s
}

// ValidateMapping splits the target fields of mapping (source column to
// field name) into importable and not importable. Both lists follow the
// sorted order of the source columns.
func (i *Inspector) ValidateMapping(ctx context.Context, modelName string, mapping map[string]string) (valid, invalid []string) {
	columns := make([]string, 0, len(mapping))
	for col := range mapping {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	desc, ok := i.GetModel(ctx, modelName)
	for _, col := range columns {
		target := mapping[col]
		if ok {
			if f, found := desc.Field(target); found && f.Importable {
				valid = append(valid, target)
				continue
			}
		}
		invalid = append(invalid, target)
	}
	return valid, invalid
}

// MissingRequiredFields returns the required importable fields absent from mapped.
func (i *Inspector) MissingRequiredFields(ctx context.Context, modelName string, mapped []string) []model.FieldDescriptor {
	desc, ok := i.GetModel(ctx, modelName)
	if !ok {
		return nil
	}
	have := make(map[string]bool, len(mapped))
	for _, m := range mapped {
		have[m] = true
	}
	var missing []model.FieldDescriptor
	for _, f := range desc.RequiredFields() {
		if !have[f.Name] {
			missing = append(missing, f)
		}
	}
	return missing
}
