// Package prepare turns source records into payloads the remote model
// accepts, using the model's classified schema.
package prepare

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/engine/reference"
	"github.com/Dryik/migration-tool/pkg/batch/engine/writer"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
)

const moduleName = "prepare"

// ReferenceRule overrides how one many-to-one field is resolved.
type ReferenceRule struct {
	Model       string `yaml:"model" json:"model"`
	SearchField string `yaml:"search_field" json:"search_field"`
}

// Options configures a SchemaPreparer.
type Options struct {
	// Defaults fill fields that are missing or nil.
	Defaults   map[string]interface{}
	SkipFields []string
	References map[string]ReferenceRule
}

// SchemaPreparer prepares records of one model. It implements
// writer.Preparer.
type SchemaPreparer struct {
	desc *model.ModelDescriptor
	refs *reference.Resolver
	opts Options
	skip map[string]struct{}
}

var _ writer.Preparer = (*SchemaPreparer)(nil)

// NewSchemaPreparer creates a preparer for desc. refs may be nil when the
// source already carries ids.
func NewSchemaPreparer(desc *model.ModelDescriptor, refs *reference.Resolver, opts Options) *SchemaPreparer {
	skip := make(map[string]struct{}, len(opts.SkipFields))
	for _, f := range opts.SkipFields {
		skip[f] = struct{}{}
	}
	return &SchemaPreparer{desc: desc, refs: refs, opts: opts, skip: skip}
}

// Prepare applies defaults, drops empty values and every field that is not
// importable, and resolves many-to-one values to ids. A record fails with an
// application error when a required reference cannot be resolved, or when a
// create lacks a required field.
func (p *SchemaPreparer) Prepare(ctx context.Context, modelName string, rec model.Record) (model.Record, error) {
	out := make(model.Record, len(rec))
	for k, v := range rec {
		if strings.HasPrefix(k, model.InternalPrefix) || isEmpty(v) {
			continue
		}
		out[k] = v
	}
	for k, v := range p.opts.Defaults {
		if _, ok := out[k]; !ok && !isEmpty(v) {
			out[k] = v
		}
	}

	for k := range out {
		if _, skipped := p.skip[k]; skipped {
			delete(out, k)
			continue
		}
		f, ok := p.desc.Field(k)
		if !ok || !f.Importable {
			delete(out, k)
		}
	}

	for _, f := range p.desc.RelationalFields() {
		v, ok := out[f.Name]
		if !ok {
			continue
		}
		id, found, err := p.resolve(ctx, f, v)
		if err != nil {
			return nil, err
		}
		switch {
		case found:
			out[f.Name] = id
		case f.Required:
			return nil, exception.NewApplicationError(moduleName, fmt.Sprintf("required reference %s '%v' not found", f.Name, v), nil)
		default:
			out[f.Name] = false
		}
	}

	if _, isUpdate := rec.UpdateTarget(); !isUpdate {
		var missing []string
		for _, f := range p.desc.RequiredFields() {
			if _, skipped := p.skip[f.Name]; skipped {
				continue
			}
			if v, ok := out[f.Name]; !ok || isEmpty(v) {
				missing = append(missing, f.Name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return nil, exception.NewApplicationError(moduleName, fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")), nil)
		}
	}

	return out, nil
}

func (p *SchemaPreparer) resolve(ctx context.Context, f model.FieldDescriptor, v interface{}) (int64, bool, error) {
	target := f.RelationTargetModel
	searchField := ""
	if rule, ok := p.opts.References[f.Name]; ok {
		if rule.Model != "" {
			target = rule.Model
		}
		searchField = rule.SearchField
	}
	if p.refs == nil {
		if id, ok := model.AsInt64(v); ok {
			return id, id > 0, nil
		}
		return 0, false, nil
	}
	return p.refs.Resolve(ctx, target, searchField, v)
}

// isEmpty reports values that carry nothing: nil and the empty string.
// false is meaningful for booleans and is kept.
func isEmpty(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	}
	return false
}
