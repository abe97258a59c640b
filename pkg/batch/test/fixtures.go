package test

import (
	"fmt"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/core/gateway"
)

// PartnerModel returns a res.partner definition with a representative mix of
// importable, relational, computed, system and custom fields.
func PartnerModel() FakeModel {
	return FakeModel{
		Name:  "res.partner",
		Label: "Contact",
		Fields: map[string]gateway.RawField{
			"id":            {"type": "integer", "string": "ID", "readonly": true, "store": true},
			"create_date":   {"type": "datetime", "string": "Created on", "readonly": true, "store": true},
			"display_name":  {"type": "char", "string": "Display Name", "readonly": true, "store": false, "compute": "_compute_display_name"},
			"name":          {"type": "char", "string": "Name", "required": true, "store": true},
			"email":         {"type": "char", "string": "Email", "store": true},
			"phone":         {"type": "char", "string": "Phone", "store": true},
			"is_company":    {"type": "boolean", "string": "Is a Company", "store": true},
			"parent_id":     {"type": "many2one", "string": "Related Company", "relation": "res.partner", "store": true},
			"country_id":    {"type": "many2one", "string": "Country", "relation": "res.country", "store": true},
			"category_id":   {"type": "many2many", "string": "Tags", "relation": "res.partner.category", "store": true},
			"child_ids":     {"type": "one2many", "string": "Contact", "relation": "res.partner", "relation_field": "parent_id", "store": true},
			"company_type":  {"type": "selection", "string": "Company Type", "store": false, "compute": "_compute_company_type", "inverse": "_write_company_type", "selection": []interface{}{[]interface{}{"person", "Individual"}, []interface{}{"company", "Company"}}},
			"x_legacy_code": {"type": "char", "string": "Legacy Code", "store": true},
		},
		Manual: []string{"x_legacy_code"},
	}
}

// CountryModel returns a minimal res.country definition.
func CountryModel() FakeModel {
	return FakeModel{
		Name:  "res.country",
		Label: "Country",
		Fields: map[string]gateway.RawField{
			"name": {"type": "char", "string": "Country Name", "required": true, "store": true},
			"code": {"type": "char", "string": "Country Code", "store": true},
		},
		Denied: []gateway.Operation{gateway.OperationCreate, gateway.OperationUnlink},
	}
}

// Partners returns n partner records named "Partner 1".."Partner n" with
// distinct phones and a __source_row__ marker.
func Partners(n int) []model.Record {
	out := make([]model.Record, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, model.Record{
			"name":                fmt.Sprintf("Partner %d", i),
			"phone":               fmt.Sprintf("+1-555-%04d", i),
			model.MarkerSourceRow: i - 1,
		})
	}
	return out
}
