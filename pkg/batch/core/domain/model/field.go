package model

import (
	"sort"
)

// FieldType is the classified type of a remote field. Raw type strings from
// the gateway are converted once with ParseFieldType; nothing downstream
// branches on raw strings.
type FieldType string

const (
	FieldTypeChar       FieldType = "char"
	FieldTypeText       FieldType = "text"
	FieldTypeHTML       FieldType = "html"
	FieldTypeInteger    FieldType = "integer"
	FieldTypeFloat      FieldType = "float"
	FieldTypeMonetary   FieldType = "monetary"
	FieldTypeBoolean    FieldType = "boolean"
	FieldTypeDate       FieldType = "date"
	FieldTypeDateTime   FieldType = "datetime"
	FieldTypeSelection  FieldType = "selection"
	FieldTypeMany2One   FieldType = "many2one"
	FieldTypeOne2Many   FieldType = "one2many"
	FieldTypeMany2Many  FieldType = "many2many"
	FieldTypeBinary     FieldType = "binary"
	FieldTypeReference  FieldType = "reference"
	FieldTypeProperties FieldType = "properties"
	FieldTypeUnknown    FieldType = "unknown"
)

var knownFieldTypes = map[string]FieldType{
	"char":                  FieldTypeChar,
	"text":                  FieldTypeText,
	"html":                  FieldTypeHTML,
	"integer":               FieldTypeInteger,
	"float":                 FieldTypeFloat,
	"monetary":              FieldTypeMonetary,
	"boolean":               FieldTypeBoolean,
	"date":                  FieldTypeDate,
	"datetime":              FieldTypeDateTime,
	"selection":             FieldTypeSelection,
	"many2one":              FieldTypeMany2One,
	"one2many":              FieldTypeOne2Many,
	"many2many":             FieldTypeMany2Many,
	"binary":                FieldTypeBinary,
	"reference":             FieldTypeReference,
	"properties":            FieldTypeProperties,
	"properties_definition": FieldTypeProperties,
}

// ParseFieldType maps a raw type string to a FieldType. Anything not
// recognized becomes FieldTypeUnknown.
func ParseFieldType(raw string) FieldType {
	if t, ok := knownFieldTypes[raw]; ok {
		return t
	}
	return FieldTypeUnknown
}

// String returns the string representation of the FieldType.
func (t FieldType) String() string {
	return string(t)
}

// IsSimpleScalar reports whether values of this type are written as plain
// scalars.
func (t FieldType) IsSimpleScalar() bool {
	switch t {
	case FieldTypeChar, FieldTypeText, FieldTypeHTML, FieldTypeInteger, FieldTypeFloat,
		FieldTypeMonetary, FieldTypeBoolean, FieldTypeDate, FieldTypeDateTime, FieldTypeSelection:
		return true
	default:
		return false
	}
}

// IsUnsupportedForImport reports the collection, binary, polymorphic and
// dynamic-property types that are never written by the importer.
func (t FieldType) IsUnsupportedForImport() bool {
	switch t {
	case FieldTypeOne2Many, FieldTypeMany2Many, FieldTypeBinary, FieldTypeReference, FieldTypeProperties:
		return true
	default:
		return false
	}
}

// Classification is the import verdict for a field.
type Classification string

const (
	ClassificationImportable Classification = "importable"
	ClassificationExportOnly Classification = "export_only"
	ClassificationIgnored    Classification = "ignored"
	ClassificationRelational Classification = "relational"
)

// String returns the string representation of the Classification.
func (c Classification) String() string {
	return string(c)
}

// SelectionOption is one (value, label) pair of a selection field.
type SelectionOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldDescriptor is the classified, cache-friendly metadata for one remote
// field. It is a value type; copies are independent except for the
// SelectionOptions backing array, which is never written after construction.
type FieldDescriptor struct {
	Model                string            `json:"model"`
	Name                 string            `json:"name"`
	Label                string            `json:"label"`
	Type                 FieldType         `json:"type"`
	Required             bool              `json:"required"`
	Readonly             bool              `json:"readonly"`
	Stored               bool              `json:"stored"`
	Computed             bool              `json:"computed"`
	HasInverse           bool              `json:"has_inverse"`
	RelatedPath          string            `json:"related_path,omitempty"`
	RelationTargetModel  string            `json:"relation_target_model,omitempty"`
	RelationInverseField string            `json:"relation_inverse_field,omitempty"`
	SelectionOptions     []SelectionOption `json:"selection_options,omitempty"`
	Classification       Classification    `json:"classification"`
	Importable           bool              `json:"importable"`
	Exportable           bool              `json:"exportable"`
	IsCustomExtension    bool              `json:"is_custom_extension"`
	IsSystemField        bool              `json:"is_system_field"`
	Help                 string            `json:"help,omitempty"`
	CompanyDependent     bool              `json:"company_dependent,omitempty"`
}

// IsRelational reports whether the field is a many-to-one reference.
func (f FieldDescriptor) IsRelational() bool {
	return f.Type == FieldTypeMany2One
}

// AsCustomExtension returns a copy of f flagged as a custom extension field.
func (f FieldDescriptor) AsCustomExtension() FieldDescriptor {
	f.IsCustomExtension = true
	return f
}

// SelectionValues returns the raw values of the selection options.
func (f FieldDescriptor) SelectionValues() []string {
	values := make([]string, 0, len(f.SelectionOptions))
	for _, opt := range f.SelectionOptions {
		values = append(values, opt.Value)
	}
	return values
}

// SortFields orders descriptors by field name.
func SortFields(fields []FieldDescriptor) {
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
}
