// Package classifier maps raw remote field metadata to classified
// FieldDescriptors. Classification is pure: the same input always yields the
// same descriptor.
package classifier

import (
	"fmt"
	"strings"

	model "github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/core/gateway"
)

// systemFields are owned by the remote framework and never imported or
// exported.
var systemFields = map[string]struct{}{
	"id":                            {},
	"create_uid":                    {},
	"create_date":                   {},
	"write_uid":                     {},
	"write_date":                    {},
	"__last_update":                 {},
	"display_name":                  {},
	"activity_ids":                  {},
	"activity_state":                {},
	"activity_user_id":              {},
	"activity_type_id":              {},
	"activity_type_icon":            {},
	"activity_date_deadline":        {},
	"activity_summary":              {},
	"activity_exception_decoration": {},
	"activity_exception_icon":       {},
	"activity_calendar_event_id":    {},
	"my_activity_date_deadline":     {},
	"message_ids":                   {},
	"message_follower_ids":          {},
	"message_partner_ids":           {},
	"message_is_follower":           {},
	"message_needaction":            {},
	"message_needaction_counter":    {},
	"message_has_error":             {},
	"message_has_error_counter":     {},
	"message_has_sms_error":         {},
	"message_attachment_count":      {},
	"message_main_attachment_id":    {},
	"website_message_ids":           {},
	"has_message":                   {},
	"rating_ids":                    {},
	"rating_last_value":             {},
	"rating_last_feedback":          {},
	"rating_last_image":             {},
	"rating_count":                  {},
	"rating_avg":                    {},
}

// IsSystemField reports whether name is a framework-owned field: a member of
// the fixed denylist or a private name starting with "_".
func IsSystemField(name string) bool {
	if _, ok := systemFields[name]; ok {
		return true
	}
	return strings.HasPrefix(name, "_")
}

// Classifier classifies raw field metadata.
type Classifier struct {
	// StrictUnknown makes fields of unrecognized types Ignored instead of
	// Importable.
	StrictUnknown bool
}

// New returns a Classifier.
func New(strictUnknown bool) *Classifier {
	return &Classifier{StrictUnknown: strictUnknown}
}

// Classify builds the FieldDescriptor of one field.
//
// Rules, first match wins:
//  1. system field: Ignored, neither importable nor exportable
//  2. one2many, many2many, binary, reference or properties: Ignored, exportable iff stored
//  3. not stored: Ignored
//  4. computed without inverse: ExportOnly
//  5. readonly without inverse: ExportOnly
//  6. many2one: Relational, importable and exportable
//  7. simple scalar: Importable
//  8. unknown type: Ignored when StrictUnknown, otherwise Importable
//  9. anything else: ExportOnly
func (c *Classifier) Classify(modelName, name, label string, raw gateway.RawField) model.FieldDescriptor {
	fieldType := model.ParseFieldType(stringAttr(raw, "type"))
	related := relatedPath(raw["related"])
	computed := truthy(raw["compute"]) || related != ""

	fd := model.FieldDescriptor{
		Model:                modelName,
		Name:                 name,
		Label:                label,
		Type:                 fieldType,
		Required:             boolAttr(raw, "required", false),
		Readonly:             boolAttr(raw, "readonly", false),
		Stored:               boolAttr(raw, "store", true),
		Computed:             computed,
		HasInverse:           truthy(raw["inverse"]),
		RelatedPath:          related,
		RelationTargetModel:  stringAttr(raw, "relation"),
		RelationInverseField: stringAttr(raw, "relation_field"),
		SelectionOptions:     selectionOptions(raw["selection"]),
		IsCustomExtension:    strings.HasPrefix(name, "x_"),
		IsSystemField:        IsSystemField(name),
		Help:                 stringAttr(raw, "help"),
		CompanyDependent:     boolAttr(raw, "company_dependent", false),
	}
	if fd.Label == "" {
		fd.Label = stringAttr(raw, "string")
	}

	switch {
	case fd.IsSystemField:
		fd.Classification = model.ClassificationIgnored
	case fieldType.IsUnsupportedForImport():
		fd.Classification = model.ClassificationIgnored
		fd.Exportable = fd.Stored
	case !fd.Stored:
		fd.Classification = model.ClassificationIgnored
	case fd.Computed && !fd.HasInverse:
		fd.Classification = model.ClassificationExportOnly
		fd.Exportable = true
	case fd.Readonly && !fd.HasInverse:
		fd.Classification = model.ClassificationExportOnly
		fd.Exportable = true
	case fieldType == model.FieldTypeMany2One:
		fd.Classification = model.ClassificationRelational
		fd.Importable = true
		fd.Exportable = true
	case fieldType.IsSimpleScalar():
		fd.Classification = model.ClassificationImportable
		fd.Importable = true
		fd.Exportable = true
	case fieldType == model.FieldTypeUnknown:
		if c.StrictUnknown {
			fd.Classification = model.ClassificationIgnored
		} else {
			fd.Classification = model.ClassificationImportable
			fd.Importable = true
			fd.Exportable = true
		}
	default:
		fd.Classification = model.ClassificationExportOnly
		fd.Exportable = true
	}
	return fd
}

// ClassifyAll classifies every field of a FieldsGet answer.
func (c *Classifier) ClassifyAll(modelName string, raw map[string]gateway.RawField) []model.FieldDescriptor {
	out := make([]model.FieldDescriptor, 0, len(raw))
	for name, info := range raw {
		out = append(out, c.Classify(modelName, name, stringAttr(info, "string"), info))
	}
	model.SortFields(out)
	return out
}

func stringAttr(raw gateway.RawField, key string) string {
	if s, ok := raw[key].(string); ok {
		return s
	}
	return ""
}

func boolAttr(raw gateway.RawField, key string, def bool) bool {
	v, ok := raw[key]
	if !ok || v == nil {
		return def
	}
	return truthy(v)
}

// truthy follows the remote store's loose typing: false, nil, "", 0 and
// empty collections are false.
func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case []interface{}:
		return len(x) > 0
	case map[string]interface{}:
		return len(x) > 0
	default:
		return true
	}
}

func relatedPath(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []interface{}:
		parts := make([]string, 0, len(x))
		for _, p := range x {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ".")
	default:
		return ""
	}
}

// selectionOptions keeps static selections only; a selection computed by a
// method name arrives as a string and is dropped.
func selectionOptions(v interface{}) []model.SelectionOption {
	list, ok := v.([]interface{})
	if !ok || len(list) == 0 {
		return nil
	}
	out := make([]model.SelectionOption, 0, len(list))
	for _, item := range list {
		pair, ok := item.([]interface{})
		if !ok || len(pair) < 2 {
			continue
		}
		out = append(out, model.SelectionOption{Value: fmt.Sprint(pair[0]), Label: fmt.Sprint(pair[1])})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
