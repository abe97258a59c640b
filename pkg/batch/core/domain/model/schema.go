package model

import (
	"time"
)

// AccessRights holds the four operation rights of the authenticated user on
// a model.
type AccessRights struct {
	Create bool
	Read   bool
	Write  bool
	Unlink bool
}

// ModelDescriptor is the classified metadata of one remote model.
// It is built once by NewModelDescriptor (or rehydrated from the schema
// cache) and never mutated afterwards; discovery replaces whole descriptors.
type ModelDescriptor struct {
	Name      string                     `json:"name"`
	Label     string                     `json:"label"`
	Transient bool                       `json:"transient,omitempty"`
	CanCreate bool                       `json:"can_create"`
	CanRead   bool                       `json:"can_read"`
	CanWrite  bool                       `json:"can_write"`
	CanUnlink bool                       `json:"can_unlink"`
	Fields    map[string]FieldDescriptor `json:"fields"`
}

// NewModelDescriptor builds a descriptor owning a private copy of fields,
// keyed by field name. A later descriptor with the same name wins.
func NewModelDescriptor(name, label string, transient bool, access AccessRights, fields []FieldDescriptor) *ModelDescriptor {
	byName := make(map[string]FieldDescriptor, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	return &ModelDescriptor{
		Name:      name,
		Label:     label,
		Transient: transient,
		CanCreate: access.Create,
		CanRead:   access.Read,
		CanWrite:  access.Write,
		CanUnlink: access.Unlink,
		Fields:    byName,
	}
}

// Access returns the access flags of the descriptor.
func (m *ModelDescriptor) Access() AccessRights {
	return AccessRights{Create: m.CanCreate, Read: m.CanRead, Write: m.CanWrite, Unlink: m.CanUnlink}
}

// Field returns the descriptor of one field.
func (m *ModelDescriptor) Field(name string) (FieldDescriptor, bool) {
	f, ok := m.Fields[name]
	return f, ok
}

// FieldCount returns the number of fields.
func (m *ModelDescriptor) FieldCount() int {
	return len(m.Fields)
}

func (m *ModelDescriptor) filter(keep func(FieldDescriptor) bool) []FieldDescriptor {
	out := make([]FieldDescriptor, 0)
	for _, f := range m.Fields {
		if keep(f) {
			out = append(out, f)
		}
	}
	SortFields(out)
	return out
}

// ImportableFields returns the importable fields sorted by name.
func (m *ModelDescriptor) ImportableFields() []FieldDescriptor {
	return m.filter(func(f FieldDescriptor) bool { return f.Importable })
}

// RequiredFields returns the fields that are both required and importable.
func (m *ModelDescriptor) RequiredFields() []FieldDescriptor {
	return m.filter(func(f FieldDescriptor) bool { return f.Required && f.Importable })
}

// RelationalFields returns the importable many-to-one fields.
func (m *ModelDescriptor) RelationalFields() []FieldDescriptor {
	return m.filter(func(f FieldDescriptor) bool { return f.Importable && f.IsRelational() })
}

// ExportableFields returns the exportable fields sorted by name.
func (m *ModelDescriptor) ExportableFields() []FieldDescriptor {
	return m.filter(func(f FieldDescriptor) bool { return f.Exportable })
}

// CustomFields returns the fields flagged as custom extensions.
func (m *ModelDescriptor) CustomFields() []FieldDescriptor {
	return m.filter(func(f FieldDescriptor) bool { return f.IsCustomExtension })
}

// Extension is an installed remote extension module.
type Extension struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// VersionInfo is the answer of the remote version call.
type VersionInfo struct {
	ServerVersion     string        `json:"server_version"`
	ServerVersionInfo []interface{} `json:"server_version_info,omitempty"`
	ServerSerie       string        `json:"server_serie,omitempty"`
	ProtocolVersion   int           `json:"protocol_version,omitempty"`
}

// SchemaCacheEntry is the persisted snapshot of every discovered model of one
// store. It is usable only while SchemaVersion and ExtensionFingerprint match
// the live store and ExpiresAt (when set) is in the future.
type SchemaCacheEntry struct {
	DatabaseID           string                      `json:"database_id"`
	SchemaVersion        string                      `json:"schema_version"`
	VersionInfo          *VersionInfo                `json:"version_info,omitempty"`
	ExtensionFingerprint string                      `json:"extension_fingerprint"`
	CreatedAt            time.Time                   `json:"created_at"`
	ExpiresAt            *time.Time                  `json:"expires_at,omitempty"`
	Models               map[string]*ModelDescriptor `json:"models"`
}

// Expired reports whether the entry has an expiry in the past relative to now.
func (e *SchemaCacheEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// Matches reports whether the entry was built for schemaVersion and
// fingerprint.
func (e *SchemaCacheEntry) Matches(schemaVersion, fingerprint string) bool {
	return e.SchemaVersion == schemaVersion && e.ExtensionFingerprint == fingerprint
}
