package multiverse

import (
	"fmt"
	"sort"
)

// TransformArgs carries the context handed to a per-field transform.
type TransformArgs struct {
	// Current is the output record under construction.
	Current Record

	// Input is the source record being translated. Transforms must treat it
	// as read-only.
	Input Record

	// CurrentValue is the value already present at the destination path, if
	// any. Composite fields see their initialized container here.
	CurrentValue interface{}

	// NewValue is the value read from the source path, or nil when the
	// source has no value there.
	NewValue interface{}

	// Field is the descriptor the transform belongs to.
	Field *FieldDef
}

// TransformFunc computes the value to write into the destination record for
// one field. Returning nil writes nil; absence of a transform means an
// identity copy via the mapped path.
type TransformFunc func(args TransformArgs) interface{}

// RecordTransform post-processes a whole record after per-field translation.
// It may return the same record or a replacement.
type RecordTransform func(rec Record) Record

// FieldDef describes one field of a local schema.
type FieldDef struct {
	// Type is the primitive type of the field value.
	Type FieldType

	// Universal is the field's name in the universal schema. Empty means the
	// local name is also the universal name.
	Universal string

	// Composite marks a field whose value is assembled purely from other
	// universal fields and has no 1:1 universal counterpart of its own.
	Composite bool

	// SubFields maps sub-field names (dot-appended to the local name) to
	// universal field names. Only valid on composite fields; each entry
	// yields one leaf mapping.
	SubFields map[string]string

	// ExportOnly fields participate in local-to-universal translation but
	// are dropped when translating back to local shape.
	ExportOnly bool

	// Export and Import override the identity copy in the respective
	// direction. Applied to direct entries only, never to composite leaves.
	Export TransformFunc
	Import TransformFunc

	// Validate rejects invalid values after import translation.
	Validate func(value interface{}) error

	// Default is written when the source record has no value for the field.
	Default interface{}
}

// LocalSchema is a named, ordered set of field descriptors describing one
// universe's shape of a record type. The schema name doubles as the
// record-type name used to look up the universal schema.
type LocalSchema struct {
	// Name is the record-type name.
	Name string

	// ExportRecord, when set, post-processes the universal record produced
	// by local-to-universal translation.
	ExportRecord RecordTransform

	// ImportRecord, when set, post-processes the local record produced by
	// universal-to-local translation.
	ImportRecord RecordTransform

	fields   map[string]*FieldDef
	order    []string
	revision uint64
}

// NewLocalSchema creates an empty local schema for the given record type.
func NewLocalSchema(name string) *LocalSchema {
	return &LocalSchema{
		Name:   name,
		fields: make(map[string]*FieldDef),
	}
}

// Add registers a field descriptor under the given local name.
// Returns a *DuplicateFieldError if the name is already taken.
func (s *LocalSchema) Add(name string, def *FieldDef) error {
	if name == "" {
		return fmt.Errorf("schema %q: field name cannot be empty", s.Name)
	}
	if def == nil {
		return fmt.Errorf("schema %q: field %q: descriptor cannot be nil", s.Name, name)
	}
	if len(def.SubFields) > 0 && !def.Composite {
		return fmt.Errorf("schema %q: field %q: sub-field map requires a composite field", s.Name, name)
	}
	if _, exists := s.fields[name]; exists {
		return &DuplicateFieldError{Schema: s.Name, Field: name}
	}

	s.fields[name] = def
	s.order = append(s.order, name)
	s.revision++
	return nil
}

// Field returns the descriptor registered under the given local name.
func (s *LocalSchema) Field(name string) (*FieldDef, bool) {
	def, ok := s.fields[name]
	return def, ok
}

// Names returns the field names in registration order.
func (s *LocalSchema) Names() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Len returns the number of fields in the schema.
func (s *LocalSchema) Len() int {
	return len(s.fields)
}

// Revision returns a counter bumped by every Add. Derived field maps are
// cached under (schema, universe, revision), so adding a field after maps
// were derived produces fresh maps instead of serving stale ones.
func (s *LocalSchema) Revision() uint64 {
	return s.revision
}

// UniversalField describes one field of a universal schema.
type UniversalField struct {
	// Type is the primitive type of the field value.
	Type FieldType

	// Default, when non-nil, fills the universal field during export when no
	// local field maps to it. A universal field with a default does not
	// require a local counterpart.
	Default interface{}
}

// UniversalSchema is the canonical flattened field set for a record type,
// independent of any universe.
type UniversalSchema struct {
	// Name is the record-type name the schema is registered under.
	Name string

	// Fields maps universal field names to their definitions.
	Fields map[string]UniversalField
}

// NewUniversalSchema creates a universal schema with the given fields.
func NewUniversalSchema(name string, fields map[string]UniversalField) *UniversalSchema {
	if fields == nil {
		fields = make(map[string]UniversalField)
	}
	return &UniversalSchema{Name: name, Fields: fields}
}

// FieldNames returns the universal field names in sorted order.
func (u *UniversalSchema) FieldNames() []string {
	names := make([]string, 0, len(u.Fields))
	for name := range u.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
