package multiverse

import (
	"fmt"
	"time"
)

// Validator checks records against a local schema: value types must match
// each field's declared FieldType, and per-field Validate functions must
// accept their values. Absent and nil values pass; the engine has no
// required-field notion beyond map coverage.
type Validator struct {
	schema *LocalSchema
}

// NewValidator creates a validator for the given schema.
func NewValidator(schema *LocalSchema) *Validator {
	return &Validator{schema: schema}
}

// ValidateRecord returns an error describing the first violated constraint,
// or nil when the record is acceptable.
func (v *Validator) ValidateRecord(rec Record) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}

	for _, name := range v.schema.Names() {
		def, _ := v.schema.Field(name)
		value, exists := rec[name]
		if !exists || value == nil {
			continue
		}

		if err := checkFieldType(def.Type, value); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		if def.Validate != nil {
			if err := def.Validate(value); err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
		}
	}
	return nil
}

// checkFieldType verifies a value is representable as the declared type.
func checkFieldType(ft FieldType, value interface{}) error {
	switch ft {
	case FieldString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case FieldNumber:
		switch value.(type) {
		case int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
	case FieldBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case FieldDate:
		switch value.(type) {
		case time.Time, *time.Time:
		case string:
			if _, err := time.Parse(time.RFC3339, value.(string)); err != nil {
				return fmt.Errorf("expected RFC3339 date string: %w", err)
			}
		default:
			return fmt.Errorf("expected date, got %T", value)
		}
	case FieldObject:
		switch value.(type) {
		case Record, map[string]interface{}:
		default:
			return fmt.Errorf("expected object, got %T", value)
		}
	case FieldArray:
		if _, ok := value.([]interface{}); !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
	case FieldFunction, FieldCustom, FieldAny, "":
		// Opaque to the type checker; per-field Validate still applies.
	default:
		return fmt.Errorf("unknown field type %q", ft)
	}
	return nil
}
