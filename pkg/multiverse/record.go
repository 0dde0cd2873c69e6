package multiverse

// Record is the unit of storage and translation. Both local and universal
// record shapes are represented as string-keyed maps; local records may nest
// further Records under composite fields.
type Record map[string]interface{}

// KeyedRecord pairs a record with its storage key. Cursors and Find results
// yield records in this form so transport can address the destination.
type KeyedRecord struct {
	Key    string
	Record Record
}

// FieldType identifies the primitive type of a field value.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldNumber   FieldType = "number"
	FieldBoolean  FieldType = "boolean"
	FieldDate     FieldType = "date"
	FieldObject   FieldType = "object"
	FieldArray    FieldType = "array"
	FieldFunction FieldType = "function"
	FieldCustom   FieldType = "custom"
	FieldAny      FieldType = "any"
)

// CloneRecord returns a deep copy of a record. Nested maps and slices are
// copied; scalar values are shared. A nil record clones to nil.
func CloneRecord(rec Record) Record {
	if rec == nil {
		return nil
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies maps and slices so that records handed out by the
// engine never alias records it holds.
func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case Record:
		return CloneRecord(val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
