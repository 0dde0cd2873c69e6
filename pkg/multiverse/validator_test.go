package multiverse

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRecord(t *testing.T) {
	s := NewLocalSchema("events")
	require.NoError(t, s.Add("title", &FieldDef{Type: FieldString}))
	require.NoError(t, s.Add("count", &FieldDef{Type: FieldNumber}))
	require.NoError(t, s.Add("active", &FieldDef{Type: FieldBoolean}))
	require.NoError(t, s.Add("when", &FieldDef{Type: FieldDate}))
	require.NoError(t, s.Add("meta", &FieldDef{Type: FieldObject}))
	require.NoError(t, s.Add("tags", &FieldDef{Type: FieldArray}))
	v := NewValidator(s)

	t.Run("valid record", func(t *testing.T) {
		assert.NoError(t, v.ValidateRecord(Record{
			"title":  "launch",
			"count":  3,
			"active": true,
			"when":   time.Now(),
			"meta":   Record{"a": 1},
			"tags":   []interface{}{"x"},
		}))
	})

	t.Run("nil record", func(t *testing.T) {
		assert.Error(t, v.ValidateRecord(nil))
	})

	t.Run("absent and nil values pass", func(t *testing.T) {
		assert.NoError(t, v.ValidateRecord(Record{"title": nil}))
	})

	t.Run("wrong string", func(t *testing.T) {
		assert.Error(t, v.ValidateRecord(Record{"title": 42}))
	})

	t.Run("numeric width variants pass", func(t *testing.T) {
		for _, val := range []interface{}{int(1), int64(1), uint8(1), float32(1.5), float64(1.5)} {
			assert.NoError(t, v.ValidateRecord(Record{"count": val}), "%T", val)
		}
	})

	t.Run("date accepts RFC3339 strings", func(t *testing.T) {
		assert.NoError(t, v.ValidateRecord(Record{"when": "2026-08-24T10:00:00Z"}))
		assert.Error(t, v.ValidateRecord(Record{"when": "yesterday"}))
	})

	t.Run("object accepts plain maps", func(t *testing.T) {
		assert.NoError(t, v.ValidateRecord(Record{"meta": map[string]interface{}{"a": 1}}))
		assert.Error(t, v.ValidateRecord(Record{"meta": []interface{}{}}))
	})

	t.Run("array", func(t *testing.T) {
		assert.Error(t, v.ValidateRecord(Record{"tags": "not-a-list"}))
	})
}

func TestValidateRecordCustomValidator(t *testing.T) {
	s := NewLocalSchema("events")
	require.NoError(t, s.Add("count", &FieldDef{
		Type: FieldNumber,
		Validate: func(value interface{}) error {
			if n, ok := value.(int); ok && n < 0 {
				return fmt.Errorf("count must be non-negative, got %d", n)
			}
			return nil
		},
	}))
	v := NewValidator(s)

	assert.NoError(t, v.ValidateRecord(Record{"count": 5}))
	assert.Error(t, v.ValidateRecord(Record{"count": -1}))
}

func TestValidateRecordOpaqueTypes(t *testing.T) {
	s := NewLocalSchema("events")
	require.NoError(t, s.Add("handler", &FieldDef{Type: FieldFunction}))
	require.NoError(t, s.Add("blob", &FieldDef{Type: FieldAny}))
	v := NewValidator(s)

	assert.NoError(t, v.ValidateRecord(Record{
		"handler": func() {},
		"blob":    struct{ X int }{1},
	}))
}
