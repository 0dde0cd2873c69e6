package multiverse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSchemaAdd(t *testing.T) {
	t.Run("registers fields in order", func(t *testing.T) {
		s := NewLocalSchema("users")
		require.NoError(t, s.Add("name", &FieldDef{Type: FieldString}))
		require.NoError(t, s.Add("email", &FieldDef{Type: FieldString}))

		assert.Equal(t, []string{"name", "email"}, s.Names())
		assert.Equal(t, 2, s.Len())

		def, ok := s.Field("name")
		require.True(t, ok)
		assert.Equal(t, FieldString, def.Type)
	})

	t.Run("duplicate name", func(t *testing.T) {
		s := NewLocalSchema("users")
		require.NoError(t, s.Add("name", &FieldDef{Type: FieldString}))

		err := s.Add("name", &FieldDef{Type: FieldString})
		var dup *DuplicateFieldError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "users", dup.Schema)
		assert.Equal(t, "name", dup.Field)
	})

	t.Run("empty name", func(t *testing.T) {
		s := NewLocalSchema("users")
		assert.Error(t, s.Add("", &FieldDef{Type: FieldString}))
	})

	t.Run("nil descriptor", func(t *testing.T) {
		s := NewLocalSchema("users")
		assert.Error(t, s.Add("name", nil))
	})

	t.Run("sub-fields require composite", func(t *testing.T) {
		s := NewLocalSchema("users")
		err := s.Add("position", &FieldDef{
			Type:      FieldObject,
			SubFields: map[string]string{"lat": "latitude"},
		})
		assert.Error(t, err)
	})

	t.Run("revision advances per add", func(t *testing.T) {
		s := NewLocalSchema("users")
		r0 := s.Revision()
		require.NoError(t, s.Add("name", &FieldDef{Type: FieldString}))
		r1 := s.Revision()
		require.NoError(t, s.Add("email", &FieldDef{Type: FieldString}))
		r2 := s.Revision()

		assert.Greater(t, r1, r0)
		assert.Greater(t, r2, r1)
	})
}

func TestUniversalSchemaFieldNames(t *testing.T) {
	u := NewUniversalSchema("users", map[string]UniversalField{
		"longitude": {Type: FieldNumber},
		"name":      {Type: FieldString},
		"latitude":  {Type: FieldNumber},
	})
	assert.Equal(t, []string{"latitude", "longitude", "name"}, u.FieldNames())
}

func TestErrorUnwrapping(t *testing.T) {
	inner := errors.New("bad value")
	err := &ValidationError{Schema: "users", Universe: "e1", Err: inner}
	assert.ErrorIs(t, err, inner)
}
