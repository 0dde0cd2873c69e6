package multiverse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Two universes sharing one record type: "flatland" stores coordinates at
// the top level, "deepspace" folds them into a composite position object.

func testUniversalUsers() *UniversalSchema {
	return NewUniversalSchema("users", map[string]UniversalField{
		"name":      {Type: FieldString},
		"email":     {Type: FieldString},
		"latitude":  {Type: FieldNumber},
		"longitude": {Type: FieldNumber},
		"plan":      {Type: FieldString, Default: "free"},
	})
}

func testFlatSchema(t *testing.T) *LocalSchema {
	t.Helper()
	s := NewLocalSchema("users")
	require.NoError(t, s.Add("name", &FieldDef{Type: FieldString}))
	require.NoError(t, s.Add("email", &FieldDef{Type: FieldString}))
	require.NoError(t, s.Add("latitude", &FieldDef{Type: FieldNumber}))
	require.NoError(t, s.Add("longitude", &FieldDef{Type: FieldNumber}))
	require.NoError(t, s.Add("plan", &FieldDef{Type: FieldString, Default: "free"}))
	return s
}

func testNestedSchema(t *testing.T) *LocalSchema {
	t.Helper()
	s := NewLocalSchema("users")
	require.NoError(t, s.Add("name", &FieldDef{Type: FieldString}))
	require.NoError(t, s.Add("email", &FieldDef{Type: FieldString}))
	require.NoError(t, s.Add("position", &FieldDef{
		Type:      FieldObject,
		Composite: true,
		SubFields: map[string]string{
			"lat": "latitude",
			"lon": "longitude",
		},
	}))
	require.NoError(t, s.Add("plan", &FieldDef{Type: FieldString, Default: "free"}))
	return s
}

func testMultiverse(t *testing.T) *Multiverse {
	t.Helper()
	mv := New()
	require.NoError(t, mv.RegisterSchema(testUniversalUsers()))
	return mv
}
