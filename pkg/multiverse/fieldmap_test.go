package multiverse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveFlatSchema(t *testing.T) {
	fm, err := NewMapper().Derive(testFlatSchema(t), testUniversalUsers(), "flatland")
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "email", "latitude", "longitude", "plan"}, fm.ExportPaths())
	assert.Equal(t, "latitude", fm.Export["latitude"])
	assert.Equal(t, "latitude", fm.Import["latitude"])
	assert.Empty(t, fm.Defaults)
}

func TestDeriveCompositeExpansion(t *testing.T) {
	fm, err := NewMapper().Derive(testNestedSchema(t), testUniversalUsers(), "deepspace")
	require.NoError(t, err)

	// Sub-fields expand to dotted paths, sorted within their field.
	assert.Equal(t, []string{"name", "email", "position.lat", "position.lon", "plan"}, fm.ExportPaths())
	assert.Equal(t, "latitude", fm.Export["position.lat"])
	assert.Equal(t, "position.lat", fm.Import["latitude"])
	assert.Equal(t, "position.lon", fm.Import["longitude"])
}

func TestDeriveUniversalRename(t *testing.T) {
	s := NewLocalSchema("users")
	require.NoError(t, s.Add("fullName", &FieldDef{Type: FieldString, Universal: "name"}))

	universal := NewUniversalSchema("users", map[string]UniversalField{
		"name": {Type: FieldString},
	})
	fm, err := NewMapper().Derive(s, universal, "flatland")
	require.NoError(t, err)

	assert.Equal(t, "name", fm.Export["fullName"])
	assert.Equal(t, "fullName", fm.Import["name"])
}

func TestDeriveUnmappedUniversalField(t *testing.T) {
	s := NewLocalSchema("users")
	require.NoError(t, s.Add("name", &FieldDef{Type: FieldString}))

	universal := NewUniversalSchema("users", map[string]UniversalField{
		"name":  {Type: FieldString},
		"email": {Type: FieldString},
	})

	_, err := NewMapper().Derive(s, universal, "flatland")
	var unmapped *UnmappedFieldError
	require.ErrorAs(t, err, &unmapped)
	assert.Equal(t, "email", unmapped.Field)
	assert.Equal(t, "flatland", unmapped.Universe)
}

func TestDeriveUniversalDefaultCoversGap(t *testing.T) {
	s := NewLocalSchema("users")
	require.NoError(t, s.Add("name", &FieldDef{Type: FieldString}))

	universal := NewUniversalSchema("users", map[string]UniversalField{
		"name": {Type: FieldString},
		"plan": {Type: FieldString, Default: "free"},
	})

	fm, err := NewMapper().Derive(s, universal, "flatland")
	require.NoError(t, err)
	assert.Equal(t, "free", fm.Defaults["plan"])
	assert.NotContains(t, fm.Import, "plan")
}

func TestDeriveUnknownUniversalTarget(t *testing.T) {
	s := NewLocalSchema("users")
	require.NoError(t, s.Add("name", &FieldDef{Type: FieldString, Universal: "nope"}))

	_, err := NewMapper().Derive(s, NewUniversalSchema("users", map[string]UniversalField{
		"name": {Type: FieldString},
	}), "flatland")
	assert.Error(t, err)
}

func TestDeriveImportConflicts(t *testing.T) {
	universal := NewUniversalSchema("users", map[string]UniversalField{
		"name": {Type: FieldString},
	})

	t.Run("two importable fields on one universal field", func(t *testing.T) {
		s := NewLocalSchema("users")
		require.NoError(t, s.Add("name", &FieldDef{Type: FieldString}))
		require.NoError(t, s.Add("alias", &FieldDef{Type: FieldString, Universal: "name"}))

		_, err := NewMapper().Derive(s, universal, "flatland")
		assert.Error(t, err)
	})

	t.Run("export-only claimant is displaced", func(t *testing.T) {
		s := NewLocalSchema("users")
		require.NoError(t, s.Add("legacyName", &FieldDef{Type: FieldString, Universal: "name", ExportOnly: true}))
		require.NoError(t, s.Add("name", &FieldDef{Type: FieldString}))

		fm, err := NewMapper().Derive(s, universal, "flatland")
		require.NoError(t, err)
		assert.Equal(t, "name", fm.Import["name"])
	})

	t.Run("export-only second claimant is skipped", func(t *testing.T) {
		s := NewLocalSchema("users")
		require.NoError(t, s.Add("name", &FieldDef{Type: FieldString}))
		require.NoError(t, s.Add("legacyName", &FieldDef{Type: FieldString, Universal: "name", ExportOnly: true}))

		fm, err := NewMapper().Derive(s, universal, "flatland")
		require.NoError(t, err)
		assert.Equal(t, "name", fm.Import["name"])
		assert.Equal(t, "name", fm.Export["legacyName"])
	})

	t.Run("composite leaf beats direct field on import", func(t *testing.T) {
		u := NewUniversalSchema("users", map[string]UniversalField{
			"latitude": {Type: FieldNumber},
		})
		s := NewLocalSchema("users")
		require.NoError(t, s.Add("position", &FieldDef{
			Type:      FieldObject,
			Composite: true,
			SubFields: map[string]string{"lat": "latitude"},
		}))
		require.NoError(t, s.Add("flatLat", &FieldDef{Type: FieldNumber, Universal: "latitude"}))

		fm, err := NewMapper().Derive(s, u, "deepspace")
		require.NoError(t, err)
		assert.Equal(t, "position.lat", fm.Import["latitude"])
		assert.Equal(t, "latitude", fm.Export["flatLat"])
	})

	t.Run("duplicate sub-field claims", func(t *testing.T) {
		u := NewUniversalSchema("users", map[string]UniversalField{
			"latitude": {Type: FieldNumber},
		})
		s := NewLocalSchema("users")
		require.NoError(t, s.Add("a", &FieldDef{
			Type:      FieldObject,
			Composite: true,
			SubFields: map[string]string{"lat": "latitude"},
		}))
		require.NoError(t, s.Add("b", &FieldDef{
			Type:      FieldObject,
			Composite: true,
			SubFields: map[string]string{"lat": "latitude"},
		}))

		_, err := NewMapper().Derive(s, u, "deepspace")
		assert.Error(t, err)
	})
}

func TestDeriveCaching(t *testing.T) {
	mapper := NewMapper()
	local := testFlatSchema(t)
	universal := testUniversalUsers()

	first, err := mapper.Derive(local, universal, "flatland")
	require.NoError(t, err)
	second, err := mapper.Derive(local, universal, "flatland")
	require.NoError(t, err)
	assert.Same(t, first, second)

	// A different universe derives its own map.
	other, err := mapper.Derive(local, universal, "deepspace")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
}

func TestDeriveCacheInvalidatedByRevision(t *testing.T) {
	mapper := NewMapper()
	universal := NewUniversalSchema("users", map[string]UniversalField{
		"name":  {Type: FieldString},
		"email": {Type: FieldString, Default: "unknown@example.com"},
	})

	local := NewLocalSchema("users")
	require.NoError(t, local.Add("name", &FieldDef{Type: FieldString}))

	before, err := mapper.Derive(local, universal, "flatland")
	require.NoError(t, err)
	assert.NotContains(t, before.Import, "email")

	require.NoError(t, local.Add("email", &FieldDef{Type: FieldString}))

	after, err := mapper.Derive(local, universal, "flatland")
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.Equal(t, "email", after.Import["email"])
}
