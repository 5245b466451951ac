package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/errors"
)

func TestRegisterAndDescribe(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Column{Name: "salaire", Entity: entity.Individual, Type: columnar.Float}))
	require.NoError(t, r.Register(Column{Name: "loyer", Entity: entity.Household, Type: columnar.Float}))

	err := r.Register(Column{Name: "salaire", Entity: entity.Individual})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Error(t, r.Register(Column{Name: "x"}), "entity is required")

	c, err := r.Describe("loyer")
	require.NoError(t, err)
	assert.Equal(t, entity.Household, c.Entity)

	_, err = r.Describe("unknown")
	assert.True(t, errors.IsType(err, errors.ErrorTypeLookup))

	assert.Len(t, r.Columns(), 2)
	assert.Equal(t, "salaire", r.Columns()[0].Name)
	assert.Len(t, r.EntityColumns(entity.Household), 1)
	assert.Empty(t, r.EntityColumns(entity.Family))
}

func TestRoleEnum(t *testing.T) {
	schema := entity.DefaultSchema()
	r := New()

	_, found := r.RoleEnum(entity.Household, schema)
	assert.False(t, found)

	require.NoError(t, r.RegisterLinking(schema, FranceRoles()))
	enum, found := r.RoleEnum(entity.TaxUnit, schema)
	require.True(t, found)
	assert.Equal(t, "vous", enum.Label(entity.Head))
	assert.Equal(t, "conj", enum.Label(1))
	assert.Equal(t, "", enum.Label(42))
	assert.Equal(t, entity.Head, enum.Roles()[0])

	id, err := r.Describe("idfam")
	require.NoError(t, err)
	assert.Equal(t, entity.Individual, id.Entity)
	assert.Equal(t, columnar.Int, id.Type)

	assert.Error(t, r.RegisterLinking(schema, nil), "linking columns are already registered")
}

func TestRegisterLinkingDefaultsToHeadOnly(t *testing.T) {
	schema := entity.DefaultSchema()
	r := New()
	require.NoError(t, r.RegisterLinking(schema, nil))

	enum, found := r.RoleEnum(entity.Family, schema)
	require.True(t, found)
	assert.Equal(t, []entity.Role{entity.Head}, enum.Roles())
}

func TestRoleEnumItemsAreSorted(t *testing.T) {
	e := NewRoleEnumItems(RoleItem{"enf", 2}, RoleItem{"chef", 0}, RoleItem{"part", 1})
	assert.Equal(t, []entity.Role{0, 1, 2}, e.Roles())
	assert.Equal(t, "enf", e.Items()[0].Label)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("SALARY_DEFAULT", "12.5")
	path := filepath.Join(t.TempDir(), "registry.yaml")
	content := `
linking: false
columns:
  - name: idmen
    entity: ind
    type: int
    default: -1
  - name: quimen
    entity: ind
    type: enum
    roles:
      - {label: pref, value: 0}
      - {label: cref, value: 1}
  - name: salaire
    entity: individus
    type: float
    default: ${SALARY_DEFAULT}
  - name: zone_apl
    entity: men
    type: enum
    default: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	r, err := LoadFile(path, entity.DefaultSchema())
	require.NoError(t, err)

	sal, err := r.Describe("salaire")
	require.NoError(t, err)
	assert.Equal(t, 12.5, sal.Default)
	assert.Equal(t, entity.Individual, sal.Entity)

	enum, found := r.RoleEnum(entity.Household, entity.DefaultSchema())
	require.True(t, found)
	assert.Equal(t, "cref", enum.Label(1))
}

func TestLoadFileErrors(t *testing.T) {
	schema := entity.DefaultSchema()

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), schema)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	f := File{Columns: []FileEntry{{Name: "x", Entity: "commune", Type: "float"}}}
	_, err = f.Build(schema)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	f = File{Columns: []FileEntry{{Name: "x", Entity: "ind", Type: "string"}}}
	_, err = f.Build(schema)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	f = File{Linking: true}
	r, err := f.Build(schema)
	require.NoError(t, err)
	assert.True(t, r.Has("quifoy"))
}
