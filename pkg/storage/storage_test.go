package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/errors"
	"github.com/MalkIPP/openfisca-core/pkg/registry"
)

type fakeMembership struct {
	count     map[entity.Kind]int
	rowOf     map[entity.Kind][]int
	heads     map[entity.Kind][]int
	tableRows map[entity.Kind][]int
}

func (m *fakeMembership) Count(k entity.Kind) int         { return m.count[k] }
func (m *fakeMembership) EntityRowOf(k entity.Kind) []int { return m.rowOf[k] }
func (m *fakeMembership) HeadRows(k entity.Kind) []int    { return m.heads[k] }
func (m *fakeMembership) TableRows(k entity.Kind) []int   { return m.tableRows[k] }

// two households: individuals 0 and 1 in the first, 2 heading the second
func householdMembership() *fakeMembership {
	return &fakeMembership{
		count: map[entity.Kind]int{entity.Household: 2},
		rowOf: map[entity.Kind][]int{entity.Household: {0, 0, 1}},
		heads: map[entity.Kind][]int{entity.Household: {0, 2}},
	}
}

func flatTable(t *testing.T) *columnar.Table {
	t.Helper()
	tbl := columnar.NewTable(3)
	require.NoError(t, tbl.SetColumn("idmen", columnar.IntVector{1, 1, 2}))
	require.NoError(t, tbl.SetColumn("quimen", columnar.EnumVector{0, 1, 0}))
	require.NoError(t, tbl.SetColumn("loyer", columnar.FloatVector{500, 500, 700}))
	require.NoError(t, tbl.SetColumn("salaire", columnar.FloatVector{10, 20, 30}))
	return tbl
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout("Split")
	require.NoError(t, err)
	assert.Equal(t, Split, l)
	assert.Equal(t, "flat", Flat.String())

	_, err = ParseLayout("columnar")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestFlatRead(t *testing.T) {
	schema := entity.DefaultSchema()
	s := NewFlat(schema, flatTable(t))

	v, err := s.Read(entity.Individual, "salaire")
	require.NoError(t, err)
	assert.Equal(t, columnar.FloatVector{10, 20, 30}, v)

	_, err = s.Read(entity.Household, "loyer")
	assert.True(t, errors.IsType(err, errors.ErrorTypeLookup), "composite read before bind")
	assert.Zero(t, s.RowCount(entity.Household))

	s.Bind(householdMembership())
	v, err = s.Read(entity.Household, "loyer")
	require.NoError(t, err)
	assert.Equal(t, columnar.FloatVector{500, 700}, v)
	assert.Equal(t, 2, s.RowCount(entity.Household))

	_, err = s.Read(entity.Individual, "unknown")
	assert.True(t, errors.IsType(err, errors.ErrorTypeLookup))
}

func TestFlatReadReturnsCopies(t *testing.T) {
	s := NewFlat(entity.DefaultSchema(), flatTable(t))
	v, err := s.Read(entity.Individual, "salaire")
	require.NoError(t, err)
	v.(columnar.FloatVector)[0] = -1

	again, _ := s.Read(entity.Individual, "salaire")
	assert.Equal(t, 10.0, again.Float(0))
}

func TestFlatHeadlessReadUsesDefault(t *testing.T) {
	tbl := flatTable(t)
	require.NoError(t, tbl.SetField(columnar.Field{Name: "loyer", Type: columnar.Float, Default: -1}))
	s := NewFlat(entity.DefaultSchema(), tbl)
	m := householdMembership()
	m.heads[entity.Household] = []int{0, -1}
	s.Bind(m)

	v, err := s.Read(entity.Household, "loyer")
	require.NoError(t, err)
	assert.Equal(t, columnar.FloatVector{500, -1}, v)
}

func TestFlatCompositeWriteReachesEveryMember(t *testing.T) {
	s := NewFlat(entity.DefaultSchema(), flatTable(t))
	s.Bind(householdMembership())

	require.NoError(t, s.Write(entity.Household, "loyer", nil, columnar.FloatVector{600, 800}))
	v, _ := s.Read(entity.Individual, "loyer")
	assert.Equal(t, columnar.FloatVector{600, 600, 800}, v)

	require.NoError(t, s.Write(entity.Household, "loyer", []int{1}, columnar.IntVector{900}))
	v, _ = s.Read(entity.Individual, "loyer")
	assert.Equal(t, columnar.FloatVector{600, 600, 900}, v)

	err := s.Write(entity.Household, "loyer", nil, columnar.FloatVector{1})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	err = s.Write(entity.Household, "loyer", []int{2}, columnar.FloatVector{1})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestFlatLeafWrite(t *testing.T) {
	s := NewFlat(entity.DefaultSchema(), flatTable(t))
	require.NoError(t, s.Write(entity.Individual, "salaire", []int{2, 0}, columnar.FloatVector{3, 1}))
	v, _ := s.Read(entity.Individual, "salaire")
	assert.Equal(t, columnar.FloatVector{1, 20, 3}, v)

	require.NoError(t, s.Ensure(entity.Individual, columnar.Field{Name: "age", Type: columnar.Int, Default: 40}))
	v, _ = s.Read(entity.Individual, "age")
	assert.Equal(t, columnar.IntVector{40, 40, 40}, v)
}

func TestFlatLinking(t *testing.T) {
	schema := entity.DefaultSchema()
	s := NewFlat(schema, flatTable(t))

	ids, roles, err := s.Linking(entity.Household)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 2}, ids)
	assert.Equal(t, []entity.Role{0, 1, 0}, roles)

	_, _, err = s.Linking(entity.Family)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConstruction))
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	col, _ := e.Detail("column")
	assert.Equal(t, "idfam", col)

	assert.Equal(t, -1, s.StoredRows(entity.Household))
	_, ok := s.StoredIdentifiers(entity.Household)
	assert.False(t, ok)
}

func splitTables(t *testing.T) map[entity.Kind]*columnar.Table {
	t.Helper()
	ind := columnar.NewTable(3)
	require.NoError(t, ind.SetColumn("idmen", columnar.IntVector{1, 1, 2}))
	require.NoError(t, ind.SetColumn("quimen", columnar.EnumVector{0, 1, 0}))
	men := columnar.NewTable(3)
	require.NoError(t, men.SetColumn("idmen", columnar.IntVector{2, 1, 3}))
	require.NoError(t, men.SetColumn("loyer", columnar.FloatVector{700, 500, 900}))
	return map[entity.Kind]*columnar.Table{
		entity.Individual: ind,
		entity.Household:  men,
		entity.Family:     columnar.NewTable(0),
		entity.TaxUnit:    columnar.NewTable(0),
	}
}

func TestSplitReadThroughTableRows(t *testing.T) {
	s, err := NewSplit(entity.DefaultSchema(), splitTables(t))
	require.NoError(t, err)

	assert.Equal(t, 3, s.RowCount(entity.Household))
	assert.Equal(t, 3, s.StoredRows(entity.Household))
	ids, ok := s.StoredIdentifiers(entity.Household)
	require.True(t, ok)
	assert.Equal(t, []int64{2, 1, 3}, ids)

	m := householdMembership()
	m.tableRows = map[entity.Kind][]int{entity.Household: {1, 0}}
	s.Bind(m)

	v, err := s.Read(entity.Household, "loyer")
	require.NoError(t, err)
	assert.Equal(t, columnar.FloatVector{500, 700}, v)
	assert.Equal(t, 2, s.RowCount(entity.Household))

	require.NoError(t, s.Write(entity.Household, "loyer", []int{1}, columnar.FloatVector{710}))
	stored, _ := s.Table(entity.Household).Column("loyer")
	assert.Equal(t, columnar.FloatVector{710, 500, 900}, stored)
}

func TestNewSplitRequiresEveryTable(t *testing.T) {
	tables := splitTables(t)
	delete(tables, entity.Family)
	_, err := NewSplit(entity.DefaultSchema(), tables)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConstruction))
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	require.NoError(t, r.RegisterLinking(entity.DefaultSchema(), registry.FranceRoles()))
	r.MustRegister(
		registry.Column{Name: "salaire", Entity: entity.Individual, Type: columnar.Float},
		registry.Column{Name: "age", Entity: entity.Individual, Type: columnar.Int, Default: 40},
		registry.Column{Name: "loyer", Entity: entity.Household, Type: columnar.Float, Default: 1},
		registry.Column{Name: "isol", Entity: entity.Family, Type: columnar.Bool},
	)
	return r
}

func TestConformFlat(t *testing.T) {
	tbl := flatTable(t)
	for _, k := range []string{"idfam", "quifam", "idfoy", "quifoy"} {
		require.NoError(t, tbl.SetColumn(k, columnar.IntVector{1, 1, 2}))
	}
	require.NoError(t, tbl.SetColumn("salaire", columnar.FloatVector{10, math.NaN(), 30}))
	require.NoError(t, tbl.SetColumn("extra", columnar.FloatVector{1, 2, 3}))
	s := NewFlat(entity.DefaultSchema(), tbl)

	report, err := Conform(s, testRegistry(t), zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "isol"}, report.Missing)
	assert.Equal(t, []string{"extra"}, report.Dropped)
	assert.Equal(t, 1, report.Filled["salaire"])

	sal, _ := tbl.Column("salaire")
	assert.Equal(t, columnar.FloatVector{10, 0, 30}, sal)
	age, _ := tbl.Column("age")
	assert.Equal(t, columnar.IntVector{40, 40, 40}, age)
	quifam, _ := tbl.Column("quifam")
	assert.Equal(t, columnar.Enum, quifam.Type())
	_, ok := tbl.Column("extra")
	assert.False(t, ok)
}

func TestConformFlatKeepsUnregisteredLinking(t *testing.T) {
	tbl := flatTable(t)
	for _, k := range []string{"idfam", "quifam", "idfoy", "quifoy"} {
		require.NoError(t, tbl.SetColumn(k, columnar.IntVector{1, 1, 2}))
	}
	reg := registry.New().MustRegister(
		registry.Column{Name: "salaire", Entity: entity.Individual, Type: columnar.Float},
	)

	report, err := Conform(NewFlat(entity.DefaultSchema(), tbl), reg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"loyer"}, report.Dropped)
	for _, name := range []string{"idmen", "quimen", "idfam", "quifam", "idfoy", "quifoy"} {
		_, ok := tbl.Column(name)
		assert.True(t, ok, name)
	}
}

func TestConformMissingLinkingColumn(t *testing.T) {
	s := NewFlat(entity.DefaultSchema(), flatTable(t))
	_, err := Conform(s, testRegistry(t), nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConstruction))
	assert.Contains(t, err.Error(), "idfam")
}

func TestConformSplit(t *testing.T) {
	tables := splitTables(t)
	for _, k := range []string{"idfam", "quifam", "idfoy", "quifoy"} {
		require.NoError(t, tables[entity.Individual].SetColumn(k, columnar.IntVector{1, 1, 2}))
	}
	require.NoError(t, tables[entity.Household].SetColumn("unregistered", columnar.FloatVector{1, 2, 3}))
	s, err := NewSplit(entity.DefaultSchema(), tables)
	require.NoError(t, err)

	report, err := Conform(s, testRegistry(t), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"salaire", "age", "isol"}, report.Missing)
	assert.Empty(t, report.Dropped)
	assert.True(t, s.Has(entity.Household, "unregistered"))
	assert.True(t, s.Has(entity.Family, "isol"))
}
