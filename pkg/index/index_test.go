package index

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/errors"
	"github.com/MalkIPP/openfisca-core/pkg/registry"
	"github.com/MalkIPP/openfisca-core/pkg/storage"
	"github.com/MalkIPP/openfisca-core/pkg/testutil"
)

func registryRoles(reg *registry.Registry, schema *entity.Schema) RoleSource {
	return func(k entity.Kind) ([]entity.Role, bool) {
		e, ok := reg.RoleEnum(k, schema)
		if !ok {
			return nil, false
		}
		return e.Roles(), true
	}
}

func splitOf(t *testing.T, schema *entity.Schema, tables map[entity.Kind]*columnar.Table) *storage.SplitStore {
	t.Helper()
	s, err := storage.NewSplit(schema, tables)
	require.NoError(t, err)
	return s
}

func buildFlat(t *testing.T, pop *testutil.Population) *Index {
	t.Helper()
	schema := entity.DefaultSchema()
	idx, err := Build(pop.Flat(t, schema), schema, registryRoles(testutil.Registry(t), schema),
		Options{Logger: testutil.TestLogger(t)})
	require.NoError(t, err)
	return idx
}

func TestBuildFlat(t *testing.T) {
	idx := buildFlat(t, testutil.TwoHouseholds())

	assert.Equal(t, 5, idx.Count(entity.Individual))
	assert.Equal(t, 2, idx.Count(entity.Household))
	assert.Equal(t, 3, idx.Count(entity.Family))
	assert.Equal(t, 4, idx.Count(entity.TaxUnit))
	assert.Equal(t, []int64{10, 11, 20}, idx.IDs(entity.Family))
	assert.Equal(t, []int{0, 0, 0, 1, 1}, idx.EntityRowOf(entity.Household))
	assert.Empty(t, idx.Mismatches())
	assert.Nil(t, idx.TableRows(entity.Household))

	heads, ok := idx.Pair(entity.Household, entity.Head)
	require.True(t, ok)
	assert.Equal(t, []int{0, 3}, heads.Individuals)
	assert.Equal(t, []int{0, 1}, heads.Units)

	spouses, ok := idx.Pair(entity.Household, 1)
	require.True(t, ok)
	assert.Equal(t, []int{1, 4}, spouses.Individuals)

	children, ok := idx.Pair(entity.Household, 5)
	require.True(t, ok, "every role of the enumeration has a pair")
	assert.Zero(t, children.Len())

	_, ok = idx.Pair(entity.Household, 42)
	assert.False(t, ok)

	assert.Len(t, idx.Roles(entity.Household), 10)
	assert.Equal(t, []entity.Role{entity.Head}, idx.Roles(entity.Individual))
}

func TestCrossTables(t *testing.T) {
	idx := buildFlat(t, testutil.TwoHouseholds())

	assert.Equal(t, []int{0, 2, 3}, idx.HeadRows(entity.Family))
	assert.Equal(t, []int{0, 0, 1}, idx.Cross(entity.Family, entity.Household))
	assert.Equal(t, []int{0, 1, 2, 2}, idx.Cross(entity.TaxUnit, entity.Family))
	assert.Equal(t, []int{0, 2}, idx.Cross(entity.Household, entity.TaxUnit))
	assert.Nil(t, idx.Cross(entity.Family, entity.Family))
}

func TestLeafPairIsIdentity(t *testing.T) {
	idx := buildFlat(t, testutil.TwoHouseholds())

	p, ok := idx.Pair(entity.Individual, entity.Head)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, p.Individuals)
	assert.Equal(t, p.Individuals, p.Units)
	assert.Equal(t, p.Individuals, idx.HeadRows(entity.Individual))

	_, ok = idx.Pair(entity.Individual, 1)
	assert.False(t, ok)
}

func TestHeadlessAndDuplicateHeads(t *testing.T) {
	pop := testutil.TwoHouseholds()
	// family 11 loses its head, family 20 gets two
	pop.Roles[entity.Family] = []entity.Role{0, 1, 1, 0, 0}
	idx := buildFlat(t, pop)

	assert.Equal(t, []int{0, -1, 4}, idx.HeadRows(entity.Family))
	assert.Equal(t, []int{0, -1, 1}, idx.Cross(entity.Family, entity.Household))
}

func TestBuildIsDeterministic(t *testing.T) {
	a := buildFlat(t, testutil.TwoHouseholds())
	b := buildFlat(t, testutil.TwoHouseholds())
	assert.Equal(t, a, b)
}

func TestBuildWithoutRoleEnumerationUsesObservedRoles(t *testing.T) {
	schema := entity.DefaultSchema()
	idx, err := Build(testutil.TwoHouseholds().Flat(t, schema), schema, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, []entity.Role{0, 1, 2}, idx.Roles(entity.Household))
	assert.Equal(t, []entity.Role{0, 1}, idx.Roles(entity.TaxUnit))
}

func TestBuildMissingLinkingColumn(t *testing.T) {
	schema := entity.DefaultSchema()
	pop := testutil.TwoHouseholds()
	delete(pop.IDs, entity.TaxUnit)

	_, err := Build(pop.Flat(t, schema), schema, nil, Options{Logger: testutil.TestLogger(t)})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConstruction))
	assert.Contains(t, err.Error(), "idfoy")
}

func TestSplitStoredTableShorter(t *testing.T) {
	schema := entity.DefaultSchema()
	pop := testutil.TwoHouseholds()
	pop.CompositeID[entity.Household] = []int64{2}
	pop.Composite[entity.Household] = map[string]columnar.Vector{"loyer": columnar.FloatVector{700}}

	var seen []Mismatch
	check := func(m Mismatch) error {
		seen = append(seen, m)
		return nil
	}
	idx, err := Build(pop.Split(t, schema), schema, nil, Options{Logger: testutil.TestLogger(t), Check: check})
	require.NoError(t, err)

	require.Len(t, seen, 1)
	m := seen[0]
	assert.Equal(t, entity.Household, m.Entity)
	assert.Equal(t, AuthorityStored, m.Authority)
	assert.Equal(t, 2, m.Identifiers)
	assert.Equal(t, 1, m.StoredRows)
	assert.Equal(t, 3, m.Unmatched)
	assert.Equal(t, seen, idx.Mismatches())

	assert.Equal(t, 1, idx.Count(entity.Household))
	assert.Equal(t, []int{-1, -1, -1, 0, 0}, idx.EntityRowOf(entity.Household))
	assert.Equal(t, []int{0}, idx.TableRows(entity.Household))
	assert.Equal(t, []int{-1, -1, 0}, idx.Cross(entity.Family, entity.Household))
}

func TestSplitStoredTableLonger(t *testing.T) {
	schema := entity.DefaultSchema()
	pop := testutil.TwoHouseholds()
	pop.CompositeID[entity.Household] = []int64{2, 1, 3}
	pop.Composite[entity.Household] = map[string]columnar.Vector{"loyer": columnar.FloatVector{700, 500, 900}}

	idx, err := Build(pop.Split(t, schema), schema, nil, Options{})
	require.NoError(t, err)

	require.Len(t, idx.Mismatches(), 1)
	m := idx.Mismatches()[0]
	assert.Equal(t, AuthorityIndividuals, m.Authority)
	assert.Zero(t, m.Unmatched)
	assert.Contains(t, m.String(), "men")

	assert.Equal(t, 2, idx.Count(entity.Household))
	assert.Equal(t, []int{1, 0}, idx.TableRows(entity.Household))
}

func TestSplitReorderedTableIsNotAMismatch(t *testing.T) {
	schema := entity.DefaultSchema()
	pop := testutil.TwoHouseholds()
	pop.CompositeID[entity.Household] = []int64{2, 1}
	pop.Composite[entity.Household] = map[string]columnar.Vector{"loyer": columnar.FloatVector{700, 500}}

	idx, err := Build(pop.Split(t, schema), schema, nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, idx.Mismatches())
	assert.Equal(t, []int{1, 0}, idx.TableRows(entity.Household))
	assert.Nil(t, idx.TableRows(entity.Family))
}

func TestConsistencyCheckAbortsBuild(t *testing.T) {
	schema := entity.DefaultSchema()
	pop := testutil.TwoHouseholds()
	pop.CompositeID[entity.TaxUnit] = []int64{100, 101, 200}
	pop.Composite[entity.TaxUnit] = map[string]columnar.Vector{"rfr": columnar.FloatVector{1, 2, 3}}

	strict := func(m Mismatch) error { return fmt.Errorf("%s", m) }
	_, err := Build(pop.Split(t, schema), schema, nil, Options{Check: strict})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConstruction))
}

func TestSplitMismatchNeedsStoredIdentifiers(t *testing.T) {
	schema := entity.DefaultSchema()
	s := testutil.TwoHouseholds().Split(t, schema)
	s.Table(entity.Family).DropColumn("idfam")
	require.NoError(t, s.Table(entity.Family).SetColumn("extra", columnar.FloatVector{1, 2, 3}))

	_, err := Build(s, schema, nil, Options{})
	assert.NoError(t, err, "same count without identifiers is taken as is")

	s = testutil.TwoHouseholds().Split(t, schema)
	fam := columnar.NewTable(2)
	require.NoError(t, fam.SetColumn("isol", columnar.BoolVector{true, false}))
	tables := s.Tables()
	tables[entity.Family] = fam
	_, err = Build(splitOf(t, schema, tables), schema, nil, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConstruction))
}
