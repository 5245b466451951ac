package testutil

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/registry"
	"github.com/MalkIPP/openfisca-core/pkg/storage"
)

// Population is a survey sample given in individual rows. Composite
// variables are listed with one value per entity row, in identifier order.
type Population struct {
	IDs         map[entity.Kind][]int64
	Roles       map[entity.Kind][]entity.Role
	Individual  map[string]columnar.Vector
	Composite   map[entity.Kind]map[string]columnar.Vector
	CompositeID map[entity.Kind][]int64
}

// TwoHouseholds returns five individuals in two households:
//
//	ind  men  fam      foy
//	0    1/0  10/chef  100/vous
//	1    1/1  10/part  100/conj
//	2    1/2  11/chef  101/vous
//	3    2/0  20/chef  200/vous
//	4    2/1  20/part  201/vous
func TwoHouseholds() *Population {
	return &Population{
		IDs: map[entity.Kind][]int64{
			entity.Household: {1, 1, 1, 2, 2},
			entity.Family:    {10, 10, 11, 20, 20},
			entity.TaxUnit:   {100, 100, 101, 200, 201},
		},
		Roles: map[entity.Kind][]entity.Role{
			entity.Household: {0, 1, 2, 0, 1},
			entity.Family:    {0, 1, 0, 0, 1},
			entity.TaxUnit:   {0, 1, 0, 0, 0},
		},
		Individual: map[string]columnar.Vector{
			"salaire":  columnar.FloatVector{1000, 2000, 300, 4000, 500},
			"age":      columnar.IntVector{45, 43, 19, 60, 58},
			"activite": columnar.BoolVector{true, true, false, true, false},
		},
		Composite: map[entity.Kind]map[string]columnar.Vector{
			entity.Household: {
				"loyer":    columnar.FloatVector{500, 700},
				"zone_apl": columnar.EnumVector{1, 2},
			},
			entity.Family: {
				"isol": columnar.BoolVector{false, true, false},
			},
			entity.TaxUnit: {
				"rfr": columnar.FloatVector{30000, 300, 4000, 500},
			},
		},
		CompositeID: map[entity.Kind][]int64{
			entity.Household: {1, 2},
			entity.Family:    {10, 11, 20},
			entity.TaxUnit:   {100, 101, 200, 201},
		},
	}
}

// Registry returns the registry matching TwoHouseholds.
func Registry(t *testing.T) *registry.Registry {
	t.Helper()
	schema := entity.DefaultSchema()
	r := registry.New()
	require.NoError(t, r.RegisterLinking(schema, registry.FranceRoles()))
	r.MustRegister(
		registry.Column{Name: "salaire", Entity: entity.Individual, Type: columnar.Float, Label: "salaire"},
		registry.Column{Name: "age", Entity: entity.Individual, Type: columnar.Int, Default: -1},
		registry.Column{Name: "activite", Entity: entity.Individual, Type: columnar.Bool},
		registry.Column{Name: "loyer", Entity: entity.Household, Type: columnar.Float},
		registry.Column{Name: "zone_apl", Entity: entity.Household, Type: columnar.Enum, Default: 2},
		registry.Column{Name: "isol", Entity: entity.Family, Type: columnar.Bool},
		registry.Column{Name: "rfr", Entity: entity.TaxUnit, Type: columnar.Float},
		registry.Column{Name: "wprm", Entity: entity.Household, Type: columnar.Float, Default: 1},
	)
	return r
}

// IndividualTable returns the individual table: linking columns and
// individual variables.
func (p *Population) IndividualTable(t *testing.T, schema *entity.Schema) *columnar.Table {
	t.Helper()
	n := 0
	for _, ids := range p.IDs {
		n = len(ids)
	}
	tbl := columnar.NewTable(n)
	for _, k := range schema.Composites() {
		ids, ok := p.IDs[k]
		if !ok {
			continue
		}
		require.NoError(t, tbl.SetColumn(schema.IDColumn(k), columnar.IntVector(ids).Clone()))
		roles := make(columnar.EnumVector, len(p.Roles[k]))
		for i, r := range p.Roles[k] {
			roles[i] = int16(r)
		}
		require.NoError(t, tbl.SetColumn(schema.RoleColumn(k), roles))
	}
	for _, name := range sortedNames(p.Individual) {
		require.NoError(t, tbl.SetColumn(name, p.Individual[name].Clone()))
	}
	return tbl
}

// Flat returns the population in the flat layout: composite variables are
// repeated on every member.
func (p *Population) Flat(t *testing.T, schema *entity.Schema) *storage.FlatStore {
	t.Helper()
	tbl := p.IndividualTable(t, schema)
	for _, k := range schema.Composites() {
		if _, ok := p.IDs[k]; !ok {
			continue
		}
		rowOf := p.rowOf(k)
		for _, name := range sortedNames(p.Composite[k]) {
			require.NoError(t, tbl.SetColumn(name, columnar.Gather(p.Composite[k][name], rowOf, 0)))
		}
	}
	return storage.NewFlat(schema, tbl)
}

// Split returns the population in the split layout.
func (p *Population) Split(t *testing.T, schema *entity.Schema) *storage.SplitStore {
	t.Helper()
	tables := map[entity.Kind]*columnar.Table{schema.Leaf(): p.IndividualTable(t, schema)}
	for _, k := range schema.Composites() {
		ids := p.CompositeID[k]
		tbl := columnar.NewTable(len(ids))
		require.NoError(t, tbl.SetColumn(schema.IDColumn(k), columnar.IntVector(append([]int64(nil), ids...))))
		for _, name := range sortedNames(p.Composite[k]) {
			require.NoError(t, tbl.SetColumn(name, p.Composite[k][name].Clone()))
		}
		tables[k] = tbl
	}
	s, err := storage.NewSplit(schema, tables)
	require.NoError(t, err)
	return s
}

func (p *Population) rowOf(k entity.Kind) []int {
	pos := make(map[int64]int, len(p.CompositeID[k]))
	for row, id := range p.CompositeID[k] {
		pos[id] = row
	}
	out := make([]int, len(p.IDs[k]))
	for i, id := range p.IDs[k] {
		row, ok := pos[id]
		if !ok {
			row = -1
		}
		out[i] = row
	}
	return out
}

func sortedNames(m map[string]columnar.Vector) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
