package datatable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/registry"
	"github.com/MalkIPP/openfisca-core/pkg/storage"
	"github.com/MalkIPP/openfisca-core/pkg/testutil"
)

func TestAggregatePerformance(t *testing.T) {
	testutil.IntegrationTest(t)

	const households, members = 50000, 3
	n := households * members

	schema, err := entity.NewSchema(
		entity.Definition{Kind: entity.Individual, Key: "ind", Symbol: "ind", Leaf: true},
		entity.Definition{Kind: entity.Household, Key: "men", Symbol: "men"},
	)
	require.NoError(t, err)
	reg := registry.New()
	require.NoError(t, reg.RegisterLinking(schema, map[entity.Kind]*registry.RoleEnum{
		entity.Household: registry.NewRoleEnum("pref", "cref", "enf1"),
	}))
	reg.MustRegister(registry.Column{Name: "salaire", Entity: entity.Individual, Type: columnar.Float})

	ids := make(columnar.IntVector, n)
	roles := make(columnar.EnumVector, n)
	salaire := make(columnar.FloatVector, n)
	for i := range ids {
		ids[i] = int64(i / members)
		roles[i] = int16(i % members)
		salaire[i] = float64(i % 1000)
	}
	tbl := columnar.NewTable(n)
	require.NoError(t, tbl.SetColumn("idmen", ids))
	require.NoError(t, tbl.SetColumn("quimen", roles))
	require.NoError(t, tbl.SetColumn("salaire", salaire))

	testutil.NewPerformanceTest(t, "aggregate salaire to households").
		WithThroughputTarget(100000).
		Run(func() (int64, time.Duration) {
			start := time.Now()
			dt, err := New(reg, storage.NewFlat(schema, tbl), Options{Logger: zap.NewNop()})
			require.NoError(t, err)
			sum, err := dt.Get("salaire", Query{Target: entity.Household, Roles: []entity.Role{entity.AllRoles}, Aggregate: true})
			require.NoError(t, err)
			require.Equal(t, households, sum.Len())
			return int64(n), time.Since(start)
		})
}
