package source

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/datatable"
	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/storage"
	"github.com/MalkIPP/openfisca-core/pkg/testutil"
)

func individualRecord(t *testing.T, mem memory.Allocator) arrow.Record {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "idmen", Type: arrow.PrimitiveTypes.Int64},
		{Name: "quimen", Type: arrow.PrimitiveTypes.Int16},
		{Name: "salaire", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "age", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "activite", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "nom", Type: arrow.BinaryTypes.String},
	}, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 1, 2}, nil)
	b.Field(1).(*array.Int16Builder).AppendValues([]int16{0, 1, 0}, nil)
	b.Field(2).(*array.Float64Builder).AppendValues([]float64{1000, 0, 300}, []bool{true, false, true})
	b.Field(3).(*array.Int32Builder).AppendValues([]int32{45, 43, 0}, []bool{true, true, false})
	b.Field(4).(*array.BooleanBuilder).AppendValues([]bool{true, false, true}, nil)
	b.Field(5).(*array.StringBuilder).AppendValues([]string{"a", "b", "c"}, nil)
	return b.NewRecord()
}

func TestFromArrow(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := individualRecord(t, mem)
	defer rec.Release()

	tbl, err := FromArrow(rec, testutil.TestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.RowCount())
	assert.Equal(t, []string{"idmen", "quimen", "salaire", "age", "activite"}, tbl.ColumnNames(), "strings are skipped")

	idmen, _ := tbl.Column("idmen")
	assert.Equal(t, columnar.IntVector{1, 1, 2}, idmen)
	quimen, _ := tbl.Column("quimen")
	assert.Equal(t, columnar.EnumVector{0, 1, 0}, quimen)
	activite, _ := tbl.Column("activite")
	assert.Equal(t, columnar.BoolVector{true, false, true}, activite)

	salaire, _ := tbl.Column("salaire")
	require.Equal(t, columnar.Float, salaire.Type())
	assert.True(t, math.IsNaN(salaire.Float(1)))

	age, _ := tbl.Column("age")
	require.Equal(t, columnar.Float, age.Type(), "integer column with nulls is widened")
	assert.Equal(t, 43.0, age.Float(1))
	assert.True(t, math.IsNaN(age.Float(2)))
}

func TestFromArrowNil(t *testing.T) {
	_, err := FromArrow(nil, nil)
	assert.Error(t, err)
}

func TestFlatFromArrowConformsNulls(t *testing.T) {
	mem := memory.NewGoAllocator()
	rec := individualRecord(t, mem)
	defer rec.Release()

	schema, err := entity.NewSchema(
		entity.Definition{Kind: entity.Individual, Key: "ind", Symbol: "ind", Leaf: true},
		entity.Definition{Kind: entity.Household, Key: "men", Symbol: "men"},
	)
	require.NoError(t, err)
	store, err := FlatFromArrow(schema, rec, nil)
	require.NoError(t, err)

	reg := testutil.Registry(t)
	report, err := storage.Conform(store, reg, testutil.TestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Filled["salaire"])
	assert.Equal(t, 1, report.Filled["age"])

	dt, err := datatable.New(reg, store, datatable.Options{Logger: testutil.TestLogger(t)})
	require.NoError(t, err)
	age, err := dt.Get("age", datatable.Query{})
	require.NoError(t, err)
	assert.Equal(t, columnar.IntVector{45, 43, -1}, age)

	total, err := dt.Get("salaire", datatable.Query{Target: entity.Household, Roles: []entity.Role{entity.AllRoles}, Aggregate: true})
	require.NoError(t, err)
	assert.Equal(t, columnar.FloatVector{1000, 300}, total)
}

func TestSplitFromArrow(t *testing.T) {
	mem := memory.NewGoAllocator()
	ind := individualRecord(t, mem)
	defer ind.Release()

	menSchema := arrow.NewSchema([]arrow.Field{
		{Name: "idmen", Type: arrow.PrimitiveTypes.Int64},
		{Name: "loyer", Type: arrow.PrimitiveTypes.Float32},
	}, nil)
	b := array.NewRecordBuilder(mem, menSchema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{2, 1}, nil)
	b.Field(1).(*array.Float32Builder).AppendValues([]float32{700, 500}, nil)
	men := b.NewRecord()
	defer men.Release()

	schema, err := entity.NewSchema(
		entity.Definition{Kind: entity.Individual, Key: "ind", Symbol: "ind", Leaf: true},
		entity.Definition{Kind: entity.Household, Key: "men", Symbol: "men"},
	)
	require.NoError(t, err)
	store, err := SplitFromArrow(schema, map[entity.Kind]arrow.Record{
		entity.Individual: ind,
		entity.Household:  men,
	}, nil)
	require.NoError(t, err)

	reg := testutil.Registry(t)
	_, err = storage.Conform(store, reg, nil)
	require.NoError(t, err)
	dt, err := datatable.New(reg, store, datatable.Options{})
	require.NoError(t, err)

	loyer, err := dt.Get("loyer", datatable.Query{Target: entity.Individual})
	require.NoError(t, err)
	assert.Equal(t, columnar.FloatVector{500, 500, 700}, loyer)
}
