package columnar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableColumns(t *testing.T) {
	tbl := NewTable(3)
	require.NoError(t, tbl.AddColumn(Field{Name: "salaire", Type: Float, Default: 0}))
	require.NoError(t, tbl.AddColumn(Field{Name: "age", Type: Int, Default: -1}))
	assert.Error(t, tbl.AddColumn(Field{Name: "age", Type: Int}))

	age, ok := tbl.Column("age")
	require.True(t, ok)
	assert.Equal(t, IntVector{-1, -1, -1}, age)

	require.NoError(t, tbl.SetColumn("idmen", IntVector{1, 1, 2}))
	assert.Error(t, tbl.SetColumn("idfam", IntVector{1}))
	assert.Equal(t, []string{"salaire", "age", "idmen"}, tbl.ColumnNames())

	assert.True(t, tbl.DropColumn("age"))
	assert.False(t, tbl.DropColumn("age"))
	assert.Equal(t, []string{"salaire", "idmen"}, tbl.ColumnNames())
	assert.Equal(t, 2, tbl.ColumnCount())
}

func TestTableFirstColumnFixesRowCount(t *testing.T) {
	tbl := NewTable(0)
	require.NoError(t, tbl.SetColumn("x", FloatVector{1, 2}))
	assert.Equal(t, 2, tbl.RowCount())
}

func TestTableSetFieldCasts(t *testing.T) {
	tbl := NewTable(2)
	require.NoError(t, tbl.SetColumn("isol", FloatVector{1, 0}))
	require.NoError(t, tbl.SetField(Field{Name: "isol", Type: Bool}))

	v, _ := tbl.Column("isol")
	assert.Equal(t, BoolVector{true, false}, v)
	f, ok := tbl.Field("isol")
	require.True(t, ok)
	assert.Equal(t, Bool, f.Type)

	assert.Error(t, tbl.SetField(Field{Name: "missing"}))
}

func TestTableFilter(t *testing.T) {
	tbl := NewTable(4)
	require.NoError(t, tbl.SetColumn("idmen", IntVector{1, 1, 2, 3}))
	require.NoError(t, tbl.SetColumn("salaire", FloatVector{10, 20, 30, 40}))

	sub := tbl.Filter([]int{0, 1, 3})
	assert.Equal(t, 3, sub.RowCount())
	v, _ := sub.Column("salaire")
	assert.Equal(t, FloatVector{10, 20, 40}, v)
	assert.Equal(t, tbl.ColumnNames(), sub.ColumnNames())
	assert.Positive(t, sub.MemoryUsage())
}
