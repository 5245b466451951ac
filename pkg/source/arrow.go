// Package source loads survey data into storage backends.
//
// Arrow records are the in-memory input: one record per table, columns
// converted to the engine's scalar types. SQL databases are read through
// database/sql and staged as Arrow records, so both paths share the same
// conversion and null handling.
package source

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"go.uber.org/zap"

	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/errors"
	"github.com/MalkIPP/openfisca-core/pkg/metrics"
	"github.com/MalkIPP/openfisca-core/pkg/storage"
)

// FromArrow converts rec into a table.
//
// Floating point columns become Float, 32 and 64-bit integers Int, 8 and
// 16-bit integers Enum, booleans Bool. Nulls become NaN; an integer or
// boolean column holding nulls is converted to Float so that conforming the
// table fills them with the registered default. Columns of other types are
// skipped.
func FromArrow(rec arrow.Record, logger *zap.Logger) (*columnar.Table, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		return nil, errors.New(errors.ErrorTypeSource, "nil arrow record")
	}
	n := int(rec.NumRows())
	tbl := columnar.NewTable(n)
	for i := 0; i < int(rec.NumCols()); i++ {
		name := rec.ColumnName(i)
		v, ok := convertArray(rec.Column(i))
		if !ok {
			logger.Debug("skipping column of unsupported type",
				zap.String("column", name),
				zap.String("type", rec.Column(i).DataType().String()))
			continue
		}
		if err := tbl.SetColumn(name, v); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSource, "invalid arrow column").WithDetail("column", name)
		}
	}
	return tbl, nil
}

// FlatFromArrow loads a flat layout from a single individual-level record
func FlatFromArrow(schema *entity.Schema, rec arrow.Record, logger *zap.Logger) (*storage.FlatStore, error) {
	tbl, err := FromArrow(rec, logger)
	if err != nil {
		return nil, err
	}
	metrics.SourceRows.WithLabelValues("arrow", schema.Key(schema.Leaf())).Add(float64(tbl.RowCount()))
	return storage.NewFlat(schema, tbl), nil
}

// SplitFromArrow loads a split layout from one record per entity
func SplitFromArrow(schema *entity.Schema, recs map[entity.Kind]arrow.Record, logger *zap.Logger) (*storage.SplitStore, error) {
	tables := make(map[entity.Kind]*columnar.Table, len(recs))
	for k, rec := range recs {
		tbl, err := FromArrow(rec, logger)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to convert entity table").
				WithDetail("entity", schema.Key(k))
		}
		metrics.SourceRows.WithLabelValues("arrow", schema.Key(k)).Add(float64(tbl.RowCount()))
		tables[k] = tbl
	}
	return storage.NewSplit(schema, tables)
}

func convertArray(arr arrow.Array) (columnar.Vector, bool) {
	n := arr.Len()
	switch a := arr.(type) {
	case *array.Float64:
		return floats(n, a.IsNull, a.Value), true
	case *array.Float32:
		return floats(n, a.IsNull, func(i int) float64 { return float64(a.Value(i)) }), true
	case *array.Int64:
		return ints(arr, func(i int) int64 { return a.Value(i) }), true
	case *array.Int32:
		return ints(arr, func(i int) int64 { return int64(a.Value(i)) }), true
	case *array.Uint32:
		return ints(arr, func(i int) int64 { return int64(a.Value(i)) }), true
	case *array.Int16:
		return enums(arr, func(i int) int16 { return a.Value(i) }), true
	case *array.Int8:
		return enums(arr, func(i int) int16 { return int16(a.Value(i)) }), true
	case *array.Uint8:
		return enums(arr, func(i int) int16 { return int16(a.Value(i)) }), true
	case *array.Boolean:
		if a.NullN() > 0 {
			return floats(n, a.IsNull, func(i int) float64 {
				if a.Value(i) {
					return 1
				}
				return 0
			}), true
		}
		out := make(columnar.BoolVector, n)
		for i := range out {
			out[i] = a.Value(i)
		}
		return out, true
	}
	return nil, false
}

func floats(n int, isNull func(int) bool, value func(int) float64) columnar.FloatVector {
	out := make(columnar.FloatVector, n)
	for i := range out {
		if isNull(i) {
			out[i] = math.NaN()
			continue
		}
		out[i] = value(i)
	}
	return out
}

func ints(arr arrow.Array, value func(int) int64) columnar.Vector {
	if arr.NullN() > 0 {
		return floats(arr.Len(), arr.IsNull, func(i int) float64 { return float64(value(i)) })
	}
	out := make(columnar.IntVector, arr.Len())
	for i := range out {
		out[i] = value(i)
	}
	return out
}

func enums(arr arrow.Array, value func(int) int16) columnar.Vector {
	if arr.NullN() > 0 {
		return floats(arr.Len(), arr.IsNull, func(i int) float64 { return float64(value(i)) })
	}
	out := make(columnar.EnumVector, arr.Len())
	for i := range out {
		out[i] = value(i)
	}
	return out
}
