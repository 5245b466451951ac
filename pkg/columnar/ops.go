package columnar

import (
	"fmt"
	"math"
)

// New returns a vector of n values of type t, all set to fill.
func New(t ScalarType, n int, fill float64) Vector {
	switch t {
	case Int:
		out := make(IntVector, n)
		if iv := toInt(fill); iv != 0 {
			for i := range out {
				out[i] = iv
			}
		}
		return out
	case Bool:
		out := make(BoolVector, n)
		if fill != 0 {
			for i := range out {
				out[i] = true
			}
		}
		return out
	case Enum:
		out := make(EnumVector, n)
		if ev := int16(toInt(fill)); ev != 0 {
			for i := range out {
				out[i] = ev
			}
		}
		return out
	default:
		out := make(FloatVector, n)
		if fill != 0 {
			for i := range out {
				out[i] = fill
			}
		}
		return out
	}
}

// Seq returns the row numbers 0..n-1.
func Seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// Convert casts v to type t. When v already has type t it is returned as is.
// Floats are truncated toward zero when cast to integers; NaN becomes 0.
func Convert(v Vector, t ScalarType) Vector {
	if v.Type() == t {
		return v
	}
	n := v.Len()
	switch t {
	case Int:
		out := make(IntVector, n)
		for i := 0; i < n; i++ {
			out[i] = toInt(v.Float(i))
		}
		return out
	case Enum:
		out := make(EnumVector, n)
		for i := 0; i < n; i++ {
			out[i] = int16(toInt(v.Float(i)))
		}
		return out
	case Bool:
		out := make(BoolVector, n)
		for i := 0; i < n; i++ {
			out[i] = v.Float(i) != 0
		}
		return out
	default:
		out := make(FloatVector, n)
		for i := 0; i < n; i++ {
			out[i] = v.Float(i)
		}
		return out
	}
}

func toInt(f float64) int64 {
	if math.IsNaN(f) {
		return 0
	}
	return int64(math.Trunc(f))
}

// Gather returns a vector with out[k] = v[rows[k]]; negative rows take fill.
func Gather(v Vector, rows []int, fill float64) Vector {
	out := New(v.Type(), len(rows), fill)
	switch o := out.(type) {
	case FloatVector:
		gather([]float64(o), []float64(v.(FloatVector)), rows)
	case IntVector:
		gather([]int64(o), []int64(v.(IntVector)), rows)
	case BoolVector:
		gather([]bool(o), []bool(v.(BoolVector)), rows)
	case EnumVector:
		gather([]int16(o), []int16(v.(EnumVector)), rows)
	}
	return out
}

func gather[T any](dst, src []T, rows []int) {
	for k, r := range rows {
		if r >= 0 {
			dst[k] = src[r]
		}
	}
}

// Scatter sets dst[dstRows[k]] = src[srcRows[k]], casting src to dst's type.
// A nil srcRows means src is read in order. Negative rows on either side are
// skipped. Repeated destination rows keep the last value written.
func Scatter(dst Vector, dstRows []int, src Vector, srcRows []int) error {
	if err := checkRows(dstRows, src, srcRows); err != nil {
		return err
	}
	src = Convert(src, dst.Type())
	switch d := dst.(type) {
	case FloatVector:
		scatter([]float64(d), []float64(src.(FloatVector)), dstRows, srcRows)
	case IntVector:
		scatter([]int64(d), []int64(src.(IntVector)), dstRows, srcRows)
	case BoolVector:
		scatter([]bool(d), []bool(src.(BoolVector)), dstRows, srcRows)
	case EnumVector:
		scatter([]int16(d), []int16(src.(EnumVector)), dstRows, srcRows)
	default:
		return fmt.Errorf("unsupported vector %T", dst)
	}
	return nil
}

func scatter[T any](dst, src []T, dstRows, srcRows []int) {
	for k, r := range dstRows {
		s := k
		if srcRows != nil {
			s = srcRows[k]
		}
		if r < 0 || s < 0 {
			continue
		}
		dst[r] = src[s]
	}
}

// ScatterAdd adds src[srcRows[k]] into dst[dstRows[k]]. dst must be numeric.
func ScatterAdd(dst Vector, dstRows []int, src Vector, srcRows []int) error {
	if err := checkRows(dstRows, src, srcRows); err != nil {
		return err
	}
	switch d := dst.(type) {
	case FloatVector:
		scatterAdd([]float64(d), []float64(Convert(src, Float).(FloatVector)), dstRows, srcRows)
	case IntVector:
		scatterAdd([]int64(d), []int64(Convert(src, Int).(IntVector)), dstRows, srcRows)
	case EnumVector:
		scatterAdd([]int16(d), []int16(Convert(src, Enum).(EnumVector)), dstRows, srcRows)
	default:
		return fmt.Errorf("cannot add into %s vector", dst.Type())
	}
	return nil
}

func scatterAdd[T int16 | int64 | float64](dst, src []T, dstRows, srcRows []int) {
	for k, r := range dstRows {
		s := k
		if srcRows != nil {
			s = srcRows[k]
		}
		if r < 0 || s < 0 {
			continue
		}
		dst[r] += src[s]
	}
}

func checkRows(dstRows []int, src Vector, srcRows []int) error {
	if srcRows != nil && len(srcRows) != len(dstRows) {
		return fmt.Errorf("row selections differ in length: %d destination, %d source", len(dstRows), len(srcRows))
	}
	if srcRows == nil && len(dstRows) > src.Len() {
		return fmt.Errorf("%d destination rows for %d source values", len(dstRows), src.Len())
	}
	return nil
}

// SumType is the type produced when values of type t are summed: floats stay
// floats, everything else becomes an integer.
func SumType(t ScalarType) ScalarType {
	if t == Float {
		return Float
	}
	return Int
}

// Add returns the elementwise sum of a and b.
func Add(a, b Vector) (Vector, error) {
	if a.Len() != b.Len() {
		return nil, fmt.Errorf("cannot add vectors of length %d and %d", a.Len(), b.Len())
	}
	t := SumType(a.Type())
	if b.Type() == Float {
		t = Float
	}
	out := Convert(a, t).Clone()
	if err := ScatterAdd(out, Seq(a.Len()), b, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// SumBy sums v into n groups: out[groups[i]] += v[i]. Entries with a
// negative group are skipped. Groups without any entry sum to zero.
func SumBy(v Vector, groups []int, n int) (Vector, error) {
	if len(groups) != v.Len() {
		return nil, fmt.Errorf("%d groups for %d values", len(groups), v.Len())
	}
	out := New(SumType(v.Type()), n, 0)
	if err := ScatterAdd(out, groups, v, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// Scale multiplies every value of v by factor and casts the result back to
// v's type.
func Scale(v Vector, factor float64) Vector {
	out := make(FloatVector, v.Len())
	for i := range out {
		out[i] = v.Float(i) * factor
	}
	return Convert(out, v.Type())
}

// FillNaN replaces NaN values of a float vector with fill, in place.
// Non-float vectors cannot hold NaN and are returned untouched.
func FillNaN(v Vector, fill float64) (Vector, int) {
	fv, ok := v.(FloatVector)
	if !ok {
		return v, 0
	}
	filled := 0
	for i, x := range fv {
		if math.IsNaN(x) {
			fv[i] = fill
			filled++
		}
	}
	return fv, filled
}
