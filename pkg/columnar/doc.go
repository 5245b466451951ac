// Package columnar holds the typed vectors and in-memory tables behind the
// survey storage backends.
//
// # Vectors
//
// A Vector is a fixed-length array of one ScalarType. Four implementations
// exist:
//
//   - FloatVector for amounts, weights and anything that may be missing (NaN)
//   - IntVector for identifiers and counts
//   - BoolVector for flags
//   - EnumVector for small codes such as roles
//
// Every vector exposes a float view so that generic code can read any of them
// without a type switch.
//
// # Row operations
//
// The resolution engine expresses all of its movement between entity levels
// with three primitives:
//
//	out := columnar.Gather(v, rows, fill)           // out[k] = v[rows[k]]
//	err := columnar.Scatter(dst, dstRows, src, nil) // dst[dstRows[k]] = src[k]
//	sum, err := columnar.SumBy(v, groups, n)        // sum[groups[i]] += v[i]
//
// A negative row number means "no row": Gather fills it, Scatter and SumBy
// skip it.
//
// # Tables
//
// Table keeps named columns with their declared type and default value.
// Columns are returned in insertion order.
//
//	t := columnar.NewTable(3)
//	_ = t.AddColumn(columnar.Field{Name: "salaire", Type: columnar.Float})
//	v, _ := t.Column("salaire")
package columnar
