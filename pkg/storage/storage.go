// Package storage keeps survey values in one of two layouts and gives the
// engine a uniform way to read and write them.
//
// The flat layout holds a single individual-level table: a household
// variable is repeated on every member of the household. The split layout
// holds one table per entity with one row per entity instance.
//
// Composite-level access in both layouts depends on membership arrays that
// only exist once the index is built, so backends are bound to the index
// with Bind before composite reads or writes are possible.
package storage

import (
	"fmt"
	"strings"

	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/errors"
)

// Layout is the physical arrangement of the stored tables
type Layout int

const (
	// Flat stores every variable in the individual table
	Flat Layout = iota
	// Split stores each entity's variables in its own table
	Split
)

// String returns the layout name used in configuration files
func (l Layout) String() string {
	switch l {
	case Flat:
		return "flat"
	case Split:
		return "split"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// ParseLayout parses "flat" or "split"
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "flat", "":
		return Flat, nil
	case "split":
		return Split, nil
	}
	return Flat, errors.Newf(errors.ErrorTypeConfig, "unknown storage layout %q", s)
}

// Membership exposes the index arrays a backend needs for composite access.
type Membership interface {
	// Count is the number of instances of k
	Count(k entity.Kind) int
	// EntityRowOf maps each individual to its row in k, -1 when unassigned
	EntityRowOf(k entity.Kind) []int
	// HeadRows maps each row of k to its role-0 individual, -1 when headless
	HeadRows(k entity.Kind) []int
	// TableRows maps each row of k to its stored table row; nil means identity
	TableRows(k entity.Kind) []int
}

// Backend is the storage seen by the index builder and the resolver.
// Entity rows are the reconciled rows of the index, not stored table rows.
type Backend interface {
	Layout() Layout
	Schema() *entity.Schema

	// RowCount is the number of values Read returns for k
	RowCount(k entity.Kind) int
	Has(k entity.Kind, name string) bool
	// Read returns a copy of variable name at level k
	Read(k entity.Kind, name string) (columnar.Vector, error)
	// Ensure creates name at level k, filled with the field default, if absent
	Ensure(k entity.Kind, f columnar.Field) error
	// Write sets values[j] at entity row rows[j]; nil rows means every row
	Write(k entity.Kind, name string, rows []int, values columnar.Vector) error
	Bind(m Membership)

	// Tables returns the stored tables by owning entity
	Tables() map[entity.Kind]*columnar.Table

	// Individuals is the number of individual rows
	Individuals() int
	// Linking returns the id<E> and qui<E> columns of the individual table
	Linking(k entity.Kind) ([]int64, []entity.Role, error)
	// StoredRows is the row count of k's own table, -1 in the flat layout
	StoredRows(k entity.Kind) int
	// StoredIdentifiers returns the id<E> column of k's own table
	StoredIdentifiers(k entity.Kind) ([]int64, bool)
}

// linking reads the id/role columns of k from the individual table t.
func linking(t *columnar.Table, schema *entity.Schema, k entity.Kind) ([]int64, []entity.Role, error) {
	idName, roleName := schema.IDColumn(k), schema.RoleColumn(k)
	ids, ok := t.Column(idName)
	if !ok {
		return nil, nil, missingLinking(schema, k, idName)
	}
	quis, ok := t.Column(roleName)
	if !ok {
		return nil, nil, missingLinking(schema, k, roleName)
	}
	raw := columnar.Ints(quis)
	roles := make([]entity.Role, len(raw))
	for i, r := range raw {
		roles[i] = entity.Role(r)
	}
	return columnar.Ints(ids), roles, nil
}

func missingLinking(schema *entity.Schema, k entity.Kind, column string) *errors.Error {
	return errors.Newf(errors.ErrorTypeConstruction, "missing linking column %q for entity %s", column, schema.Key(k)).
		WithDetail("entity", schema.Key(k)).
		WithDetail("column", column)
}

func unknownVariable(schema *entity.Schema, k entity.Kind, name string) *errors.Error {
	return errors.Newf(errors.ErrorTypeLookup, "variable %q not stored", name).
		WithDetail("entity", schema.Key(k))
}

func unbound(schema *entity.Schema, k entity.Kind) *errors.Error {
	return errors.Newf(errors.ErrorTypeLookup, "no index bound for %s access", schema.Key(k)).
		WithDetail("entity", schema.Key(k))
}

func checkWrite(name string, rows []int, values columnar.Vector, n int) error {
	want := n
	if rows != nil {
		want = len(rows)
	}
	if values.Len() != want {
		return errors.Newf(errors.ErrorTypeValidation, "%d values written to %d rows of %q", values.Len(), want, name)
	}
	return nil
}
