package storage

import (
	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/errors"
)

// FlatStore keeps every variable in one individual-level table. Composite
// variables are read from the role-0 member of each entity and written to
// every member.
type FlatStore struct {
	schema  *entity.Schema
	table   *columnar.Table
	members Membership
}

// NewFlat wraps an individual-level table.
func NewFlat(schema *entity.Schema, table *columnar.Table) *FlatStore {
	return &FlatStore{schema: schema, table: table}
}

func (s *FlatStore) Layout() Layout         { return Flat }
func (s *FlatStore) Schema() *entity.Schema { return s.schema }
func (s *FlatStore) Bind(m Membership)      { s.members = m }
func (s *FlatStore) Individuals() int       { return s.table.RowCount() }

// StoredRows is not available in the flat layout.
func (s *FlatStore) StoredRows(entity.Kind) int { return -1 }

// Table returns the individual table
func (s *FlatStore) Table() *columnar.Table { return s.table }

// Tables returns the individual table under the leaf entity
func (s *FlatStore) Tables() map[entity.Kind]*columnar.Table {
	return map[entity.Kind]*columnar.Table{s.schema.Leaf(): s.table}
}

// RowCount returns the number of rows of k; zero for composites until bound.
func (s *FlatStore) RowCount(k entity.Kind) int {
	if s.schema.IsLeaf(k) {
		return s.table.RowCount()
	}
	if s.members == nil {
		return 0
	}
	return s.members.Count(k)
}

// Has reports whether name is stored. Every level shares the same table.
func (s *FlatStore) Has(_ entity.Kind, name string) bool {
	_, ok := s.table.Column(name)
	return ok
}

// Read returns name at level k. A composite read takes the value of each
// entity's role-0 member; headless entities get the column default.
func (s *FlatStore) Read(k entity.Kind, name string) (columnar.Vector, error) {
	col, ok := s.table.Column(name)
	if !ok {
		return nil, unknownVariable(s.schema, k, name)
	}
	if s.schema.IsLeaf(k) {
		return col.Clone(), nil
	}
	if s.members == nil {
		return nil, unbound(s.schema, k)
	}
	f, _ := s.table.Field(name)
	return columnar.Gather(col, s.members.HeadRows(k), f.Default), nil
}

// Ensure adds the column if it is not stored yet
func (s *FlatStore) Ensure(_ entity.Kind, f columnar.Field) error {
	if _, ok := s.table.Column(f.Name); ok {
		return nil
	}
	return s.table.AddColumn(f)
}

// Write stores values at level k. Composite values are copied to every
// member individual of the written entity rows.
func (s *FlatStore) Write(k entity.Kind, name string, rows []int, values columnar.Vector) error {
	col, ok := s.table.Column(name)
	if !ok {
		return unknownVariable(s.schema, k, name)
	}
	if s.schema.IsLeaf(k) {
		n := s.table.RowCount()
		if err := checkWrite(name, rows, values, n); err != nil {
			return err
		}
		dst, err := entityRows(rows, n)
		if err != nil {
			return err
		}
		return wrapScatter(columnar.Scatter(col, dst, values, nil), name)
	}
	if s.members == nil {
		return unbound(s.schema, k)
	}
	n := s.members.Count(k)
	if err := checkWrite(name, rows, values, n); err != nil {
		return err
	}
	written, err := entityRows(rows, n)
	if err != nil {
		return err
	}
	pos := make([]int, n)
	for i := range pos {
		pos[i] = -1
	}
	for j, r := range written {
		pos[r] = j
	}
	var dst, src []int
	for ind, r := range s.members.EntityRowOf(k) {
		if r >= 0 && pos[r] >= 0 {
			dst = append(dst, ind)
			src = append(src, pos[r])
		}
	}
	if dst == nil {
		return nil
	}
	return wrapScatter(columnar.Scatter(col, dst, values, src), name)
}

// Linking returns the id<E> and qui<E> columns of k.
func (s *FlatStore) Linking(k entity.Kind) ([]int64, []entity.Role, error) {
	return linking(s.table, s.schema, k)
}

// StoredIdentifiers is not available in the flat layout.
func (s *FlatStore) StoredIdentifiers(entity.Kind) ([]int64, bool) { return nil, false }

// entityRows validates rows against n; nil rows means all of them.
func entityRows(rows []int, n int) ([]int, error) {
	if rows == nil {
		return columnar.Seq(n), nil
	}
	for _, r := range rows {
		if r < 0 || r >= n {
			return nil, errors.Newf(errors.ErrorTypeValidation, "row %d out of range [0, %d)", r, n)
		}
	}
	return rows, nil
}

func wrapScatter(err error, name string) error {
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "write failed").WithDetail("variable", name)
	}
	return nil
}
