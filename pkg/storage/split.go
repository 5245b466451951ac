package storage

import (
	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/errors"
)

// SplitStore keeps one table per entity. Once bound, composite rows are
// translated to stored table rows through the reconciled mapping.
type SplitStore struct {
	schema  *entity.Schema
	tables  map[entity.Kind]*columnar.Table
	members Membership
}

// NewSplit wraps one table per entity of schema.
func NewSplit(schema *entity.Schema, tables map[entity.Kind]*columnar.Table) (*SplitStore, error) {
	for _, k := range schema.Entities() {
		if tables[k] == nil {
			return nil, errors.Newf(errors.ErrorTypeConstruction, "no table for entity %s", schema.Key(k)).
				WithDetail("entity", schema.Key(k))
		}
	}
	return &SplitStore{schema: schema, tables: tables}, nil
}

func (s *SplitStore) Layout() Layout         { return Split }
func (s *SplitStore) Schema() *entity.Schema { return s.schema }
func (s *SplitStore) Bind(m Membership)      { s.members = m }
func (s *SplitStore) Individuals() int       { return s.tables[s.schema.Leaf()].RowCount() }

// Table returns the table of k
func (s *SplitStore) Table(k entity.Kind) *columnar.Table { return s.tables[k] }

// Tables returns every stored table
func (s *SplitStore) Tables() map[entity.Kind]*columnar.Table {
	out := make(map[entity.Kind]*columnar.Table, len(s.tables))
	for k, t := range s.tables {
		out[k] = t
	}
	return out
}

// RowCount returns the reconciled row count of k once bound, and the stored
// row count before that.
func (s *SplitStore) RowCount(k entity.Kind) int {
	if s.members != nil && !s.schema.IsLeaf(k) {
		return s.members.Count(k)
	}
	if t := s.tables[k]; t != nil {
		return t.RowCount()
	}
	return 0
}

// StoredRows returns the row count of k's own table
func (s *SplitStore) StoredRows(k entity.Kind) int {
	if t := s.tables[k]; t != nil {
		return t.RowCount()
	}
	return 0
}

// Has reports whether k's table stores name
func (s *SplitStore) Has(k entity.Kind, name string) bool {
	t := s.tables[k]
	if t == nil {
		return false
	}
	_, ok := t.Column(name)
	return ok
}

func (s *SplitStore) column(k entity.Kind, name string) (columnar.Vector, columnar.Field, error) {
	t := s.tables[k]
	if t == nil {
		return nil, columnar.Field{}, unknownVariable(s.schema, k, name)
	}
	col, ok := t.Column(name)
	if !ok {
		return nil, columnar.Field{}, unknownVariable(s.schema, k, name)
	}
	f, _ := t.Field(name)
	return col, f, nil
}

func (s *SplitStore) tableRows(k entity.Kind) []int {
	if s.members == nil || s.schema.IsLeaf(k) {
		return nil
	}
	return s.members.TableRows(k)
}

// Read returns name from k's table, in entity row order.
func (s *SplitStore) Read(k entity.Kind, name string) (columnar.Vector, error) {
	col, f, err := s.column(k, name)
	if err != nil {
		return nil, err
	}
	if tr := s.tableRows(k); tr != nil {
		return columnar.Gather(col, tr, f.Default), nil
	}
	return col.Clone(), nil
}

// Ensure adds the column to k's table if it is not stored yet
func (s *SplitStore) Ensure(k entity.Kind, f columnar.Field) error {
	t := s.tables[k]
	if t == nil {
		return unknownVariable(s.schema, k, f.Name)
	}
	if _, ok := t.Column(f.Name); ok {
		return nil
	}
	return t.AddColumn(f)
}

// Write stores values at the given entity rows of k
func (s *SplitStore) Write(k entity.Kind, name string, rows []int, values columnar.Vector) error {
	col, _, err := s.column(k, name)
	if err != nil {
		return err
	}
	n := s.RowCount(k)
	if err := checkWrite(name, rows, values, n); err != nil {
		return err
	}
	dst, err := entityRows(rows, n)
	if err != nil {
		return err
	}
	if tr := s.tableRows(k); tr != nil {
		mapped := make([]int, len(dst))
		for j, r := range dst {
			mapped[j] = tr[r]
		}
		dst = mapped
	}
	return wrapScatter(columnar.Scatter(col, dst, values, nil), name)
}

// Linking returns the id<E> and qui<E> columns of the individual table
func (s *SplitStore) Linking(k entity.Kind) ([]int64, []entity.Role, error) {
	return linking(s.tables[s.schema.Leaf()], s.schema, k)
}

// StoredIdentifiers returns the id<E> column of k's own table
func (s *SplitStore) StoredIdentifiers(k entity.Kind) ([]int64, bool) {
	t := s.tables[k]
	if t == nil {
		return nil, false
	}
	col, ok := t.Column(s.schema.IDColumn(k))
	if !ok {
		return nil, false
	}
	return columnar.Ints(col), true
}
