// Package index builds the membership arrays that relate individuals to the
// composite entities they belong to.
//
// For every composite entity the index holds the sorted list of entity
// identifiers, the entity row of each individual, the individuals holding
// each role, the role-0 member of each entity row and, for every other
// composite, the row reached through that role-0 member. All arrays are
// computed once by Build and never modified afterwards.
package index

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/errors"
	"github.com/MalkIPP/openfisca-core/pkg/storage"
)

// Source is the storage view the builder reads linking columns from.
type Source interface {
	Layout() storage.Layout
	Individuals() int
	Linking(k entity.Kind) ([]int64, []entity.Role, error)
	StoredRows(k entity.Kind) int
	StoredIdentifiers(k entity.Kind) ([]int64, bool)
}

// RoleSource returns the role enumeration of a composite entity. found is
// false when no enumeration is registered; the builder then uses the roles
// present in the data.
type RoleSource func(k entity.Kind) (roles []entity.Role, found bool)

// Authority names the identifier set that won a reconciliation.
type Authority string

const (
	// AuthorityIndividuals keeps the identifiers found on individuals
	AuthorityIndividuals Authority = "individuals"
	// AuthorityStored keeps the identifiers of the entity's own table
	AuthorityStored Authority = "stored"
)

// Mismatch describes an entity whose individual-level identifiers disagree
// with its own table in the split layout.
type Mismatch struct {
	Entity      entity.Kind
	Key         string
	Identifiers int
	StoredRows  int
	// Unmatched counts entity rows without a stored row, or individuals
	// without an entity row, after reconciliation
	Unmatched int
	Authority Authority
}

func (m Mismatch) String() string {
	return fmt.Sprintf("list of identifiers is not consistent for %s: %d on individuals, %d stored, %s kept, %d unmatched",
		m.Key, m.Identifiers, m.StoredRows, m.Authority, m.Unmatched)
}

// ConsistencyCheck is called for every mismatch. A non-nil error aborts the
// build.
type ConsistencyCheck func(Mismatch) error

// Options configures Build
type Options struct {
	Logger *zap.Logger
	Check  ConsistencyCheck
}

// JoinPair lists, in ascending individual order, the individuals holding a
// role and the entity row each of them belongs to.
type JoinPair struct {
	Individuals []int
	Units       []int
}

// Len returns the number of pairs
func (p JoinPair) Len() int { return len(p.Individuals) }

type entityIndex struct {
	ids       []int64
	rowOf     []int
	roles     []entity.Role
	pairs     map[entity.Role]JoinPair
	heads     []int
	cross     map[entity.Kind][]int
	tableRows []int
}

// Index is the immutable result of Build. Slices returned by its accessors
// are shared and must not be modified.
type Index struct {
	schema      *entity.Schema
	individuals int
	entities    map[entity.Kind]*entityIndex
	mismatches  []Mismatch
}

// Build reads the linking columns of every composite entity of schema and
// computes the index.
func Build(src Source, schema *entity.Schema, roles RoleSource, opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	n := src.Individuals()
	idx := &Index{
		schema:      schema,
		individuals: n,
		entities:    make(map[entity.Kind]*entityIndex),
	}

	for _, k := range schema.Composites() {
		ids, quis, err := src.Linking(k)
		if err != nil {
			logger.Error("index needs linking columns",
				zap.String("entity", schema.Key(k)),
				zap.String("id_column", schema.IDColumn(k)),
				zap.String("role_column", schema.RoleColumn(k)))
			return nil, err
		}
		if len(ids) != n || len(quis) != n {
			return nil, errors.Newf(errors.ErrorTypeConstruction, "linking columns of %s do not cover %d individuals", schema.Key(k), n).
				WithDetail("entity", schema.Key(k))
		}

		e := &entityIndex{ids: uniqueSorted(ids)}
		if src.Layout() == storage.Split {
			m, err := reconcile(src, schema, k, e)
			if err != nil {
				return nil, err
			}
			if m != nil {
				e.rowOf = locate(e.ids, ids)
				m.Unmatched += countMissing(e.rowOf)
				logger.Warn("inconsistent identifiers", zap.String("entity", m.Key),
					zap.Int("individual_ids", m.Identifiers),
					zap.Int("stored_rows", m.StoredRows),
					zap.String("authority", string(m.Authority)),
					zap.Int("unmatched", m.Unmatched))
				if opts.Check != nil {
					if err := opts.Check(*m); err != nil {
						return nil, errors.Wrap(err, errors.ErrorTypeConstruction, "consistency check failed").
							WithDetail("entity", m.Key)
					}
				}
				idx.mismatches = append(idx.mismatches, *m)
			}
		}
		if e.rowOf == nil {
			e.rowOf = locate(e.ids, ids)
		}

		enum, found := roleList(roles, k)
		if !found {
			enum = observedRoles(quis)
		}
		e.roles = enum
		e.pairs = make(map[entity.Role]JoinPair, len(enum))
		for _, r := range enum {
			e.pairs[r] = pairFor(r, quis, e.rowOf)
		}
		e.heads = headRows(quis, e.rowOf, len(e.ids))
		idx.entities[k] = e
	}

	for _, k := range schema.Composites() {
		e := idx.entities[k]
		e.cross = make(map[entity.Kind][]int)
		for _, f := range schema.Composites() {
			if f == k {
				continue
			}
			other := idx.entities[f].rowOf
			out := make([]int, len(e.heads))
			for row, h := range e.heads {
				out[row] = -1
				if h >= 0 {
					out[row] = other[h]
				}
			}
			e.cross[f] = out
		}
	}

	logger.Debug("index built", zap.Int("individuals", n), zap.Int("mismatches", len(idx.mismatches)))
	return idx, nil
}

func roleList(roles RoleSource, k entity.Kind) ([]entity.Role, bool) {
	if roles == nil {
		return nil, false
	}
	r, found := roles(k)
	if !found {
		return nil, false
	}
	return entity.SortRoles(r), true
}

// reconcile compares the individual-level identifiers with k's own table.
// It returns nil when both agree.
func reconcile(src Source, schema *entity.Schema, k entity.Kind, e *entityIndex) (*Mismatch, error) {
	stored := src.StoredRows(k)
	storedIDs, ok := src.StoredIdentifiers(k)
	if len(e.ids) == stored && (!ok || sameInts(storedIDs, e.ids)) {
		return nil, nil
	}
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConstruction, "missing identifier column %q in %s table", schema.IDColumn(k), schema.Key(k)).
			WithDetail("entity", schema.Key(k)).
			WithDetail("column", schema.IDColumn(k))
	}

	m := &Mismatch{
		Entity:      k,
		Key:         schema.Key(k),
		Identifiers: len(e.ids),
		StoredRows:  stored,
		Authority:   AuthorityIndividuals,
	}
	if len(e.ids) > stored {
		e.ids = uniqueSorted(storedIDs)
		m.Authority = AuthorityStored
	}

	first := make(map[int64]int, len(storedIDs))
	for row := len(storedIDs) - 1; row >= 0; row-- {
		first[storedIDs[row]] = row
	}
	e.tableRows = make([]int, len(e.ids))
	for row, id := range e.ids {
		tr, found := first[id]
		if !found {
			tr = -1
			m.Unmatched++
		}
		e.tableRows[row] = tr
	}
	if len(e.ids) == stored && m.Unmatched == 0 {
		// same identifiers, stored in another order
		m = nil
	}
	return m, nil
}

func sameInts(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func uniqueSorted(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	w := 0
	for i, v := range out {
		if i == 0 || v != out[w-1] {
			out[w] = v
			w++
		}
	}
	return out[:w]
}

// locate returns the position of each id in sorted, -1 when absent.
func locate(sorted, ids []int64) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		p := sort.Search(len(sorted), func(j int) bool { return sorted[j] >= id })
		if p < len(sorted) && sorted[p] == id {
			out[i] = p
		} else {
			out[i] = -1
		}
	}
	return out
}

func countMissing(rows []int) int {
	n := 0
	for _, r := range rows {
		if r < 0 {
			n++
		}
	}
	return n
}

func observedRoles(quis []entity.Role) []entity.Role {
	var out []entity.Role
	for _, r := range quis {
		if r >= 0 {
			out = append(out, r)
		}
	}
	return entity.SortRoles(out)
}

func pairFor(r entity.Role, quis []entity.Role, rowOf []int) JoinPair {
	var p JoinPair
	for i, q := range quis {
		if q == r && rowOf[i] >= 0 {
			p.Individuals = append(p.Individuals, i)
			p.Units = append(p.Units, rowOf[i])
		}
	}
	return p
}

// headRows returns the role-0 individual of each entity row. When an entity
// has several, the last one wins.
func headRows(quis []entity.Role, rowOf []int, n int) []int {
	heads := make([]int, n)
	for i := range heads {
		heads[i] = -1
	}
	for i, q := range quis {
		if q == entity.Head && rowOf[i] >= 0 {
			heads[rowOf[i]] = i
		}
	}
	return heads
}
