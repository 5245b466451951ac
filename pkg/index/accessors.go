package index

import (
	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/entity"
)

// Schema returns the schema the index was built for
func (idx *Index) Schema() *entity.Schema { return idx.schema }

// Individuals returns the number of individuals
func (idx *Index) Individuals() int { return idx.individuals }

// Mismatches returns the reconciliations performed during the build
func (idx *Index) Mismatches() []Mismatch { return idx.mismatches }

// Count returns the number of instances of k.
func (idx *Index) Count(k entity.Kind) int {
	if idx.schema.IsLeaf(k) {
		return idx.individuals
	}
	if e := idx.entities[k]; e != nil {
		return len(e.ids)
	}
	return 0
}

// IDs returns the sorted identifiers of k's rows.
func (idx *Index) IDs(k entity.Kind) []int64 {
	if e := idx.entities[k]; e != nil {
		return e.ids
	}
	return nil
}

// Roles returns the role enumeration of k in ascending order. The leaf has
// the single role Head.
func (idx *Index) Roles(k entity.Kind) []entity.Role {
	if e := idx.entities[k]; e != nil {
		return e.roles
	}
	if idx.schema.IsLeaf(k) {
		return []entity.Role{entity.Head}
	}
	return nil
}

// Pair returns the individuals holding role r in k and their entity rows.
// The leaf maps every individual to itself under Head.
func (idx *Index) Pair(k entity.Kind, r entity.Role) (JoinPair, bool) {
	if idx.schema.IsLeaf(k) {
		if r != entity.Head {
			return JoinPair{}, false
		}
		seq := columnar.Seq(idx.individuals)
		return JoinPair{Individuals: seq, Units: seq}, true
	}
	e := idx.entities[k]
	if e == nil {
		return JoinPair{}, false
	}
	p, ok := e.pairs[r]
	return p, ok
}

// EntityRowOf returns the row of k each individual belongs to, -1 when none.
func (idx *Index) EntityRowOf(k entity.Kind) []int {
	if idx.schema.IsLeaf(k) {
		return columnar.Seq(idx.individuals)
	}
	if e := idx.entities[k]; e != nil {
		return e.rowOf
	}
	return nil
}

// HeadRows returns the role-0 individual of each row of k, -1 when headless.
func (idx *Index) HeadRows(k entity.Kind) []int {
	if idx.schema.IsLeaf(k) {
		return columnar.Seq(idx.individuals)
	}
	if e := idx.entities[k]; e != nil {
		return e.heads
	}
	return nil
}

// Cross maps each row of from to the row of to reached through its role-0
// member, -1 when headless or unassigned.
func (idx *Index) Cross(from, to entity.Kind) []int {
	if e := idx.entities[from]; e != nil {
		return e.cross[to]
	}
	return nil
}

// TableRows maps each row of k to its stored table row. It is nil when rows
// and stored rows coincide.
func (idx *Index) TableRows(k entity.Kind) []int {
	if e := idx.entities[k]; e != nil {
		return e.tableRows
	}
	return nil
}
