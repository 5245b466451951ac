// Package entity defines the population grouping levels known to the engine.
//
// Entities form a closed enumeration. Their keys, symbols and containment
// relation live in a Schema, so new layouts are added by registering a
// schema rather than by comparing strings at call sites.
package entity

import (
	"fmt"
	"sort"

	"github.com/MalkIPP/openfisca-core/pkg/errors"
)

// Kind identifies an entity level.
type Kind uint8

const (
	// NoEntity is the zero value and means "unspecified"
	NoEntity Kind = iota
	// Individual is the leaf level: one row per person
	Individual
	// Household groups the individuals living together
	Household
	// Family groups the individuals of a benefit unit
	Family
	// TaxUnit groups the individuals filing one tax return
	TaxUnit
)

// Role is the position of a member inside a composite entity.
type Role int

const (
	// Head is the canonical representative, used whenever no role is given.
	Head Role = 0
	// AllRoles expands to every role of the entity's enumeration.
	AllRoles Role = -1
)

// Definition describes one entity of a schema.
type Definition struct {
	Kind   Kind
	Key    string
	Plural string
	// Symbol is the suffix of the linking columns (id<Symbol>, qui<Symbol>)
	Symbol string
	Leaf   bool
	// Within lists the composite entities that directly contain this one
	Within []Kind
}

// Schema is the registered table of entities.
type Schema struct {
	defs  map[Kind]Definition
	order []Kind
	leaf  Kind
}

// NewSchema validates the definitions and returns a schema. Exactly one
// definition must be the leaf.
func NewSchema(defs ...Definition) (*Schema, error) {
	s := &Schema{defs: make(map[Kind]Definition, len(defs))}
	for _, d := range defs {
		if d.Kind == NoEntity {
			return nil, errors.New(errors.ErrorTypeConfig, "entity kind must be set").
				WithDetail("key", d.Key)
		}
		if _, dup := s.defs[d.Kind]; dup {
			return nil, errors.Newf(errors.ErrorTypeConfig, "entity %q defined twice", d.Key)
		}
		if d.Leaf {
			if s.leaf != NoEntity {
				return nil, errors.New(errors.ErrorTypeConfig, "schema has more than one leaf entity")
			}
			s.leaf = d.Kind
		}
		s.defs[d.Kind] = d
		s.order = append(s.order, d.Kind)
	}
	if s.leaf == NoEntity {
		return nil, errors.New(errors.ErrorTypeConfig, "schema has no leaf entity")
	}
	for _, d := range s.defs {
		for _, outer := range d.Within {
			od, ok := s.defs[outer]
			if !ok || od.Leaf {
				return nil, errors.Newf(errors.ErrorTypeConfig, "entity %q declared within unknown or leaf entity", d.Key)
			}
		}
	}
	return s, nil
}

// DefaultSchema returns the individual/household/family/tax-unit layout.
// Families and tax units are both contained in households and are siblings
// of one another.
func DefaultSchema() *Schema {
	s, err := NewSchema(
		Definition{Kind: Individual, Key: "ind", Plural: "individus", Symbol: "ind", Leaf: true},
		Definition{Kind: Household, Key: "men", Plural: "menages", Symbol: "men"},
		Definition{Kind: Family, Key: "fam", Plural: "familles", Symbol: "fam", Within: []Kind{Household}},
		Definition{Kind: TaxUnit, Key: "foy", Plural: "foyers_fiscaux", Symbol: "foy", Within: []Kind{Household}},
	)
	if err != nil {
		panic(err)
	}
	return s
}

// Leaf returns the leaf entity.
func (s *Schema) Leaf() Kind { return s.leaf }

// IsLeaf reports whether k is the leaf entity.
func (s *Schema) IsLeaf(k Kind) bool { return k == s.leaf }

// Known reports whether k is part of the schema.
func (s *Schema) Known(k Kind) bool {
	_, ok := s.defs[k]
	return ok
}

// Lookup returns the definition of k.
func (s *Schema) Lookup(k Kind) (Definition, error) {
	d, ok := s.defs[k]
	if !ok {
		return Definition{}, errors.Newf(errors.ErrorTypeLookup, "unknown entity %d", k)
	}
	return d, nil
}

// ByKey returns the entity whose key, plural or symbol is key.
func (s *Schema) ByKey(key string) (Kind, error) {
	for _, k := range s.order {
		d := s.defs[k]
		if d.Key == key || d.Plural == key || d.Symbol == key {
			return k, nil
		}
	}
	return NoEntity, errors.Newf(errors.ErrorTypeLookup, "unknown entity %q", key)
}

// BySymbol returns the entity whose linking-column suffix is sym.
func (s *Schema) BySymbol(sym string) (Kind, bool) {
	for _, k := range s.order {
		if s.defs[k].Symbol == sym {
			return k, true
		}
	}
	return NoEntity, false
}

// Key returns the key of k, or a placeholder for unknown kinds.
func (s *Schema) Key(k Kind) string {
	if d, ok := s.defs[k]; ok {
		return d.Key
	}
	return fmt.Sprintf("entity(%d)", k)
}

// Entities returns every entity in registration order.
func (s *Schema) Entities() []Kind {
	out := make([]Kind, len(s.order))
	copy(out, s.order)
	return out
}

// Composites returns the non-leaf entities in registration order.
func (s *Schema) Composites() []Kind {
	out := make([]Kind, 0, len(s.order))
	for _, k := range s.order {
		if k != s.leaf {
			out = append(out, k)
		}
	}
	return out
}

// IDColumn is the name of the per-individual identifier column of k.
func (s *Schema) IDColumn(k Kind) string { return "id" + s.defs[k].Symbol }

// RoleColumn is the name of the per-individual role column of k.
func (s *Schema) RoleColumn(k Kind) string { return "qui" + s.defs[k].Symbol }

// Contains reports whether outer strictly contains inner. The leaf is
// contained in every composite entity.
func (s *Schema) Contains(outer, inner Kind) bool {
	if outer == inner || !s.Known(outer) || !s.Known(inner) {
		return false
	}
	if outer == s.leaf {
		return false
	}
	if inner == s.leaf {
		return true
	}
	seen := map[Kind]bool{}
	stack := append([]Kind(nil), s.defs[inner].Within...)
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if k == outer {
			return true
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		stack = append(stack, s.defs[k].Within...)
	}
	return false
}

// Siblings reports whether a and b are distinct composites, neither
// containing the other, that share a common container.
func (s *Schema) Siblings(a, b Kind) bool {
	if a == b || a == s.leaf || b == s.leaf || !s.Known(a) || !s.Known(b) {
		return false
	}
	if s.Contains(a, b) || s.Contains(b, a) {
		return false
	}
	for _, k := range s.Composites() {
		if s.Contains(k, a) && s.Contains(k, b) {
			return true
		}
	}
	return false
}

// SortRoles returns roles sorted ascending without duplicates.
func SortRoles(roles []Role) []Role {
	seen := make(map[Role]bool, len(roles))
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
