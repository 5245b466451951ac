// Package registry describes the variables the engine can resolve: the
// entity that owns each of them, its declared type, its default value and,
// for role columns, the enumeration of roles.
package registry

import (
	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/errors"
)

// RoleItem is one labelled role of an enumeration.
type RoleItem struct {
	Label string
	Role  entity.Role
}

// RoleEnum is the ordered set of roles of a composite entity.
type RoleEnum struct {
	items []RoleItem
}

// NewRoleEnum builds an enumeration from labels; the i-th label gets role i.
func NewRoleEnum(labels ...string) *RoleEnum {
	e := &RoleEnum{items: make([]RoleItem, len(labels))}
	for i, l := range labels {
		e.items[i] = RoleItem{Label: l, Role: entity.Role(i)}
	}
	return e
}

// NewRoleEnumItems builds an enumeration from explicit items.
func NewRoleEnumItems(items ...RoleItem) *RoleEnum {
	return &RoleEnum{items: append([]RoleItem(nil), items...)}
}

// Roles returns every role of the enumeration in ascending order.
func (e *RoleEnum) Roles() []entity.Role {
	out := make([]entity.Role, len(e.items))
	for i, it := range e.items {
		out[i] = it.Role
	}
	return entity.SortRoles(out)
}

// Items returns the (label, role) pairs in declaration order.
func (e *RoleEnum) Items() []RoleItem {
	return append([]RoleItem(nil), e.items...)
}

// Label returns the label of r, or "" when r is not part of the enumeration.
func (e *RoleEnum) Label(r entity.Role) string {
	for _, it := range e.items {
		if it.Role == r {
			return it.Label
		}
	}
	return ""
}

// Column is the description of one variable.
type Column struct {
	Name    string
	Entity  entity.Kind
	Type    columnar.ScalarType
	Default float64
	Label   string
	// Roles is set on role columns (qui<E>) only
	Roles *RoleEnum
}

// Field returns the storage metadata of the column.
func (c Column) Field() columnar.Field {
	return columnar.Field{Name: c.Name, Type: c.Type, Default: c.Default}
}

// Registry is the column registry consulted by storage and by the resolver.
// It is not safe for concurrent registration.
type Registry struct {
	columns map[string]Column
	order   []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{columns: make(map[string]Column)}
}

// Register adds a column. Registering the same name twice is an error.
func (r *Registry) Register(c Column) error {
	if c.Name == "" {
		return errors.New(errors.ErrorTypeValidation, "column name is empty")
	}
	if c.Entity == entity.NoEntity {
		return errors.Newf(errors.ErrorTypeValidation, "column %q has no entity", c.Name)
	}
	if _, dup := r.columns[c.Name]; dup {
		return errors.Newf(errors.ErrorTypeValidation, "column %q already registered", c.Name)
	}
	r.columns[c.Name] = c
	r.order = append(r.order, c.Name)
	return nil
}

// MustRegister is like Register but panics on error. Intended for static
// registration in tests and fixtures.
func (r *Registry) MustRegister(cols ...Column) *Registry {
	for _, c := range cols {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
	return r
}

// Describe returns the description of name.
func (r *Registry) Describe(name string) (Column, error) {
	c, ok := r.columns[name]
	if !ok {
		return Column{}, errors.Newf(errors.ErrorTypeLookup, "unknown variable %q", name)
	}
	return c, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.columns[name]
	return ok
}

// Columns returns every column in registration order.
func (r *Registry) Columns() []Column {
	out := make([]Column, len(r.order))
	for i, n := range r.order {
		out[i] = r.columns[n]
	}
	return out
}

// EntityColumns returns the columns owned by k in registration order.
func (r *Registry) EntityColumns(k entity.Kind) []Column {
	var out []Column
	for _, n := range r.order {
		if c := r.columns[n]; c.Entity == k {
			out = append(out, c)
		}
	}
	return out
}

// RoleEnum returns the role enumeration of composite k, read from its
// qui<E> column. found is false when the column is not registered or has
// no enumeration.
func (r *Registry) RoleEnum(k entity.Kind, schema *entity.Schema) (*RoleEnum, bool) {
	c, ok := r.columns[schema.RoleColumn(k)]
	if !ok || c.Roles == nil {
		return nil, false
	}
	return c.Roles, true
}

// RegisterLinking registers the id<E> and qui<E> columns of every composite
// entity of schema. enums gives the role enumeration per entity; entities
// missing from enums get a single head role.
func (r *Registry) RegisterLinking(schema *entity.Schema, enums map[entity.Kind]*RoleEnum) error {
	leaf := schema.Leaf()
	for _, k := range schema.Composites() {
		key := schema.Key(k)
		roles := enums[k]
		if roles == nil {
			roles = NewRoleEnum("head")
		}
		if err := r.Register(Column{
			Name:    schema.IDColumn(k),
			Entity:  leaf,
			Type:    columnar.Int,
			Default: -1,
			Label:   "identifier of " + key,
		}); err != nil {
			return err
		}
		if err := r.Register(Column{
			Name:   schema.RoleColumn(k),
			Entity: leaf,
			Type:   columnar.Enum,
			Label:  "role in " + key,
			Roles:  roles,
		}); err != nil {
			return err
		}
	}
	return nil
}

// FranceRoles returns the role enumerations of the default schema.
func FranceRoles() map[entity.Kind]*RoleEnum {
	return map[entity.Kind]*RoleEnum{
		entity.Household: NewRoleEnum("pref", "cref", "enf1", "enf2", "enf3", "enf4", "enf5", "enf6", "enf7", "enf8"),
		entity.Family:    NewRoleEnum("chef", "part", "enf1", "enf2", "enf3", "enf4", "enf5", "enf6", "enf7", "enf8", "enf9"),
		entity.TaxUnit:   NewRoleEnum("vous", "conj", "pac1", "pac2", "pac3", "pac4", "pac5", "pac6", "pac7", "pac8", "pac9"),
	}
}
