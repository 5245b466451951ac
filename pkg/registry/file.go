package registry

import (
	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/config"
	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/errors"
)

// File is the YAML layout of a registry file:
//
//	linking: true
//	columns:
//	  - name: salaire
//	    entity: ind
//	    type: float
//	  - name: quimen
//	    entity: ind
//	    type: enum
//	    roles:
//	      - {label: pref, value: 0}
//	      - {label: cref, value: 1}
type File struct {
	// Linking registers id<E>/qui<E> for every composite with the default
	// role enumerations before the listed columns
	Linking bool        `yaml:"linking"`
	Columns []FileEntry `yaml:"columns"`
}

// FileEntry is one column of a registry file.
type FileEntry struct {
	Name    string     `yaml:"name"`
	Entity  string     `yaml:"entity"`
	Type    string     `yaml:"type"`
	Default float64    `yaml:"default"`
	Label   string     `yaml:"label"`
	Roles   []FileRole `yaml:"roles,omitempty"`
}

// FileRole is one labelled role of a FileEntry.
type FileRole struct {
	Label string `yaml:"label"`
	Value int    `yaml:"value"`
}

// LoadFile reads a registry file. Environment variables written as ${NAME}
// are substituted before parsing.
func LoadFile(path string, schema *entity.Schema) (*Registry, error) {
	var f File
	if err := config.Load(path, &f); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load registry").
			WithDetail("path", path)
	}
	return f.Build(schema)
}

// Build registers the file's columns into a new registry.
func (f *File) Build(schema *entity.Schema) (*Registry, error) {
	r := New()
	if f.Linking {
		if err := r.RegisterLinking(schema, FranceRoles()); err != nil {
			return nil, err
		}
	}
	for _, e := range f.Columns {
		k, err := schema.ByKey(e.Entity)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid registry entry").
				WithDetail("column", e.Name)
		}
		typ, err := columnar.ParseScalarType(e.Type)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid registry entry").
				WithDetail("column", e.Name)
		}
		c := Column{Name: e.Name, Entity: k, Type: typ, Default: e.Default, Label: e.Label}
		if len(e.Roles) > 0 {
			items := make([]RoleItem, len(e.Roles))
			for i, fr := range e.Roles {
				items[i] = RoleItem{Label: fr.Label, Role: entity.Role(fr.Value)}
			}
			c.Roles = NewRoleEnumItems(items...)
		}
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}
