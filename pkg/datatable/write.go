package datatable

import (
	"go.uber.org/zap"

	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/errors"
	"github.com/MalkIPP/openfisca-core/pkg/metrics"
	"github.com/MalkIPP/openfisca-core/pkg/storage"
)

// Write stores values, one per row of target, into variable name.
//
// When target is the variable's own entity every row is written. When the
// variable belongs to the leaf and target is a composite, the value of each
// target row goes to its members holding role; entity.AllRoles selects every
// member. When the variable belongs to a composite contained in target,
// every owner row takes the value of its target row. Writing upward is an
// aggregation error. Values are cast to the declared type; rows outside the
// selection are untouched.
func (dt *DataTable) Write(name string, values columnar.Vector, target entity.Kind, role entity.Role) error {
	if err := dt.ready(); err != nil {
		return err
	}
	col, err := dt.reg.Describe(name)
	if err != nil {
		return err
	}
	owner := col.Entity
	if target == entity.NoEntity {
		target = owner
	}
	if err := dt.known(target); err != nil {
		return err
	}
	if n := dt.idx.Count(target); values.Len() != n {
		return errors.Newf(errors.ErrorTypeValidation, "%d values for %d %s rows", values.Len(), n, dt.schema.Key(target)).
			WithDetail("variable", name)
	}
	values = columnar.Convert(values, col.Type)

	// Storage is only touched once the whole write is known to be valid.
	type part struct {
		rows   []int
		values columnar.Vector
	}
	var parts []part
	switch {
	case target == owner:
		parts = append(parts, part{values: values})

	case dt.schema.IsLeaf(owner):
		roles := []entity.Role{role}
		if role == entity.AllRoles {
			roles = dt.idx.Roles(target)
		} else if _, ok := dt.idx.Pair(target, role); !ok {
			return errors.Newf(errors.ErrorTypeValidation, "role %d is not defined for %s", role, dt.schema.Key(target))
		}
		for _, r := range roles {
			pair, _ := dt.idx.Pair(target, r)
			if pair.Len() > 0 {
				parts = append(parts, part{pair.Individuals, columnar.Gather(values, pair.Units, col.Default)})
			}
		}

	case dt.schema.Contains(target, owner):
		var rows, from []int
		for row, t := range dt.idx.Cross(owner, target) {
			if t >= 0 {
				rows = append(rows, row)
				from = append(from, t)
			}
		}
		if rows != nil {
			parts = append(parts, part{rows, columnar.Gather(values, from, col.Default)})
		}

	default:
		return errors.Newf(errors.ErrorTypeAggregation, "cannot write %s variable %q from %s values",
			dt.schema.Key(owner), name, dt.schema.Key(target))
	}

	if err := dt.backend.Ensure(owner, col.Field()); err != nil {
		return err
	}
	for _, p := range parts {
		if err := dt.backend.Write(owner, name, p.rows, p.values); err != nil {
			return err
		}
	}
	metrics.Writes.WithLabelValues(dt.schema.Key(target)).Inc()
	dt.logger.Debug("variable written", zap.String("variable", name), zap.String("target", dt.schema.Key(target)))
	return nil
}

// Inflate multiplies variable name by factor in place. Integer variables are
// truncated back to integers.
func (dt *DataTable) Inflate(name string, factor float64) error {
	if err := dt.ready(); err != nil {
		return err
	}
	col, err := dt.reg.Describe(name)
	if err != nil {
		return err
	}
	values, err := dt.read(col)
	if err != nil {
		return err
	}
	return dt.backend.Write(col.Entity, name, nil, columnar.Scale(values, factor))
}

// Propagate copies the role-0 value of a composite variable to every member
// of its entity. Only the flat layout repeats composite values on members;
// other layouts and individual variables are left unchanged.
func (dt *DataTable) Propagate(name string) error {
	if err := dt.ready(); err != nil {
		return err
	}
	col, err := dt.reg.Describe(name)
	if err != nil {
		return err
	}
	if dt.schema.IsLeaf(col.Entity) || dt.backend.Layout() != storage.Flat {
		return nil
	}
	values, err := dt.read(col)
	if err != nil {
		return err
	}
	return dt.backend.Write(col.Entity, name, nil, values)
}
