package datatable

import (
	"go.uber.org/zap"

	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/errors"
	"github.com/MalkIPP/openfisca-core/pkg/metrics"
	"github.com/MalkIPP/openfisca-core/pkg/registry"
)

// Query selects how a variable is resolved.
type Query struct {
	// Target is the entity level of the result; NoEntity means the
	// variable's own entity
	Target entity.Kind
	// Roles selects members when moving between the leaf and a composite.
	// Empty means Head; entity.AllRoles means every role.
	Roles []entity.Role
	// Aggregate sums the selected members instead of returning one array
	// per role
	Aggregate bool
}

// Result holds a resolved variable. Values is set unless several roles were
// requested without aggregation, in which case ByRole holds one array per
// role.
type Result struct {
	Values columnar.Vector
	ByRole map[entity.Role]columnar.Vector
}

// Resolve returns variable name at the level and roles selected by q.
func (dt *DataTable) Resolve(name string, q Query) (*Result, error) {
	res, direction, err := dt.resolve(name, q)
	if err != nil {
		typ := "unknown"
		var e *errors.Error
		if errors.As(err, &e) {
			typ = string(e.Type)
		}
		metrics.ResolveErrors.WithLabelValues(typ).Inc()
		dt.logger.Debug("resolve failed", zap.String("variable", name), zap.Error(err))
		return nil, err
	}
	metrics.Resolves.WithLabelValues(direction, dt.schema.Key(dt.target(name, q.Target))).Inc()
	return res, nil
}

// Get resolves name with q and returns a single array. It fails when the
// query selects several roles without aggregation.
func (dt *DataTable) Get(name string, q Query) (columnar.Vector, error) {
	res, err := dt.Resolve(name, q)
	if err != nil {
		return nil, err
	}
	if res.Values == nil {
		return nil, errors.Newf(errors.ErrorTypeValidation, "%q resolves to one array per role", name)
	}
	return res.Values, nil
}

func (dt *DataTable) target(name string, t entity.Kind) entity.Kind {
	if t != entity.NoEntity {
		return t
	}
	if c, err := dt.reg.Describe(name); err == nil {
		return c.Entity
	}
	return t
}

func (dt *DataTable) resolve(name string, q Query) (*Result, string, error) {
	if err := dt.ready(); err != nil {
		return nil, "", err
	}
	col, err := dt.reg.Describe(name)
	if err != nil {
		return nil, "", err
	}
	owner := col.Entity
	target := q.Target
	if target == entity.NoEntity {
		target = owner
	}
	if err := dt.known(target); err != nil {
		return nil, "", err
	}
	if err := dt.known(owner); err != nil {
		return nil, "", err
	}

	switch {
	case target == owner:
		v, err := dt.read(col)
		if err != nil {
			return nil, "", err
		}
		return &Result{Values: v}, metrics.DirectionSameLevel, nil

	case dt.schema.IsLeaf(target):
		res, err := dt.broadcastToMembers(col, q.Roles)
		return res, metrics.DirectionBroadcast, err

	case dt.schema.Contains(owner, target):
		res, err := dt.broadcastToComposite(col, target)
		return res, metrics.DirectionBroadcast, err

	case dt.schema.IsLeaf(owner):
		res, err := dt.gatherMembers(col, target, q.Roles, q.Aggregate)
		return res, metrics.DirectionAggregate, err

	case dt.schema.Contains(target, owner):
		res, err := dt.sumThroughCross(col, target)
		return res, metrics.DirectionAggregate, err

	case dt.schema.Siblings(owner, target):
		if !q.Aggregate {
			return nil, "", errors.Newf(errors.ErrorTypeAggregation,
				"%s variable %q can only be summed into %s", dt.schema.Key(owner), name, dt.schema.Key(target))
		}
		res, err := dt.sumThroughCross(col, target)
		return res, metrics.DirectionCross, err
	}
	return nil, "", errors.Newf(errors.ErrorTypeAggregation, "no relation between %s and %s", dt.schema.Key(owner), dt.schema.Key(target)).
		WithDetail("variable", name)
}

// read returns the native values of col cast to its declared type.
func (dt *DataTable) read(col registry.Column) (columnar.Vector, error) {
	v, err := dt.backend.Read(col.Entity, col.Name)
	if err != nil {
		return nil, err
	}
	return columnar.Convert(v, col.Type), nil
}

// broadcastToMembers spreads a composite value to the members holding the
// selected roles. Flooded variables reach every member.
func (dt *DataTable) broadcastToMembers(col registry.Column, roles []entity.Role) (*Result, error) {
	values, err := dt.read(col)
	if err != nil {
		return nil, err
	}
	n := dt.idx.Individuals()
	out := columnar.New(col.Type, n, col.Default)

	if dt.policies[col.Name] == Flood {
		if err := columnar.Scatter(out, columnar.Seq(n), values, dt.idx.EntityRowOf(col.Entity)); err != nil {
			return nil, err
		}
		return &Result{Values: out}, nil
	}

	selected, err := dt.selectRoles(col.Entity, roles)
	if err != nil {
		return nil, err
	}
	for _, r := range selected {
		pair, _ := dt.idx.Pair(col.Entity, r)
		if err := columnar.Scatter(out, pair.Individuals, values, pair.Units); err != nil {
			return nil, err
		}
	}
	return &Result{Values: out}, nil
}

// broadcastToComposite spreads an owner value to a contained composite.
// The owner row reaches the target row of its role-0 member; flooded
// variables instead give every target row the owner row of its own role-0
// member.
func (dt *DataTable) broadcastToComposite(col registry.Column, target entity.Kind) (*Result, error) {
	values, err := dt.read(col)
	if err != nil {
		return nil, err
	}
	n := dt.idx.Count(target)
	out := columnar.New(col.Type, n, col.Default)

	if dt.policies[col.Name] == Flood {
		err = columnar.Scatter(out, columnar.Seq(n), values, dt.idx.Cross(target, col.Entity))
	} else {
		err = columnar.Scatter(out, dt.idx.Cross(col.Entity, target), values, nil)
	}
	if err != nil {
		return nil, err
	}
	return &Result{Values: out}, nil
}

// gatherMembers collects individual values into target rows, one array per
// role, or their sum when aggregate is set.
func (dt *DataTable) gatherMembers(col registry.Column, target entity.Kind, roles []entity.Role, aggregate bool) (*Result, error) {
	values, err := dt.read(col)
	if err != nil {
		return nil, err
	}
	selected, err := dt.selectRoles(target, roles)
	if err != nil {
		return nil, err
	}
	n := dt.idx.Count(target)

	if aggregate {
		dt.coerceForSum(col, target)
		sum := columnar.New(columnar.SumType(col.Type), n, 0)
		for _, r := range selected {
			pair, _ := dt.idx.Pair(target, r)
			part := columnar.New(sum.Type(), n, 0)
			if err := columnar.Scatter(part, pair.Units, values, pair.Individuals); err != nil {
				return nil, err
			}
			if sum, err = columnar.Add(sum, part); err != nil {
				return nil, err
			}
		}
		return &Result{Values: sum}, nil
	}

	byRole := make(map[entity.Role]columnar.Vector, len(selected))
	for _, r := range selected {
		pair, _ := dt.idx.Pair(target, r)
		part := columnar.New(col.Type, n, col.Default)
		if err := columnar.Scatter(part, pair.Units, values, pair.Individuals); err != nil {
			return nil, err
		}
		byRole[r] = part
	}
	if len(selected) == 1 {
		return &Result{Values: byRole[selected[0]]}, nil
	}
	return &Result{ByRole: byRole}, nil
}

// sumThroughCross sums owner rows into the target row reached through each
// owner row's role-0 member. Target rows without any contributor get zero.
func (dt *DataTable) sumThroughCross(col registry.Column, target entity.Kind) (*Result, error) {
	values, err := dt.read(col)
	if err != nil {
		return nil, err
	}
	dt.coerceForSum(col, target)
	sum, err := columnar.SumBy(values, dt.idx.Cross(col.Entity, target), dt.idx.Count(target))
	if err != nil {
		return nil, err
	}
	return &Result{Values: sum}, nil
}

func (dt *DataTable) coerceForSum(col registry.Column, target entity.Kind) {
	if col.Type == columnar.Bool {
		dt.warn(errors.WarningTypeCoercion, target, col.Name, "boolean variable summed as integer")
	}
}
