// Package datatable resolves survey variables between entity levels.
//
// A DataTable owns a storage backend and the index built from it. Values
// are read with Resolve, which broadcasts composite values down to members,
// aggregates member values up to their group, or sums sibling composites
// through their shared container. Write is the inverse of same-level and
// downward resolution.
//
//	dt, err := datatable.New(reg, store, datatable.Options{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	res, err := dt.Resolve("salaire", datatable.Query{
//	    Target:    entity.Household,
//	    Roles:     []entity.Role{0, 1},
//	    Aggregate: true,
//	})
//
// A DataTable is not safe for concurrent use.
package datatable

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/errors"
	"github.com/MalkIPP/openfisca-core/pkg/index"
	"github.com/MalkIPP/openfisca-core/pkg/metrics"
	"github.com/MalkIPP/openfisca-core/pkg/registry"
	"github.com/MalkIPP/openfisca-core/pkg/storage"
)

// Options configures a DataTable
type Options struct {
	// Schema defaults to the backend's schema
	Schema *entity.Schema
	Logger *zap.Logger
	// Policies defaults to DefaultPolicies
	Policies map[string]Policy
	// Linked is consulted for role enumerations missing from the local
	// registry, typically the input table of a simulation
	Linked *DataTable
	// ConsistencyCheck is called for every identifier mismatch found while
	// indexing a split layout; a non-nil error aborts construction
	ConsistencyCheck index.ConsistencyCheck
	Name             string
}

// DataTable resolves and writes variables of one survey population.
type DataTable struct {
	id       string
	name     string
	schema   *entity.Schema
	reg      *registry.Registry
	backend  storage.Backend
	idx      *index.Index
	policies map[string]Policy
	linked   *DataTable
	check    index.ConsistencyCheck
	logger   *zap.Logger
	warnings []errors.Warning
}

// New builds the index of backend and binds the backend to it.
func New(reg *registry.Registry, backend storage.Backend, opts Options) (*DataTable, error) {
	if reg == nil || backend == nil {
		return nil, errors.New(errors.ErrorTypeConstruction, "registry and backend are required")
	}
	schema := opts.Schema
	if schema == nil {
		schema = backend.Schema()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policies := opts.Policies
	if policies == nil {
		policies = DefaultPolicies()
	}

	dt := &DataTable{
		id:       uuid.NewString(),
		name:     opts.Name,
		schema:   schema,
		reg:      reg,
		policies: policies,
		linked:   opts.Linked,
		check:    opts.ConsistencyCheck,
	}
	dt.logger = logger.With(zap.String("table_id", dt.id), zap.String("table", dt.name))

	if err := dt.Replace(backend); err != nil {
		return nil, err
	}
	return dt, nil
}

// ID returns the unique id of this instance
func (dt *DataTable) ID() string { return dt.id }

// Name returns the name given at construction
func (dt *DataTable) Name() string { return dt.name }

// Schema returns the entity schema
func (dt *DataTable) Schema() *entity.Schema { return dt.schema }

// Registry returns the column registry
func (dt *DataTable) Registry() *registry.Registry { return dt.reg }

// Backend returns the storage backend
func (dt *DataTable) Backend() storage.Backend { return dt.backend }

// Index returns the current index, nil when the last build failed
func (dt *DataTable) Index() *index.Index { return dt.idx }

// Count returns the number of rows of k, zero without a usable index.
func (dt *DataTable) Count(k entity.Kind) int {
	if dt.idx == nil {
		return 0
	}
	return dt.idx.Count(k)
}

// Warnings returns the consistency and coercion warnings recorded so far
func (dt *DataTable) Warnings() []errors.Warning {
	return append([]errors.Warning(nil), dt.warnings...)
}

// Replace swaps the storage backend and rebuilds the index. When the build
// fails the table has no usable index and every later call fails with a
// lookup error.
func (dt *DataTable) Replace(backend storage.Backend) error {
	dt.backend = backend
	dt.idx = nil

	timer := metrics.NewTimer("index_build")
	idx, err := index.Build(backend, dt.schema, dt.roleEnum, index.Options{
		Logger: dt.logger,
		Check:  dt.check,
	})
	if err != nil {
		dt.logger.Error("failed to build index", zap.Error(err))
		return err
	}
	elapsed := timer.Stop()
	metrics.IndexBuildDuration.WithLabelValues(backend.Layout().String()).Observe(elapsed.Seconds())
	metrics.IndividualsLoaded.WithLabelValues(dt.name).Set(float64(idx.Individuals()))

	for _, m := range idx.Mismatches() {
		dt.warn(errors.WarningConsistency, m.Entity, dt.schema.IDColumn(m.Entity), m.String())
	}
	backend.Bind(idx)
	dt.idx = idx

	dt.logger.Info("index built",
		zap.String("layout", backend.Layout().String()),
		zap.Int("individuals", idx.Individuals()),
		zap.Duration("duration", elapsed))
	return nil
}

// roleEnum looks up the role enumeration of k in the local registry first,
// then in the linked table.
func (dt *DataTable) roleEnum(k entity.Kind) ([]entity.Role, bool) {
	if e, ok := dt.reg.RoleEnum(k, dt.schema); ok {
		return e.Roles(), true
	}
	if dt.linked != nil {
		if e, ok := dt.linked.reg.RoleEnum(k, dt.linked.schema); ok {
			return e.Roles(), true
		}
	}
	return nil, false
}

func (dt *DataTable) warn(kind errors.WarningKind, k entity.Kind, variable, msg string) {
	w := errors.Warning{Kind: kind, Entity: dt.schema.Key(k), Variable: variable, Message: msg}
	dt.warnings = append(dt.warnings, w)
	metrics.Warnings.WithLabelValues(string(kind)).Inc()
	dt.logger.Warn(msg,
		zap.String("kind", string(kind)),
		zap.String("entity", w.Entity),
		zap.String("variable", variable))
}

func (dt *DataTable) ready() error {
	if dt.idx == nil {
		return errors.New(errors.ErrorTypeLookup, "table has no usable index").
			WithDetail("table_id", dt.id)
	}
	return nil
}

func (dt *DataTable) known(k entity.Kind) error {
	if !dt.schema.Known(k) {
		return errors.Newf(errors.ErrorTypeLookup, "unknown entity %d", k)
	}
	return nil
}

// selectRoles expands a role selection for k: empty means Head, AllRoles
// means the whole enumeration.
func (dt *DataTable) selectRoles(k entity.Kind, roles []entity.Role) ([]entity.Role, error) {
	if len(roles) == 0 {
		return []entity.Role{entity.Head}, nil
	}
	enum := dt.idx.Roles(k)
	for _, r := range roles {
		if r == entity.AllRoles {
			return enum, nil
		}
	}
	out := entity.SortRoles(roles)
	for _, r := range out {
		if _, ok := dt.idx.Pair(k, r); !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "role %d is not defined for %s", r, dt.schema.Key(k))
		}
	}
	return out, nil
}
