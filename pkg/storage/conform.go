package storage

import (
	"go.uber.org/zap"

	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/registry"
)

// Report lists what Conform changed in the stored tables.
type Report struct {
	// Missing are registered variables absent from the data, added with
	// their default value
	Missing []string
	// Dropped are stored columns unknown to the registry (flat layout only)
	Dropped []string
	// Filled counts the NaN values replaced by the default, per variable
	Filled map[string]int
}

// Conform brings survey tables in line with the registry: every registered
// variable is present, NaN values take the variable default and every
// column has its declared type. In the flat layout columns unknown to the
// registry are removed, except the linking columns. Missing linking columns
// are a construction error.
func Conform(b Backend, reg *registry.Registry, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	schema := b.Schema()
	tables := b.Tables()
	leaf := tables[schema.Leaf()]

	linking := make(map[string]bool)
	for _, k := range schema.Composites() {
		for _, name := range []string{schema.IDColumn(k), schema.RoleColumn(k)} {
			if _, ok := leaf.Column(name); !ok {
				return nil, missingLinking(schema, k, name)
			}
			linking[name] = true
		}
	}

	report := &Report{Filled: make(map[string]int)}
	for _, c := range reg.Columns() {
		t := leaf
		if b.Layout() == Split {
			t = tables[c.Entity]
		}
		if t == nil {
			continue
		}
		col, ok := t.Column(c.Name)
		if !ok {
			if err := t.AddColumn(c.Field()); err != nil {
				return nil, err
			}
			report.Missing = append(report.Missing, c.Name)
			continue
		}
		if _, n := columnar.FillNaN(col, c.Default); n > 0 {
			report.Filled[c.Name] = n
		}
		if err := t.SetField(c.Field()); err != nil {
			return nil, err
		}
	}

	if b.Layout() == Flat {
		for _, name := range leaf.ColumnNames() {
			if !reg.Has(name) && !linking[name] {
				leaf.DropColumn(name)
				report.Dropped = append(report.Dropped, name)
			}
		}
	}

	if len(report.Missing) > 0 {
		logger.Warn("variables missing from survey data, filled with defaults",
			zap.Strings("missing", report.Missing))
	}
	if len(report.Dropped) > 0 {
		logger.Debug("dropped unregistered columns", zap.Strings("dropped", report.Dropped))
	}
	return report, nil
}
