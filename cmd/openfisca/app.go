package main

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/MalkIPP/openfisca-core/pkg/config"
	"github.com/MalkIPP/openfisca-core/pkg/datatable"
	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/errors"
	"github.com/MalkIPP/openfisca-core/pkg/observability"
	"github.com/MalkIPP/openfisca-core/pkg/registry"
	"github.com/MalkIPP/openfisca-core/pkg/source"
	"github.com/MalkIPP/openfisca-core/pkg/storage"
)

// openTable runs the load, conform and index stages described by cfg.
func openTable(ctx context.Context, cfg *config.EngineConfig, log *zap.Logger) (*datatable.DataTable, error) {
	schema := entity.DefaultSchema()

	layout, err := storage.ParseLayout(cfg.Source.Layout)
	if err != nil {
		return nil, err
	}
	policies := datatable.DefaultPolicies()
	if len(cfg.Policies) > 0 {
		if policies, err = datatable.ParsePolicies(cfg.Policies); err != nil {
			return nil, err
		}
	}
	tables, err := tableNames(schema, cfg.Source.Tables)
	if err != nil {
		return nil, err
	}
	var subsetEntity entity.Kind
	if cfg.Source.SubsetEntity != "" {
		if subsetEntity, err = schema.ByKey(cfg.Source.SubsetEntity); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid subset entity")
		}
	}

	var reg *registry.Registry
	err = observability.Trace(ctx, "registry.load", func(context.Context) error {
		reg, err = registry.LoadFile(cfg.Registry, schema)
		return err
	})
	if err != nil {
		return nil, err
	}

	var backend storage.Backend
	err = observability.Trace(ctx, "source.load", func(ctx context.Context) error {
		db, err := source.Open(ctx, cfg.Source.Driver, cfg.Source.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		backend, err = source.LoadSQL(ctx, db, schema, source.SQLOptions{
			Layout:       layout,
			Tables:       tables,
			Subset:       cfg.Source.Subset,
			SubsetEntity: subsetEntity,
			Driver:       cfg.Source.Driver,
			Logger:       log,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	err = observability.Trace(ctx, "storage.conform", func(context.Context) error {
		report, err := storage.Conform(backend, reg, log)
		if err == nil && len(report.Filled) > 0 {
			log.Info("missing values filled with defaults", zap.Any("filled", report.Filled))
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	var dt *datatable.DataTable
	err = observability.Trace(ctx, "index.build", func(context.Context) error {
		dt, err = datatable.New(reg, backend, datatable.Options{
			Logger:   log,
			Policies: policies,
			Name:     cfg.Name,
		})
		return err
	})
	return dt, err
}

func tableNames(schema *entity.Schema, raw map[string]string) (map[entity.Kind]string, error) {
	out := make(map[entity.Kind]string, len(raw))
	for key, table := range raw {
		k, err := schema.ByKey(key)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid source table entry").WithDetail("table", table)
		}
		out[k] = table
	}
	return out, nil
}

// parseRoles reads a comma separated role list; "all" selects every role.
func parseRoles(s string) ([]entity.Role, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.EqualFold(s, "all") {
		return []entity.Role{entity.AllRoles}, nil
	}
	var roles []entity.Role
	for _, part := range strings.Split(s, ",") {
		r, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || r < 0 {
			return nil, errors.Newf(errors.ErrorTypeValidation, "invalid role %q", part)
		}
		roles = append(roles, entity.Role(r))
	}
	return roles, nil
}
