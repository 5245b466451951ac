// Package openfisca resolves survey variables across nested statistical
// entities: individuals, and the households, families and tax units they
// belong to.
//
// # Architecture
//
// A survey is loaded from SQL into columnar tables, either one flat table of
// individuals or one table per entity (split layout). The index builder
// reads each individual's entity identifier and role (id<E>, qui<E>) and
// derives, per entity and role, the join pairs between individual rows and
// entity rows. A DataTable combines the index with a column registry and
// answers queries that move a variable between levels:
//
//   - Broadcast: an entity value is copied to its members, to the head only
//     unless the variable floods the whole household.
//   - Gather: member values are collected per role, or summed.
//   - Cross: a family value reaches the household through its head.
//
// # Quick Start
//
//	import (
//	    "github.com/MalkIPP/openfisca-core/pkg/datatable"
//	    "github.com/MalkIPP/openfisca-core/pkg/entity"
//	    "github.com/MalkIPP/openfisca-core/pkg/registry"
//	    "github.com/MalkIPP/openfisca-core/pkg/source"
//	    "github.com/MalkIPP/openfisca-core/pkg/storage"
//	)
//
//	schema := entity.DefaultSchema()
//	reg, _ := registry.LoadFile("registry.yaml", schema)
//	db, _ := source.Open(ctx, source.DriverSQLite, "erfs.db")
//	backend, _ := source.LoadSQL(ctx, db, schema, source.SQLOptions{Layout: storage.Split})
//	storage.Conform(backend, reg, logger)
//	dt, _ := datatable.New(reg, backend, datatable.Options{Logger: logger})
//
//	// Household salary mass
//	mass, _ := dt.Get("salaire", datatable.Query{
//	    Target:    entity.Household,
//	    Roles:     []entity.Role{entity.AllRoles},
//	    Aggregate: true,
//	})
//
// # Key Packages
//
//	pkg/entity        - Entity kinds, roles and containment
//	pkg/columnar      - Typed vectors, tables and gather/scatter kernels
//	pkg/registry      - Column descriptions and role enumerations
//	pkg/storage       - Flat and split backends, conformance to the registry
//	pkg/index         - Join pairs, heads and cross tables
//	pkg/datatable     - Resolution, writes and role policies
//	pkg/source        - SQL and Arrow loaders
//	pkg/config        - Engine configuration (YAML, Viper)
//	pkg/logger        - Structured logging (zap)
//	pkg/metrics       - Prometheus collectors
//	pkg/observability - OpenTelemetry stage spans
//
// # Command Line
//
//	openfisca resolve -c survey.yaml --var salaire --target men --roles all --aggregate
//	openfisca describe -c survey.yaml
//
// Environment variables prefixed with OPENFISCA_ override the configuration
// file, and ${VAR_NAME} references in it are expanded.
package openfisca
