package source

import (
	"context"
	"database/sql"
	"regexp"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/entity"
	"github.com/MalkIPP/openfisca-core/pkg/errors"
	"github.com/MalkIPP/openfisca-core/pkg/metrics"
	"github.com/MalkIPP/openfisca-core/pkg/observability"
	"github.com/MalkIPP/openfisca-core/pkg/pool"
	"github.com/MalkIPP/openfisca-core/pkg/storage"
)

// Driver names accepted by Open
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
	DriverMySQL    = "mysql"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Open opens and pings a database. SQLite databases are limited to one
// connection so that in-memory databases keep their content.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to open database").WithDetail("driver", driver)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to reach database").WithDetail("driver", driver)
	}
	return db, nil
}

// SQLOptions selects the tables of a survey dataset
type SQLOptions struct {
	Layout storage.Layout
	// Tables maps entities to table names. Missing entries default to the
	// entity's plural. The flat layout reads the leaf's table only.
	Tables map[entity.Kind]string
	// Subset keeps the individuals whose SubsetEntity identifier is listed,
	// and the composite rows they reference. Empty keeps everyone.
	Subset []int64
	// SubsetEntity defaults to the first composite of the schema
	SubsetEntity entity.Kind
	// Driver labels the rows-read metric
	Driver    string
	Logger    *zap.Logger
	Allocator memory.Allocator
}

// LoadSQL reads a survey dataset into a storage backend
func LoadSQL(ctx context.Context, db *sql.DB, schema *entity.Schema, opts SQLOptions) (storage.Backend, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Allocator == nil {
		opts.Allocator = memory.NewGoAllocator()
	}
	if opts.Driver == "" {
		opts.Driver = "sql"
	}
	if opts.SubsetEntity == entity.NoEntity {
		if c := schema.Composites(); len(c) > 0 {
			opts.SubsetEntity = c[0]
		}
	}

	leaf, err := loadTable(ctx, db, schema, schema.Leaf(), opts)
	if err != nil {
		return nil, err
	}
	if len(opts.Subset) > 0 {
		if leaf, err = subset(leaf, schema.IDColumn(opts.SubsetEntity), opts.Subset); err != nil {
			return nil, err
		}
		opts.Logger.Info("survey subset selected",
			zap.String("entity", schema.Key(opts.SubsetEntity)),
			zap.Int("ids", len(opts.Subset)),
			zap.Int("individuals", leaf.RowCount()))
	}
	if opts.Layout == storage.Flat {
		return storage.NewFlat(schema, leaf), nil
	}

	tables := map[entity.Kind]*columnar.Table{schema.Leaf(): leaf}
	for _, k := range schema.Composites() {
		tbl, err := loadTable(ctx, db, schema, k, opts)
		if err != nil {
			return nil, err
		}
		if len(opts.Subset) > 0 {
			ids, ok := leaf.Column(schema.IDColumn(k))
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeSource, "missing linking column %q", schema.IDColumn(k))
			}
			if tbl, err = subset(tbl, schema.IDColumn(k), columnar.Ints(ids)); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeSource, "cannot subset entity table").
					WithDetail("entity", schema.Key(k))
			}
		}
		tables[k] = tbl
	}
	return storage.NewSplit(schema, tables)
}

func loadTable(ctx context.Context, db *sql.DB, schema *entity.Schema, k entity.Kind, opts SQLOptions) (*columnar.Table, error) {
	name := opts.Tables[k]
	if name == "" {
		d, err := schema.Lookup(k)
		if err != nil {
			return nil, err
		}
		name = d.Plural
		if name == "" {
			name = d.Key
		}
	}

	var tbl *columnar.Table
	err := observability.Trace(ctx, "source.read_table", func(ctx context.Context) error {
		rec, err := ReadTable(ctx, db, name, opts.Allocator)
		if err != nil {
			return err
		}
		defer rec.Release()
		tbl, err = FromArrow(rec, opts.Logger)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.SourceRows.WithLabelValues(opts.Driver, schema.Key(k)).Add(float64(tbl.RowCount()))
	opts.Logger.Debug("table loaded",
		zap.String("table", name),
		zap.String("entity", schema.Key(k)),
		zap.Int("rows", tbl.RowCount()),
		zap.Int("columns", tbl.ColumnCount()))
	return tbl, nil
}

// subset keeps the rows of tbl whose column holds one of ids
func subset(tbl *columnar.Table, column string, ids []int64) (*columnar.Table, error) {
	col, ok := tbl.Column(column)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeSource, "cannot subset on missing column %q", column)
	}
	keep := make(map[int64]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	var rows []int
	for row, id := range columnar.Ints(col) {
		if keep[id] {
			rows = append(rows, row)
		}
	}
	return tbl.Filter(rows), nil
}

// ReadTable reads a whole table into an Arrow record. Column types are
// inferred from the values: any floating point value makes a float64
// column, otherwise integers make an int64 column and booleans a boolean
// one. Text holding numbers is parsed; other columns are dropped. The
// caller releases the record.
func ReadTable(ctx context.Context, db *sql.DB, table string, alloc memory.Allocator) (arrow.Record, error) {
	if !tableName.MatchString(table) {
		return nil, errors.Newf(errors.ErrorTypeValidation, "invalid table name %q", table)
	}
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to query table").WithDetail("table", table)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to read columns").WithDetail("table", table)
	}
	cols := make([][]cell, len(names))
	row := pool.GetRow(len(names))
	defer pool.PutRow(row)
	for rows.Next() {
		if err := rows.Scan(row.Dest...); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to scan row").WithDetail("table", table)
		}
		for i, v := range row.Values {
			cols[i] = append(cols[i], parseCell(v))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to iterate rows").WithDetail("table", table)
	}

	var fields []arrow.Field
	var arrays []arrow.Array
	defer func() {
		for _, a := range arrays {
			a.Release()
		}
	}()
	nrows := 0
	for i, name := range names {
		arr := buildArray(cols[i], alloc)
		if arr == nil {
			continue
		}
		nrows = arr.Len()
		fields = append(fields, arrow.Field{Name: name, Type: arr.DataType(), Nullable: true})
		arrays = append(arrays, arr)
	}
	if len(arrays) == 0 && len(names) > 0 {
		nrows = len(cols[0])
	}
	return array.NewRecord(arrow.NewSchema(fields, nil), arrays, int64(nrows)), nil
}

type cellKind uint8

const (
	cellNull cellKind = iota
	cellBool
	cellInt
	cellFloat
	cellOther
)

type cell struct {
	kind cellKind
	i    int64
	f    float64
	b    bool
}

func parseCell(v any) cell {
	switch x := v.(type) {
	case nil:
		return cell{kind: cellNull}
	case int64:
		return cell{kind: cellInt, i: x}
	case int32:
		return cell{kind: cellInt, i: int64(x)}
	case int16:
		return cell{kind: cellInt, i: int64(x)}
	case int8:
		return cell{kind: cellInt, i: int64(x)}
	case int:
		return cell{kind: cellInt, i: int64(x)}
	case uint8:
		return cell{kind: cellInt, i: int64(x)}
	case float64:
		return cell{kind: cellFloat, f: x}
	case float32:
		return cell{kind: cellFloat, f: float64(x)}
	case bool:
		return cell{kind: cellBool, b: x}
	case []byte:
		return parseText(string(x))
	case string:
		return parseText(x)
	}
	return cell{kind: cellOther}
}

func parseText(s string) cell {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return cell{kind: cellInt, i: i}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return cell{kind: cellFloat, f: f}
	}
	switch strings.ToLower(s) {
	case "true", "t":
		return cell{kind: cellBool, b: true}
	case "false", "f":
		return cell{kind: cellBool, b: false}
	}
	return cell{kind: cellOther}
}

func (c cell) float() float64 {
	switch c.kind {
	case cellInt:
		return float64(c.i)
	case cellBool:
		if c.b {
			return 1
		}
	case cellFloat:
		return c.f
	}
	return 0
}

func (c cell) int() int64 {
	if c.kind == cellBool && c.b {
		return 1
	}
	return c.i
}

// buildArray returns nil for columns holding values of unsupported types
func buildArray(cells []cell, alloc memory.Allocator) arrow.Array {
	kind := cellNull
	for _, c := range cells {
		if c.kind == cellOther {
			return nil
		}
		if c.kind > kind {
			kind = c.kind
		}
	}

	switch kind {
	case cellBool:
		b := array.NewBooleanBuilder(alloc)
		defer b.Release()
		for _, c := range cells {
			if c.kind == cellNull {
				b.AppendNull()
				continue
			}
			b.Append(c.b)
		}
		return b.NewArray()
	case cellInt:
		b := array.NewInt64Builder(alloc)
		defer b.Release()
		for _, c := range cells {
			if c.kind == cellNull {
				b.AppendNull()
				continue
			}
			b.Append(c.int())
		}
		return b.NewArray()
	default:
		b := array.NewFloat64Builder(alloc)
		defer b.Release()
		for _, c := range cells {
			if c.kind == cellNull {
				b.AppendNull()
				continue
			}
			b.Append(c.float())
		}
		return b.NewArray()
	}
}
