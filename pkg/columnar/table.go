package columnar

import (
	"fmt"
	"sync"
)

// Field describes one column of a table
type Field struct {
	Name    string
	Type    ScalarType
	Default float64
}

// Table is a set of equal-length named vectors. Columns keep the order in
// which they were added.
type Table struct {
	mu       sync.RWMutex
	columns  map[string]Vector
	fields   map[string]Field
	order    []string
	rowCount int
}

// NewTable creates an empty table holding rows rows
func NewTable(rows int) *Table {
	return &Table{
		columns:  make(map[string]Vector),
		fields:   make(map[string]Field),
		rowCount: rows,
	}
}

// RowCount returns the number of rows
func (t *Table) RowCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rowCount
}

// ColumnCount returns the number of columns
func (t *Table) ColumnCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// AddColumn adds a column filled with the field's default
func (t *Table) AddColumn(f Field) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.columns[f.Name]; exists {
		return fmt.Errorf("column %q already exists", f.Name)
	}
	t.columns[f.Name] = New(f.Type, t.rowCount, f.Default)
	t.fields[f.Name] = f
	t.order = append(t.order, f.Name)
	return nil
}

// SetColumn stores v under name, replacing any previous values. The first
// column set on an empty table fixes its row count.
func (t *Table) SetColumn(name string, v Vector) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.order) == 0 && t.rowCount == 0 {
		t.rowCount = v.Len()
	}
	if v.Len() != t.rowCount {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, v.Len(), t.rowCount)
	}
	f, exists := t.fields[name]
	if !exists {
		f = Field{Name: name}
		t.order = append(t.order, name)
	}
	f.Type = v.Type()
	t.fields[name] = f
	t.columns[name] = v
	return nil
}

// Column retrieves a column by name
func (t *Table) Column(name string) (Vector, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, exists := t.columns[name]
	return v, exists
}

// Field returns the metadata of a column
func (t *Table) Field(name string) (Field, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	f, exists := t.fields[name]
	return f, exists
}

// SetField updates a column's metadata and casts its values to the new type.
func (t *Table) SetField(f Field) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, exists := t.columns[f.Name]
	if !exists {
		return fmt.Errorf("column %q does not exist", f.Name)
	}
	t.columns[f.Name] = Convert(v, f.Type)
	t.fields[f.Name] = f
	return nil
}

// DropColumn removes a column. It reports whether the column existed.
func (t *Table) DropColumn(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.columns[name]; !exists {
		return false
	}
	delete(t.columns, name)
	delete(t.fields, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// ColumnNames returns all column names in insertion order
func (t *Table) ColumnNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, len(t.order))
	copy(names, t.order)
	return names
}

// Filter returns a new table holding the given rows, in order.
func (t *Table) Filter(rows []int) *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := NewTable(len(rows))
	for _, name := range t.order {
		out.columns[name] = Gather(t.columns[name], rows, t.fields[name].Default)
		out.fields[name] = t.fields[name]
		out.order = append(out.order, name)
	}
	return out
}

// MemoryUsage returns an estimate of the bytes held by column values
func (t *Table) MemoryUsage() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var total int64
	for name, v := range t.columns {
		total += int64(len(name))
		switch v.Type() {
		case Float, Int:
			total += int64(v.Len()) * 8
		case Enum:
			total += int64(v.Len()) * 2
		default:
			total += int64(v.Len())
		}
	}
	return total
}
