package arbor

import "fmt"

// Table is a set of component columns that always share one length.
// Columns can only be grown together through Resize.
type Table struct {
	columns  []Column
	specs    []ColumnSpec
	capacity int
}

// NewTable creates a table with the given columns at the given capacity.
func NewTable(capacity int, specs ...ColumnSpec) *Table {
	t := &Table{capacity: capacity}
	for _, spec := range specs {
		t.AddColumn(spec)
	}
	return t
}

// AddColumn appends a column created at the current capacity and returns
// its index.
func (t *Table) AddColumn(spec ColumnSpec) int {
	t.specs = append(t.specs, spec)
	t.columns = append(t.columns, spec.make(spec.Name, t.capacity))
	return len(t.columns) - 1
}

// Column returns the i-th column. It panics if i is out of range.
func (t *Table) Column(i int) Column {
	if i < 0 || i >= len(t.columns) {
		panic(fmt.Sprintf("arbor: column %d out of range [0,%d)", i, len(t.columns)))
	}
	return t.columns[i]
}

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.columns) }

// Capacity returns the shared length of every column.
func (t *Table) Capacity() int { return t.capacity }

// Resize grows every column by growBy rows. Existing rows keep their
// contents and the added rows are zero. A growBy of 0 re-syncs columns added
// since the last resize.
func (t *Table) Resize(growBy int) {
	if growBy < 0 {
		panic("arbor: negative resize")
	}
	t.capacity += growBy
	for _, c := range t.columns {
		c.resize(t.capacity)
	}
}

// Copy copies row src into row dst for every column using each column's
// copy descriptor.
func (t *Table) Copy(dst, src int) {
	for _, c := range t.columns {
		c.copyRow(dst, src)
	}
}

// Swap exchanges rows a and b in every column.
func (t *Table) Swap(a, b int) {
	for _, c := range t.columns {
		c.swapRows(a, b)
	}
}

// Zero clears row i in every column.
func (t *Table) Zero(i int) {
	for _, c := range t.columns {
		c.zeroRow(i)
	}
}

// Free releases all column memory. Column descriptors are kept so Realloc
// can recreate them.
func (t *Table) Free() {
	for _, c := range t.columns {
		c.free()
	}
	t.capacity = 0
}

// Realloc recreates every column empty at the given capacity.
func (t *Table) Realloc(capacity int) {
	t.capacity = capacity
	for i, spec := range t.specs {
		t.columns[i] = spec.make(spec.Name, capacity)
	}
}

// truncate drops columns from index n on. Used when extension descriptors
// are discarded before a fresh registration.
func (t *Table) truncate(n int) {
	for _, c := range t.columns[n:] {
		c.free()
	}
	t.columns = t.columns[:n]
	t.specs = t.specs[:n]
}
