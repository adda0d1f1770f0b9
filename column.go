package arbor

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Column is one component array. Every column in a Table has the same
// length, which is the table capacity.
type Column interface {
	// Name identifies the column in diagnostics.
	Name() string
	// Plain reports whether the column is persisted verbatim in snapshots.
	Plain() bool
	// Stride is the element size in bytes.
	Stride() int
	// Len is the number of elements (the table capacity).
	Len() int
	// Bytes is a raw view of the whole column for plain columns and nil
	// otherwise. The view is invalidated by the next resize.
	Bytes() []byte

	resize(n int)
	copyRow(dst, src int)
	swapRows(a, b int)
	zeroRow(i int)
	free()
}

// ColumnSpec describes a column to be created by a Table.
type ColumnSpec struct {
	Name  string
	Plain bool
	make  func(name string, capacity int) Column
}

// PlainSpec declares a pointer-free column persisted verbatim. It panics if
// T contains pointers, strings, slices, maps, interfaces or channels.
func PlainSpec[T any](name string) ColumnSpec {
	var zero T
	if !isPlain(reflect.TypeOf(zero)) {
		panic(fmt.Sprintf("arbor: column %q: type %T is not pointer-free", name, zero))
	}
	return ColumnSpec{Name: name, Plain: true, make: func(n string, c int) Column {
		return newTypedColumn[T](n, true, c, nil)
	}}
}

// TransientSpec declares a column that is never written raw. copyFn, if
// non-nil, replaces plain assignment in clone, swap and move.
func TransientSpec[T any](name string, copyFn func(dst, src *T)) ColumnSpec {
	return ColumnSpec{Name: name, make: func(n string, c int) Column {
		return newTypedColumn[T](n, false, c, copyFn)
	}}
}

func isPlain(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return isPlain(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !isPlain(t.Field(i).Type) {
				return false
			}
		}
		return true
	}
	return false
}

// typedColumn stores one component type contiguously.
type typedColumn[T any] struct {
	name   string
	plain  bool
	data   []T
	copyFn func(dst, src *T)
}

func newTypedColumn[T any](name string, plain bool, capacity int, copyFn func(dst, src *T)) *typedColumn[T] {
	return &typedColumn[T]{name: name, plain: plain, data: make([]T, capacity), copyFn: copyFn}
}

func (c *typedColumn[T]) Name() string { return c.name }
func (c *typedColumn[T]) Plain() bool  { return c.plain }
func (c *typedColumn[T]) Len() int     { return len(c.data) }

func (c *typedColumn[T]) Stride() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

func (c *typedColumn[T]) Bytes() []byte {
	if !c.plain || len(c.data) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&c.data[0])), len(c.data)*c.Stride())
}

// resize grows or shrinks to n elements. Existing rows are kept and the
// new tail is zero.
func (c *typedColumn[T]) resize(n int) {
	if n == len(c.data) {
		return
	}
	grown := make([]T, n)
	copy(grown, c.data)
	c.data = grown
}

func (c *typedColumn[T]) copyRow(dst, src int) {
	if dst == src {
		return
	}
	if c.copyFn != nil {
		c.copyFn(&c.data[dst], &c.data[src])
		return
	}
	c.data[dst] = c.data[src]
}

func (c *typedColumn[T]) swapRows(a, b int) {
	c.data[a], c.data[b] = c.data[b], c.data[a]
}

func (c *typedColumn[T]) zeroRow(i int) {
	var zero T
	c.data[i] = zero
}

func (c *typedColumn[T]) free() {
	c.data = nil
}

// ColumnData returns the typed slice behind a column. It panics if the
// column does not hold T. The slice must be re-fetched after any resize.
func ColumnData[T any](col Column) []T {
	tc, ok := col.(*typedColumn[T])
	if !ok {
		var zero T
		panic(fmt.Sprintf("arbor: column %q does not hold %T", col.Name(), zero))
	}
	return tc.data
}
