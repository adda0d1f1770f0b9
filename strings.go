package arbor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// stringTable deduplicates strings by hash. Every write site stores only the
// hash; the table is written once per snapshot.
type stringTable struct {
	order  []uint64
	byHash map[uint64]string
}

func newStringTable() *stringTable {
	return &stringTable{byHash: make(map[uint64]string)}
}

// intern returns the hash of str, adding it on first sight. The empty string
// is hash 0 and never stored.
func (t *stringTable) intern(str string) uint64 {
	h := HashName(str)
	if h == 0 {
		return 0
	}
	if _, ok := t.byHash[h]; !ok {
		t.byHash[h] = str
		t.order = append(t.order, h)
	}
	return h
}

func (t *stringTable) lookup(h uint64) (string, bool) {
	if h == 0 {
		return "", true
	}
	str, ok := t.byHash[h]
	return str, ok
}

func (t *stringTable) len() int { return len(t.order) }

// write emits each entry as length, bytes, hash.
func (t *stringTable) write(w *binWriter) {
	for _, h := range t.order {
		str := t.byHash[h]
		w.u32(uint32(len(str)))
		w.bytes([]byte(str))
		w.u64(h)
	}
}

// maxSnapshotString bounds a single string table entry.
const maxSnapshotString = 1 << 20

func readStringTable(r *binReader, n uint32) (*stringTable, error) {
	t := newStringTable()
	for i := uint32(0); i < n; i++ {
		size := r.u32()
		if r.err == nil && size > maxSnapshotString {
			return nil, fmt.Errorf("%w: string %d is %d bytes", ErrBadSnapshot, i, size)
		}
		buf := make([]byte, size)
		r.bytes(buf)
		h := r.u64()
		if r.err != nil {
			return nil, fmt.Errorf("%w: string table: %w", ErrBadSnapshot, r.err)
		}
		if _, ok := t.byHash[h]; !ok {
			t.byHash[h] = string(buf)
			t.order = append(t.order, h)
		}
	}
	return t, nil
}

// binWriter writes little-endian values and keeps the first error.
type binWriter struct {
	w   io.Writer
	err error
	buf [8]byte
}

func (w *binWriter) bytes(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(b)
}

func (w *binWriter) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	w.bytes(w.buf[:4])
}

func (w *binWriter) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[:8], v)
	w.bytes(w.buf[:8])
}

func (w *binWriter) value(v any) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

// binReader reads little-endian values and keeps the first error.
type binReader struct {
	r   io.Reader
	err error
	buf [8]byte
}

func (r *binReader) bytes(b []byte) {
	if r.err != nil {
		return
	}
	_, r.err = io.ReadFull(r.r, b)
}

func (r *binReader) u32() uint32 {
	r.bytes(r.buf[:4])
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(r.buf[:4])
}

func (r *binReader) u64() uint64 {
	r.bytes(r.buf[:8])
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(r.buf[:8])
}

func (r *binReader) value(v any) {
	if r.err != nil {
		return
	}
	r.err = binary.Read(r.r, binary.LittleEndian, v)
}

// readN reads exactly n bytes. The buffer grows as data arrives rather than
// being sized from n up front.
func (r *binReader) readN(n int64) []byte {
	if r.err != nil {
		return nil
	}
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r.r, n); err != nil {
		r.err = err
		return nil
	}
	return buf.Bytes()
}

func (r *binReader) skip(n int64) {
	if r.err != nil || n == 0 {
		return
	}
	_, r.err = io.CopyN(io.Discard, r.r, n)
}

// relPath strips the project directory from a file reference.
func (s *Scene) relPath(p string) string {
	if s.projectDir == "" || p == "" {
		return p
	}
	dir := filepath.Clean(s.projectDir) + string(filepath.Separator)
	return strings.TrimPrefix(p, dir)
}

// absPath prefixes the project directory to a relative file reference.
func (s *Scene) absPath(p string) string {
	if s.projectDir == "" || p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.projectDir, p)
}

// ProjectDir returns the directory file references are relative to.
func (s *Scene) ProjectDir() string { return s.projectDir }

// SetProjectDir sets the directory file references are relative to.
func (s *Scene) SetProjectDir(dir string) { s.projectDir = dir }
