package arbor

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// SnapshotVersion is the format version written by Save. Loads accept any
// version up to it.
const SnapshotVersion = 10

// snapshotMagic opens every snapshot.
var snapshotMagic = [4]byte{'A', 'R', 'B', 'R'}

// versionExtensionTable is the first version whose header separates the
// base component count from the total.
const versionExtensionTable = 9

// snapshotHeader is the fixed-size header. Fields are little-endian.
type snapshotHeader struct {
	Magic          [4]byte
	HeaderSize     uint32
	Version        uint32
	NumEntities    uint32
	NumComponents  uint32
	NumStrings     uint32
	NumExtensions  uint32
	BaseComponents uint32
	_              uint32
	ViewFlags      uint32
	Selected       uint32
	_              uint32
}

const snapshotHeaderSize = 48

// extensionRecord places one extension's columns in the size table.
type extensionRecord struct {
	Hash  uint64
	Start uint32
	Count uint32
}

// cameraRecord is one entry in the camera table.
type cameraRecord struct {
	NameHash uint64
	Position mgl32.Vec3
	Focus    mgl32.Vec3
	Rotation mgl32.Quat
	FOV      float32
	Aspect   float32
	Near     float32
	Far      float32
	Zoom     float32
}

// SaveContext is handed to extension Save callbacks. Values written through
// it form the extension's block.
type SaveContext struct {
	bw      binWriter
	strings *stringTable
	rows    []Entity
}

// Rows returns the saved entities in file order. File row i is Rows()[i].
func (c *SaveContext) Rows() []Entity { return c.rows }

// Write writes v in little-endian order with encoding/binary rules.
func (c *SaveContext) Write(v any) error {
	c.bw.value(v)
	return c.bw.err
}

// WriteBytes writes b verbatim.
func (c *SaveContext) WriteBytes(b []byte) error {
	c.bw.bytes(b)
	return c.bw.err
}

// WriteString adds str to the string table and writes its hash.
func (c *SaveContext) WriteString(str string) error {
	c.bw.u64(c.strings.intern(str))
	return c.bw.err
}

// Save writes the whole scene.
func (s *Scene) Save(w io.Writer) error {
	rows := make([]Entity, s.count)
	for i := range rows {
		rows[i] = Entity(i)
	}
	return s.save(w, rows, nil)
}

// SaveSubScene writes root and its descendants as a standalone snapshot in
// which root is entity 0.
func (s *Scene) SaveSubScene(w io.Writer, root Entity) error {
	if err := s.checkEntity(root); err != nil {
		return err
	}
	rows := s.Descendants(root)
	remap := make(map[Entity]Entity, len(rows))
	for k, e := range rows {
		remap[e] = Entity(k)
	}
	return s.save(w, rows, remap)
}

// SaveFile writes the scene to path.
func (s *Scene) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save scene: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := s.Save(bw); err != nil {
		f.Close()
		return fmt.Errorf("save scene %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("save scene %s: %w", path, err)
	}
	return f.Close()
}

// save writes rows in order. remap, if non-nil, renumbers parents for a
// subset save; parents outside the subset become roots.
func (s *Scene) save(w io.Writer, rows []Entity, remap map[Entity]Entity) error {
	strs := newStringTable()

	var spec bytes.Buffer
	s.writeSpecialization(&binWriter{w: &spec}, strs, rows)

	var blocks bytes.Buffer
	bw := &binWriter{w: &blocks}
	for _, ext := range s.extensions {
		ctx := &SaveContext{strings: strs, rows: rows}
		var payload bytes.Buffer
		ctx.bw.w = &payload
		if ext.Funcs.Save != nil {
			if err := ext.Funcs.Save(s, ext, ctx); err != nil {
				return fmt.Errorf("save extension %q: %w", ext.Name, err)
			}
		}
		bw.u64(ext.ID)
		bw.u32(uint32(payload.Len()))
		bw.bytes(payload.Bytes())
	}

	cams := make([]cameraRecord, len(s.cameras))
	for i, c := range s.cameras {
		cams[i] = cameraRecord{
			NameHash: strs.intern(c.Name),
			Position: c.Position,
			Focus:    c.Focus,
			Rotation: c.Rotation,
			FOV:      c.FOV,
			Aspect:   c.Aspect,
			Near:     c.Near,
			Far:      c.Far,
			Zoom:     c.Zoom,
		}
	}

	selected := s.selected
	if remap != nil {
		if k, ok := remap[selected]; ok {
			selected = k
		} else {
			selected = NoEntity
		}
	}

	out := &binWriter{w: w}
	out.value(snapshotHeader{
		Magic:          snapshotMagic,
		HeaderSize:     snapshotHeaderSize,
		Version:        SnapshotVersion,
		NumEntities:    uint32(len(rows)),
		NumComponents:  uint32(s.table.NumColumns()),
		NumStrings:     uint32(strs.len()),
		NumExtensions:  uint32(len(s.extensions)),
		BaseComponents: NumBaseColumns,
		ViewFlags:      uint32(s.viewFlags),
		Selected:       uint32(selected),
	})

	for _, c := range s.table.columns {
		if c.Plain() {
			out.u32(uint32(c.Stride()))
		} else {
			out.u32(0)
		}
	}
	for _, ext := range s.extensions {
		out.value(extensionRecord{Hash: ext.ID, Start: uint32(ext.offset), Count: uint32(len(ext.Columns))})
	}
	strs.write(out)
	out.u32(uint32(len(cams)))
	for i := range cams {
		out.value(&cams[i])
	}

	contiguous := remap == nil && (len(rows) == 0 || int(rows[len(rows)-1]) == len(rows)-1)
	for i, c := range s.table.columns {
		if !c.Plain() {
			continue
		}
		raw, stride := c.Bytes(), c.Stride()
		switch {
		case i == ColParents && remap != nil:
			out.bytes(remappedParents(s.Parents(), rows, remap))
		case contiguous:
			out.bytes(raw[:len(rows)*stride])
		default:
			for _, e := range rows {
				out.bytes(raw[int(e)*stride : int(e+1)*stride])
			}
		}
	}

	out.bytes(spec.Bytes())
	out.bytes(blocks.Bytes())
	return out.err
}

// remappedParents renders the parents column for a subset save.
func remappedParents(parents []Entity, rows []Entity, remap map[Entity]Entity) []byte {
	out := make([]Entity, len(rows))
	for k, e := range rows {
		if p, ok := remap[parents[e]]; ok && parents[e] != e {
			out[k] = p
		} else {
			out[k] = Entity(k)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), len(out)*int(unsafe.Sizeof(out[0])))
}

// writeSpecialization writes the string and handle fields of each row.
// Which blocks a row has depends on its flags, which the loader reads first.
func (s *Scene) writeSpecialization(w *binWriter, strs *stringTable, rows []Entity) {
	flags, names := s.Flags(), s.Names()
	geoms, georefs := s.Geometries(), s.GeometryRefs()
	matrefs, anims, handles := s.MaterialRefs(), s.Animations(), s.Handles()

	for _, e := range rows {
		f := flags[e]
		w.u64(strs.intern(names[e]))
		if f&CmpGeometry != 0 {
			w.u32(geoms[e].Submesh)
			w.u64(strs.intern(s.relPath(georefs[e].File)))
			w.u64(strs.intern(georefs[e].Mesh))
		}
		w.u32(uint32(len(anims[e])))
		for _, a := range anims[e] {
			w.u64(strs.intern(s.relPath(a.File)))
		}
		if f&CmpMaterial != 0 {
			m := matrefs[e]
			w.u64(strs.intern(s.relPath(m.Name)))
			w.u64(strs.intern(m.Shader))
			w.u64(strs.intern(m.Technique))
		}
		if f&CmpSDFShadow != 0 {
			w.u64(strs.intern(s.textureName(handles[e].ShadowTexture)))
		}
		if f&CmpSamplers != 0 {
			for _, t := range handles[e].Textures {
				w.u64(strs.intern(s.textureName(t)))
			}
		}
	}
}

func (s *Scene) textureName(h TextureHandle) string {
	if h == 0 {
		return ""
	}
	return s.relPath(s.resources.TextureName(h))
}

// SnapshotInfo describes a snapshot without loading it.
type SnapshotInfo struct {
	Version        uint32
	Entities       int
	BaseComponents int
	ComponentSizes []uint32
	Extensions     []SnapshotExtension
	Strings        []string
	ViewFlags      ViewFlags
	Selected       Entity
}

// SnapshotExtension locates one extension's columns in a snapshot.
type SnapshotExtension struct {
	ID    uint64
	Start int
	Count int
}

// ReadSnapshotInfo reads the header, size, extension and string tables.
func ReadSnapshotInfo(r io.Reader) (SnapshotInfo, error) {
	br := &binReader{r: r}
	pre, err := readPreamble(br)
	if err != nil {
		return SnapshotInfo{}, err
	}
	info := SnapshotInfo{
		Version:        pre.header.Version,
		Entities:       int(pre.header.NumEntities),
		BaseComponents: int(pre.baseCount),
		ComponentSizes: pre.sizes,
		ViewFlags:      ViewFlags(pre.header.ViewFlags),
		Selected:       Entity(pre.header.Selected),
	}
	for _, rec := range pre.extensions {
		info.Extensions = append(info.Extensions, SnapshotExtension{ID: rec.Hash, Start: int(rec.Start), Count: int(rec.Count)})
	}
	for _, h := range pre.strings.order {
		info.Strings = append(info.Strings, pre.strings.byHash[h])
	}
	return info, nil
}
