package arbor

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// stagedColumn is the on-disk data of one column bound for a live column.
type stagedColumn struct {
	target int
	data   []byte
}

// stagedRow holds the variable-length part of one row, resolved to strings.
type stagedRow struct {
	name     string
	submesh  uint32
	geometry GeometryRef
	anims    []AnimationRef
	material MaterialRef
	shadow   string
	samplers [MaxSamplerBindings]string
}

type stagedBlock struct {
	id      uint64
	payload []byte
}

// stagedLoad is a fully read snapshot body. Nothing in the scene changes
// until commit.
type stagedLoad struct {
	n       int
	offset  int
	columns []stagedColumn
	rows    []stagedRow
	blocks  []stagedBlock
	notes   []Diagnostic
}

func (st *stagedLoad) note(kind DiagnosticKind, e Entity, format string, args ...any) {
	st.notes = append(st.notes, Diagnostic{Kind: kind, Entity: e, Detail: fmt.Sprintf(format, args...)})
}

// stage reads the rest of the snapshot after the preamble. Buffers grow
// only as bytes arrive, so a header that overstates the entity count costs
// no more memory than the input actually holds.
func (s *Scene) stage(br *binReader, pre *preamble, offset, n int) (*stagedLoad, error) {
	st := &stagedLoad{n: n, offset: offset}
	if err := s.stageColumns(br, pre, st); err != nil {
		return nil, err
	}
	if err := st.stageRows(br, pre.strings); err != nil {
		return nil, err
	}
	for i := uint32(0); i < pre.header.NumExtensions; i++ {
		id := br.u64()
		size := br.u32()
		if br.err != nil {
			return nil, fmt.Errorf("%w: extension block %d: %w", ErrBadSnapshot, i, br.err)
		}
		payload := br.readN(int64(size))
		if br.err != nil {
			return nil, fmt.Errorf("%w: extension block %#x: %w", ErrBadSnapshot, id, br.err)
		}
		st.blocks = append(st.blocks, stagedBlock{id: id, payload: payload})
	}
	return st, nil
}

func (s *Scene) stageColumns(br *binReader, pre *preamble, st *stagedLoad) error {
	for _, rec := range pre.extensions {
		if s.extByID[rec.Hash] == nil {
			st.note(DiagnosticUnknownExtension, NoEntity, "extension %#x (%d columns) is not registered; its data is skipped", rec.Hash, rec.Count)
		}
	}
	for j, size := range pre.sizes {
		if size == 0 {
			continue
		}
		bytesOnDisk := int64(size) * int64(st.n)
		target := s.columnTarget(pre, j)
		if target < 0 {
			br.skip(bytesOnDisk)
		} else if col := s.table.Column(target); !col.Plain() || col.Stride() != int(size) {
			live := 0
			if col.Plain() {
				live = col.Stride()
			}
			st.note(DiagnosticLayoutMismatch, NoEntity, "column %d (%s): %d bytes per row on disk, %d live; data discarded", j, col.Name(), size, live)
			br.skip(bytesOnDisk)
		} else {
			st.columns = append(st.columns, stagedColumn{target: target, data: br.readN(bytesOnDisk)})
		}
		if br.err != nil {
			return fmt.Errorf("%w: column %d: %w", ErrBadSnapshot, j, br.err)
		}
	}
	return nil
}

// flags decodes the staged flag column. Rows have no flags if the column
// was not in the file.
func (st *stagedLoad) flags() []Cmp {
	out := make([]Cmp, st.n)
	for _, c := range st.columns {
		if c.target != ColFlags {
			continue
		}
		for i := range out {
			out[i] = Cmp(binary.NativeEndian.Uint64(c.data[i*8:]))
		}
	}
	return out
}

func (st *stagedLoad) stageRows(br *binReader, strs *stringTable) error {
	flags := st.flags()
	for i := 0; i < st.n; i++ {
		e := Entity(st.offset + i)
		str := func() string {
			h := br.u64()
			v, ok := strs.lookup(h)
			if !ok && br.err == nil {
				st.note(DiagnosticLayoutMismatch, e, "string hash %#x missing from string table", h)
			}
			return v
		}

		f := flags[i]
		var row stagedRow
		row.name = str()
		if f&CmpGeometry != 0 {
			row.submesh = br.u32()
			row.geometry = GeometryRef{File: str(), Mesh: str()}
		}
		count := br.u32()
		if br.err == nil && count > maxSnapshotCount {
			return fmt.Errorf("%w: entity %d has %d animations", ErrBadSnapshot, i, count)
		}
		for k := uint32(0); k < count && br.err == nil; k++ {
			row.anims = append(row.anims, AnimationRef{File: str()})
		}
		if f&CmpMaterial != 0 {
			row.material = MaterialRef{Name: str(), Shader: str(), Technique: str()}
		}
		if f&CmpSDFShadow != 0 {
			row.shadow = str()
		}
		if f&CmpSamplers != 0 {
			for k := range row.samplers {
				row.samplers[k] = str()
			}
		}
		if br.err != nil {
			return fmt.Errorf("%w: entity %d: %w", ErrBadSnapshot, i, br.err)
		}
		st.rows = append(st.rows, row)
	}
	return nil
}

// pendingTextures holds texture names read from the file until relink.
type pendingTextures struct {
	shadow   map[Entity]string
	samplers map[Entity][MaxSamplerBindings]string
}

// commit moves a staged snapshot into the scene. It cannot fail.
func (s *Scene) commit(st *stagedLoad, pre *preamble, o loadOptions) {
	hdr := &pre.header
	n, offset, refOffset := st.n, st.offset, uint32(0)
	if o.merge {
		refOffset = s.maxRef()
	} else {
		s.Clear()
	}
	if need := offset + n; need > s.table.Capacity() {
		s.Resize(need - s.table.Capacity())
	}

	for _, c := range st.columns {
		col := s.table.Column(c.target)
		stride := col.Stride()
		copy(col.Bytes()[offset*stride:(offset+n)*stride], c.data)
	}
	for _, d := range st.notes {
		s.emit(d)
	}
	s.fixupLoadedRows(offset, n, refOffset)

	names, geoms, georefs := s.Names(), s.Geometries(), s.GeometryRefs()
	matrefs, anims, flags := s.MaterialRefs(), s.Animations(), s.Flags()
	pending := &pendingTextures{
		shadow:   make(map[Entity]string),
		samplers: make(map[Entity][MaxSamplerBindings]string),
	}
	for k, row := range st.rows {
		i := offset + k
		e := Entity(i)
		names[i] = row.name
		anims[i] = row.anims
		if flags[i]&CmpGeometry != 0 {
			geoms[i].Submesh = row.submesh
			georefs[i] = row.geometry
		}
		if flags[i]&CmpMaterial != 0 {
			matrefs[i] = row.material
		}
		if flags[i]&CmpSDFShadow != 0 {
			pending.shadow[e] = row.shadow
		}
		if flags[i]&CmpSamplers != 0 {
			pending.samplers[e] = row.samplers
		}
	}

	cams := make([]*Camera, 0, len(pre.cameras))
	for _, rec := range pre.cameras {
		c := NewCamera("")
		c.Name, _ = pre.strings.lookup(rec.NameHash)
		c.Position, c.Focus, c.Rotation = rec.Position, rec.Focus, rec.Rotation
		c.FOV, c.Aspect, c.Near, c.Far, c.Zoom = rec.FOV, rec.Aspect, rec.Near, rec.Far, rec.Zoom
		cams = append(cams, c)
	}
	if o.merge {
		s.cameras = append(s.cameras, cams...)
	} else {
		s.cameras = cams
		s.viewFlags = ViewFlags(hdr.ViewFlags)
		s.selected = Entity(hdr.Selected)
		if int(s.selected) >= offset+n {
			s.selected = NoEntity
		}
	}

	s.count = max(s.count, offset+n)
	s.shrink()
	s.rebuildRefs()
	s.free.build(s.Flags())

	for _, b := range st.blocks {
		ext := s.extByID[b.id]
		if ext == nil || ext.Funcs.Load == nil {
			continue
		}
		ctx := &LoadContext{
			strings:   pre.strings,
			offset:    Entity(offset),
			refOffset: refOffset,
			count:     n,
			version:   hdr.Version,
		}
		ctx.br.r = bytes.NewReader(b.payload)
		if err := ext.Funcs.Load(s, ext, ctx); err != nil {
			s.report(DiagnosticLayoutMismatch, NoEntity, "extension %q: %v", ext.Name, err)
		}
	}

	s.relink(offset, n, pending)
	s.flags |= SceneInvalidateTree
}
