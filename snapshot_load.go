package arbor

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// loadErrorViewFlags are switched on when a load leaves entities degraded.
const loadErrorViewFlags = ViewAABB | ViewSelected

// DefaultMaxLoadEntities is the row limit Load applies unless
// WithMaxEntities overrides it.
const DefaultMaxLoadEntities = 1 << 20

type loadOptions struct {
	merge       bool
	maxEntities int
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithMerge appends the snapshot's entities after the live ones instead of
// clearing the scene first.
func WithMerge() LoadOption {
	return func(o *loadOptions) { o.merge = true }
}

// WithMaxEntities refuses snapshots that would leave the scene with more
// than limit rows. A limit of 0 or less disables the check.
func WithMaxEntities(limit int) LoadOption {
	return func(o *loadOptions) { o.maxEntities = limit }
}

// LoadContext is handed to extension Load callbacks. It reads the
// extension's block only.
type LoadContext struct {
	br        binReader
	strings   *stringTable
	offset    Entity
	refOffset uint32
	count     int
	version   uint32
}

// Offset returns the entity that file row 0 was loaded into.
func (c *LoadContext) Offset() Entity { return c.offset }

// RefOffset returns the amount added to every ref id stored in the file.
func (c *LoadContext) RefOffset() uint32 { return c.refOffset }

// Count returns the number of rows in the file.
func (c *LoadContext) Count() int { return c.count }

// Version returns the snapshot format version.
func (c *LoadContext) Version() uint32 { return c.version }

// Read reads v in little-endian order with encoding/binary rules.
func (c *LoadContext) Read(v any) error {
	c.br.value(v)
	return c.br.err
}

// ReadBytes fills b.
func (c *LoadContext) ReadBytes(b []byte) error {
	c.br.bytes(b)
	return c.br.err
}

// ReadString reads a string hash and resolves it through the string table.
func (c *LoadContext) ReadString() (string, error) {
	h := c.br.u64()
	if c.br.err != nil {
		return "", c.br.err
	}
	str, ok := c.strings.lookup(h)
	if !ok {
		return "", fmt.Errorf("%w: unknown string hash %#x", ErrBadSnapshot, h)
	}
	return str, nil
}

// preamble is everything before the raw columns.
type preamble struct {
	header     snapshotHeader
	baseCount  uint32
	sizes      []uint32
	extensions []extensionRecord
	strings    *stringTable
	cameras    []cameraRecord
}

// maxSnapshotCount bounds table sizes read from a header.
const maxSnapshotCount = 1 << 24

func readPreamble(br *binReader) (*preamble, error) {
	p := &preamble{}
	h := &p.header
	br.value(h)
	if br.err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrBadSnapshot, br.err)
	}
	if h.Magic != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadSnapshot, h.Magic[:])
	}
	if h.Version > SnapshotVersion {
		return nil, fmt.Errorf("%w: %d (newest supported %d)", ErrSnapshotVersion, h.Version, SnapshotVersion)
	}
	if h.HeaderSize < snapshotHeaderSize {
		return nil, fmt.Errorf("%w: header size %d", ErrBadSnapshot, h.HeaderSize)
	}
	br.skip(int64(h.HeaderSize - snapshotHeaderSize))
	if h.NumEntities > maxSnapshotCount || h.NumComponents > maxSnapshotCount ||
		h.NumStrings > maxSnapshotCount || h.NumExtensions > maxSnapshotCount {
		return nil, fmt.Errorf("%w: implausible counts", ErrBadSnapshot)
	}

	p.baseCount = h.BaseComponents
	if h.Version < versionExtensionTable {
		p.baseCount = h.NumComponents
	}
	if p.baseCount > h.NumComponents {
		return nil, fmt.Errorf("%w: %d base components of %d", ErrBadSnapshot, p.baseCount, h.NumComponents)
	}

	p.sizes = make([]uint32, h.NumComponents)
	for i := range p.sizes {
		p.sizes[i] = br.u32()
	}
	p.extensions = make([]extensionRecord, h.NumExtensions)
	for i := range p.extensions {
		br.value(&p.extensions[i])
	}
	if br.err != nil {
		return nil, fmt.Errorf("%w: tables: %w", ErrBadSnapshot, br.err)
	}
	for _, rec := range p.extensions {
		if uint64(rec.Start)+uint64(rec.Count) > uint64(h.NumComponents) || rec.Start < p.baseCount {
			return nil, fmt.Errorf("%w: extension %#x columns [%d,+%d)", ErrBadSnapshot, rec.Hash, rec.Start, rec.Count)
		}
	}

	strs, err := readStringTable(br, h.NumStrings)
	if err != nil {
		return nil, err
	}
	p.strings = strs

	n := br.u32()
	if br.err == nil && n > maxSnapshotCount {
		return nil, fmt.Errorf("%w: %d cameras", ErrBadSnapshot, n)
	}
	p.cameras = make([]cameraRecord, n)
	for i := range p.cameras {
		br.value(&p.cameras[i])
	}
	if br.err != nil {
		return nil, fmt.Errorf("%w: cameras: %w", ErrBadSnapshot, br.err)
	}
	return p, nil
}

// Load reads a snapshot written by Save. Without WithMerge the scene is
// cleared first. Columns whose size changed since the save are skipped and
// reported; resources that cannot be resolved clear the matching capability
// flag, set SceneLoadError and are reported. Neither aborts the load.
//
// The whole input is read and validated before the scene is touched, so a
// malformed or truncated snapshot leaves the scene as it was.
func (s *Scene) Load(r io.Reader, opts ...LoadOption) error {
	o := loadOptions{maxEntities: DefaultMaxLoadEntities}
	for _, opt := range opts {
		opt(&o)
	}
	br := &binReader{r: r}
	pre, err := readPreamble(br)
	if err != nil {
		return err
	}
	n := int(pre.header.NumEntities)

	offset := 0
	if o.merge {
		offset = s.count
	}
	if o.maxEntities > 0 && offset+n > o.maxEntities {
		return fmt.Errorf("%w: snapshot needs %d rows, limit is %d", ErrCapacity, offset+n, o.maxEntities)
	}

	st, err := s.stage(br, pre, offset, n)
	if err != nil {
		return err
	}
	s.commit(st, pre, o)
	return nil
}

// LoadFile reads a snapshot from path.
func (s *Scene) LoadFile(path string, opts ...LoadOption) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load scene: %w", err)
	}
	defer f.Close()
	if err := s.Load(bufio.NewReader(f), opts...); err != nil {
		return fmt.Errorf("load scene %s: %w", path, err)
	}
	return nil
}

// columnTarget maps an on-disk column to a live column index, or -1.
// Extension columns are matched by extension ID so extensions may be
// reordered, added or removed between save and load.
func (s *Scene) columnTarget(pre *preamble, j int) int {
	if j < int(pre.baseCount) {
		if j < NumBaseColumns {
			return j
		}
		return -1
	}
	for _, rec := range pre.extensions {
		if j < int(rec.Start) || j >= int(rec.Start+rec.Count) {
			continue
		}
		ext := s.extByID[rec.Hash]
		if ext == nil {
			return -1
		}
		if k := j - int(rec.Start); k < len(ext.Columns) {
			return ext.offset + k
		}
		return -1
	}
	return -1
}

// fixupLoadedRows shifts indices and ref ids of rows read at an offset and
// clears state that must not survive a load.
func (s *Scene) fixupLoadedRows(offset, n int, refOffset uint32) {
	flags, parents, slots := s.Flags(), s.Parents(), s.RefSlots()
	bodies, acs, states := s.PhysicsBodies(), s.AnimControllers(), s.States()
	handles := s.Handles()
	shift := func(ref *uint32) {
		if *ref != 0 {
			*ref += refOffset
		}
	}
	for i := offset; i < offset+n; i++ {
		handles[i] = Handles{}
		states[i] = 0
		if flags[i]&CmpAllocated == 0 {
			parents[i] = Entity(i)
			slots[i] = 0
			continue
		}
		parents[i] += Entity(offset)
		if int(parents[i]) > i {
			// corrupt or foreign data; keep the row usable as a root
			parents[i] = Entity(i)
		}
		shift(&slots[i])
		shift(&bodies[i].BodyRefA)
		shift(&bodies[i].BodyRefB)
		shift(&acs[i].RootJointRef)
		flags[i] |= CmpTransform
	}
}

// relink re-creates runtime handles for loaded rows from their names.
// Rigid bodies are created before constraints since constraints look their
// bodies up by ref id.
func (s *Scene) relink(offset, n int, pending *pendingTextures) {
	end := offset + n
	each := func(want, skip Cmp, fn func(e Entity)) {
		flags := s.Flags()
		for i := offset; i < end; i++ {
			f := flags[i]
			if f&CmpAllocated != 0 && f&want == want && f&skip == 0 {
				fn(Entity(i))
			}
		}
	}
	fail := func(e Entity, c Cmp, kind DiagnosticKind, format string, args ...any) {
		s.Flags()[e] &^= c
		s.flags |= SceneLoadError
		s.viewFlags |= loadErrorViewFlags
		if s.selected == NoEntity {
			s.selected = e
		}
		s.report(kind, e, format, args...)
	}

	each(CmpGeometry, 0, func(e Entity) {
		if !s.linkGeometry(e) {
			ref := s.GeometryRefs()[e]
			fail(e, CmpGeometry, DiagnosticMissingGeometry, "%s (mesh %q)", ref.File, ref.Mesh)
		}
	})
	each(CmpPhysics, CmpConstraint, func(e Entity) {
		if !s.createPhysics(e) {
			fail(e, CmpPhysics, DiagnosticMissingPhysics, "rigid body not created")
		}
	})
	each(CmpPhysics|CmpConstraint, 0, func(e Entity) {
		if !s.createPhysics(e) {
			fail(e, CmpPhysics|CmpConstraint, DiagnosticMissingPhysics, "constraint not created")
		}
	})
	each(0, 0, func(e Entity) {
		if len(s.Animations()[e]) == 0 {
			return
		}
		if !s.linkAnimations(e) {
			fail(e, CmpAnimController, DiagnosticMissingAnimation, "%d clips, not all found", len(s.Animations()[e]))
		}
	})
	each(CmpMaterial, 0, func(e Entity) {
		if !s.linkMaterial(e) {
			fail(e, CmpMaterial, DiagnosticMissingMaterial, "%s", s.MaterialRefs()[e].Name)
		}
	})
	each(CmpSDFShadow, 0, func(e Entity) {
		name := pending.shadow[e]
		h, ok := s.resources.LoadTexture(s.absPath(name))
		if !ok {
			fail(e, CmpSDFShadow, DiagnosticMissingTexture, "shadow volume %s", name)
			return
		}
		s.Handles()[e].ShadowTexture = h
	})
	each(CmpSamplers, 0, func(e Entity) {
		names := pending.samplers[e]
		for slot, name := range names {
			if name == "" {
				continue
			}
			h, ok := s.resources.LoadTexture(s.absPath(name))
			if !ok {
				fail(e, CmpSamplers, DiagnosticMissingTexture, "sampler %d: %s", slot, name)
				continue
			}
			s.Handles()[e].Textures[slot] = h
		}
	})
	each(CmpLight, 0, s.linkLight)
}
