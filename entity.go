package arbor

import (
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// IsAllocated reports whether e is a live entity.
func (s *Scene) IsAllocated(e Entity) bool {
	return int(e) < s.table.Capacity() && s.Flags()[e]&CmpAllocated != 0
}

func (s *Scene) checkEntity(e Entity) error {
	if !s.IsAllocated(e) {
		return fmt.Errorf("%w: %d", ErrInvalidEntity, e)
	}
	return nil
}

// Allocate takes the slot at the head of the free list (the most recently
// freed one, or the lowest after a load or clear), marks it allocated, makes it a root
// and gives it a fresh ref id. Other components are left zero. It returns
// ErrCapacity when no slot is free; call Resize first.
func (s *Scene) Allocate() (Entity, error) {
	e, ok := s.free.pop()
	if !ok {
		return NoEntity, ErrCapacity
	}
	s.Flags()[e] = CmpAllocated
	s.Parents()[e] = e
	s.newRef(e)
	s.grow(e)
	return e, nil
}

// grow raises the high-water mark to include e.
func (s *Scene) grow(e Entity) {
	if int(e) >= s.count {
		s.count = int(e) + 1
	}
}

// shrink lowers the high-water mark past trailing free slots.
func (s *Scene) shrink() {
	flags := s.Flags()
	for s.count > 0 && flags[s.count-1]&CmpAllocated == 0 {
		s.count--
	}
}

// Spawn allocates a root entity with an identity transform and a name.
func (s *Scene) Spawn(name string) (Entity, error) {
	e, err := s.Allocate()
	if err != nil {
		return NoEntity, err
	}
	s.initSpawned(e, name)
	return e, nil
}

// SpawnChild allocates an entity parented to parent. It takes the head of
// the free list, so it fails with ErrHierarchyOrder if that slot is not
// above parent.
func (s *Scene) SpawnChild(parent Entity, name string) (Entity, error) {
	if err := s.checkEntity(parent); err != nil {
		return NoEntity, err
	}
	if s.free.head == NoEntity {
		return NoEntity, ErrCapacity
	}
	if s.free.head <= parent {
		return NoEntity, fmt.Errorf("%w: next free slot %d is not above parent %d", ErrHierarchyOrder, s.free.head, parent)
	}
	e, err := s.Allocate()
	if err != nil {
		return NoEntity, err
	}
	s.initSpawned(e, name)
	s.Parents()[e] = parent
	return e, nil
}

func (s *Scene) initSpawned(e Entity, name string) {
	s.Transforms()[e] = IdentityTransform()
	s.PhysicsOffsets()[e] = IdentityTransform()
	s.LocalMatrices()[e] = mgl32.Ident4()
	s.WorldMatrices()[e] = mgl32.Ident4()
	s.Flags()[e] |= CmpTransform
	s.Names()[e] = name
	s.flags |= SceneInvalidateTree
}

// SetParent re-parents child. parent must be below child; NoEntity or child
// itself makes child a root.
func (s *Scene) SetParent(child, parent Entity) error {
	if err := s.checkEntity(child); err != nil {
		return err
	}
	if parent == NoEntity || parent == child {
		s.Parents()[child] = child
		s.flags |= SceneInvalidateTree
		return nil
	}
	if err := s.checkEntity(parent); err != nil {
		return err
	}
	if parent > child {
		return fmt.Errorf("%w: parent %d, child %d", ErrHierarchyOrder, parent, child)
	}
	s.Parents()[child] = parent
	s.Flags()[child] |= CmpTransform
	s.flags |= SceneInvalidateTree
	return nil
}

// Parent returns the parent of e, or NoEntity for roots.
func (s *Scene) Parent(e Entity) Entity {
	p := s.Parents()[e]
	if p == e {
		return NoEntity
	}
	return p
}

// Children returns the direct children of parent in index order.
func (s *Scene) Children(parent Entity) []Entity {
	var out []Entity
	flags, parents := s.Flags(), s.Parents()
	for i := int(parent) + 1; i < s.count; i++ {
		if flags[i]&CmpAllocated != 0 && parents[i] == parent {
			out = append(out, Entity(i))
		}
	}
	return out
}

// Descendants returns root and every entity below it, in index order.
func (s *Scene) Descendants(root Entity) []Entity {
	if !s.IsAllocated(root) {
		return nil
	}
	in := make(map[Entity]bool)
	in[root] = true
	out := []Entity{root}
	flags, parents := s.Flags(), s.Parents()
	for i := int(root) + 1; i < s.count; i++ {
		e := Entity(i)
		if flags[i]&CmpAllocated != 0 && parents[i] != e && in[parents[i]] {
			in[e] = true
			out = append(out, e)
		}
	}
	return out
}

// SetTransform replaces the local transform of e and marks it dirty.
func (s *Scene) SetTransform(e Entity, t Transform) {
	s.Transforms()[e] = t
	s.Flags()[e] |= CmpTransform
}

// SetName replaces the name of e.
func (s *Scene) SetName(e Entity, name string) {
	s.Names()[e] = name
}

// Delete releases the external resources of every listed entity in two
// phases and returns the slots to the free list. Phase 1 runs for all of
// them before phase 2 runs for any, so a constraint is released before the
// bodies it joins wherever they appear in the list. Children of a deleted
// entity that are not deleted with it become roots.
func (s *Scene) Delete(entities ...Entity) error {
	batch := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if err := s.checkEntity(e); err != nil {
			return err
		}
		if !slices.Contains(batch, e) {
			batch = append(batch, e)
		}
	}
	s.deleteBatch(batch)
	return nil
}

func (s *Scene) deleteBatch(batch []Entity) {
	for _, e := range batch {
		s.runReleases(PhaseDependents, e)
	}
	for _, e := range batch {
		s.runReleases(PhaseOwners, e)
		s.releaseRef(e)
		s.Zero(e)
		s.free.push(e)
		if s.selected == e {
			s.selected = NoEntity
		}
	}
	s.orphan()
	s.shrink()
	s.flags |= SceneInvalidateTree
}

// orphan turns live entities whose parent was freed into roots, so a
// recycled slot never adopts them. Their local transform becomes their
// world transform on the next update.
func (s *Scene) orphan() {
	flags, parents := s.Flags(), s.Parents()
	for i := 0; i < s.count; i++ {
		p := parents[i]
		if flags[i]&CmpAllocated == 0 || p == Entity(i) || flags[p]&CmpAllocated != 0 {
			continue
		}
		parents[i] = Entity(i)
		flags[i] |= CmpTransform
	}
}

// live returns every allocated entity.
func (s *Scene) live() []Entity {
	var out []Entity
	flags := s.Flags()
	for i := 0; i < s.count; i++ {
		if flags[i]&CmpAllocated != 0 {
			out = append(out, Entity(i))
		}
	}
	return out
}

// Clear deletes every entity, frees the column memory and reallocates it at
// the same capacity. Extensions and controllers stay registered.
func (s *Scene) Clear() {
	capacity := s.table.Capacity()
	s.deleteBatch(s.live())
	s.table.Free()
	s.table.Realloc(capacity)
	s.count = 0
	s.refs = s.refs[:1]
	s.freeRefs = s.freeRefs[:0]
	clear(s.shared)
	s.selected = NoEntity
	s.resetRows(0)
	s.free.build(s.Flags())
}

// Destroy clears the scene, shuts every extension down and frees all column
// memory. The scene must not be used afterwards.
func (s *Scene) Destroy() {
	s.deleteBatch(s.live())
	s.UnregisterExtensions()
	s.UnregisterControllers()
	s.table.Free()
	s.free = freeList{}
	s.count = 0
	s.refs = s.refs[:1]
	s.freeRefs = nil
	s.cameras = nil
}

// Zero clears every column of row i and makes it a root. It does not touch
// the free list or the ref table.
func (s *Scene) Zero(i Entity) {
	s.table.Zero(int(i))
	s.Parents()[i] = i
}

// Swap exchanges every column of a and b through a scratch slot, repoints
// every parent reference to either of them, and updates the ref table so
// ref ids follow their entities. When one of them is free the live row is
// moved into it; otherwise it returns ErrCapacity if no scratch slot is
// free. Swapping can break parent-before-child order; callers compacting
// a scene are responsible for keeping it.
func (s *Scene) Swap(a, b Entity) error {
	capacity := Entity(s.table.Capacity())
	if a >= capacity || b >= capacity {
		return fmt.Errorf("%w: swap %d, %d", ErrInvalidEntity, a, b)
	}
	if a == b {
		return nil
	}
	freeA, freeB := s.free.contains(a), s.free.contains(b)
	if freeA && freeB {
		return nil
	}

	t := s.table
	moved := NoEntity
	if freeA != freeB {
		// a free row is already zero, so the live row moves into it and no
		// scratch slot is needed
		src, dst := a, b
		if freeA {
			src, dst = b, a
		}
		t.Copy(int(dst), int(src))
		t.Zero(int(src))
		s.free.unlink(dst)
		s.free.push(src)
		moved = src
	} else {
		scratch := s.free.firstExcept(a, b)
		if scratch == NoEntity {
			return ErrCapacity
		}
		s.free.unlink(scratch)
		t.Copy(int(scratch), int(a))
		t.Copy(int(a), int(b))
		t.Copy(int(b), int(scratch))
		t.Zero(int(scratch))
		s.Parents()[scratch] = scratch
		s.free.push(scratch)
	}

	parents := s.Parents()
	n := max(s.count, int(max(a, b))+1)
	for i := 0; i < n; i++ {
		switch parents[i] {
		case a:
			parents[i] = b
		case b:
			parents[i] = a
		}
	}
	if moved != NoEntity {
		parents[moved] = moved
	}

	flags, slots := s.Flags(), s.RefSlots()
	for _, e := range [2]Entity{a, b} {
		if flags[e]&CmpAllocated != 0 {
			s.refs[slots[e]] = e
			s.grow(e)
		}
	}
	s.shrink()
	if s.selected == a {
		s.selected = b
	} else if s.selected == b {
		s.selected = a
	}
	s.flags |= SceneInvalidateTree
	return nil
}

// CloneMode selects how a clone treats external resources.
type CloneMode uint8

const (
	// CloneShare keeps the source handles. Shared handles are reference
	// counted so deleting either entity leaves the other intact.
	CloneShare CloneMode = iota
	// CloneInstantiate creates new physics bodies and constant buffers so
	// the clone simulates and renders independently.
	CloneInstantiate
	// CloneMove relocates the source: the destination inherits its handles
	// and ref id, and the source slot is zeroed and freed.
	CloneMove
)

type cloneOptions struct {
	dst    Entity
	parent Entity
	offset mgl32.Vec3
	suffix string
}

// CloneOption configures Clone.
type CloneOption func(*cloneOptions)

// WithDestination clones into dst, which must be a free slot.
func WithDestination(dst Entity) CloneOption {
	return func(o *cloneOptions) { o.dst = dst }
}

// WithParent parents the clone to p instead of keeping the source's
// relative parent.
func WithParent(p Entity) CloneOption {
	return func(o *cloneOptions) { o.parent = p }
}

// WithOffset moves the clone's translation by offset.
func WithOffset(offset mgl32.Vec3) CloneOption {
	return func(o *cloneOptions) { o.offset = offset }
}

// WithSuffix appends suffix to the clone's name.
func WithSuffix(suffix string) CloneOption {
	return func(o *cloneOptions) { o.suffix = suffix }
}

// Clone copies every column of src into a new entity (or the slot given by
// WithDestination) and returns it. Without WithParent the clone keeps the
// same parent distance as src, falling back to src's parent and then to
// being a root if that would break parent-before-child order.
func (s *Scene) Clone(src Entity, mode CloneMode, opts ...CloneOption) (Entity, error) {
	o := cloneOptions{dst: NoEntity, parent: NoEntity}
	for _, opt := range opts {
		opt(&o)
	}
	if err := s.checkEntity(src); err != nil {
		return NoEntity, err
	}

	dst := o.dst
	if dst == NoEntity {
		dst = s.free.head
		if dst == NoEntity {
			return NoEntity, ErrCapacity
		}
	} else if int(dst) >= s.table.Capacity() || !s.free.contains(dst) {
		return NoEntity, fmt.Errorf("%w: clone destination %d is not free", ErrInvalidEntity, dst)
	}
	if o.parent != NoEntity {
		if err := s.checkEntity(o.parent); err != nil {
			return NoEntity, err
		}
		if o.parent >= dst {
			return NoEntity, fmt.Errorf("%w: parent %d, clone %d", ErrHierarchyOrder, o.parent, dst)
		}
	}
	if mode == CloneMove {
		for _, c := range s.Children(src) {
			if c <= dst {
				return NoEntity, fmt.Errorf("%w: child %d of %d would precede %d", ErrHierarchyOrder, c, src, dst)
			}
		}
	}

	s.free.unlink(dst)
	s.table.Copy(int(dst), int(src))

	parents := s.Parents()
	switch {
	case o.parent != NoEntity:
		parents[dst] = o.parent
	case parents[src] == src:
		parents[dst] = dst
	default:
		parents[dst] = s.relativeParent(src, dst)
	}

	names := s.Names()
	names[dst] = names[src] + o.suffix
	t := &s.Transforms()[dst]
	t.Translation = t.Translation.Add(o.offset)
	s.Flags()[dst] |= CmpTransform
	s.States()[dst] = 0

	switch mode {
	case CloneShare:
		s.RefSlots()[dst] = 0
		s.newRef(dst)
		s.retainAll(dst)
	case CloneInstantiate:
		s.RefSlots()[dst] = 0
		s.newRef(dst)
		s.instantiate(dst)
	case CloneMove:
		id := s.RefSlots()[src]
		s.refs[id] = dst
		for i := int(src) + 1; i < s.count; i++ {
			if parents[i] == src && Entity(i) != src {
				parents[i] = dst
			}
		}
		s.Zero(src)
		s.free.push(src)
		if s.selected == src {
			s.selected = dst
		}
	}
	for _, ext := range s.extensions {
		if ext.Funcs.Clone != nil {
			ext.Funcs.Clone(s, ext, dst, src, mode)
		}
	}
	s.grow(dst)
	s.shrink()
	s.flags |= SceneInvalidateTree
	return dst, nil
}

// relativeParent keeps the src-to-parent distance for dst when that lands on
// a live entity below dst.
func (s *Scene) relativeParent(src, dst Entity) Entity {
	parents := s.Parents()
	dist := src - parents[src]
	if dst >= dist {
		if p := dst - dist; p < dst && s.IsAllocated(p) {
			return p
		}
	}
	if p := parents[src]; p < dst {
		return p
	}
	return dst
}

// instantiate replaces the copied runtime handles of e with new ones.
// Resource cache handles (geometry, material, textures) stay shared.
func (s *Scene) instantiate(e Entity) {
	h := &s.Handles()[e]
	f := s.Flags()[e]
	if h.CBuffer != 0 {
		h.CBuffer = s.renderer.CreateBuffer(modelCBufferSize)
	}
	if h.MaterialCBuffer != 0 {
		h.MaterialCBuffer = s.renderer.CreateBuffer(s.materialCBufferSize(e))
	}
	// sub-geometry keeps borrowing its parent's bones
	if h.BoneCBuffer != 0 && f&CmpSubGeometry == 0 {
		h.BoneCBuffer = s.renderer.CreateBuffer(boneCBufferSize(s.Geometries()[e].NumJoints))
	}
	if h.PreSkinVertex != 0 || h.PreSkinPosition != 0 {
		s.createPreSkinBuffers(e)
	}
	if h.InstanceBuffer != 0 {
		s.createInstanceBuffer(e)
	}
	if f&CmpPhysics != 0 {
		h.Physics = 0
		s.createPhysics(e)
	}
}
