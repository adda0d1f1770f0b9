package arbor

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Base column indices. Extension columns follow NumBaseColumns.
const (
	ColFlags = iota
	ColState
	ColParents
	ColRefSlots
	ColTransforms
	ColPhysicsOffsets
	ColLocalMatrices
	ColWorldMatrices
	ColBoundingVolumes
	ColPosExtents
	ColGeometries
	ColMaterials
	ColLights
	ColPhysics
	ColAnimControllers
	ColPreSkins
	ColMasterInstances
	ColSamplers
	ColNames
	ColGeometryRefs
	ColMaterialRefs
	ColAnimations
	ColHandles

	NumBaseColumns
)

func baseColumns() []ColumnSpec {
	return []ColumnSpec{
		ColFlags:           PlainSpec[Cmp]("flags"),
		ColState:           PlainSpec[State]("state"),
		ColParents:         PlainSpec[Entity]("parents"),
		ColRefSlots:        PlainSpec[uint32]("ref_slots"),
		ColTransforms:      PlainSpec[Transform]("transforms"),
		ColPhysicsOffsets:  PlainSpec[Transform]("physics_offsets"),
		ColLocalMatrices:   PlainSpec[mgl32.Mat4]("local_matrices"),
		ColWorldMatrices:   PlainSpec[mgl32.Mat4]("world_matrices"),
		ColBoundingVolumes: PlainSpec[BoundingVolume]("bounding_volumes"),
		ColPosExtents:      PlainSpec[PosExtent]("pos_extents"),
		ColGeometries:      PlainSpec[Geometry]("geometries"),
		ColMaterials:       PlainSpec[Material]("materials"),
		ColLights:          PlainSpec[Light]("lights"),
		ColPhysics:         PlainSpec[PhysicsBody]("physics"),
		ColAnimControllers: PlainSpec[AnimController]("anim_controllers"),
		ColPreSkins:        PlainSpec[PreSkin]("pre_skins"),
		ColMasterInstances: PlainSpec[MasterInstance]("master_instances"),
		ColSamplers:        PlainSpec[Samplers]("samplers"),
		ColNames:           TransientSpec[string]("names", nil),
		ColGeometryRefs:    TransientSpec[GeometryRef]("geometry_refs", nil),
		ColMaterialRefs:    TransientSpec[MaterialRef]("material_refs", nil),
		ColAnimations:      TransientSpec("animations", copyAnimations),
		ColHandles:         TransientSpec[Handles]("handles", nil),
	}
}

// copyAnimations gives the destination its own backing array.
func copyAnimations(dst, src *[]AnimationRef) {
	if len(*src) == 0 {
		*dst = nil
		return
	}
	*dst = append([]AnimationRef(nil), *src...)
}

// Scene owns the component table of one level or session together with the
// free list, ref table, extension and controller registries and cameras.
// A Scene is not safe for concurrent use.
type Scene struct {
	name  string
	table *Table
	free  freeList
	count int // one past the highest allocated index

	refs     []Entity // ref id -> entity; refs[0] is unused
	freeRefs []uint32

	extensions  []*Extension
	extByID     map[uint64]*Extension
	controllers []*Controller
	ctrlByID    map[uint64]*Controller
	releases    []ReleaseRule
	shared      map[sharedKey]int

	cameras []*Camera

	flags     SceneFlags
	viewFlags ViewFlags
	selected  Entity
	extents   AABB

	physics     Physics
	renderer    Renderer
	resources   Resources
	animator    Animator
	logger      Logger
	diagnostics DiagnosticSink

	fixedStep  float32
	projectDir string
	debug      bool
	stats      frameStats
}

// NewScene creates a scene from cfg. Unset collaborators fall back to no-op
// implementations and the logger to log.Default().
func NewScene(cfg Config) *Scene {
	cfg = cfg.withDefaults()
	s := &Scene{
		name:        cfg.Name,
		table:       NewTable(cfg.Capacity, baseColumns()...),
		refs:        []Entity{NoEntity},
		extByID:     make(map[uint64]*Extension),
		ctrlByID:    make(map[uint64]*Controller),
		releases:    baseReleaseRules(),
		shared:      make(map[sharedKey]int),
		selected:    NoEntity,
		extents:     emptyAABB(),
		physics:     cfg.Physics,
		renderer:    cfg.Renderer,
		resources:   cfg.Resources,
		animator:    cfg.Animator,
		logger:      cfg.Logger,
		diagnostics: cfg.Diagnostics,
		fixedStep:   cfg.FixedStep,
		projectDir:  cfg.ProjectDir,
		debug:       cfg.Debug,
	}
	if cfg.Paused {
		s.flags |= ScenePaused
	}
	s.resetRows(0)
	s.free.build(s.Flags())
	return s
}

// Name returns the scene name from its Config.
func (s *Scene) Name() string { return s.name }

// Table returns the component table.
func (s *Scene) Table() *Table { return s.table }

// Column returns the i-th column, base or extension.
func (s *Scene) Column(i int) Column { return s.table.Column(i) }

// Capacity returns the number of rows in every column.
func (s *Scene) Capacity() int { return s.table.Capacity() }

// Count returns one past the highest allocated entity. Updates and saves
// iterate [0, Count).
func (s *Scene) Count() int { return s.count }

// NumFree returns the length of the free list.
func (s *Scene) NumFree() int { return s.free.size }

// Resize grows every column by growBy rows and rebuilds the free list.
func (s *Scene) Resize(growBy int) {
	old := s.table.Capacity()
	s.table.Resize(growBy)
	s.resetRows(old)
	s.free.build(s.Flags())
}

// resetRows sets parent = self for every unallocated row from index from on.
func (s *Scene) resetRows(from int) {
	flags, parents := s.Flags(), s.Parents()
	for i := from; i < len(parents); i++ {
		if flags[i]&CmpAllocated == 0 {
			parents[i] = Entity(i)
		}
	}
}

// --- Typed column accessors. Slices are invalidated by Resize and Clear. ---

// Flags returns the capability flags of every row.
func (s *Scene) Flags() []Cmp {
	return ColumnData[Cmp](s.table.columns[ColFlags])
}

// States returns the per-entity update state.
func (s *Scene) States() []State {
	return ColumnData[State](s.table.columns[ColState])
}

// Parents returns the parent column. A root is its own parent.
func (s *Scene) Parents() []Entity {
	return ColumnData[Entity](s.table.columns[ColParents])
}

// RefSlots returns the ref id held by each row, 0 for none.
func (s *Scene) RefSlots() []uint32 {
	return ColumnData[uint32](s.table.columns[ColRefSlots])
}

// Transforms returns the local transforms.
func (s *Scene) Transforms() []Transform {
	return ColumnData[Transform](s.table.columns[ColTransforms])
}

// PhysicsOffsets returns the offsets between each body and its entity.
func (s *Scene) PhysicsOffsets() []Transform {
	return ColumnData[Transform](s.table.columns[ColPhysicsOffsets])
}

// LocalMatrices returns the cached local matrices.
func (s *Scene) LocalMatrices() []mgl32.Mat4 {
	return ColumnData[mgl32.Mat4](s.table.columns[ColLocalMatrices])
}

// WorldMatrices returns the world matrices computed by the last update.
func (s *Scene) WorldMatrices() []mgl32.Mat4 {
	return ColumnData[mgl32.Mat4](s.table.columns[ColWorldMatrices])
}

// BoundingVolumes returns the world-space bounds of each subtree.
func (s *Scene) BoundingVolumes() []BoundingVolume {
	return ColumnData[BoundingVolume](s.table.columns[ColBoundingVolumes])
}

// PosExtents returns the local bounds of each renderable.
func (s *Scene) PosExtents() []PosExtent {
	return ColumnData[PosExtent](s.table.columns[ColPosExtents])
}

// Geometries returns the geometry components.
func (s *Scene) Geometries() []Geometry {
	return ColumnData[Geometry](s.table.columns[ColGeometries])
}

// Materials returns the material components.
func (s *Scene) Materials() []Material {
	return ColumnData[Material](s.table.columns[ColMaterials])
}

// Lights returns the light components.
func (s *Scene) Lights() []Light {
	return ColumnData[Light](s.table.columns[ColLights])
}

// PhysicsBodies returns the rigid body and constraint descriptions.
func (s *Scene) PhysicsBodies() []PhysicsBody {
	return ColumnData[PhysicsBody](s.table.columns[ColPhysics])
}

// AnimControllers returns the animation controller components.
func (s *Scene) AnimControllers() []AnimController {
	return ColumnData[AnimController](s.table.columns[ColAnimControllers])
}

// PreSkins returns the pre-skin components.
func (s *Scene) PreSkins() []PreSkin {
	return ColumnData[PreSkin](s.table.columns[ColPreSkins])
}

// MasterInstances returns the instancing components.
func (s *Scene) MasterInstances() []MasterInstance {
	return ColumnData[MasterInstance](s.table.columns[ColMasterInstances])
}

// Samplers returns the sampler states of each row.
func (s *Scene) Samplers() []Samplers {
	return ColumnData[Samplers](s.table.columns[ColSamplers])
}

// Names returns the entity names.
func (s *Scene) Names() []string {
	return ColumnData[string](s.table.columns[ColNames])
}

// GeometryRefs returns the geometry file references.
func (s *Scene) GeometryRefs() []GeometryRef {
	return ColumnData[GeometryRef](s.table.columns[ColGeometryRefs])
}

// MaterialRefs returns the material references.
func (s *Scene) MaterialRefs() []MaterialRef {
	return ColumnData[MaterialRef](s.table.columns[ColMaterialRefs])
}

// Animations returns the animation clips of each row.
func (s *Scene) Animations() [][]AnimationRef {
	return ColumnData[[]AnimationRef](s.table.columns[ColAnimations])
}

// Handles returns the external resource handles of each row.
func (s *Scene) Handles() []Handles {
	return ColumnData[Handles](s.table.columns[ColHandles])
}

// --- Scene state ---

// SceneFlags returns the scene-wide flags.
func (s *Scene) SceneFlags() SceneFlags { return s.flags }

// SetSceneFlags replaces the scene-wide flags.
func (s *Scene) SetSceneFlags(f SceneFlags) { s.flags = f }

// SetPaused pauses or resumes animation and physics.
func (s *Scene) SetPaused(paused bool) {
	if paused {
		s.flags |= ScenePaused
	} else {
		s.flags &^= ScenePaused
	}
}

// ViewFlags returns the debug view flags.
func (s *Scene) ViewFlags() ViewFlags { return s.viewFlags }

// SetViewFlags replaces the debug view flags.
func (s *Scene) SetViewFlags(f ViewFlags) { s.viewFlags = f }

// Selected returns the selected entity or NoEntity.
func (s *Scene) Selected() Entity { return s.selected }

// Select marks e as selected. Pass NoEntity to clear.
func (s *Scene) Select(e Entity) { s.selected = e }

// RenderableExtents returns the union of the world boxes of every entity
// with geometry, as of the last Update.
func (s *Scene) RenderableExtents() AABB { return s.extents }

// SetLogger replaces the logger. nil restores log.Default().
func (s *Scene) SetLogger(l Logger) {
	if l == nil {
		l = defaultLogger
	}
	s.logger = l
}

// SetDiagnostics replaces the diagnostic sink.
func (s *Scene) SetDiagnostics(d DiagnosticSink) { s.diagnostics = d }

// --- Ref table ---

// IndexFromRef maps a stable ref id to the entity currently holding it, or
// NoEntity if the id is unused.
func (s *Scene) IndexFromRef(ref uint32) Entity {
	if ref == 0 || int(ref) >= len(s.refs) {
		return NoEntity
	}
	return s.refs[ref]
}

// RefOf returns the stable ref id of e, or 0 if e is not allocated.
func (s *Scene) RefOf(e Entity) uint32 {
	if !s.IsAllocated(e) {
		return 0
	}
	return s.RefSlots()[e]
}

func (s *Scene) newRef(e Entity) uint32 {
	var id uint32
	if n := len(s.freeRefs); n > 0 {
		id = s.freeRefs[n-1]
		s.freeRefs = s.freeRefs[:n-1]
		s.refs[id] = e
	} else {
		id = uint32(len(s.refs))
		s.refs = append(s.refs, e)
	}
	s.RefSlots()[e] = id
	return id
}

func (s *Scene) releaseRef(e Entity) {
	id := s.RefSlots()[e]
	if id == 0 || int(id) >= len(s.refs) || s.refs[id] != e {
		return
	}
	s.refs[id] = NoEntity
	s.freeRefs = append(s.freeRefs, id)
}

// rebuildRefs reconstructs the ref table from the ref_slots column. Live
// entities without an id, or whose id is taken, get a fresh one.
func (s *Scene) rebuildRefs() {
	flags, slots := s.Flags(), s.RefSlots()
	maxID := uint32(0)
	for i := 0; i < s.count; i++ {
		if flags[i]&CmpAllocated != 0 && slots[i] > maxID {
			maxID = slots[i]
		}
	}
	s.refs = make([]Entity, maxID+1)
	for i := range s.refs {
		s.refs[i] = NoEntity
	}
	var orphans []Entity
	for i := 0; i < s.count; i++ {
		if flags[i]&CmpAllocated == 0 {
			continue
		}
		id := slots[i]
		if id == 0 || s.refs[id] != NoEntity {
			orphans = append(orphans, Entity(i))
			continue
		}
		s.refs[id] = Entity(i)
	}
	s.freeRefs = s.freeRefs[:0]
	for id := len(s.refs) - 1; id >= 1; id-- {
		if s.refs[id] == NoEntity {
			s.freeRefs = append(s.freeRefs, uint32(id))
		}
	}
	for _, e := range orphans {
		s.newRef(e)
	}
}

// maxRef returns the highest ref id in use.
func (s *Scene) maxRef() uint32 {
	return uint32(len(s.refs) - 1)
}
