package arbor

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Entity is an index into every column of a Scene. It is not an object:
// the same index addresses one row across all component arrays.
type Entity uint32

// NoEntity is the "none" sentinel for entity arguments.
const NoEntity Entity = math.MaxUint32

// Cmp is a bitmask of the capabilities an entity currently has. It lives in
// the flags column and is the only component every system consults.
type Cmp uint64

const (
	CmpAllocated            Cmp = 1 << iota // slot is in use
	CmpTransform                            // transform is dirty; local matrix is rebuilt next update
	CmpGeometry                             // has a geometry resource
	CmpMaterial                             // has a material resource
	CmpLight                                // has a light
	CmpPhysics                              // has a rigid body
	CmpConstraint                           // physics handle is a constraint, not a body
	CmpBone                                 // zero-volume joint; bounds collapse to a point
	CmpAnimController                       // drives animations
	CmpSubGeometry                          // shares skinning data with its parent
	CmpPreSkinned                           // owns pre-skin stream-out buffers
	CmpSkinned                              // owns a bone constant buffer
	CmpSDFShadow                            // has a shadow volume texture
	CmpSamplers                             // has sampler bindings
	CmpMasterInstance                       // owns an instance buffer
	CmpSubInstance                          // drawn through a master instance
	CmpCustomInstanceBuffer                 // instance buffer is filled by the caller
)

// State holds transient per-entity update state.
type State uint32

const (
	// StateSyncPhysics forces the next update to take the simulated pose
	// even if the transform is dirty.
	StateSyncPhysics State = 1 << iota
)

// SceneFlags are scene-wide flags.
type SceneFlags uint32

const (
	ScenePaused         SceneFlags = 1 << iota // skip animation, pause physics
	SceneLoadError                             // the last load could not resolve every resource
	SceneInvalidateTree                        // hierarchy changed; editor views should rebuild
)

// ViewFlags select debug visualisations. They are persisted in snapshots.
type ViewFlags uint32

const (
	ViewMatrix ViewFlags = 1 << iota
	ViewBones
	ViewAABB
	ViewLights
	ViewPhysics
	ViewSelected
)

// LightType selects the light model.
type LightType uint32

const (
	LightDirectional LightType = iota
	LightPoint
	LightSpot
	LightArea
)

// LightFlags are per-light options.
type LightFlags uint32

const (
	LightShadowMap LightFlags = 1 << iota
	LightOmniShadowMap
	LightGlobalIllumination
)

// PhysicsType distinguishes rigid bodies from constraints.
type PhysicsType uint32

const (
	PhysicsRigidBody PhysicsType = iota
	PhysicsConstraint
)

// MaxSamplerBindings is the number of texture bindings per entity.
const MaxSamplerBindings = 8

// Runtime handles owned by collaborators. Zero is always invalid.
type (
	BufferHandle    uint32
	PhysicsHandle   uint32
	GeometryHandle  uint32
	MaterialHandle  uint32
	AnimationHandle uint32
	TextureHandle   uint32
)

// --- Plain components ---

// Transform is a translation, rotation and scale in parent space.
type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

// IdentityTransform returns a transform with unit scale and no rotation.
func IdentityTransform() Transform {
	return Transform{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
}

// Matrix composes translation * rotation * scale.
func (t Transform) Matrix() mgl32.Mat4 {
	tr := mgl32.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2])
	sc := mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2])
	return tr.Mul4(t.Rotation.Mat4()).Mul4(sc)
}

// BoundingVolume stores the local-space box and the world-space box and
// sphere radius derived from it each update.
type BoundingVolume struct {
	MinExtents            mgl32.Vec3
	MaxExtents            mgl32.Vec3
	TransformedMinExtents mgl32.Vec3
	TransformedMaxExtents mgl32.Vec3
	Radius                float32
}

// PosExtent is the world box as centre + half extent; Extent[3] holds the radius.
type PosExtent struct {
	Pos    mgl32.Vec4
	Extent mgl32.Vec4
}

// Geometry describes which part of a geometry resource an entity draws.
type Geometry struct {
	Submesh    uint32
	BoneOffset uint32
	NumJoints  uint32
}

// Material holds per-entity material parameters uploaded to the material
// constant buffer.
type Material struct {
	Albedo      mgl32.Vec4
	Roughness   float32
	Reflectance float32
	CBufferSize uint32
}

// Light describes a light source attached to an entity.
type Light struct {
	Type        LightType
	Flags       LightFlags
	Colour      mgl32.Vec3
	Direction   mgl32.Vec3
	Radius      float32
	CosCutoff   float32
	SpotFalloff float32
}

// PhysicsBody describes the rigid body or constraint created for an entity.
// Constraint bodies are referenced by ref id so they survive reordering.
type PhysicsBody struct {
	Type          PhysicsType
	Shape         uint32
	Mass          float32
	Group         uint32
	Mask          uint32
	StartPosition mgl32.Vec3
	StartRotation mgl32.Quat
	BodyRefA      uint32
	BodyRefB      uint32
}

// AnimController drives skeletal animation from a root joint.
type AnimController struct {
	RootJointRef uint32
	Speed        float32
	Flags        uint32
}

// PreSkin describes the vertex stream skinned ahead of rendering.
type PreSkin struct {
	NumVerts   uint32
	VertexSize uint32
}

// MasterInstance describes an instance buffer covering the following
// NumInstances entities.
type MasterInstance struct {
	NumInstances   uint32
	InstanceStride uint32
}

// Samplers holds the sampler state per binding; textures are handles.
type Samplers struct {
	States [MaxSamplerBindings]uint32
}

// --- Transient components ---

// GeometryRef names the geometry resource an entity uses.
type GeometryRef struct {
	File string
	Mesh string
}

// MaterialRef names the material resource an entity uses.
type MaterialRef struct {
	Name      string
	Shader    string
	Technique string
}

// AnimationRef binds a named animation clip.
type AnimationRef struct {
	File   string
	Handle AnimationHandle
}

// Handles collects every runtime handle an entity holds. It is never
// written to a snapshot; loads re-create handles from names.
type Handles struct {
	Geometry        GeometryHandle
	Material        MaterialHandle
	CBuffer         BufferHandle
	MaterialCBuffer BufferHandle
	BoneCBuffer     BufferHandle
	Physics         PhysicsHandle
	PreSkinVertex   BufferHandle
	PreSkinPosition BufferHandle
	InstanceBuffer  BufferHandle
	ShadowTexture   TextureHandle
	Textures        [MaxSamplerBindings]TextureHandle
}

// AABB is an axis-aligned box.
type AABB struct {
	Min, Max mgl32.Vec3
}

// emptyAABB returns an inverted box that any union will replace.
func emptyAABB() AABB {
	return AABB{
		Min: mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		Max: mgl32.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
	}
}

// Empty reports whether the box has never been extended.
func (b AABB) Empty() bool {
	return b.Min[0] > b.Max[0]
}

func minVec(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{min(a[0], b[0]), min(a[1], b[1]), min(a[2], b[2])}
}

func maxVec(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{max(a[0], b[0]), max(a[1], b[1]), max(a[2], b[2])}
}
