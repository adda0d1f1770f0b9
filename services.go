package arbor

import (
	"log"

	"github.com/go-gl/mathgl/mgl32"
)

// Physics is the rigid body simulation the scene pushes poses into and
// pulls simulated poses from.
type Physics interface {
	CreateRigidBody(s *Scene, e Entity) PhysicsHandle
	CreateConstraint(s *Scene, e Entity) PhysicsHandle
	Release(h PhysicsHandle)
	SetTransform(h PhysicsHandle, t Transform)
	ZeroVelocity(h PhysicsHandle)
	// SimulatedTransform returns the body's pose and whether it moved since
	// the last call.
	SimulatedTransform(h PhysicsHandle) (pos mgl32.Vec3, rot mgl32.Quat, moved bool)
	SetPaused(paused bool)
	Step(dt float32)
}

// Renderer owns GPU buffers referenced by handle.
type Renderer interface {
	CreateBuffer(size int) BufferHandle
	UpdateBuffer(h BufferHandle, data []byte)
	ReleaseBuffer(h BufferHandle)
}

// Resources resolves named resources. The bool result is false when the
// resource cannot be found.
type Resources interface {
	LoadGeometry(file, mesh string) (GeometryHandle, bool)
	LoadMaterial(name, shader, technique string) (MaterialHandle, bool)
	LoadAnimation(file string) (AnimationHandle, bool)
	LoadTexture(name string) (TextureHandle, bool)
	TextureName(h TextureHandle) string
}

// Animator evaluates animation controllers once per unpaused frame.
type Animator interface {
	Update(s *Scene, dt float32)
}

// Logger receives formatted log lines. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// DiagnosticSink receives every diagnostic the scene reports.
type DiagnosticSink interface {
	Report(d Diagnostic)
}

// DiagnosticFunc adapts a function to DiagnosticSink.
type DiagnosticFunc func(d Diagnostic)

func (f DiagnosticFunc) Report(d Diagnostic) { f(d) }

// noopPhysics is used when no physics collaborator is configured.
type noopPhysics struct{}

func (noopPhysics) CreateRigidBody(*Scene, Entity) PhysicsHandle  { return 0 }
func (noopPhysics) CreateConstraint(*Scene, Entity) PhysicsHandle { return 0 }
func (noopPhysics) Release(PhysicsHandle)                         {}
func (noopPhysics) SetTransform(PhysicsHandle, Transform)         {}
func (noopPhysics) ZeroVelocity(PhysicsHandle)                    {}
func (noopPhysics) SetPaused(bool)                                {}
func (noopPhysics) Step(float32)                                  {}

func (noopPhysics) SimulatedTransform(PhysicsHandle) (mgl32.Vec3, mgl32.Quat, bool) {
	return mgl32.Vec3{}, mgl32.QuatIdent(), false
}

// noopRenderer hands out increasing handles so lifecycle code can still be
// exercised without a GPU.
type noopRenderer struct{ next BufferHandle }

func (r *noopRenderer) CreateBuffer(int) BufferHandle {
	r.next++
	return r.next
}
func (*noopRenderer) UpdateBuffer(BufferHandle, []byte) {}
func (*noopRenderer) ReleaseBuffer(BufferHandle)        {}

// noopResources fails every lookup.
type noopResources struct{}

func (noopResources) LoadGeometry(string, string) (GeometryHandle, bool)         { return 0, false }
func (noopResources) LoadMaterial(string, string, string) (MaterialHandle, bool) { return 0, false }
func (noopResources) LoadAnimation(string) (AnimationHandle, bool)               { return 0, false }
func (noopResources) LoadTexture(string) (TextureHandle, bool)                   { return 0, false }
func (noopResources) TextureName(TextureHandle) string                           { return "" }

var defaultLogger Logger = log.Default()
