package arbor

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

const epsilon = 1e-4

func assertNear(t *testing.T, what string, got, want float32) {
	t.Helper()
	if math.Abs(float64(got-want)) > epsilon {
		t.Errorf("%s = %f, want %f", what, got, want)
	}
}

func near(got, want []float32) bool {
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > epsilon {
			return false
		}
	}
	return true
}

// assertVec3 compares componentwise by absolute difference, so values near
// zero compare the same as any other.
func assertVec3(t *testing.T, what string, got, want mgl32.Vec3) {
	t.Helper()
	if !near(got[:], want[:]) {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func assertQuat(t *testing.T, what string, got, want mgl32.Quat) {
	t.Helper()
	g := []float32{got.W, got.V[0], got.V[1], got.V[2]}
	w := []float32{want.W, want.V[0], want.V[1], want.V[2]}
	if !near(g, w) {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

// --- Physics ---

type mockBody struct {
	constraint bool
	pose       Transform
	moved      bool
	zeroed     int
}

type mockPhysics struct {
	next     PhysicsHandle
	bodies   map[PhysicsHandle]*mockBody
	released []PhysicsHandle
	steps    []float32
	paused   bool
}

func newMockPhysics() *mockPhysics {
	return &mockPhysics{bodies: make(map[PhysicsHandle]*mockBody)}
}

func (p *mockPhysics) CreateRigidBody(s *Scene, e Entity) PhysicsHandle {
	p.next++
	body := s.PhysicsBodies()[e]
	p.bodies[p.next] = &mockBody{pose: Transform{Translation: body.StartPosition, Rotation: body.StartRotation}}
	return p.next
}

// CreateConstraint fails unless both referenced bodies already exist.
func (p *mockPhysics) CreateConstraint(s *Scene, e Entity) PhysicsHandle {
	body := s.PhysicsBodies()[e]
	for _, ref := range [...]uint32{body.BodyRefA, body.BodyRefB} {
		other := s.IndexFromRef(ref)
		if other == NoEntity || p.bodies[s.Handles()[other].Physics] == nil {
			return 0
		}
	}
	p.next++
	p.bodies[p.next] = &mockBody{constraint: true}
	return p.next
}

func (p *mockPhysics) Release(h PhysicsHandle) {
	p.released = append(p.released, h)
	delete(p.bodies, h)
}

func (p *mockPhysics) SetTransform(h PhysicsHandle, t Transform) {
	if b := p.bodies[h]; b != nil {
		b.pose = t
	}
}

func (p *mockPhysics) ZeroVelocity(h PhysicsHandle) {
	if b := p.bodies[h]; b != nil {
		b.zeroed++
	}
}

func (p *mockPhysics) SimulatedTransform(h PhysicsHandle) (mgl32.Vec3, mgl32.Quat, bool) {
	b := p.bodies[h]
	if b == nil {
		return mgl32.Vec3{}, mgl32.QuatIdent(), false
	}
	moved := b.moved
	b.moved = false
	return b.pose.Translation, b.pose.Rotation, moved
}

func (p *mockPhysics) SetPaused(paused bool) { p.paused = paused }
func (p *mockPhysics) Step(dt float32)       { p.steps = append(p.steps, dt) }

// --- Renderer ---

type mockRenderer struct {
	next     BufferHandle
	live     map[BufferHandle]int
	released []BufferHandle
	updates  map[BufferHandle][]byte
}

func newMockRenderer() *mockRenderer {
	return &mockRenderer{live: make(map[BufferHandle]int), updates: make(map[BufferHandle][]byte)}
}

func (r *mockRenderer) CreateBuffer(size int) BufferHandle {
	r.next++
	r.live[r.next] = size
	return r.next
}

func (r *mockRenderer) UpdateBuffer(h BufferHandle, data []byte) {
	r.updates[h] = append([]byte(nil), data...)
}

func (r *mockRenderer) ReleaseBuffer(h BufferHandle) {
	r.released = append(r.released, h)
	delete(r.live, h)
}

func (r *mockRenderer) wasReleased(h BufferHandle) bool {
	for _, x := range r.released {
		if x == h {
			return true
		}
	}
	return false
}

// --- Resources ---

// mockResources resolves any name it was given and nothing else. The same
// name always yields the same handle.
type mockResources struct {
	known   map[string]bool
	handles map[string]uint32
	names   map[TextureHandle]string
}

func newMockResources(names ...string) *mockResources {
	r := &mockResources{
		known:   make(map[string]bool),
		handles: make(map[string]uint32),
		names:   make(map[TextureHandle]string),
	}
	for _, n := range names {
		r.known[n] = true
	}
	return r
}

func (r *mockResources) handle(name string) (uint32, bool) {
	if !r.known[name] {
		return 0, false
	}
	h, ok := r.handles[name]
	if !ok {
		h = uint32(len(r.handles) + 1)
		r.handles[name] = h
	}
	return h, true
}

func (r *mockResources) LoadGeometry(file, mesh string) (GeometryHandle, bool) {
	h, ok := r.handle(file)
	return GeometryHandle(h), ok
}

func (r *mockResources) LoadMaterial(name, shader, technique string) (MaterialHandle, bool) {
	h, ok := r.handle(name)
	return MaterialHandle(h), ok
}

func (r *mockResources) LoadAnimation(file string) (AnimationHandle, bool) {
	h, ok := r.handle(file)
	return AnimationHandle(h), ok
}

func (r *mockResources) LoadTexture(name string) (TextureHandle, bool) {
	h, ok := r.handle(name)
	if ok {
		r.names[TextureHandle(h)] = name
	}
	return TextureHandle(h), ok
}

func (r *mockResources) TextureName(h TextureHandle) string { return r.names[h] }

// --- Animator, logger, diagnostics ---

type mockAnimator struct{ calls int }

func (a *mockAnimator) Update(*Scene, float32) { a.calls++ }

type captureLogger struct{ lines []string }

func (l *captureLogger) Printf(format string, v ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func (l *captureLogger) contains(sub string) bool {
	for _, line := range l.lines {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}

type diagnostics []Diagnostic

func (d *diagnostics) Report(x Diagnostic) { *d = append(*d, x) }

func (d diagnostics) count(kind DiagnosticKind) int {
	n := 0
	for _, x := range d {
		if x.Kind == kind {
			n++
		}
	}
	return n
}

// testRig bundles a scene with its mock collaborators.
type testRig struct {
	*Scene
	phys  *mockPhysics
	rend  *mockRenderer
	res   *mockResources
	log   *captureLogger
	diags *diagnostics
}

func newRig(t *testing.T, capacity int, resources ...string) *testRig {
	t.Helper()
	r := &testRig{
		phys:  newMockPhysics(),
		rend:  newMockRenderer(),
		res:   newMockResources(resources...),
		log:   &captureLogger{},
		diags: &diagnostics{},
	}
	r.Scene = NewScene(Config{
		Name:        t.Name(),
		Capacity:    capacity,
		Physics:     r.phys,
		Renderer:    r.rend,
		Resources:   r.res,
		Logger:      r.log,
		Diagnostics: r.diags,
	})
	return r
}

func mustSpawn(t *testing.T, s *Scene, name string) Entity {
	t.Helper()
	e, err := s.Spawn(name)
	if err != nil {
		t.Fatalf("Spawn(%q): %v", name, err)
	}
	return e
}

func mustSpawnChild(t *testing.T, s *Scene, parent Entity, name string) Entity {
	t.Helper()
	e, err := s.SpawnChild(parent, name)
	if err != nil {
		t.Fatalf("SpawnChild(%d, %q): %v", parent, name, err)
	}
	return e
}

func checkInvariants(t *testing.T, s *Scene) {
	t.Helper()
	if err := s.CheckHierarchy(); err != nil {
		t.Errorf("CheckHierarchy: %v", err)
	}
	if err := s.CheckFreeList(); err != nil {
		t.Errorf("CheckFreeList: %v", err)
	}
	for i := 0; i < s.Table().NumColumns(); i++ {
		if n := s.Column(i).Len(); n != s.Capacity() {
			t.Errorf("column %d (%s) len = %d, capacity %d", i, s.Column(i).Name(), n, s.Capacity())
		}
	}
}
