package arbor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func translated(x, y, z float32) Transform {
	t := IdentityTransform()
	t.Translation = mgl32.Vec3{x, y, z}
	return t
}

func worldPos(s *Scene, e Entity) mgl32.Vec3 {
	return s.WorldMatrices()[e].Col(3).Vec3()
}

func TestUpdatePointLightUnderRenderable(t *testing.T) {
	s := newRig(t, 4, "box.mesh", "red.mat")
	root := mustSpawn(t, s.Scene, "root")
	if err := s.AttachGeometry(root, "box.mesh", "", 0); err != nil {
		t.Fatal(err)
	}
	if err := s.AttachMaterial(root, "red.mat", "", ""); err != nil {
		t.Fatal(err)
	}
	s.SetTransform(root, translated(1, 2, 3))

	lamp := mustSpawnChild(t, s.Scene, root, "lamp")
	if err := s.AttachLight(lamp, Light{Type: LightPoint, Radius: 5, Colour: mgl32.Vec3{1, 1, 1}}); err != nil {
		t.Fatal(err)
	}
	s.SetTransform(lamp, translated(2, 0, 0))

	s.Update(1.0 / 60)

	assertVec3(t, "lamp world position", worldPos(s.Scene, lamp), worldPos(s.Scene, root).Add(mgl32.Vec3{2, 0, 0}))
	assertVec3(t, "lamp world position", worldPos(s.Scene, lamp), mgl32.Vec3{3, 2, 3})
	assertNear(t, "lamp radius", s.BoundingVolumes()[lamp].Radius, 5)
	assertNear(t, "lamp extent radius", s.PosExtents()[lamp].Extent[3], 5)
	assertVec3(t, "lamp box min", s.BoundingVolumes()[lamp].TransformedMinExtents, mgl32.Vec3{-2, -3, -2})
}

func TestUpdateClearsDirtyFlag(t *testing.T) {
	s := newRig(t, 2)
	e := mustSpawn(t, s.Scene, "e")
	s.Update(0)
	if s.Flags()[e]&CmpTransform != 0 {
		t.Error("transform still dirty after Update")
	}
}

func TestUpdatePropagatesParentMoves(t *testing.T) {
	s := newRig(t, 4)
	parent := mustSpawn(t, s.Scene, "parent")
	child := mustSpawnChild(t, s.Scene, parent, "child")
	s.SetTransform(child, translated(0, 1, 0))
	s.Update(0)

	s.SetTransform(parent, translated(10, 0, 0))
	s.Update(0)

	assertVec3(t, "child world", worldPos(s.Scene, child), mgl32.Vec3{10, 1, 0})
}

func TestUpdateComposesRotationAndScale(t *testing.T) {
	s := newRig(t, 4)
	parent := mustSpawn(t, s.Scene, "parent")
	child := mustSpawnChild(t, s.Scene, parent, "child")
	pt := IdentityTransform()
	pt.Rotation = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1})
	pt.Scale = mgl32.Vec3{2, 2, 2}
	s.SetTransform(parent, pt)
	s.SetTransform(child, translated(1, 0, 0))

	s.Update(0)

	assertVec3(t, "child world", worldPos(s.Scene, child), mgl32.Vec3{0, 2, 0})
}

func TestUpdateBoundsPropagateToAncestors(t *testing.T) {
	s := newRig(t, 4)
	root := mustSpawn(t, s.Scene, "root")
	mid := mustSpawnChild(t, s.Scene, root, "mid")
	leaf := mustSpawnChild(t, s.Scene, mid, "leaf")
	unit := BoundingVolume{MinExtents: mgl32.Vec3{-1, -1, -1}, MaxExtents: mgl32.Vec3{1, 1, 1}}
	for _, e := range []Entity{root, mid, leaf} {
		s.BoundingVolumes()[e] = unit
	}
	s.SetTransform(leaf, translated(10, 0, 0))

	s.Update(0)

	bv := s.BoundingVolumes()[root]
	assertVec3(t, "root max", bv.TransformedMaxExtents, mgl32.Vec3{11, 1, 1})
	assertVec3(t, "root min", bv.TransformedMinExtents, mgl32.Vec3{-1, -1, -1})
	assertNear(t, "root radius", bv.Radius, mgl32.Vec3{12, 2, 2}.Len()/2)
	assertVec3(t, "root centre", s.PosExtents()[root].Pos.Vec3(), mgl32.Vec3{5, 0, 0})
}

func TestUpdateBonesCollapseToPoint(t *testing.T) {
	s := newRig(t, 2)
	e := mustSpawn(t, s.Scene, "joint")
	s.Flags()[e] |= CmpBone
	s.BoundingVolumes()[e] = BoundingVolume{MinExtents: mgl32.Vec3{-1, -1, -1}, MaxExtents: mgl32.Vec3{1, 1, 1}}
	s.SetTransform(e, translated(4, 5, 6))

	s.Update(0)

	bv := s.BoundingVolumes()[e]
	assertVec3(t, "min", bv.TransformedMinExtents, mgl32.Vec3{4, 5, 6})
	assertVec3(t, "max", bv.TransformedMaxExtents, mgl32.Vec3{4, 5, 6})
	assertNear(t, "radius", bv.Radius, 0)
}

func TestUpdateRenderableExtents(t *testing.T) {
	s := newRig(t, 4)
	a := mustSpawn(t, s.Scene, "a")
	b := mustSpawn(t, s.Scene, "b")
	mustSpawn(t, s.Scene, "not drawn")
	unit := BoundingVolume{MinExtents: mgl32.Vec3{-1, -1, -1}, MaxExtents: mgl32.Vec3{1, 1, 1}}
	for _, e := range []Entity{a, b, 2} {
		s.BoundingVolumes()[e] = unit
	}
	s.Flags()[a] |= CmpGeometry
	s.Flags()[b] |= CmpGeometry
	s.SetTransform(b, translated(5, 0, 0))
	s.SetTransform(2, translated(100, 0, 0))

	s.Update(0)

	ext := s.RenderableExtents()
	assertVec3(t, "extents min", ext.Min, mgl32.Vec3{-1, -1, -1})
	assertVec3(t, "extents max", ext.Max, mgl32.Vec3{6, 1, 1})
}

func TestUpdateLightTypes(t *testing.T) {
	s := newRig(t, 4)
	sun := mustSpawn(t, s.Scene, "sun")
	spot := mustSpawn(t, s.Scene, "spot")
	area := mustSpawn(t, s.Scene, "area")
	if err := s.AttachLight(sun, Light{Type: LightDirectional}); err != nil {
		t.Fatal(err)
	}
	if err := s.AttachLight(spot, Light{Type: LightSpot, Radius: 10, CosCutoff: 0.5}); err != nil {
		t.Fatal(err)
	}
	if err := s.AttachLight(area, Light{Type: LightArea, Radius: 2}); err != nil {
		t.Fatal(err)
	}
	s.BoundingVolumes()[area] = BoundingVolume{MinExtents: mgl32.Vec3{-1, 0, -1}, MaxExtents: mgl32.Vec3{1, 0, 1}}

	s.Update(0)

	if r := s.BoundingVolumes()[sun].Radius; r != math.MaxFloat32 {
		t.Errorf("directional radius = %g, want MaxFloat32", r)
	}

	sb := s.BoundingVolumes()[spot]
	if sb.TransformedMinExtents[2] > -10+epsilon || sb.TransformedMaxExtents[2] < 0 {
		t.Errorf("spot box z = [%f, %f], want to cover [-10, 0]", sb.TransformedMinExtents[2], sb.TransformedMaxExtents[2])
	}
	if sb.TransformedMaxExtents[0] <= 0 {
		t.Errorf("spot box has no width: %v", sb.TransformedMaxExtents)
	}

	ab := s.BoundingVolumes()[area]
	assertVec3(t, "area min", ab.TransformedMinExtents, mgl32.Vec3{-3, -2, -3})
	assertVec3(t, "area max", ab.TransformedMaxExtents, mgl32.Vec3{3, 2, 3})
}

func TestUpdateUploadsWorldMatrix(t *testing.T) {
	s := newRig(t, 2)
	e := mustSpawn(t, s.Scene, "lamp")
	if err := s.AttachLight(e, Light{Type: LightPoint, Radius: 1}); err != nil {
		t.Fatal(err)
	}
	s.SetTransform(e, translated(7, 0, 0))
	s.Update(0)

	data := s.rend.updates[s.Handles()[e].CBuffer]
	if len(data) != 64 {
		t.Fatalf("uploaded %d bytes, want 64", len(data))
	}
	want := s.WorldMatrices()[e]
	if got := matrixBytes(&want); string(got) != string(data) {
		t.Error("uploaded bytes differ from the world matrix")
	}
}

func TestUpdatePushesDirtyBodies(t *testing.T) {
	s := newRig(t, 2)
	e := mustSpawn(t, s.Scene, "crate")
	s.SetTransform(e, translated(1, 2, 3))
	if err := s.AttachRigidBody(e, PhysicsBody{Mass: 1}); err != nil {
		t.Fatal(err)
	}
	h := s.Handles()[e].Physics

	s.Update(0)

	body := s.phys.bodies[h]
	assertVec3(t, "body position", body.pose.Translation, mgl32.Vec3{1, 2, 3})
	if body.zeroed != 1 {
		t.Errorf("ZeroVelocity called %d times, want 1", body.zeroed)
	}
}

func TestUpdatePullsSimulatedPose(t *testing.T) {
	s := newRig(t, 2)
	e := mustSpawn(t, s.Scene, "crate")
	if err := s.AttachRigidBody(e, PhysicsBody{Mass: 1}); err != nil {
		t.Fatal(err)
	}
	s.Update(0)

	body := s.phys.bodies[s.Handles()[e].Physics]
	body.pose = Transform{Translation: mgl32.Vec3{0, -5, 0}, Rotation: mgl32.QuatIdent()}
	body.moved = true
	s.Update(0)

	assertVec3(t, "translation", s.Transforms()[e].Translation, mgl32.Vec3{0, -5, 0})
	assertVec3(t, "world", worldPos(s.Scene, e), mgl32.Vec3{0, -5, 0})
}

func TestUpdateAppliesPhysicsOffset(t *testing.T) {
	s := newRig(t, 2)
	e := mustSpawn(t, s.Scene, "crate")
	s.PhysicsOffsets()[e] = translated(0, 1, 0)
	if err := s.AttachRigidBody(e, PhysicsBody{Mass: 1}); err != nil {
		t.Fatal(err)
	}
	s.Update(0)

	body := s.phys.bodies[s.Handles()[e].Physics]
	assertVec3(t, "body position", body.pose.Translation, mgl32.Vec3{0, 1, 0})

	body.pose.Translation = mgl32.Vec3{3, 1, 0}
	body.moved = true
	s.Update(0)
	assertVec3(t, "entity position", s.Transforms()[e].Translation, mgl32.Vec3{3, 0, 0})
}

func TestUpdateSyncPhysicsOverridesDirty(t *testing.T) {
	s := newRig(t, 2)
	e := mustSpawn(t, s.Scene, "crate")
	if err := s.AttachRigidBody(e, PhysicsBody{Mass: 1}); err != nil {
		t.Fatal(err)
	}
	s.Update(0)
	body := s.phys.bodies[s.Handles()[e].Physics]
	body.pose = Transform{Translation: mgl32.Vec3{9, 9, 9}, Rotation: mgl32.QuatIdent()}

	s.SetTransform(e, translated(1, 1, 1))
	s.States()[e] |= StateSyncPhysics
	s.Update(0)

	assertVec3(t, "translation", s.Transforms()[e].Translation, mgl32.Vec3{9, 9, 9})
	if s.States()[e]&StateSyncPhysics != 0 {
		t.Error("sync state not cleared")
	}
}

func TestUpdatePausedSkipsStepAndAnimation(t *testing.T) {
	anim := &mockAnimator{}
	phys := newMockPhysics()
	s := NewScene(Config{Capacity: 2, Physics: phys, Animator: anim, Logger: &captureLogger{}, Paused: true})

	s.Update(0.1)
	if len(phys.steps) != 0 || anim.calls != 0 || !phys.paused {
		t.Errorf("paused: steps %v, animator calls %d, physics paused %v", phys.steps, anim.calls, phys.paused)
	}

	s.SetPaused(false)
	s.Update(0.1)
	if len(phys.steps) != 1 || anim.calls != 1 || phys.paused {
		t.Errorf("running: steps %v, animator calls %d, physics paused %v", phys.steps, anim.calls, phys.paused)
	}
}

func TestUpdateFixedStep(t *testing.T) {
	phys := newMockPhysics()
	s := NewScene(Config{Capacity: 2, Physics: phys, FixedStep: 0.02, Logger: &captureLogger{}})
	s.Update(0.5)
	if len(phys.steps) != 1 || phys.steps[0] != 0.02 {
		t.Errorf("steps = %v, want [0.02]", phys.steps)
	}
}

func TestUpdateCallbackOrder(t *testing.T) {
	s := newRig(t, 2)
	var order []string
	record := func(name string) { order = append(order, name) }

	if err := s.RegisterController(&Controller{Name: "c", Funcs: ControllerFuncs{
		Update:     func(*Scene, *Controller, float32) { record("controller pre") },
		PostUpdate: func(*Scene, *Controller, float32) { record("controller post") },
	}}); err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterExtension(&Extension{Name: "x", Funcs: ExtensionFuncs{
		Update: func(*Scene, *Extension, float32) { record("extension pre") },
		PostUpdate: func(*Scene, *Extension, float32) {
			if len(s.phys.steps) == 1 {
				record("extension post after step")
			}
		},
	}}); err != nil {
		t.Fatal(err)
	}

	s.Update(0.1)

	want := []string{"controller pre", "extension pre", "extension post after step", "controller post"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestResetPhysics(t *testing.T) {
	s := newRig(t, 2)
	e := mustSpawn(t, s.Scene, "crate")
	s.SetTransform(e, translated(0, 10, 0))
	if err := s.AttachRigidBody(e, PhysicsBody{Mass: 1}); err != nil {
		t.Fatal(err)
	}
	s.Update(0)
	s.SetTransform(e, translated(0, -3, 0))
	s.Update(0)

	s.ResetPhysics()
	s.Update(0)

	assertVec3(t, "translation", s.Transforms()[e].Translation, mgl32.Vec3{0, 10, 0})
	assertVec3(t, "body", s.phys.bodies[s.Handles()[e].Physics].pose.Translation, mgl32.Vec3{0, 10, 0})
}

func TestDebugModeLogsTimings(t *testing.T) {
	s := newRig(t, 2)
	s.SetDebugMode(true)
	if !s.DebugMode() {
		t.Fatal("DebugMode = false")
	}
	s.Update(0)
	if !s.log.contains("transforms:") {
		t.Errorf("no timing line in %v", s.log.lines)
	}
}

func TestCheckHierarchyDetectsBadParent(t *testing.T) {
	s := newRig(t, 4)
	a := mustSpawn(t, s.Scene, "a")
	b := mustSpawn(t, s.Scene, "b")
	s.Parents()[a] = b
	if err := s.CheckHierarchy(); err == nil {
		t.Error("CheckHierarchy accepted parent above child")
	}
}
