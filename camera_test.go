package arbor

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tanema/gween/ease"
)

func TestNewCameraDefaults(t *testing.T) {
	c := NewCamera("main")
	assertVec3(t, "position", c.Position, mgl32.Vec3{0, 0, 10})
	assertNear(t, "fov", c.FOV, mgl32.DegToRad(60))
	assertNear(t, "aspect", c.Aspect, 16.0/9.0)
	if c.Near != 0.1 || c.Far != 1000 || c.Zoom != 1 {
		t.Errorf("near %v far %v zoom %v", c.Near, c.Far, c.Zoom)
	}
	if c.Flying() {
		t.Error("new camera is flying")
	}
}

func TestSceneCameras(t *testing.T) {
	s := newRig(t, 1)
	a := s.AddCamera("a")
	b := s.AddCamera("b")
	if s.CameraByName("b") != b || s.CameraByName("c") != nil {
		t.Error("CameraByName failed")
	}
	s.RemoveCamera(a)
	s.RemoveCamera(a)
	if got := s.Cameras(); len(got) != 1 || got[0] != b {
		t.Errorf("Cameras = %v", got)
	}
}

func TestCameraFollow(t *testing.T) {
	s := newRig(t, 2)
	e := mustSpawn(t, s.Scene, "target")
	s.SetTransform(e, translated(5, 0, 0))
	c := s.AddCamera("main")
	c.Follow(s.Scene, e, mgl32.Vec3{0, 1, 0}, 1)

	s.Update(0)

	assertVec3(t, "focus", c.Focus, mgl32.Vec3{5, 1, 0})
	// the eye keeps its offset from the focus
	assertVec3(t, "position", c.Position, mgl32.Vec3{5, 1, 10})

	if err := s.Delete(e); err != nil {
		t.Fatal(err)
	}
	s.Update(0)
	assertVec3(t, "focus after delete", c.Focus, mgl32.Vec3{5, 1, 0})
}

func TestCameraFollowsRefAcrossSwap(t *testing.T) {
	s := newRig(t, 4)
	a := mustSpawn(t, s.Scene, "a")
	b := mustSpawn(t, s.Scene, "b")
	s.SetTransform(a, translated(3, 0, 0))
	s.SetTransform(b, translated(-7, 0, 0))
	c := s.AddCamera("main")
	c.Follow(s.Scene, a, mgl32.Vec3{}, 1)

	if err := s.Swap(a, b); err != nil {
		t.Fatal(err)
	}
	s.Update(0)
	assertVec3(t, "focus", c.Focus, mgl32.Vec3{3, 0, 0})

	// moving into a free slot keeps the ref too
	if err := s.Swap(b, 3); err != nil {
		t.Fatal(err)
	}
	s.SetTransform(3, translated(0, 2, 0))
	s.Update(0)
	assertVec3(t, "focus after move", c.Focus, mgl32.Vec3{0, 2, 0})
}

func TestCameraFollowFreeSlot(t *testing.T) {
	s := newRig(t, 2)
	c := s.AddCamera("main")
	c.Follow(s.Scene, 1, mgl32.Vec3{0, 5, 0}, 1)
	s.Update(0)
	assertVec3(t, "focus", c.Focus, mgl32.Vec3{})
}

func TestCameraFollowLerp(t *testing.T) {
	s := newRig(t, 2)
	e := mustSpawn(t, s.Scene, "target")
	s.SetTransform(e, translated(8, 0, 0))
	c := s.AddCamera("main")
	c.Follow(s.Scene, e, mgl32.Vec3{}, 0.5)

	s.Update(0)
	assertVec3(t, "first step", c.Focus, mgl32.Vec3{4, 0, 0})
	s.Update(0)
	assertVec3(t, "second step", c.Focus, mgl32.Vec3{6, 0, 0})

	c.Unfollow()
	s.Update(0)
	assertVec3(t, "unfollowed", c.Focus, mgl32.Vec3{6, 0, 0})
}

func TestCameraFlyTo(t *testing.T) {
	s := newRig(t, 1)
	c := s.AddCamera("main")
	c.FlyTo(mgl32.Vec3{10, 0, -4}, 1, ease.Linear)
	if !c.Flying() {
		t.Fatal("not flying after FlyTo")
	}

	s.Update(0.5)
	assertVec3(t, "halfway", c.Focus, mgl32.Vec3{5, 0, -2})
	s.Update(0.5)
	if c.Flying() {
		t.Error("still flying after the duration")
	}
	assertVec3(t, "focus", c.Focus, mgl32.Vec3{10, 0, -4})
	assertVec3(t, "position", c.Position, mgl32.Vec3{10, 0, 6})
}

func TestCameraSees(t *testing.T) {
	c := NewCamera("main")
	near := AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	far := AABB{Min: mgl32.Vec3{1000, 0, 0}, Max: mgl32.Vec3{1001, 1, 1}}
	behind := AABB{Min: mgl32.Vec3{-1, -1, 20}, Max: mgl32.Vec3{1, 1, 21}}

	if !c.Sees(near) {
		t.Error("box at the focus not visible")
	}
	if c.Sees(far) {
		t.Error("box far to the side visible")
	}
	if c.Sees(behind) {
		t.Error("box behind the eye visible")
	}
}

func TestCameraZoomNarrowsProjection(t *testing.T) {
	c := NewCamera("main")
	wide := c.Projection()
	c.Zoom = 2
	narrow := c.Projection()
	if narrow[5] <= wide[5] {
		t.Errorf("zoomed y scale %v not above %v", narrow[5], wide[5])
	}
}
