package arbor

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// flyAnim holds the active fly-to tweens, one per axis.
type flyAnim struct {
	tweens [3]*gween.Tween
	done   [3]bool
}

// Camera is a named perspective view persisted with the scene.
type Camera struct {
	Name string
	// Position is the eye position and Focus the point it looks at.
	Position, Focus mgl32.Vec3
	// Rotation is applied to the up vector.
	Rotation mgl32.Quat
	// FOV is the vertical field of view in radians.
	FOV, Aspect, Near, Far float32
	// Zoom divides the field of view (1 = no zoom).
	Zoom float32

	followRef    uint32
	followOffset mgl32.Vec3
	followLerp   float32

	fly *flyAnim
}

// NewCamera creates a camera with a 60 degree field of view looking down -Z.
func NewCamera(name string) *Camera {
	return &Camera{
		Name:     name,
		Position: mgl32.Vec3{0, 0, 10},
		Rotation: mgl32.QuatIdent(),
		FOV:      mgl32.DegToRad(60),
		Aspect:   16.0 / 9.0,
		Near:     0.1,
		Far:      1000,
		Zoom:     1,
	}
}

// AddCamera creates a camera and adds it to the scene.
func (s *Scene) AddCamera(name string) *Camera {
	c := NewCamera(name)
	s.cameras = append(s.cameras, c)
	return c
}

// RemoveCamera removes c from the scene. No-op if c is not in the scene.
func (s *Scene) RemoveCamera(c *Camera) {
	for i, cam := range s.cameras {
		if cam == c {
			s.cameras = append(s.cameras[:i], s.cameras[i+1:]...)
			return
		}
	}
}

// Cameras returns the scene's cameras. The returned slice must not be
// mutated by the caller.
func (s *Scene) Cameras() []*Camera {
	return s.cameras
}

// CameraByName returns the first camera with the given name, or nil.
func (s *Scene) CameraByName(name string) *Camera {
	for _, c := range s.cameras {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Follow makes the camera track an entity of s by its world position with
// the given offset. A lerp of 1 snaps immediately; lower values give
// smoother following. The entity is held by ref id, so it is still tracked
// after a swap. Following a free slot is the same as Unfollow.
func (c *Camera) Follow(s *Scene, e Entity, offset mgl32.Vec3, lerp float32) {
	c.followRef = s.RefOf(e)
	c.followOffset = offset
	c.followLerp = lerp
}

// Unfollow stops tracking the current entity.
func (c *Camera) Unfollow() {
	c.followRef = 0
}

// FlyTo animates the focus point to target over duration seconds, keeping
// the eye-to-focus offset.
func (c *Camera) FlyTo(target mgl32.Vec3, duration float32, easeFn ease.TweenFunc) {
	if easeFn == nil {
		easeFn = ease.InOutQuad
	}
	c.fly = &flyAnim{}
	for i := range c.fly.tweens {
		c.fly.tweens[i] = gween.New(c.Focus[i], target[i], duration, easeFn)
	}
}

// Flying reports whether a FlyTo animation is in progress.
func (c *Camera) Flying() bool { return c.fly != nil }

// update advances follow and fly-to. Called from Scene.Update after world
// matrices are current.
func (c *Camera) update(s *Scene, dt float32) {
	eye := c.Position.Sub(c.Focus)

	if c.followRef != 0 {
		if e := s.IndexFromRef(c.followRef); e != NoEntity {
			target := s.WorldMatrices()[e].Col(3).Vec3().Add(c.followOffset)
			c.Focus = c.Focus.Add(target.Sub(c.Focus).Mul(c.followLerp))
		} else {
			c.followRef = 0
		}
	}

	if c.fly != nil {
		for i, tw := range c.fly.tweens {
			if c.fly.done[i] {
				continue
			}
			val, done := tw.Update(dt)
			c.Focus[i] = val
			c.fly.done[i] = done
		}
		if c.fly.done[0] && c.fly.done[1] && c.fly.done[2] {
			c.fly = nil
		}
	}

	c.Position = c.Focus.Add(eye)
}

// View returns the world-to-view matrix.
func (c *Camera) View() mgl32.Mat4 {
	up := quatOrIdent(c.Rotation).Rotate(mgl32.Vec3{0, 1, 0})
	return mgl32.LookAtV(c.Position, c.Focus, up)
}

// Projection returns the perspective projection matrix.
func (c *Camera) Projection() mgl32.Mat4 {
	zoom := c.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	fov := float32(math.Min(float64(c.FOV/zoom), math.Pi-0.01))
	return mgl32.Perspective(fov, c.Aspect, c.Near, c.Far)
}

// ViewProjection returns Projection * View.
func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}

// Sees reports whether box intersects the camera frustum. It tests the box
// corners against the clip volume, so it may report true for boxes just
// outside a frustum corner.
func (c *Camera) Sees(box AABB) bool {
	vp := c.ViewProjection()
	var outside [6]int
	for i := 0; i < 8; i++ {
		p := mgl32.Vec3{box.Min[0], box.Min[1], box.Min[2]}
		if i&1 != 0 {
			p[0] = box.Max[0]
		}
		if i&2 != 0 {
			p[1] = box.Max[1]
		}
		if i&4 != 0 {
			p[2] = box.Max[2]
		}
		clip := vp.Mul4x1(p.Vec4(1))
		w := clip[3]
		for axis := 0; axis < 3; axis++ {
			if clip[axis] < -w {
				outside[axis*2]++
			}
			if clip[axis] > w {
				outside[axis*2+1]++
			}
		}
	}
	for _, n := range outside {
		if n == 8 {
			return false
		}
	}
	return true
}
