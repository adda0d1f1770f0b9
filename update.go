package arbor

import (
	"math"
	"time"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// Update runs one frame: controllers, animation, extensions, transform and
// bounds propagation, lights, physics, then the post-update hooks. It
// relies on every parent index being below its child and never fails.
func (s *Scene) Update(dt float32) {
	var mark time.Time
	if s.debug {
		mark = time.Now()
	}

	for _, c := range s.controllers {
		if c.Funcs.Update != nil {
			c.Funcs.Update(s, c, dt)
		}
	}

	paused := s.flags&ScenePaused != 0
	s.physics.SetPaused(paused)
	if !paused && s.animator != nil {
		s.animator.Update(s, dt)
	}
	for _, ext := range s.extensions {
		if ext.Funcs.Update != nil {
			ext.Funcs.Update(s, ext, dt)
		}
	}
	if s.debug {
		s.stats.controllers = time.Since(mark)
		mark = time.Now()
	}

	s.updateTransforms()
	if s.debug {
		s.stats.transforms = time.Since(mark)
		mark = time.Now()
	}

	s.updateBounds()
	s.propagateBounds()
	s.updateLightBounds()
	for _, c := range s.cameras {
		c.update(s, dt)
	}
	if s.debug {
		s.stats.bounds = time.Since(mark)
		mark = time.Now()
	}

	if !paused {
		step := dt
		if s.fixedStep > 0 {
			step = s.fixedStep
		}
		s.physics.Step(step)
	}
	for _, ext := range s.extensions {
		if ext.Funcs.PostUpdate != nil {
			ext.Funcs.PostUpdate(s, ext, dt)
		}
	}
	for _, c := range s.controllers {
		if c.Funcs.PostUpdate != nil {
			c.Funcs.PostUpdate(s, c, dt)
		}
	}
	if s.debug {
		s.stats.post = time.Since(mark)
		s.stats.entities = s.count
		s.debugLog()
	}
}

// updateTransforms rebuilds local matrices of dirty entities, exchanges
// poses with physics and composes world matrices in index order.
func (s *Scene) updateTransforms() {
	flags, states, parents := s.Flags(), s.States(), s.Parents()
	transforms, offsets := s.Transforms(), s.PhysicsOffsets()
	local, world := s.LocalMatrices(), s.WorldMatrices()
	handles := s.Handles()

	for i := 0; i < s.count; i++ {
		f := flags[i]
		if f&CmpAllocated == 0 {
			continue
		}
		h := &handles[i]
		body := f&CmpPhysics != 0 && f&CmpConstraint == 0 && h.Physics != 0

		sync := states[i]&StateSyncPhysics != 0
		if sync {
			states[i] &^= StateSyncPhysics
			f &^= CmpTransform
			flags[i] = f
		}

		t := &transforms[i]
		switch {
		case f&CmpTransform != 0:
			local[i] = t.Matrix()
			if body {
				s.physics.SetTransform(h.Physics, bodyPose(*t, offsets[i]))
				s.physics.ZeroVelocity(h.Physics)
			}
			flags[i] = f &^ CmpTransform
		case body:
			pos, rot, moved := s.physics.SimulatedTransform(h.Physics)
			if moved || sync {
				t.Translation, t.Rotation = entityPose(pos, rot, offsets[i])
				local[i] = t.Matrix()
			}
		}

		if p := parents[i]; int(p) == i {
			world[i] = local[i]
		} else {
			world[i] = world[p].Mul4(local[i])
		}

		if h.CBuffer != 0 {
			s.renderer.UpdateBuffer(h.CBuffer, matrixBytes(&world[i]))
		}
	}
}

// quatOrIdent treats the zero quaternion of an unset row as identity.
func quatOrIdent(q mgl32.Quat) mgl32.Quat {
	if q == (mgl32.Quat{}) {
		return mgl32.QuatIdent()
	}
	return q
}

// bodyPose applies the physics offset to an entity transform.
func bodyPose(t, off Transform) Transform {
	rot := quatOrIdent(t.Rotation)
	return Transform{
		Translation: t.Translation.Add(rot.Rotate(off.Translation)),
		Rotation:    rot.Mul(quatOrIdent(off.Rotation)),
		Scale:       t.Scale,
	}
}

// entityPose removes the physics offset from a simulated pose.
func entityPose(pos mgl32.Vec3, rot mgl32.Quat, off Transform) (mgl32.Vec3, mgl32.Quat) {
	r := rot.Mul(quatOrIdent(off.Rotation).Inverse())
	return pos.Sub(r.Rotate(off.Translation)), r
}

func matrixBytes(m *mgl32.Mat4) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(m)), unsafe.Sizeof(*m))
}

// updateBounds transforms each local box by the world matrix. Bones collapse
// to their world position.
func (s *Scene) updateBounds() {
	flags, world := s.Flags(), s.WorldMatrices()
	bvs, pes := s.BoundingVolumes(), s.PosExtents()
	s.extents = emptyAABB()

	for i := 0; i < s.count; i++ {
		f := flags[i]
		if f&CmpAllocated == 0 {
			continue
		}
		bv := &bvs[i]
		if f&CmpBone != 0 {
			p := world[i].Col(3).Vec3()
			bv.TransformedMinExtents, bv.TransformedMaxExtents = p, p
		} else {
			box := transformBox(world[i], bv.MinExtents, bv.MaxExtents)
			bv.TransformedMinExtents, bv.TransformedMaxExtents = box.Min, box.Max
		}
		setPosExtent(bv, &pes[i])
		if f&CmpGeometry != 0 {
			s.extents.Min = minVec(s.extents.Min, bv.TransformedMinExtents)
			s.extents.Max = maxVec(s.extents.Max, bv.TransformedMaxExtents)
		}
	}
}

// propagateBounds unions every child box into its parent, from the highest
// index down so grandchildren reach their grandparents.
func (s *Scene) propagateBounds() {
	flags, parents := s.Flags(), s.Parents()
	bvs, pes := s.BoundingVolumes(), s.PosExtents()
	for i := s.count - 1; i >= 0; i-- {
		p := parents[i]
		if int(p) == i || flags[i]&CmpAllocated == 0 || flags[p]&CmpAllocated == 0 {
			continue
		}
		child, parent := &bvs[i], &bvs[p]
		parent.TransformedMinExtents = minVec(parent.TransformedMinExtents, child.TransformedMinExtents)
		parent.TransformedMaxExtents = maxVec(parent.TransformedMaxExtents, child.TransformedMaxExtents)
		setPosExtent(parent, &pes[p])
	}
}

// transformBox returns the world box around the eight corners of a local box.
func transformBox(m mgl32.Mat4, lo, hi mgl32.Vec3) AABB {
	box := emptyAABB()
	for c := 0; c < 8; c++ {
		corner := mgl32.Vec3{lo[0], lo[1], lo[2]}
		if c&1 != 0 {
			corner[0] = hi[0]
		}
		if c&2 != 0 {
			corner[1] = hi[1]
		}
		if c&4 != 0 {
			corner[2] = hi[2]
		}
		p := mgl32.TransformCoordinate(corner, m)
		box.Min = minVec(box.Min, p)
		box.Max = maxVec(box.Max, p)
	}
	return box
}

// setPosExtent derives the radius and the centre/half-extent form.
func setPosExtent(bv *BoundingVolume, pe *PosExtent) {
	lo, hi := bv.TransformedMinExtents, bv.TransformedMaxExtents
	bv.Radius = hi.Sub(lo).Len() / 2
	if math.IsInf(float64(bv.Radius), 0) {
		bv.Radius = math.MaxFloat32
	}
	c := lo.Add(hi).Mul(0.5)
	half := hi.Sub(lo).Mul(0.5)
	pe.Pos = c.Vec4(1)
	pe.Extent = half.Vec4(bv.Radius)
}

// ResetPhysics puts every rigid body back at its start pose, zeroes its
// velocity and marks the transform dirty so the next Update pushes it.
func (s *Scene) ResetPhysics() {
	flags, transforms, bodies, handles := s.Flags(), s.Transforms(), s.PhysicsBodies(), s.Handles()
	for i := 0; i < s.count; i++ {
		f := flags[i]
		if f&(CmpAllocated|CmpPhysics) != CmpAllocated|CmpPhysics || f&CmpConstraint != 0 {
			continue
		}
		transforms[i].Translation = bodies[i].StartPosition
		transforms[i].Rotation = quatOrIdent(bodies[i].StartRotation)
		flags[i] |= CmpTransform
		if h := handles[i].Physics; h != 0 {
			s.physics.ZeroVelocity(h)
		}
	}
}
