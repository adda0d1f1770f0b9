package arbor

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// defaultLightDirection is the direction a light points along before its
// entity's rotation is applied.
var defaultLightDirection = mgl32.Vec3{0, 0, -1}

// updateLightBounds replaces the propagated box of every light with the
// volume the light actually affects:
//
//	directional  unbounded
//	point        sphere of the light radius around the world position
//	spot         box around the cone from the position along the direction
//	area         the geometric box grown by the light radius
func (s *Scene) updateLightBounds() {
	flags, world := s.Flags(), s.WorldMatrices()
	lights, bvs, pes := s.Lights(), s.BoundingVolumes(), s.PosExtents()

	for i := 0; i < s.count; i++ {
		if flags[i]&(CmpAllocated|CmpLight) != CmpAllocated|CmpLight {
			continue
		}
		l := &lights[i]
		bv := &bvs[i]
		pos := world[i].Col(3).Vec3()

		switch l.Type {
		case LightDirectional:
			inf := float32(math.MaxFloat32)
			bv.TransformedMinExtents = mgl32.Vec3{-inf, -inf, -inf}
			bv.TransformedMaxExtents = mgl32.Vec3{inf, inf, inf}
			setPosExtent(bv, &pes[i])
			pes[i].Pos = pos.Vec4(1)
			continue
		case LightPoint:
			r := mgl32.Vec3{l.Radius, l.Radius, l.Radius}
			bv.TransformedMinExtents = pos.Sub(r)
			bv.TransformedMaxExtents = pos.Add(r)
		case LightSpot:
			box := spotBox(pos, lightDirection(world[i], l.Direction), l.Radius, l.CosCutoff)
			bv.TransformedMinExtents, bv.TransformedMaxExtents = box.Min, box.Max
		case LightArea:
			r := mgl32.Vec3{l.Radius, l.Radius, l.Radius}
			bv.TransformedMinExtents = bv.TransformedMinExtents.Sub(r)
			bv.TransformedMaxExtents = bv.TransformedMaxExtents.Add(r)
		}
		setPosExtent(bv, &pes[i])
		if l.Type == LightPoint {
			// the box diagonal overstates a sphere
			bv.Radius = l.Radius
			pes[i].Extent[3] = l.Radius
		}
	}
}

// lightDirection rotates the light's local direction into world space.
func lightDirection(world mgl32.Mat4, dir mgl32.Vec3) mgl32.Vec3 {
	if dir.Len() == 0 {
		dir = defaultLightDirection
	}
	d := mgl32.TransformNormal(dir, world)
	if d.Len() == 0 {
		return defaultLightDirection
	}
	return d.Normalize()
}

// spotBox bounds a cone with its apex at pos, axis dir and length r.
func spotBox(pos, dir mgl32.Vec3, r, cosCutoff float32) AABB {
	cosCutoff = mgl32.Clamp(cosCutoff, 0.01, 1)
	sin := float32(math.Sqrt(float64(1 - cosCutoff*cosCutoff)))
	baseRadius := r * sin / cosCutoff
	end := pos.Add(dir.Mul(r))
	e := mgl32.Vec3{baseRadius, baseRadius, baseRadius}
	box := AABB{Min: pos, Max: pos}
	box.Min = minVec(box.Min, end.Sub(e))
	box.Max = maxVec(box.Max, end.Add(e))
	return box
}
