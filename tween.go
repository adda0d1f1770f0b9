package arbor

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// tweenField selects which component a TweenGroup writes.
type tweenField uint8

const (
	tweenTranslation tweenField = iota
	tweenScale
	tweenRotation
	tweenLightColour
	tweenLightRadius
)

// TweenGroup animates up to 4 float fields of one entity simultaneously.
// The entity is tracked by ref id, so swaps and moves do not break it; if
// the entity is deleted the group stops immediately.
type TweenGroup struct {
	tweens [4]*gween.Tween
	count  int
	field  tweenField
	ref    uint32
	from   mgl32.Quat
	to     mgl32.Quat
	Done   bool
}

// Update advances all tweens by dt seconds and writes the values into the
// entity's columns. Transform tweens mark the transform dirty.
func (g *TweenGroup) Update(s *Scene, dt float32) {
	if g.Done {
		return
	}
	e := s.IndexFromRef(g.ref)
	if e == NoEntity {
		g.Done = true
		return
	}

	var vals [4]float32
	allDone := true
	for i := 0; i < g.count; i++ {
		val, finished := g.tweens[i].Update(dt)
		vals[i] = val
		if !finished {
			allDone = false
		}
	}
	g.Done = allDone

	switch g.field {
	case tweenTranslation:
		s.Transforms()[e].Translation = mgl32.Vec3{vals[0], vals[1], vals[2]}
	case tweenScale:
		s.Transforms()[e].Scale = mgl32.Vec3{vals[0], vals[1], vals[2]}
	case tweenRotation:
		s.Transforms()[e].Rotation = mgl32.QuatSlerp(g.from, g.to, vals[0])
	case tweenLightColour:
		s.Lights()[e].Colour = mgl32.Vec3{vals[0], vals[1], vals[2]}
		return
	case tweenLightRadius:
		s.Lights()[e].Radius = vals[0]
		return
	}
	s.Flags()[e] |= CmpTransform
}

func newVec3Tween(s *Scene, e Entity, field tweenField, from, to mgl32.Vec3, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 3, field: field, ref: s.RefOf(e)}
	for i := 0; i < 3; i++ {
		g.tweens[i] = gween.New(from[i], to[i], duration, fn)
	}
	if g.ref == 0 {
		g.Done = true
	}
	return g
}

// TweenPosition animates the translation of e to the given position.
func TweenPosition(s *Scene, e Entity, to mgl32.Vec3, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newVec3Tween(s, e, tweenTranslation, s.Transforms()[e].Translation, to, duration, fn)
}

// TweenScale animates the scale of e.
func TweenScale(s *Scene, e Entity, to mgl32.Vec3, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newVec3Tween(s, e, tweenScale, s.Transforms()[e].Scale, to, duration, fn)
}

// TweenLightColour animates the light colour of e.
func TweenLightColour(s *Scene, e Entity, to mgl32.Vec3, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newVec3Tween(s, e, tweenLightColour, s.Lights()[e].Colour, to, duration, fn)
}

// TweenLightRadius animates the light radius of e.
func TweenLightRadius(s *Scene, e Entity, to float32, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 1, field: tweenLightRadius, ref: s.RefOf(e)}
	g.tweens[0] = gween.New(s.Lights()[e].Radius, to, duration, fn)
	g.Done = g.ref == 0
	return g
}

// TweenRotation spherically interpolates the rotation of e to the target.
func TweenRotation(s *Scene, e Entity, to mgl32.Quat, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 1, field: tweenRotation, ref: s.RefOf(e)}
	g.from = quatOrIdent(s.Transforms()[e].Rotation)
	g.to = to
	g.tweens[0] = gween.New(0, 1, duration, fn)
	g.Done = g.ref == 0
	return g
}

// TweenController runs tween groups as a scene controller, before physics
// and animation each frame. Finished groups are dropped.
type TweenController struct {
	groups []*TweenGroup
}

// TweenControllerName is the controller name Register uses.
const TweenControllerName = "arbor.tweens"

// NewTweenController creates an empty controller.
func NewTweenController() *TweenController {
	return &TweenController{}
}

// Register adds the controller to s.
func (tc *TweenController) Register(s *Scene) error {
	return s.RegisterController(&Controller{
		Name: TweenControllerName,
		Funcs: ControllerFuncs{
			Update: func(s *Scene, _ *Controller, dt float32) { tc.update(s, dt) },
		},
		Data: tc,
	})
}

// Add starts running g.
func (tc *TweenController) Add(g *TweenGroup) {
	if !g.Done {
		tc.groups = append(tc.groups, g)
	}
}

// Len returns the number of running groups.
func (tc *TweenController) Len() int { return len(tc.groups) }

func (tc *TweenController) update(s *Scene, dt float32) {
	live := tc.groups[:0]
	for _, g := range tc.groups {
		g.Update(s, dt)
		if !g.Done {
			live = append(live, g)
		}
	}
	clear(tc.groups[len(live):])
	tc.groups = live
}
