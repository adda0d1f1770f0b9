package arbor

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	modelCBufferSize           = 64 // one world matrix
	defaultMaterialCBufferSize = 32
	boneMatrixSize             = 64
)

func boneCBufferSize(joints uint32) int {
	return max(int(joints), 1) * boneMatrixSize
}

func (s *Scene) materialCBufferSize(e Entity) int {
	if n := s.Materials()[e].CBufferSize; n > 0 {
		return int(n)
	}
	return defaultMaterialCBufferSize
}

// AttachGeometry names the geometry of e, resolves it and creates the model
// constant buffer. The geometry reference is kept even if the resource
// cannot be found so a later load can retry.
func (s *Scene) AttachGeometry(e Entity, file, mesh string, submesh uint32) error {
	if err := s.checkEntity(e); err != nil {
		return err
	}
	s.GeometryRefs()[e] = GeometryRef{File: file, Mesh: mesh}
	s.Geometries()[e].Submesh = submesh
	s.Flags()[e] |= CmpGeometry
	if !s.linkGeometry(e) {
		return fmt.Errorf("%w: geometry %s/%s not found", ErrResourceNotFound, file, mesh)
	}
	return nil
}

// AttachMaterial names the material of e, resolves it and creates the
// material constant buffer.
func (s *Scene) AttachMaterial(e Entity, name, shader, technique string) error {
	if err := s.checkEntity(e); err != nil {
		return err
	}
	s.MaterialRefs()[e] = MaterialRef{Name: name, Shader: shader, Technique: technique}
	s.Flags()[e] |= CmpMaterial
	if !s.linkMaterial(e) {
		return fmt.Errorf("%w: material %s not found", ErrResourceNotFound, name)
	}
	return nil
}

// AttachLight gives e a light and a constant buffer to upload it through.
func (s *Scene) AttachLight(e Entity, l Light) error {
	if err := s.checkEntity(e); err != nil {
		return err
	}
	s.Lights()[e] = l
	s.Flags()[e] |= CmpLight
	s.linkLight(e)
	return nil
}

// AttachRigidBody creates a rigid body for e from p.
func (s *Scene) AttachRigidBody(e Entity, p PhysicsBody) error {
	if err := s.checkEntity(e); err != nil {
		return err
	}
	p.Type = PhysicsRigidBody
	if p.StartRotation == (mgl32.Quat{}) {
		t := s.Transforms()[e]
		p.StartPosition, p.StartRotation = t.Translation, t.Rotation
	}
	s.PhysicsBodies()[e] = p
	s.Flags()[e] = s.Flags()[e]&^CmpConstraint | CmpPhysics
	if !s.createPhysics(e) {
		return fmt.Errorf("%w: rigid body for %d not created", ErrResourceNotFound, e)
	}
	return nil
}

// AttachConstraint joins the rigid bodies of a and b through a constraint
// held by e. a and b are stored by ref id.
func (s *Scene) AttachConstraint(e, a, b Entity, p PhysicsBody) error {
	for _, x := range [...]Entity{e, a, b} {
		if err := s.checkEntity(x); err != nil {
			return err
		}
	}
	p.Type = PhysicsConstraint
	p.BodyRefA, p.BodyRefB = s.RefOf(a), s.RefOf(b)
	s.PhysicsBodies()[e] = p
	s.Flags()[e] |= CmpPhysics | CmpConstraint
	if !s.createPhysics(e) {
		return fmt.Errorf("%w: constraint for %d not created", ErrResourceNotFound, e)
	}
	return nil
}

// AttachAnimation adds a clip to e and makes it an animation controller.
func (s *Scene) AttachAnimation(e Entity, file string) error {
	if err := s.checkEntity(e); err != nil {
		return err
	}
	anims := s.Animations()
	anims[e] = append(anims[e], AnimationRef{File: file})
	s.Flags()[e] |= CmpAnimController
	if ac := &s.AnimControllers()[e]; ac.RootJointRef == 0 {
		ac.RootJointRef = s.RefOf(e)
		if ac.Speed == 0 {
			ac.Speed = 1
		}
	}
	if !s.linkAnimations(e) {
		return fmt.Errorf("%w: animation %s not found", ErrResourceNotFound, file)
	}
	return nil
}

// BindTexture binds a named texture to sampler slot of e.
func (s *Scene) BindTexture(e Entity, slot int, name string, samplerState uint32) error {
	if err := s.checkEntity(e); err != nil {
		return err
	}
	if slot < 0 || slot >= MaxSamplerBindings {
		return fmt.Errorf("%w: sampler slot %d", ErrInvalidEntity, slot)
	}
	h, ok := s.resources.LoadTexture(s.absPath(name))
	if !ok {
		return fmt.Errorf("%w: texture %s not found", ErrResourceNotFound, name)
	}
	s.Handles()[e].Textures[slot] = h
	s.Samplers()[e].States[slot] = samplerState
	s.Flags()[e] |= CmpSamplers
	return nil
}

// --- Linking. Each link function resolves names to handles and creates the
// buffers the component needs. It returns false if a resource is missing. ---

func (s *Scene) linkGeometry(e Entity) bool {
	ref := s.GeometryRefs()[e]
	gh, ok := s.resources.LoadGeometry(s.absPath(ref.File), ref.Mesh)
	if !ok {
		return false
	}
	h := &s.Handles()[e]
	h.Geometry = gh
	if h.CBuffer == 0 {
		h.CBuffer = s.renderer.CreateBuffer(modelCBufferSize)
	}
	f := s.Flags()[e]
	if f&CmpSkinned != 0 && f&CmpSubGeometry == 0 && h.BoneCBuffer == 0 {
		h.BoneCBuffer = s.renderer.CreateBuffer(boneCBufferSize(s.Geometries()[e].NumJoints))
	}
	if f&CmpSubGeometry != 0 {
		if p := s.Parents()[e]; p != e {
			h.BoneCBuffer = s.Handles()[p].BoneCBuffer
		}
	}
	if f&CmpPreSkinned != 0 {
		s.createPreSkinBuffers(e)
	}
	if f&CmpMasterInstance != 0 {
		s.createInstanceBuffer(e)
	}
	return true
}

func (s *Scene) createPreSkinBuffers(e Entity) {
	ps := s.PreSkins()[e]
	h := &s.Handles()[e]
	h.PreSkinVertex = s.renderer.CreateBuffer(int(ps.NumVerts * ps.VertexSize))
	h.PreSkinPosition = s.renderer.CreateBuffer(int(ps.NumVerts) * 16)
}

func (s *Scene) createInstanceBuffer(e Entity) {
	mi := s.MasterInstances()[e]
	s.Handles()[e].InstanceBuffer = s.renderer.CreateBuffer(int(mi.NumInstances * mi.InstanceStride))
}

func (s *Scene) linkMaterial(e Entity) bool {
	ref := s.MaterialRefs()[e]
	mh, ok := s.resources.LoadMaterial(s.absPath(ref.Name), ref.Shader, ref.Technique)
	if !ok {
		return false
	}
	h := &s.Handles()[e]
	h.Material = mh
	if h.MaterialCBuffer == 0 {
		h.MaterialCBuffer = s.renderer.CreateBuffer(s.materialCBufferSize(e))
	}
	return true
}

func (s *Scene) linkLight(e Entity) {
	if h := &s.Handles()[e]; h.CBuffer == 0 {
		h.CBuffer = s.renderer.CreateBuffer(modelCBufferSize)
	}
}

func (s *Scene) linkAnimations(e Entity) bool {
	anims := s.Animations()[e]
	ok := true
	for i := range anims {
		h, found := s.resources.LoadAnimation(s.absPath(anims[i].File))
		if !found {
			ok = false
			continue
		}
		anims[i].Handle = h
	}
	return ok
}

// createPhysics creates the body or constraint described by the physics
// column. Constraints resolve their bodies through the ref table, so bodies
// must exist first.
func (s *Scene) createPhysics(e Entity) bool {
	h := &s.Handles()[e]
	if s.Flags()[e]&CmpConstraint != 0 {
		h.Physics = s.physics.CreateConstraint(s, e)
	} else {
		h.Physics = s.physics.CreateRigidBody(s, e)
	}
	return h.Physics != 0
}
