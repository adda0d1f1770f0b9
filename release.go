package arbor

// ReleaseRule declares one kind of external resource an entity may hold and
// the delete phase that releases it. Phase 1 runs for every entity in a
// batch before phase 2 runs for any of them.
type ReleaseRule struct {
	Name  string
	Phase int
	// Handle returns the resource held by e, or 0 if none.
	Handle func(s *Scene, e Entity) uint64
	// Release frees h. It is called at most once per deletion, and only by
	// the last holder of a handle shared through CloneShare.
	Release func(s *Scene, e Entity, h uint64)
}

const (
	PhaseDependents = 1 // resources others depend on being released first
	PhaseOwners     = 2 // remaining resources, then the slot is zeroed
)

func hasCmp(s *Scene, e Entity, c Cmp) bool {
	return s.Flags()[e]&c == c
}

func releaseBuffer(s *Scene, _ Entity, h uint64) {
	s.renderer.ReleaseBuffer(BufferHandle(h))
}

func releasePhysics(s *Scene, _ Entity, h uint64) {
	s.physics.Release(PhysicsHandle(h))
}

// baseReleaseRules lists the resources held through base columns.
// A constraint references rigid bodies on other entities, so constraints go
// in phase 1 and bodies in phase 2.
func baseReleaseRules() []ReleaseRule {
	return []ReleaseRule{
		{
			Name:  "constraint",
			Phase: PhaseDependents,
			Handle: func(s *Scene, e Entity) uint64 {
				if !hasCmp(s, e, CmpPhysics|CmpConstraint) {
					return 0
				}
				return uint64(s.Handles()[e].Physics)
			},
			Release: releasePhysics,
		},
		{
			Name:  "model cbuffer",
			Phase: PhaseDependents,
			Handle: func(s *Scene, e Entity) uint64 {
				return uint64(s.Handles()[e].CBuffer)
			},
			Release: releaseBuffer,
		},
		{
			Name:  "material cbuffer",
			Phase: PhaseDependents,
			Handle: func(s *Scene, e Entity) uint64 {
				return uint64(s.Handles()[e].MaterialCBuffer)
			},
			Release: releaseBuffer,
		},
		{
			Name:  "bone cbuffer",
			Phase: PhaseDependents,
			Handle: func(s *Scene, e Entity) uint64 {
				// sub-geometry borrows its parent's bones
				if hasCmp(s, e, CmpSubGeometry) {
					return 0
				}
				return uint64(s.Handles()[e].BoneCBuffer)
			},
			Release: releaseBuffer,
		},
		{
			Name:  "pre-skin vertices",
			Phase: PhaseDependents,
			Handle: func(s *Scene, e Entity) uint64 {
				return uint64(s.Handles()[e].PreSkinVertex)
			},
			Release: releaseBuffer,
		},
		{
			Name:  "pre-skin positions",
			Phase: PhaseDependents,
			Handle: func(s *Scene, e Entity) uint64 {
				return uint64(s.Handles()[e].PreSkinPosition)
			},
			Release: releaseBuffer,
		},
		{
			Name:  "instance buffer",
			Phase: PhaseDependents,
			Handle: func(s *Scene, e Entity) uint64 {
				return uint64(s.Handles()[e].InstanceBuffer)
			},
			Release: releaseBuffer,
		},
		{
			Name:  "rigid body",
			Phase: PhaseOwners,
			Handle: func(s *Scene, e Entity) uint64 {
				f := s.Flags()[e]
				if f&CmpPhysics == 0 || f&CmpConstraint != 0 {
					return 0
				}
				return uint64(s.Handles()[e].Physics)
			},
			Release: releasePhysics,
		},
	}
}

// sharedKey identifies a handle shared by share-mode clones.
type sharedKey struct {
	rule   string
	handle uint64
}

// retainShared records one more holder of h. A handle absent from the map
// has exactly one holder.
func (s *Scene) retainShared(rule string, h uint64) {
	k := sharedKey{rule, h}
	if n, ok := s.shared[k]; ok {
		s.shared[k] = n + 1
	} else {
		s.shared[k] = 2
	}
}

// dropShared removes one holder of h and reports whether it was the last.
func (s *Scene) dropShared(rule string, h uint64) bool {
	k := sharedKey{rule, h}
	n, ok := s.shared[k]
	if !ok {
		return true
	}
	if n <= 2 {
		delete(s.shared, k)
	} else {
		s.shared[k] = n - 1
	}
	return false
}

// SharedHolders returns how many entities hold h under the named rule.
func (s *Scene) SharedHolders(rule string, h uint64) int {
	if n, ok := s.shared[sharedKey{rule, h}]; ok {
		return n
	}
	return 1
}

// runReleases invokes every rule of the given phase for e.
func (s *Scene) runReleases(phase int, e Entity) {
	for i := range s.releases {
		r := &s.releases[i]
		if r.Phase != phase {
			continue
		}
		h := r.Handle(s, e)
		if h == 0 {
			continue
		}
		if s.dropShared(r.Name, h) {
			r.Release(s, e, h)
		}
	}
}

// retainAll marks every handle e holds as shared with one more entity.
func (s *Scene) retainAll(e Entity) {
	for i := range s.releases {
		r := &s.releases[i]
		if h := r.Handle(s, e); h != 0 {
			s.retainShared(r.Name, h)
		}
	}
}
