package arbor

import (
	"fmt"
	"time"
)

// frameStats holds per-frame timings. Only populated when debug mode is on.
type frameStats struct {
	controllers time.Duration
	transforms  time.Duration
	bounds      time.Duration
	post        time.Duration
	entities    int
}

// SetDebugMode enables per-frame timing logs and extra hierarchy checks.
func (s *Scene) SetDebugMode(enabled bool) {
	s.debug = enabled
}

// DebugMode reports whether debug mode is on.
func (s *Scene) DebugMode() bool { return s.debug }

// debugLog prints the timings of the last Update.
func (s *Scene) debugLog() {
	st := s.stats
	total := st.controllers + st.transforms + st.bounds + st.post
	s.logger.Printf("arbor: pre: %v | transforms: %v | bounds: %v | post: %v | total: %v | entities: %d",
		st.controllers, st.transforms, st.bounds, st.post, total, st.entities)
}

// CheckHierarchy returns an error describing the first entity whose parent
// is not a live entity below it. Update does not check this itself.
func (s *Scene) CheckHierarchy() error {
	flags, parents := s.Flags(), s.Parents()
	for i := 0; i < s.count; i++ {
		if flags[i]&CmpAllocated == 0 {
			continue
		}
		p := parents[i]
		if int(p) == i {
			continue
		}
		if int(p) > i {
			return fmt.Errorf("%w: entity %d has parent %d", ErrHierarchyOrder, i, p)
		}
		if flags[p]&CmpAllocated == 0 {
			return fmt.Errorf("%w: entity %d has free parent %d", ErrInvalidEntity, i, p)
		}
	}
	return nil
}

// CheckFreeList returns an error if the free list and the allocated flags
// disagree.
func (s *Scene) CheckFreeList() error {
	flags := s.Flags()
	seen := make([]bool, len(flags))
	var err error
	s.free.walk(func(e Entity) bool {
		switch {
		case seen[e]:
			err = fmt.Errorf("arbor: slot %d linked twice", e)
		case flags[e]&CmpAllocated != 0:
			err = fmt.Errorf("arbor: allocated slot %d is in the free list", e)
		}
		seen[e] = true
		return err == nil
	})
	if err != nil {
		return err
	}
	for i, f := range flags {
		if f&CmpAllocated == 0 && !seen[i] {
			return fmt.Errorf("arbor: free slot %d is not in the free list", i)
		}
	}
	return nil
}
