package arbor

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// HashName returns the fixed-width hash used for extension and controller
// IDs and for every string reference in snapshots. The empty string hashes
// to 0.
func HashName(name string) uint64 {
	if name == "" {
		return 0
	}
	return xxhash.Sum64String(name)
}

// ExtensionFuncs are the callbacks an extension may provide. All are optional.
type ExtensionFuncs struct {
	// Shutdown releases external resources held through the extension's
	// columns. Column memory is owned by the table.
	Shutdown   func(s *Scene, ext *Extension)
	Save       func(s *Scene, ext *Extension, ctx *SaveContext) error
	Load       func(s *Scene, ext *Extension, ctx *LoadContext) error
	Update     func(s *Scene, ext *Extension, dt float32)
	PostUpdate func(s *Scene, ext *Extension, dt float32)
	// Clone runs after the base row copy so the extension can fix up its
	// own columns for the given mode.
	Clone func(s *Scene, ext *Extension, dst, src Entity, mode CloneMode)
}

// Extension adds columns and per-frame callbacks to a scene. Its columns are
// appended after the base columns in registration order.
type Extension struct {
	Name string
	// ID defaults to HashName(Name).
	ID       uint64
	Columns  []ColumnSpec
	Funcs    ExtensionFuncs
	Releases []ReleaseRule
	Data     any

	offset int
}

// Offset returns the table index of the extension's first column.
func (e *Extension) Offset() int { return e.offset }

// ColumnIndex returns the table index of the extension's i-th column.
func (e *Extension) ColumnIndex(i int) int { return e.offset + i }

// ControllerFuncs are a controller's per-frame callbacks. Update runs before
// physics and animation, PostUpdate after.
type ControllerFuncs struct {
	Update     func(s *Scene, c *Controller, dt float32)
	PostUpdate func(s *Scene, c *Controller, dt float32)
}

// Controller is a per-frame behaviour with no storage of its own.
type Controller struct {
	Name  string
	ID    uint64
	Funcs ControllerFuncs
	Data  any
}

// RegisterExtension appends ext and creates its columns at the current
// capacity.
func (s *Scene) RegisterExtension(ext *Extension) error {
	if ext.ID == 0 {
		ext.ID = HashName(ext.Name)
	}
	if _, ok := s.extByID[ext.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateExtension, ext.Name)
	}
	if len(s.extensions) == 0 && s.table.NumColumns() > NumBaseColumns {
		// columns left behind by UnregisterExtensions
		s.table.truncate(NumBaseColumns)
	}
	ext.offset = s.table.NumColumns()
	for _, spec := range ext.Columns {
		s.table.AddColumn(spec)
	}
	s.table.Resize(0)
	s.free.build(s.Flags())

	s.extensions = append(s.extensions, ext)
	s.extByID[ext.ID] = ext
	s.releases = append(s.releases, ext.Releases...)
	if s.debug {
		s.logger.Printf("arbor: registered extension %q at column %d (%d columns)", ext.Name, ext.offset, len(ext.Columns))
	}
	return nil
}

// Extension returns the registered extension with the given ID, or nil.
func (s *Scene) Extension(id uint64) *Extension {
	return s.extByID[id]
}

// Extensions returns the registered extensions in registration order.
func (s *Scene) Extensions() []*Extension {
	return s.extensions
}

// UpdateExtensionFuncs replaces the callbacks of a registered extension.
// It is a no-op if id is not registered.
func (s *Scene) UpdateExtensionFuncs(id uint64, funcs ExtensionFuncs) {
	if ext := s.extByID[id]; ext != nil {
		ext.Funcs = funcs
	}
}

// UnregisterExtensions shuts every extension down and forgets the
// descriptors. The extension columns stay in the table until the next
// registration or Destroy.
func (s *Scene) UnregisterExtensions() {
	for _, ext := range s.extensions {
		if ext.Funcs.Shutdown != nil {
			ext.Funcs.Shutdown(s, ext)
		}
	}
	s.extensions = nil
	clear(s.extByID)
	s.releases = baseReleaseRules()
}

// RegisterController appends c to the per-frame controller list.
func (s *Scene) RegisterController(c *Controller) error {
	if c.ID == 0 {
		c.ID = HashName(c.Name)
	}
	if _, ok := s.ctrlByID[c.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateController, c.Name)
	}
	s.controllers = append(s.controllers, c)
	s.ctrlByID[c.ID] = c
	return nil
}

// Controller returns the registered controller with the given ID, or nil.
func (s *Scene) Controller(id uint64) *Controller {
	return s.ctrlByID[id]
}

// Controllers returns the registered controllers in registration order.
func (s *Scene) Controllers() []*Controller {
	return s.controllers
}

// UpdateControllerFuncs replaces the callbacks of a registered controller.
// It is a no-op if id is not registered.
func (s *Scene) UpdateControllerFuncs(id uint64, funcs ControllerFuncs) {
	if c := s.ctrlByID[id]; c != nil {
		c.Funcs = funcs
	}
}

// UnregisterControllers forgets every controller.
func (s *Scene) UnregisterControllers() {
	s.controllers = nil
	clear(s.ctrlByID)
}
