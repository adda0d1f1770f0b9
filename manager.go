package arbor

import (
	"fmt"
	"slices"
)

// Manager owns a set of named scenes and updates them in the order they
// were added. It replaces a process-wide scene registry: the driver creates
// one and passes it to its frame loop.
type Manager struct {
	scenes map[string]*Scene
	order  []string
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{scenes: make(map[string]*Scene)}
}

// Add registers s under its name. Names must be unique and non-empty.
func (m *Manager) Add(s *Scene) error {
	name := s.Name()
	if name == "" {
		return fmt.Errorf("arbor: scene has no name")
	}
	if _, ok := m.scenes[name]; ok {
		return fmt.Errorf("arbor: scene %q already added", name)
	}
	m.scenes[name] = s
	m.order = append(m.order, name)
	return nil
}

// Create builds a scene from cfg and adds it.
func (m *Manager) Create(cfg Config) (*Scene, error) {
	s := NewScene(cfg)
	if err := m.Add(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Scene returns the scene with the given name, or nil.
func (m *Manager) Scene(name string) *Scene {
	return m.scenes[name]
}

// Scenes returns the scenes in update order.
func (m *Manager) Scenes() []*Scene {
	out := make([]*Scene, len(m.order))
	for i, name := range m.order {
		out[i] = m.scenes[name]
	}
	return out
}

// Remove destroys the named scene and forgets it. No-op if absent.
func (m *Manager) Remove(name string) {
	s, ok := m.scenes[name]
	if !ok {
		return
	}
	s.Destroy()
	delete(m.scenes, name)
	m.order = slices.DeleteFunc(m.order, func(n string) bool { return n == name })
}

// Update updates every scene in sequence.
func (m *Manager) Update(dt float32) {
	for _, name := range m.order {
		m.scenes[name].Update(dt)
	}
}

// Close destroys every scene.
func (m *Manager) Close() {
	for _, name := range m.order {
		m.scenes[name].Destroy()
	}
	clear(m.scenes)
	m.order = nil
}
