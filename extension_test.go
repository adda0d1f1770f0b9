package arbor

import (
	"errors"
	"testing"
)

func TestHashName(t *testing.T) {
	if HashName("") != 0 {
		t.Error("empty name should hash to 0")
	}
	if HashName("physics") != HashName("physics") {
		t.Error("hash is not deterministic")
	}
	if HashName("physics") == HashName("physicz") {
		t.Error("distinct names collide")
	}
}

func TestRegisterExtensionAppendsColumns(t *testing.T) {
	s := newRig(t, 4)
	a := &Extension{Name: "a", Columns: []ColumnSpec{PlainSpec[uint32]("a0"), TransientSpec[string]("a1", nil)}}
	b := &Extension{Name: "b", Columns: []ColumnSpec{PlainSpec[float32]("b0")}}
	for _, ext := range []*Extension{a, b} {
		if err := s.RegisterExtension(ext); err != nil {
			t.Fatal(err)
		}
	}

	if a.ID != HashName("a") {
		t.Errorf("default ID = %#x", a.ID)
	}
	if a.Offset() != NumBaseColumns || b.Offset() != NumBaseColumns+2 {
		t.Errorf("offsets = %d, %d", a.Offset(), b.Offset())
	}
	if got := s.Column(b.ColumnIndex(0)).Name(); got != "b0" {
		t.Errorf("column name = %q", got)
	}
	if s.Extension(b.ID) != b {
		t.Error("Extension lookup failed")
	}
	if s.Extension(HashName("missing")) != nil {
		t.Error("lookup of unknown extension succeeded")
	}
	checkInvariants(t, s.Scene)
}

func TestRegisterExtensionDuplicate(t *testing.T) {
	s := newRig(t, 2)
	if err := s.RegisterExtension(&Extension{Name: "x"}); err != nil {
		t.Fatal(err)
	}
	err := s.RegisterExtension(&Extension{Name: "x"})
	if !errors.Is(err, ErrDuplicateExtension) {
		t.Errorf("err = %v, want ErrDuplicateExtension", err)
	}
}

func TestRegisterExtensionKeepsLiveRows(t *testing.T) {
	s := newRig(t, 3)
	e := mustSpawn(t, s.Scene, "e")
	ext := &Extension{Name: "late", Columns: []ColumnSpec{PlainSpec[uint32]("v")}}
	if err := s.RegisterExtension(ext); err != nil {
		t.Fatal(err)
	}
	if !s.IsAllocated(e) || s.NumFree() != 2 {
		t.Errorf("allocated %v, NumFree %d", s.IsAllocated(e), s.NumFree())
	}
	if n := s.Column(ext.ColumnIndex(0)).Len(); n != 3 {
		t.Errorf("late column len = %d", n)
	}
}

func TestUpdateExtensionFuncs(t *testing.T) {
	s := newRig(t, 2)
	ext := &Extension{Name: "x"}
	if err := s.RegisterExtension(ext); err != nil {
		t.Fatal(err)
	}
	calls := 0
	s.UpdateExtensionFuncs(ext.ID, ExtensionFuncs{Update: func(*Scene, *Extension, float32) { calls++ }})
	s.UpdateExtensionFuncs(HashName("absent"), ExtensionFuncs{})
	s.Update(0)
	if calls != 1 {
		t.Errorf("replaced Update called %d times", calls)
	}
}

func TestUnregisterExtensions(t *testing.T) {
	s := newRig(t, 2)
	var shut []string
	for _, name := range []string{"a", "b"} {
		if err := s.RegisterExtension(&Extension{
			Name:    name,
			Columns: []ColumnSpec{PlainSpec[uint32](name)},
			Funcs:   ExtensionFuncs{Shutdown: func(_ *Scene, ext *Extension) { shut = append(shut, ext.Name) }},
		}); err != nil {
			t.Fatal(err)
		}
	}

	s.UnregisterExtensions()

	if len(shut) != 2 || shut[0] != "a" || shut[1] != "b" {
		t.Errorf("shutdown order = %v", shut)
	}
	if len(s.Extensions()) != 0 || s.Extension(HashName("a")) != nil {
		t.Error("descriptors survived")
	}
	// column memory stays until the next registration
	if s.Table().NumColumns() != NumBaseColumns+2 {
		t.Errorf("NumColumns = %d after unregister", s.Table().NumColumns())
	}

	c := &Extension{Name: "c", Columns: []ColumnSpec{PlainSpec[uint64]("c")}}
	if err := s.RegisterExtension(c); err != nil {
		t.Fatal(err)
	}
	if s.Table().NumColumns() != NumBaseColumns+1 || c.Offset() != NumBaseColumns {
		t.Errorf("NumColumns = %d, offset = %d", s.Table().NumColumns(), c.Offset())
	}
}

func TestExtensionReleaseRules(t *testing.T) {
	s := newRig(t, 4)
	var released []uint64
	ext := &Extension{
		Name:    "audio",
		Columns: []ColumnSpec{PlainSpec[uint64]("voice")},
		Releases: []ReleaseRule{{
			Name:  "voice",
			Phase: PhaseOwners,
			Handle: func(s *Scene, e Entity) uint64 {
				return ColumnData[uint64](s.Column(NumBaseColumns))[e]
			},
			Release: func(_ *Scene, _ Entity, h uint64) {
				released = append(released, h)
			},
		}},
	}
	if err := s.RegisterExtension(ext); err != nil {
		t.Fatal(err)
	}
	a := mustSpawn(t, s.Scene, "a")
	b := mustSpawn(t, s.Scene, "b")
	voices := ColumnData[uint64](s.Column(ext.ColumnIndex(0)))
	voices[a] = 77
	for _, e := range []Entity{a, b} {
		if err := s.AttachRigidBody(e, PhysicsBody{Mass: 1}); err != nil {
			t.Fatal(err)
		}
	}
	c := mustSpawn(t, s.Scene, "joint")
	if err := s.AttachConstraint(c, a, b, PhysicsBody{}); err != nil {
		t.Fatal(err)
	}
	joint := s.Handles()[c].Physics

	if err := s.Delete(a, b, c); err != nil {
		t.Fatal(err)
	}
	if len(released) != 1 || released[0] != 77 {
		t.Errorf("released = %v, want [77]", released)
	}
	// the constraint goes in phase 1, before any phase 2 rule
	if len(s.phys.released) != 3 || s.phys.released[0] != joint {
		t.Errorf("physics released %v", s.phys.released)
	}
}

func TestControllers(t *testing.T) {
	s := newRig(t, 2)
	var order []string
	for _, name := range []string{"first", "second"} {
		name := name
		if err := s.RegisterController(&Controller{Name: name, Funcs: ControllerFuncs{
			Update: func(*Scene, *Controller, float32) { order = append(order, name) },
		}}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RegisterController(&Controller{Name: "first"}); !errors.Is(err, ErrDuplicateController) {
		t.Errorf("err = %v, want ErrDuplicateController", err)
	}

	s.Update(0)
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v", order)
	}

	id := HashName("second")
	if s.Controller(id) == nil || len(s.Controllers()) != 2 {
		t.Fatal("controller lookup failed")
	}
	posts := 0
	s.UpdateControllerFuncs(id, ControllerFuncs{PostUpdate: func(*Scene, *Controller, float32) { posts++ }})
	order = nil
	s.Update(0)
	if len(order) != 1 || posts != 1 {
		t.Errorf("after replacing funcs: order %v, posts %d", order, posts)
	}

	s.UnregisterControllers()
	if len(s.Controllers()) != 0 || s.Controller(id) != nil {
		t.Error("controllers survived unregister")
	}
}

func TestDiagnosticsReachSink(t *testing.T) {
	var got []Diagnostic
	log := &captureLogger{}
	s := NewScene(Config{Capacity: 1, Logger: log, Diagnostics: DiagnosticFunc(func(d Diagnostic) { got = append(got, d) })})
	s.report(DiagnosticMissingTexture, 0, "sampler %d: %s", 2, "rock.png")

	if len(got) != 1 || got[0].Kind != DiagnosticMissingTexture || got[0].Detail != "sampler 2: rock.png" {
		t.Errorf("diagnostics = %+v", got)
	}
	if !log.contains("missing texture (entity 0): sampler 2: rock.png") {
		t.Errorf("log = %v", log.lines)
	}
}
