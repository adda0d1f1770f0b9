package arbor

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacity is returned when the free list is empty. Callers must
	// Resize before retrying; the table never grows on its own.
	ErrCapacity = errors.New("arbor: scene capacity exhausted")

	// ErrInvalidEntity is returned for indices outside the table or slots
	// that are not allocated.
	ErrInvalidEntity = errors.New("arbor: invalid entity")

	// ErrResourceNotFound is returned when the resource manager or physics
	// world cannot supply a geometry, material, animation, texture or body.
	ErrResourceNotFound = errors.New("arbor: resource not found")

	// ErrHierarchyOrder is returned when a parent index is not below its child.
	ErrHierarchyOrder = errors.New("arbor: parent must precede child")

	// ErrDuplicateExtension is returned when an extension ID is registered twice.
	ErrDuplicateExtension = errors.New("arbor: extension already registered")

	// ErrDuplicateController is returned when a controller ID is registered twice.
	ErrDuplicateController = errors.New("arbor: controller already registered")

	// ErrBadSnapshot is returned when a snapshot header or block is malformed.
	ErrBadSnapshot = errors.New("arbor: malformed snapshot")

	// ErrSnapshotVersion is returned for snapshots newer than SnapshotVersion.
	ErrSnapshotVersion = errors.New("arbor: unsupported snapshot version")
)

// DiagnosticKind classifies a recoverable problem found while loading.
type DiagnosticKind uint8

const (
	DiagnosticLayoutMismatch DiagnosticKind = iota
	DiagnosticUnknownExtension
	DiagnosticMissingGeometry
	DiagnosticMissingMaterial
	DiagnosticMissingAnimation
	DiagnosticMissingTexture
	DiagnosticMissingPhysics
)

var diagnosticNames = [...]string{
	DiagnosticLayoutMismatch:   "layout mismatch",
	DiagnosticUnknownExtension: "unknown extension",
	DiagnosticMissingGeometry:  "missing geometry",
	DiagnosticMissingMaterial:  "missing material",
	DiagnosticMissingAnimation: "missing animation",
	DiagnosticMissingTexture:   "missing texture",
	DiagnosticMissingPhysics:   "missing physics body",
}

func (k DiagnosticKind) String() string {
	if int(k) < len(diagnosticNames) {
		return diagnosticNames[k]
	}
	return fmt.Sprintf("DiagnosticKind(%d)", k)
}

// Diagnostic describes a degraded field or entity. Diagnostics are logged and
// forwarded to the scene's DiagnosticSink; they are never returned as errors.
type Diagnostic struct {
	Kind   DiagnosticKind
	Entity Entity // NoEntity for scene-wide problems
	Detail string
}

func (d Diagnostic) String() string {
	if d.Entity == NoEntity {
		return fmt.Sprintf("%s: %s", d.Kind, d.Detail)
	}
	return fmt.Sprintf("%s (entity %d): %s", d.Kind, d.Entity, d.Detail)
}

// report logs a diagnostic and forwards it to the diagnostic sink.
func (s *Scene) report(kind DiagnosticKind, e Entity, format string, args ...any) {
	s.emit(Diagnostic{Kind: kind, Entity: e, Detail: fmt.Sprintf(format, args...)})
}

func (s *Scene) emit(d Diagnostic) {
	s.logger.Printf("arbor: %s", d)
	if s.diagnostics != nil {
		s.diagnostics.Report(d)
	}
}
