package ecs

import (
	"github.com/phanxgames/arbor"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// DiagnosticEventType is the Donburi event type for arbor diagnostics.
var DiagnosticEventType = events.NewEventType[arbor.Diagnostic]()

// DispatchControllerName is the name of the controller returned by
// NewDispatchController.
const DispatchControllerName = "ecs.dispatch"

type donburiSink struct {
	world donburi.World
}

// NewDonburiSink creates a DiagnosticSink backed by a Donburi world.
// Diagnostics are queued on DiagnosticEventType and delivered to
// subscribers by ProcessEvents.
func NewDonburiSink(world donburi.World) arbor.DiagnosticSink {
	return &donburiSink{world: world}
}

func (s *donburiSink) Report(d arbor.Diagnostic) {
	DiagnosticEventType.Publish(s.world, d)
}

// NewDispatchController returns a controller that delivers queued
// diagnostics at the end of every scene update.
func NewDispatchController(world donburi.World) *arbor.Controller {
	return &arbor.Controller{
		Name: DispatchControllerName,
		Funcs: arbor.ControllerFuncs{
			PostUpdate: func(*arbor.Scene, *arbor.Controller, float32) {
				DiagnosticEventType.ProcessEvents(world)
			},
		},
	}
}
