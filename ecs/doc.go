// Package ecs provides ECS adapters for arbor's scene diagnostics.
//
// The primary adapter is [NewDonburiSink], which publishes every
// [arbor.Diagnostic] a scene reports (layout mismatches, unresolved
// resources) into a [Donburi] world as typed events. Subscribe to
// [DiagnosticEventType] in your ECS systems to receive them.
//
// Usage:
//
//	scene.SetDiagnostics(ecs.NewDonburiSink(world))
//	scene.RegisterController(ecs.NewDispatchController(world))
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
