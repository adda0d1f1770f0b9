// Package arbor is the entity/component store and per-frame update engine of
// a 3D scene runtime.
//
// A [Scene] keeps every object as one row of a structure-of-arrays [Table]:
// an [Entity] is an index that addresses the same row in every column.
// Scenes propagate transforms and bounding volumes through the parent
// hierarchy once per frame, accept extra columns and callbacks from other
// subsystems, and save and load themselves as versioned binary snapshots.
//
// # Quick start
//
//	scene := arbor.NewScene(arbor.Config{Capacity: 1024})
//	root, _ := scene.Spawn("root")
//	child, _ := scene.SpawnChild(root, "lamp")
//	scene.SetTransform(child, arbor.Transform{
//		Translation: mgl32.Vec3{2, 0, 0},
//		Rotation:    mgl32.QuatIdent(),
//		Scale:       mgl32.Vec3{1, 1, 1},
//	})
//	scene.AttachLight(child, arbor.Light{Type: arbor.LightPoint, Radius: 5})
//	scene.Update(1.0 / 60)
//
// # Storage
//
// Columns are typed slices of one shared length. Plain columns hold
// pointer-free values and are written to snapshots byte for byte; transient
// columns hold names and runtime handles and are persisted by name. The
// table only grows through [Scene.Resize]; every column slice must be
// re-fetched after a resize.
//
// Free slots form a doubly-linked free list. Building it leaves the lowest
// free index at the head and deletions push to the head, so allocation
// reuses the most recently freed slot. The updater depends on a parent's
// index always being below its children's; [Scene.SpawnChild],
// [Scene.SetParent] and [Scene.Clone] refuse to break that order.
//
// Entities also get a stable ref id. [Scene.IndexFromRef] maps it to the
// current index, so references survive [Scene.Swap] and move-mode clones.
//
// # Lifecycle
//
// [Scene.Delete] releases external resources in two phases described by
// [ReleaseRule] values: constraints and transient buffers first, rigid
// bodies second, each phase run over the whole batch. [Scene.Clone] copies a
// row in share, instantiate or move mode.
//
// # Extensions and controllers
//
// An [Extension] appends columns after the base set and may hook save, load,
// update and clone. A [Controller] owns no storage and is called before and
// after the core update. Both are looked up by the xxhash of their name.
//
// # Snapshots
//
// [Scene.Save] writes the header, a size table, an extension table, a
// deduplicated string table, cameras, the raw plain columns and per-entity
// name blocks. [Scene.Load] remaps extension columns by ID, skips columns
// whose size changed, and re-resolves every name through [Resources]. A
// resource that cannot be found clears the matching capability flag and
// sets [SceneLoadError] without aborting the load.
//
// # Collaborators
//
// Physics, rendering, resource loading and animation are reached through
// the [Physics], [Renderer], [Resources] and [Animator] interfaces.
// [AssetCache] is a [Resources] backed by an [io/fs.FS] that decodes
// textures into ebiten images. [TweenController] animates entity fields
// with gween, and [Manager] updates several scenes in sequence.
package arbor
