// stress builds a deep scene hierarchy, churns entities through delete,
// clone and swap, and round-trips the scene through a snapshot every few
// frames. Run with -profile=cpu or -profile=mem to write a pprof file.
//
//	go run ./demos/stress -profile=mem
//	go tool pprof -http=":8000" mem.pprof
package main

import (
	"bytes"
	"flag"
	"log"
	"math/rand/v2"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/phanxgames/arbor"
	"github.com/pkg/profile"
)

func main() {
	var (
		mode     = flag.String("profile", "", "cpu, mem or empty")
		count    = flag.Int("entities", 10_000, "live entities")
		frames   = flag.Int("frames", 600, "frames to simulate")
		churn    = flag.Int("churn", 100, "entities deleted and respawned per frame")
		snapshot = flag.Int("snapshot", 120, "frames between snapshot round trips")
	)
	flag.Parse()

	switch *mode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	scene := arbor.NewScene(arbor.Config{Name: "stress", Capacity: *count + *churn + 1})
	build(scene, *count)

	start := time.Now()
	var buf bytes.Buffer
	for f := 0; f < *frames; f++ {
		churnFrame(scene, *churn)
		scene.Update(1.0 / 60)
		if *snapshot > 0 && f%*snapshot == 0 {
			buf.Reset()
			if err := scene.Save(&buf); err != nil {
				log.Fatalf("save: %v", err)
			}
			if err := scene.Load(bytes.NewReader(buf.Bytes())); err != nil {
				log.Fatalf("load: %v", err)
			}
		}
	}
	elapsed := time.Since(start)
	log.Printf("%d frames, %d entities: %v (%v/frame), last snapshot %d bytes",
		*frames, scene.Count(), elapsed, elapsed/time.Duration(*frames), buf.Len())
	if err := scene.CheckHierarchy(); err != nil {
		log.Fatal(err)
	}
}

// build spawns a forest: every entity picks a random earlier entity as its
// parent, or becomes a root.
func build(s *arbor.Scene, n int) {
	for i := 0; i < n; i++ {
		e, err := s.Spawn("node")
		if err != nil {
			log.Fatalf("spawn: %v", err)
		}
		if i > 0 && rand.IntN(8) != 0 {
			if err := s.SetParent(e, arbor.Entity(rand.IntN(int(e)))); err != nil {
				log.Fatalf("parent: %v", err)
			}
		}
		s.SetTransform(e, arbor.Transform{
			Translation: mgl32.Vec3{rand.Float32(), rand.Float32(), rand.Float32()},
			Rotation:    mgl32.QuatRotate(rand.Float32(), mgl32.Vec3{0, 1, 0}),
			Scale:       mgl32.Vec3{1, 1, 1},
		})
		bv := &s.BoundingVolumes()[e]
		bv.MinExtents = mgl32.Vec3{-0.5, -0.5, -0.5}
		bv.MaxExtents = mgl32.Vec3{0.5, 0.5, 0.5}
	}
}

// churnFrame deletes random leaves and clones random roots back in.
func churnFrame(s *arbor.Scene, n int) {
	flags := s.Flags()
	var victims []arbor.Entity
	for len(victims) < n {
		e := arbor.Entity(rand.IntN(s.Count()))
		if flags[e]&arbor.CmpAllocated != 0 && len(s.Children(e)) == 0 {
			victims = append(victims, e)
		}
	}
	if err := s.Delete(victims...); err != nil {
		log.Fatalf("delete: %v", err)
	}
	for i := 0; i < n; i++ {
		src := arbor.Entity(rand.IntN(s.Count()))
		if !s.IsAllocated(src) {
			continue
		}
		if _, err := s.Clone(src, arbor.CloneShare, arbor.WithParent(src), arbor.WithSuffix("+")); err != nil && i == 0 {
			log.Printf("clone: %v", err)
		}
	}
}
