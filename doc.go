// Package cineview is a multi-viewport cine rendering engine for the
// GoGPU ecosystem.
//
// # Overview
//
// Browser-class platforms hard-limit the number of native GPU rendering
// contexts an application can hold, commonly to 8-16. cineview lets one
// shared surface serve dozens of logical viewports instead: each
// viewport slot carries independent pan/zoom/window-level and cine
// playback state, ticks at its own frame rate from a single shared
// animation clock, and draws into its own region of the surface.
// Decoded frame sequences stay GPU-resident under a caller-specified
// memory budget with LRU eviction.
//
// # Quick Start
//
//	backend, _ := render.NewSoftwareBackend(1024, 1024)
//	eng, _ := cineview.New(backend, layout)
//	defer eng.Close()
//
//	ids := eng.CreateSlots(4)
//	eng.AttachSeries(ids[0], info, frames)
//	eng.SetPlaying(ids[0], true)
//	eng.Start()
//
// # Architecture
//
// The engine wires four components with one-directional dependency
// injection:
//
//   - viewport.Manager: authoritative per-slot state and the mapping
//     from host layout rectangles to GPU draw regions
//   - texture.ResidencyCache: GPU memory budget enforcement via LRU
//   - framesync.Engine: master/slave proportional playback sync
//   - schedule.Scheduler: the single animation clock and per-tick
//     orchestration
//
// The scheduler holds references to the manager, cache and sync engine;
// none of them refer back. Drawing is delegated to a render.Backend;
// the engine never issues GPU commands itself.
//
// # Out of Scope
//
// Image-format parsing, pixel decoding, shader compilation and the host
// UI layout system are external collaborators. The engine consumes
// decoded frames and polled layout rectangles; it produces draws.
package cineview
