// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cineview

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/cineview/framesync"
	"github.com/gogpu/cineview/render"
	"github.com/gogpu/cineview/schedule"
	"github.com/gogpu/cineview/texture"
	"github.com/gogpu/cineview/viewport"
)

// Common errors returned by Engine operations.
var (
	// ErrEngineClosed is returned when operations are attempted on a
	// closed engine.
	ErrEngineClosed = errors.New("cineview: engine is closed")

	// ErrNilBackend is returned when a nil render backend is passed.
	ErrNilBackend = errors.New("cineview: nil backend")

	// ErrNilLayout is returned when a nil layout provider is passed.
	ErrNilLayout = errors.New("cineview: nil layout provider")
)

// Stats is a polled, read-only snapshot of engine health. All values
// are derived on read and never authoritative.
type Stats struct {
	// FPS is the achieved shared-clock tick rate.
	FPS float64

	// FrameTimeMs is the smoothed time spent inside one tick.
	FrameTimeMs float64

	// VRAMUsageMB is the GPU memory held by resident frame sequences.
	VRAMUsageMB float64
}

// Engine is the facade wiring the viewport manager, texture residency
// cache, frame sync engine and render scheduler over one shared
// rendering surface.
//
// All exported methods are safe for concurrent use. Per-viewport
// mutators with an unknown id are silent no-ops, tolerating UI
// teardown races.
type Engine struct {
	mu      sync.Mutex
	backend render.Backend
	frames  render.FrameSource
	closed  bool

	// wasRunning records whether the clock ran when the surface was
	// lost, so restoration can resume playback transparently.
	wasRunning bool

	mgr     *viewport.Manager
	cache   *texture.ResidencyCache
	syncEng *framesync.Engine
	sched   *schedule.Scheduler
}

// New creates an Engine over a render backend and a host layout
// provider. The engine picks up the package logger active at creation
// time.
func New(backend render.Backend, layout viewport.LayoutProvider, opts ...Option) (*Engine, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	if layout == nil {
		return nil, ErrNilLayout
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var mgrOpts []viewport.ManagerOption
	if o.maxDPR > 0 {
		mgrOpts = append(mgrOpts, viewport.WithMaxDPR(o.maxDPR))
	}

	e := &Engine{
		backend: backend,
		frames:  o.frames,
		mgr:     viewport.NewManager(layout, mgrOpts...),
		cache:   texture.NewResidencyCache(o.budgetBytes, o.onEvict),
	}
	e.syncEng = framesync.NewEngine(e.mgr)
	e.sched = schedule.NewScheduler(e.mgr, e.cache, e.syncEng, o.clock)
	e.sched.SetLogger(Logger())
	e.sched.SetRenderCallback(e.drawViewport)
	return e, nil
}

// drawViewport is the scheduler's draw delegate: it resolves the slot
// state and resident texture and issues one region-restricted draw.
func (e *Engine) drawViewport(id string, frameIndex int, region viewport.Region) error {
	slot, ok := e.mgr.Viewport(id)
	if !ok {
		return nil
	}
	entry, ok := e.cache.Get(id)
	if !ok {
		return nil
	}
	tex, ok := entry.Texture.(render.FrameTexture)
	if !ok {
		return fmt.Errorf("cineview: viewport %s holds a non-drawable texture", id)
	}

	e.mu.Lock()
	backend := e.backend
	e.mu.Unlock()

	return backend.DrawFrame(tex, frameIndex, region, render.DrawState{
		Transform:   slot.Transform,
		WindowLevel: slot.WindowLevel,
	})
}

// CreateSlots tears down any existing slots and allocates count new
// ones, returning their stable ids in creation order. Attached series
// of previous slots are released. Call MarkNeedsSync (or SyncAllSlots)
// once the host has laid the slots out.
func (e *Engine) CreateSlots(count int) []string {
	e.cache.Clear()
	ids := e.mgr.CreateSlots(count)
	Logger().Info("viewport slots created", "count", count)
	return ids
}

// Viewport returns a snapshot of one slot, or false for unknown ids.
func (e *Engine) Viewport(id string) (viewport.Slot, bool) {
	return e.mgr.Viewport(id)
}

// Viewports returns snapshots of all slots in creation order.
func (e *Engine) Viewports() []viewport.Slot {
	return e.mgr.Viewports()
}

// AttachSeries attaches series metadata to a slot, uploads the decoded
// frames through the backend and publishes the texture into the
// residency cache. It is safe to call from any goroutine: upload
// happens on the caller, never inside a render tick. The slot becomes
// drawable on the next tick (or immediately via the forced single
// frame render this method issues).
func (e *Engine) AttachSeries(id string, info viewport.SeriesInfo, frames []*image.RGBA) error {
	return e.attachSeries(id, info, frames, false)
}

// attachSeries implements AttachSeries. keepFrame preserves the slot's
// current frame position, used when replaying state after surface
// restoration.
func (e *Engine) attachSeries(id string, info viewport.SeriesInfo, frames []*image.RGBA, keepFrame bool) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	backend := e.backend
	e.mu.Unlock()

	if info.FrameCount != len(frames) {
		info.FrameCount = len(frames)
	}

	tex, err := backend.UploadSeries(render.SeriesDescriptor(info), frames)
	if err != nil {
		return fmt.Errorf("cineview: upload series %q: %w", info.SeriesID, err)
	}

	e.mgr.SetSeries(id, info, keepFrame)
	e.cache.Set(id, texture.Entry{
		Texture:    tex,
		SeriesID:   info.SeriesID,
		Width:      info.ImageWidth,
		Height:     info.ImageHeight,
		FrameCount: info.FrameCount,
	})
	e.sched.RenderSingleFrame()
	return nil
}

// DetachSeries frees a slot's resident texture immediately. The slot
// itself survives and can receive a new series.
func (e *Engine) DetachSeries(id string) {
	e.cache.DeleteAndDispose(id)
}

// SetPan sets a slot's pan offset in device pixels and redraws.
func (e *Engine) SetPan(id string, x, y float64) {
	e.mgr.SetPan(id, x, y)
	e.sched.RenderSingleFrame()
}

// SetZoom sets a slot's zoom factor and redraws.
func (e *Engine) SetZoom(id string, zoom float64) {
	e.mgr.SetZoom(id, zoom)
	e.sched.RenderSingleFrame()
}

// SetRotation sets a slot's rotation in degrees and redraws.
func (e *Engine) SetRotation(id string, degrees float64) {
	e.mgr.SetRotation(id, degrees)
	e.sched.RenderSingleFrame()
}

// SetFlip sets a slot's mirror state and redraws.
func (e *Engine) SetFlip(id string, flipH, flipV bool) {
	e.mgr.SetFlip(id, flipH, flipV)
	e.sched.RenderSingleFrame()
}

// SetWindowLevel sets a slot's grayscale window and redraws.
func (e *Engine) SetWindowLevel(id string, wl viewport.WindowLevel) {
	e.mgr.SetWindowLevel(id, wl)
	e.sched.RenderSingleFrame()
}

// ClearWindowLevel restores a slot's identity grayscale mapping and
// redraws.
func (e *Engine) ClearWindowLevel(id string) {
	e.mgr.ClearWindowLevel(id)
	e.sched.RenderSingleFrame()
}

// SetFrame sets a slot's displayed frame, clamped into range, and
// redraws.
func (e *Engine) SetFrame(id string, frame int) {
	e.mgr.SetFrame(id, frame)
	e.sched.RenderSingleFrame()
}

// ResetViewport restores a slot's transform to identity and redraws.
// Playback state and the current frame are untouched.
func (e *Engine) ResetViewport(id string) {
	e.mgr.Reset(id)
	e.sched.RenderSingleFrame()
}

// SetPlaying starts or stops one slot's cine playback.
func (e *Engine) SetPlaying(id string, playing bool) {
	e.mgr.SetPlaying(id, playing)
}

// SetFPS sets one slot's playback rate, clamped to the valid range.
func (e *Engine) SetFPS(id string, fps float64) {
	e.mgr.SetFPS(id, fps)
}

// CreateSyncGroup activates a master/slave playback group, replacing
// any existing one.
func (e *Engine) CreateSyncGroup(g framesync.Group) {
	e.syncEng.CreateGroup(g)
}

// ClearSyncGroups drops playback synchronization; all slots resume
// independent playback.
func (e *Engine) ClearSyncGroups() {
	e.syncEng.ClearAllGroups()
}

// MarkNeedsSync schedules a re-mapping of all slot rectangles after a
// short settle delay, letting host layout finish before geometry is
// resampled.
func (e *Engine) MarkNeedsSync() {
	e.mgr.MarkNeedsSync()
}

// SyncSlot immediately re-polls layout geometry for one slot.
func (e *Engine) SyncSlot(id string) {
	e.mgr.SyncSlot(id)
}

// SyncAllSlots immediately re-polls layout geometry for every slot.
func (e *Engine) SyncAllSlots() {
	e.mgr.SyncAll()
}

// Start begins the shared animation clock.
func (e *Engine) Start() {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}
	e.sched.Start()
}

// Stop halts the shared animation clock. Safe to call at any time,
// including from within callbacks.
func (e *Engine) Stop() {
	e.sched.Stop()
}

// RenderSingleFrame forces one full redraw without advancing playback.
func (e *Engine) RenderSingleFrame() {
	e.sched.RenderSingleFrame()
}

// GetStats returns a polled snapshot of engine health.
func (e *Engine) GetStats() Stats {
	ts := e.sched.Stats()
	return Stats{
		FPS:         ts.FPS,
		FrameTimeMs: ts.FrameTimeMs,
		VRAMUsageMB: e.cache.VRAMUsageMB(),
	}
}

// HandleContextLost tears down the drawing layer after the shared GPU
// surface was lost: the clock stops and cache bookkeeping is dropped
// without freeing textures, since the underlying handles are already
// invalid. Viewport state (transforms, playback, series metadata)
// survives untouched for replay on restoration.
func (e *Engine) HandleContextLost() {
	e.mu.Lock()
	e.wasRunning = e.sched.Running()
	e.mu.Unlock()

	e.sched.Stop()
	e.cache.ClearWithoutDispose()
	Logger().Warn("shared surface lost, drawing layer torn down")
}

// HandleContextRestored rebuilds the drawing layer on a fresh backend
// after surface loss. Series are re-uploaded from the configured frame
// source when one exists; otherwise viewports stay non-resident until
// their series are attached again. Viewport state is replayed
// unchanged; playback resumes if it was running when the surface was
// lost.
func (e *Engine) HandleContextRestored(newBackend render.Backend) error {
	if newBackend == nil {
		return ErrNilBackend
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	e.backend = newBackend
	frames := e.frames
	resume := e.wasRunning
	e.wasRunning = false
	e.mu.Unlock()

	if frames != nil {
		for _, slot := range e.mgr.Viewports() {
			if !slot.HasSeries() {
				continue
			}
			decoded, err := frames.SeriesFrames(slot.Series.SeriesID)
			if err != nil {
				Logger().Warn("series re-upload failed after restore",
					"viewport", slot.ID, "series", slot.Series.SeriesID, "err", err)
				continue
			}
			if err := e.attachSeries(slot.ID, *slot.Series, decoded, true); err != nil {
				Logger().Warn("series re-attach failed after restore",
					"viewport", slot.ID, "err", err)
			}
		}
	}

	e.mgr.MarkNeedsSync()
	e.sched.RenderSingleFrame()
	if resume {
		e.sched.Start()
	}
	Logger().Info("shared surface restored")
	return nil
}

// Close stops the clock, frees all resident textures and releases the
// backend. Close is idempotent and safe to call from callbacks.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	backend := e.backend
	e.mu.Unlock()

	e.sched.Stop()
	e.cache.Clear()
	e.mgr.Dispose()
	return backend.Close()
}
