// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package schedule drives cine playback for every viewport slot from a
// single shared animation clock.
//
// One tick loop serves all viewports cooperatively: each tick first
// resolves every due frame advance (including sync-group propagation),
// then issues region-restricted draws through an injected callback.
// The scheduler owns orchestration only; it holds no drawing logic and
// never touches GPU state itself.
package schedule

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/cineview/framesync"
	"github.com/gogpu/cineview/texture"
	"github.com/gogpu/cineview/viewport"
)

// RenderFunc draws one viewport's current frame into its region of the
// shared surface. The scheduler guarantees the texture for viewportID
// was resident when the call was issued. A returned error (or a panic)
// aborts only that viewport's draw, never the tick.
type RenderFunc func(viewportID string, frameIndex int, region viewport.Region) error

// FrameUpdateFunc is notified after a viewport's frame position changed
// during a tick, before any draw of that tick is issued.
type FrameUpdateFunc func(viewportID string, frameIndex int)

// frameChange records one frame-position change resolved during a tick.
type frameChange struct {
	id    string
	frame int
}

// Scheduler owns the shared animation clock and orchestrates per-tick
// frame advancement, sync propagation, residency lookups and draw
// delegation for all viewport slots.
//
// Dependencies are one-directional: the scheduler holds references to
// the viewport manager, the residency cache and the sync engine; none
// of them refer back to the scheduler.
type Scheduler struct {
	mgr     *viewport.Manager
	cache   *texture.ResidencyCache
	syncEng *framesync.Engine // may be nil
	clock   Clock
	logger  atomic.Pointer[slog.Logger]

	mu          sync.Mutex
	render      RenderFunc
	frameUpdate FrameUpdateFunc
	lastTick    map[string]time.Time // per-viewport playback clock origin
	running     bool

	stats statsRecorder
}

// NewScheduler creates a scheduler over the given collaborators. The
// sync engine may be nil when no synchronization is used. A nil clock
// falls back to a 60 Hz TickerClock.
func NewScheduler(mgr *viewport.Manager, cache *texture.ResidencyCache, syncEng *framesync.Engine, clock Clock) *Scheduler {
	if clock == nil {
		clock = NewTickerClock(DefaultTickInterval)
	}
	s := &Scheduler{
		mgr:      mgr,
		cache:    cache,
		syncEng:  syncEng,
		clock:    clock,
		lastTick: make(map[string]time.Time),
	}
	s.logger.Store(slog.New(slog.DiscardHandler))
	return s
}

// SetLogger configures the scheduler's logger. Pass nil to silence it.
func (s *Scheduler) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	s.logger.Store(l)
}

// SetRenderCallback installs the draw delegate. Without one, ticks
// still advance frames but issue no draws.
func (s *Scheduler) SetRenderCallback(fn RenderFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.render = fn
}

// SetFrameUpdateCallback installs the frame-change notification
// delegate.
func (s *Scheduler) SetFrameUpdateCallback(fn FrameUpdateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameUpdate = fn
}

// Start begins the shared animation clock. Starting a running
// scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.lastTick = make(map[string]time.Time)
	s.mu.Unlock()

	s.stats.reset()
	s.clock.Start(s.Tick)
}

// Stop halts the shared animation clock. Stop is idempotent and safe
// to call from within a render or frame-update callback.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.clock.Stop()
}

// Running reports whether the clock is running.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Tick runs one full scheduling pass at the given time: deferred layout
// resync, frame advancement for every due viewport, sync-group
// propagation, then draws. It is normally invoked by the clock; tests
// drive it through a ManualClock.
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	start := time.Now()

	s.mgr.StepResync()
	changes := s.advance(now)
	s.notifyFrameUpdates(changes)
	s.draw()

	s.stats.record(start, time.Since(start))
}

// advance resolves every due frame advance, including sync-group
// propagation, and returns the resolved changes. All advancement
// completes before any draw so a master's new position is visible to
// its slaves within the same tick.
func (s *Scheduler) advance(now time.Time) []frameChange {
	var changes []frameChange
	var masterAdvance *frameChange
	var masterTotal int

	var group framesync.Group
	var hasGroup bool
	if s.syncEng != nil {
		group, hasGroup = s.syncEng.ActiveGroup()
	}

	for _, slot := range s.mgr.Viewports() {
		if !slot.Playback.Playing || slot.FrameCount() <= 0 {
			// Paused slots drop their clock origin so resuming does
			// not replay the pause gap as frame advances.
			s.forgetTick(slot.ID)
			continue
		}
		if s.syncEng != nil && s.syncEng.IsSlave(slot.ID) {
			// FrameRatio slaves never self-advance; the master owns
			// their frame position.
			s.forgetTick(slot.ID)
			continue
		}

		n := s.dueFrames(slot.ID, slot.Playback.FPS, now)
		if n == 0 {
			continue
		}
		frame := (slot.Playback.CurrentFrame + n) % slot.FrameCount()
		s.mgr.SetFrame(slot.ID, frame)
		changes = append(changes, frameChange{id: slot.ID, frame: frame})

		if hasGroup && slot.ID == group.MasterID {
			masterAdvance = &frameChange{id: slot.ID, frame: frame}
			masterTotal = slot.FrameCount()
		}
	}

	if masterAdvance != nil {
		changes = append(changes, s.propagateSync(group, masterAdvance.frame, masterTotal)...)
	}
	return changes
}

// dueFrames returns how many frames a playing viewport should advance
// at time now, consuming whole playback intervals from its clock
// origin. The origin advances by the consumed interval rather than
// snapping to now, so irregular tick timing never accumulates drift.
func (s *Scheduler) dueFrames(id string, fps float64, now time.Time) int {
	if fps <= 0 {
		fps = viewport.MinFPS
	}
	interval := time.Duration(float64(time.Second) / fps)

	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.lastTick[id]
	if !ok {
		// First tick after playback started: establish the origin.
		s.lastTick[id] = now
		return 0
	}

	elapsed := now.Sub(last)
	if elapsed < interval {
		return 0
	}
	n := int(elapsed / interval)
	s.lastTick[id] = last.Add(time.Duration(n) * interval)
	return n
}

// forgetTick drops a viewport's playback clock origin.
func (s *Scheduler) forgetTick(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastTick, id)
}

// propagateSync recomputes slave frame positions after a master
// advance and returns the changes it caused.
func (s *Scheduler) propagateSync(group framesync.Group, masterFrame, masterTotal int) []frameChange {
	before := make(map[string]int, len(group.SlaveIDs))
	for _, id := range group.SlaveIDs {
		if slot, ok := s.mgr.Viewport(id); ok {
			before[id] = slot.Playback.CurrentFrame
		}
	}

	s.syncEng.OnMasterFrameAdvanced(masterFrame, masterTotal)

	var changes []frameChange
	for _, id := range group.SlaveIDs {
		slot, ok := s.mgr.Viewport(id)
		if !ok {
			continue
		}
		if prev, seen := before[id]; seen && prev != slot.Playback.CurrentFrame {
			changes = append(changes, frameChange{id: id, frame: slot.Playback.CurrentFrame})
		}
	}
	return changes
}

// notifyFrameUpdates delivers frame-change notifications resolved this
// tick.
func (s *Scheduler) notifyFrameUpdates(changes []frameChange) {
	s.mu.Lock()
	fn := s.frameUpdate
	s.mu.Unlock()

	if fn == nil {
		return
	}
	for _, ch := range changes {
		fn(ch.id, ch.frame)
	}
}

// draw issues one region-restricted draw per viewport whose texture is
// resident. Non-resident viewports are skipped and retried next tick;
// a failing or panicking draw is contained to its own viewport.
func (s *Scheduler) draw() {
	s.mu.Lock()
	render := s.render
	s.mu.Unlock()

	if render == nil {
		return
	}

	for _, slot := range s.mgr.Viewports() {
		if !slot.HasSeries() || slot.Region.Empty() {
			continue
		}
		if _, ok := s.cache.Get(slot.ID); !ok {
			// Not resident yet: upload happens out-of-band, retry next
			// tick. The viewport keeps its last drawn content.
			s.logger.Load().Debug("texture not resident, skipping viewport",
				"viewport", slot.ID)
			continue
		}
		s.drawOne(render, slot.ID, slot.Playback.CurrentFrame, slot.Region)
	}
}

// drawOne invokes the render delegate for a single viewport, containing
// errors and panics to that viewport.
func (s *Scheduler) drawOne(render RenderFunc, id string, frame int, region viewport.Region) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Load().Warn("draw callback panicked",
				"viewport", id, "panic", r)
		}
	}()

	if err := render(id, frame, region); err != nil {
		s.logger.Load().Warn("draw failed", "viewport", id, "err", err)
	}
}

// RenderSingleFrame forces one full draw pass without advancing any
// frame position. Call it after a property mutation so the change
// becomes visible immediately, without waiting for the next due tick.
// It works whether or not the clock is running.
func (s *Scheduler) RenderSingleFrame() {
	s.draw()
}

// Stats returns smoothed tick statistics. It never blocks the tick
// loop.
func (s *Scheduler) Stats() Stats {
	return s.stats.snapshot()
}
