// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package viewport

import (
	"sync"

	"github.com/google/uuid"
)

// LayoutProvider reports the current on-screen geometry of viewport
// slots. The host UI layout system implements it; the engine treats it
// as a black box and polls it only during explicit sync calls, never
// per tick.
type LayoutProvider interface {
	// SlotRect returns the current on-screen rectangle for a slot id,
	// or false if the slot has no layout element (e.g. mid-teardown).
	SlotRect(id string) (Rect, bool)

	// DevicePixelRatio returns the current device pixel ratio.
	DevicePixelRatio() float64

	// SurfaceSize returns the shared surface dimensions in device pixels.
	SurfaceSize() (width, height int)
}

// resyncDelayTicks is the number of animation ticks to wait after
// MarkNeedsSync before resampling layout rectangles. Host layout needs
// a couple of frames to settle after a change; resampling earlier reads
// stale geometry and produces visible misalignment. The delay itself is
// an accepted, bounded latency.
const resyncDelayTicks = 2

// slotState is the authoritative, mutable state of one viewport slot.
// It is never exposed outside the manager; callers see Slot snapshots.
type slotState struct {
	id          string
	textureUnit int
	series      *SeriesInfo
	transform   Transform
	windowLevel *WindowLevel
	playback    Playback
	bounds      Rect
	region      Region
}

// Manager owns the authoritative state of all viewport slots and the
// mapping from host layout rectangles to GPU draw regions.
//
// All methods are safe for concurrent use. Mutators with an unknown id
// are silent no-ops: slot teardown races with late UI events are
// expected and must not surface as errors.
type Manager struct {
	mu          sync.Mutex
	layout      LayoutProvider
	maxDPR      float64
	slots       map[string]*slotState
	order       []string // creation order
	resyncTicks int      // pending delayed resync, 0 = none
}

// ManagerOption configures a Manager during creation.
type ManagerOption func(*Manager)

// WithMaxDPR clamps the device pixel ratio used for region mapping.
// Values <= 0 restore the default.
func WithMaxDPR(maxDPR float64) ManagerOption {
	return func(m *Manager) {
		if maxDPR > 0 {
			m.maxDPR = maxDPR
		}
	}
}

// NewManager creates a Manager that polls the given layout provider
// during sync calls.
func NewManager(layout LayoutProvider, opts ...ManagerOption) *Manager {
	m := &Manager{
		layout: layout,
		maxDPR: DefaultMaxDPR,
		slots:  make(map[string]*slotState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateSlots tears down any existing slots and allocates count new
// ones as a single atomic batch. Each slot receives a fresh stable id
// and a distinct texture unit in [0, count). Returned ids are in
// creation order.
func (m *Manager) CreateSlots(count int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slots = make(map[string]*slotState, count)
	m.order = make([]string, 0, count)

	for i := 0; i < count; i++ {
		id := uuid.NewString()
		m.slots[id] = &slotState{
			id:          id,
			textureUnit: i,
			transform:   Identity(),
			playback:    Playback{FPS: 30},
		}
		m.order = append(m.order, id)
	}

	ids := make([]string, len(m.order))
	copy(ids, m.order)
	return ids
}

// SlotCount returns the number of slots.
func (m *Manager) SlotCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// Viewport returns a snapshot of one slot, or false if the id is
// unknown.
func (m *Manager) Viewport(id string) (Slot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok {
		return Slot{}, false
	}
	return s.snapshot(), true
}

// Viewports returns snapshots of all slots in creation order.
func (m *Manager) Viewports() []Slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Slot, 0, len(m.order))
	for _, id := range m.order {
		if s, ok := m.slots[id]; ok {
			out = append(out, s.snapshot())
		}
	}
	return out
}

// snapshot copies the slot state into an immutable Slot value.
// Must be called with m.mu held.
func (s *slotState) snapshot() Slot {
	snap := Slot{
		ID:          s.id,
		TextureUnit: s.textureUnit,
		Transform:   s.transform,
		Playback:    s.playback,
		Bounds:      s.bounds,
		Region:      s.region,
	}
	if s.series != nil {
		series := *s.series
		snap.Series = &series
	}
	if s.windowLevel != nil {
		wl := *s.windowLevel
		snap.WindowLevel = &wl
	}
	return snap
}

// SetSeries attaches series metadata to a slot and resets playback to
// frame 0. Pass keepFrame=true to preserve the current frame, which is
// still clamped into the new series' range.
func (m *Manager) SetSeries(id string, info SeriesInfo, keepFrame bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok {
		return
	}
	series := info
	s.series = &series
	if !keepFrame {
		s.playback.CurrentFrame = 0
	}
	s.playback.CurrentFrame = clampFrame(s.playback.CurrentFrame, info.FrameCount)
}

// SetWindowLevel sets the grayscale window of a slot. Width values
// below 1 are raised to 1 to keep the mapping well defined.
func (m *Manager) SetWindowLevel(id string, wl WindowLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok {
		return
	}
	if wl.Width < 1 {
		wl.Width = 1
	}
	s.windowLevel = &wl
}

// ClearWindowLevel restores identity grayscale mapping on a slot.
func (m *Manager) ClearWindowLevel(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.slots[id]; ok {
		s.windowLevel = nil
	}
}

// SetPan sets the pan offset of a slot in viewport pixels.
func (m *Manager) SetPan(id string, x, y float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.slots[id]; ok {
		s.transform.PanX = x
		s.transform.PanY = y
	}
}

// SetZoom sets the zoom factor of a slot. Non-positive values are
// ignored.
func (m *Manager) SetZoom(id string, zoom float64) {
	if zoom <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.slots[id]; ok {
		s.transform.Zoom = zoom
	}
}

// SetRotation sets the clockwise rotation of a slot in degrees.
func (m *Manager) SetRotation(id string, degrees float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.slots[id]; ok {
		s.transform.RotationDegrees = degrees
	}
}

// SetFlip sets the horizontal and vertical mirror state of a slot.
func (m *Manager) SetFlip(id string, flipH, flipV bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.slots[id]; ok {
		s.transform.FlipH = flipH
		s.transform.FlipV = flipV
	}
}

// SetFrame sets the displayed frame of a slot, clamped to
// [0, FrameCount-1]. A no-op when no series is attached.
func (m *Manager) SetFrame(id string, frame int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok || s.series == nil {
		return
	}
	s.playback.CurrentFrame = clampFrame(frame, s.series.FrameCount)
}

// SetPlaying starts or stops a slot's cine playback.
func (m *Manager) SetPlaying(id string, playing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.slots[id]; ok {
		s.playback.Playing = playing
	}
}

// SetFPS sets a slot's playback rate, clamped to [MinFPS, MaxFPS].
func (m *Manager) SetFPS(id string, fps float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.slots[id]; ok {
		s.playback.FPS = clampFPS(fps)
	}
}

// Reset restores a slot's transform to identity. Playback state and the
// current frame are left untouched. Reset is idempotent.
func (m *Manager) Reset(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.slots[id]; ok {
		s.transform = Identity()
	}
}

// MarkNeedsSync schedules a full re-mapping of slot rectangles after a
// short settle delay. The render scheduler drains the delay via
// StepResync; callers that need an immediate re-mapping use SyncAll.
func (m *Manager) MarkNeedsSync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resyncTicks = resyncDelayTicks
}

// StepResync advances the pending resync delay by one tick and performs
// the deferred SyncAll when the delay expires. It reports whether a
// re-mapping happened. Called by the render scheduler once per tick.
func (m *Manager) StepResync() bool {
	m.mu.Lock()
	if m.resyncTicks == 0 {
		m.mu.Unlock()
		return false
	}
	m.resyncTicks--
	due := m.resyncTicks == 0
	m.mu.Unlock()

	if due {
		m.SyncAll()
	}
	return due
}

// SyncSlot re-polls the layout provider for one slot and recomputes its
// GPU draw region.
func (m *Manager) SyncSlot(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncLocked(id)
}

// SyncAll re-polls the layout provider for every slot and recomputes
// all GPU draw regions.
func (m *Manager) SyncAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		m.syncLocked(id)
	}
}

// syncLocked recomputes one slot's bounds and region.
// Must be called with m.mu held.
func (m *Manager) syncLocked(id string) {
	s, ok := m.slots[id]
	if !ok || m.layout == nil {
		return
	}
	rect, ok := m.layout.SlotRect(id)
	if !ok {
		return
	}
	dpr := m.layout.DevicePixelRatio()
	if m.maxDPR > 0 && dpr > m.maxDPR {
		dpr = m.maxDPR
	}
	_, surfaceH := m.layout.SurfaceSize()

	s.bounds = rect.Scale(dpr)
	s.region = MapRegion(rect, dpr, m.maxDPR, surfaceH)
}

// Dispose releases all slots. Dispose is idempotent; a disposed manager
// behaves like one with zero slots.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = make(map[string]*slotState)
	m.order = nil
	m.resyncTicks = 0
}

func clampFrame(frame, frameCount int) int {
	if frameCount <= 0 {
		return 0
	}
	if frame < 0 {
		return 0
	}
	if frame >= frameCount {
		return frameCount - 1
	}
	return frame
}

func clampFPS(fps float64) float64 {
	if fps < MinFPS {
		return MinFPS
	}
	if fps > MaxFPS {
		return MaxFPS
	}
	return fps
}
