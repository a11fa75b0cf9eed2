package schedule

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/cineview/framesync"
	"github.com/gogpu/cineview/texture"
	"github.com/gogpu/cineview/viewport"
)

// fixedLayout reports one shared rectangle for every slot so draw
// regions are never empty.
type fixedLayout struct{}

func (fixedLayout) SlotRect(string) (viewport.Rect, bool) {
	return viewport.Rect{Left: 0, Top: 0, Width: 100, Height: 100}, true
}
func (fixedLayout) DevicePixelRatio() float64 { return 1 }
func (fixedLayout) SurfaceSize() (int, int)   { return 100, 100 }

// drawRecorder records render callback invocations.
type drawRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *drawRecorder) record(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, id)
}

func (r *drawRecorder) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == id {
			n++
		}
	}
	return n
}

type fakeTexture struct{}

func (fakeTexture) Destroy() {}

func residentEntry(series string) texture.Entry {
	return texture.Entry{Texture: fakeTexture{}, SeriesID: series, Width: 8, Height: 8, FrameCount: 4}
}

// testRig bundles a scheduler with its collaborators and a manual
// clock.
type testRig struct {
	mgr   *viewport.Manager
	cache *texture.ResidencyCache
	sync  *framesync.Engine
	sched *Scheduler
	clock *ManualClock
	ids   []string
}

func newRig(t *testing.T, frameCounts ...int) *testRig {
	t.Helper()
	mgr := viewport.NewManager(fixedLayout{})
	ids := mgr.CreateSlots(len(frameCounts))
	for i, fc := range frameCounts {
		if fc > 0 {
			mgr.SetSeries(ids[i], viewport.SeriesInfo{
				SeriesID:    "series",
				ImageWidth:  8,
				ImageHeight: 8,
				FrameCount:  fc,
			}, false)
		}
	}
	mgr.SyncAll()

	cache := texture.NewResidencyCache(1<<20, nil)
	syncEng := framesync.NewEngine(mgr)
	clock := NewManualClock(time.Unix(1000, 0))
	sched := NewScheduler(mgr, cache, syncEng, clock)
	return &testRig{mgr: mgr, cache: cache, sync: syncEng, sched: sched, clock: clock, ids: ids}
}

func (r *testRig) frame(t *testing.T, id string) int {
	t.Helper()
	slot, ok := r.mgr.Viewport(id)
	if !ok {
		t.Fatalf("viewport %s not found", id)
	}
	return slot.Playback.CurrentFrame
}

func TestPlaybackAdvances30FramesPerSecond(t *testing.T) {
	rig := newRig(t, 100, 100, 100, 100)
	id0 := rig.ids[0]
	rig.mgr.SetFPS(id0, 30)
	rig.mgr.SetPlaying(id0, true)
	rig.sched.Start()

	// First tick establishes the playback origin; the following ticks
	// cover exactly 1000ms.
	rig.clock.Advance(10*time.Millisecond, 101)

	if got := rig.frame(t, id0); got != 30 {
		t.Errorf("frame after 1000ms at 30fps = %d, want 30", got)
	}
	for _, id := range rig.ids[1:] {
		if got := rig.frame(t, id); got != 0 {
			t.Errorf("non-playing viewport advanced to frame %d", got)
		}
	}
}

func TestPlaybackWrapsModuloFrameCount(t *testing.T) {
	rig := newRig(t, 10)
	id := rig.ids[0]
	rig.mgr.SetFPS(id, 30)
	rig.mgr.SetPlaying(id, true)
	rig.sched.Start()

	rig.clock.Advance(10*time.Millisecond, 101) // 30 advances over 10 frames

	if got := rig.frame(t, id); got != 0 {
		t.Errorf("frame = %d, want 0 (30 mod 10)", got)
	}
}

func TestPlaybackNoDriftUnderIrregularTicks(t *testing.T) {
	rig := newRig(t, 1000)
	id := rig.ids[0]
	rig.mgr.SetFPS(id, 30)
	rig.mgr.SetPlaying(id, true)
	rig.sched.Start()

	// Establish origin, then deliver irregular ticks covering exactly
	// one second: the consumed-interval carry must still yield 30.
	rig.clock.Advance(time.Millisecond, 1)
	for _, step := range []time.Duration{
		7 * time.Millisecond, 150 * time.Millisecond, 3 * time.Millisecond,
		240 * time.Millisecond, 100 * time.Millisecond, 450 * time.Millisecond,
		50 * time.Millisecond,
	} {
		rig.clock.Advance(step, 1)
	}

	if got := rig.frame(t, id); got != 30 {
		t.Errorf("frame after irregular 1000ms = %d, want 30", got)
	}
}

func TestPauseDropsClockOrigin(t *testing.T) {
	rig := newRig(t, 100)
	id := rig.ids[0]
	rig.mgr.SetFPS(id, 30)
	rig.mgr.SetPlaying(id, true)
	rig.sched.Start()

	rig.clock.Advance(10*time.Millisecond, 34) // ~10 frames

	rig.mgr.SetPlaying(id, false)
	rig.clock.Advance(time.Second, 5) // long pause
	paused := rig.frame(t, id)

	rig.mgr.SetPlaying(id, true)
	rig.clock.Advance(10*time.Millisecond, 1) // re-establish origin only

	if got := rig.frame(t, id); got != paused {
		t.Errorf("frame jumped from %d to %d on resume; pause gap must not replay", paused, got)
	}
}

func TestSyncPropagationWithinTick(t *testing.T) {
	rig := newRig(t, 100, 50)
	master, slave := rig.ids[0], rig.ids[1]
	rig.sync.CreateGroup(framesync.Group{
		MasterID: master,
		SlaveIDs: []string{slave},
		Mode:     framesync.ModeFrameRatio,
	})
	rig.mgr.SetFPS(master, 50)
	rig.mgr.SetPlaying(master, true)
	rig.mgr.SetFPS(slave, 10)
	rig.mgr.SetPlaying(slave, true)
	rig.sched.Start()

	// Origin tick plus 1000ms at 50fps: master lands on frame 50.
	rig.clock.Advance(20*time.Millisecond, 51)

	if got := rig.frame(t, master); got != 50 {
		t.Fatalf("master frame = %d, want 50", got)
	}
	if got := rig.frame(t, slave); got != 25 {
		t.Errorf("slave frame = %d, want round(50/99*49) = 25", got)
	}
}

func TestFrameRatioSlaveDoesNotSelfAdvance(t *testing.T) {
	rig := newRig(t, 100, 50)
	master, slave := rig.ids[0], rig.ids[1]
	rig.sync.CreateGroup(framesync.Group{
		MasterID: master,
		SlaveIDs: []string{slave},
		Mode:     framesync.ModeFrameRatio,
	})
	// Only the slave plays; the master is paused, so nothing may move.
	rig.mgr.SetFPS(slave, 60)
	rig.mgr.SetPlaying(slave, true)
	rig.sched.Start()

	rig.clock.Advance(10*time.Millisecond, 101)

	if got := rig.frame(t, slave); got != 0 {
		t.Errorf("FrameRatio slave self-advanced to frame %d", got)
	}
}

func TestNonResidentViewportSkipped(t *testing.T) {
	rig := newRig(t, 10, 10)
	rec := &drawRecorder{}
	rig.sched.SetRenderCallback(func(id string, frame int, region viewport.Region) error {
		rec.record(id)
		return nil
	})
	rig.cache.Set(rig.ids[1], residentEntry("s1"))
	rig.sched.Start()

	rig.clock.Advance(10*time.Millisecond, 3)

	if got := rec.count(rig.ids[0]); got != 0 {
		t.Errorf("non-resident viewport drawn %d times, want 0", got)
	}
	if got := rec.count(rig.ids[1]); got == 0 {
		t.Error("resident viewport was never drawn")
	}
}

func TestDrawFailureIsolated(t *testing.T) {
	rig := newRig(t, 10, 10, 10)
	rec := &drawRecorder{}
	rig.sched.SetRenderCallback(func(id string, frame int, region viewport.Region) error {
		switch id {
		case rig.ids[0]:
			panic("boom")
		case rig.ids[1]:
			return errors.New("draw failed")
		default:
			rec.record(id)
			return nil
		}
	})
	for _, id := range rig.ids {
		rig.cache.Set(id, residentEntry("s"))
	}
	rig.sched.Start()

	rig.clock.Advance(10*time.Millisecond, 2)

	if got := rec.count(rig.ids[2]); got != 2 {
		t.Errorf("healthy viewport drawn %d times, want 2; failures must not abort the tick", got)
	}
}

func TestRenderSingleFrameDoesNotAdvance(t *testing.T) {
	rig := newRig(t, 100)
	id := rig.ids[0]
	rig.mgr.SetPlaying(id, true)
	rig.mgr.SetFrame(id, 5)
	rec := &drawRecorder{}
	rig.sched.SetRenderCallback(func(vid string, frame int, region viewport.Region) error {
		if frame != 5 {
			t.Errorf("drew frame %d, want current frame 5", frame)
		}
		rec.record(vid)
		return nil
	})
	rig.cache.Set(id, residentEntry("s"))

	// Clock never started: a forced render must still draw.
	rig.sched.RenderSingleFrame()

	if got := rec.count(id); got != 1 {
		t.Errorf("draws = %d, want 1", got)
	}
	if got := rig.frame(t, id); got != 5 {
		t.Errorf("frame = %d after RenderSingleFrame, want unchanged 5", got)
	}
}

func TestStopFromRenderCallback(t *testing.T) {
	rig := newRig(t, 10)
	id := rig.ids[0]
	rec := &drawRecorder{}
	rig.sched.SetRenderCallback(func(vid string, frame int, region viewport.Region) error {
		rec.record(vid)
		rig.sched.Stop() // re-entrant stop must be safe
		return nil
	})
	rig.cache.Set(id, residentEntry("s"))
	rig.sched.Start()

	rig.clock.Advance(10*time.Millisecond, 5)

	if got := rec.count(id); got != 1 {
		t.Errorf("draws = %d, want 1: ticks after Stop must be ignored", got)
	}
	if rig.sched.Running() {
		t.Error("scheduler still running after Stop")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	rig := newRig(t, 10)

	rig.sched.Start()
	rig.sched.Start()
	if !rig.sched.Running() {
		t.Error("scheduler not running after Start")
	}

	rig.sched.Stop()
	rig.sched.Stop()
	if rig.sched.Running() {
		t.Error("scheduler running after Stop")
	}
}

func TestDeferredResyncRunsOnTicks(t *testing.T) {
	rig := newRig(t, 10)
	id := rig.ids[0]

	// Wipe the synced region, then request a deferred resync.
	rig.mgr.Dispose()
	rig.ids = rig.mgr.CreateSlots(1)
	id = rig.ids[0]
	rig.mgr.MarkNeedsSync()
	rig.sched.Start()

	rig.clock.Advance(10*time.Millisecond, 1)
	slot, _ := rig.mgr.Viewport(id)
	if !slot.Region.Empty() {
		t.Fatal("region mapped before the settle delay expired")
	}

	rig.clock.Advance(10*time.Millisecond, 1)
	slot, _ = rig.mgr.Viewport(id)
	if slot.Region.Empty() {
		t.Error("region not mapped after the two-tick settle delay")
	}
}

func TestStartResetsStats(t *testing.T) {
	rig := newRig(t, 10)
	rig.sched.Start()
	rig.clock.Advance(10*time.Millisecond, 5)
	rig.sched.Stop()

	// Restarting clears the previous run's timings and keeps recording.
	rig.sched.Start()
	if got := rig.sched.Stats().Ticks; got != 0 {
		t.Errorf("Ticks after restart = %d, want 0", got)
	}
	rig.clock.Advance(10*time.Millisecond, 3)
	if got := rig.sched.Stats().Ticks; got != 3 {
		t.Errorf("Ticks = %d, want 3", got)
	}
}

func TestStatsAfterTicks(t *testing.T) {
	rig := newRig(t, 10)
	rig.sched.Start()

	rig.clock.Advance(10*time.Millisecond, 20)

	s := rig.sched.Stats()
	if s.Ticks != 20 {
		t.Errorf("Ticks = %d, want 20", s.Ticks)
	}
	if s.FrameTimeMs < 0 {
		t.Errorf("FrameTimeMs = %v, want >= 0", s.FrameTimeMs)
	}
}
