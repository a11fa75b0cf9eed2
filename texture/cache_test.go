package texture

import (
	"testing"
)

// fakeTexture counts Destroy calls.
type fakeTexture struct {
	destroyed int
}

func (f *fakeTexture) Destroy() { f.destroyed++ }

// entryOfSize builds an Entry whose accounted size is exactly
// width*height*frames*4 bytes.
func entryOfSize(series string, width, height, frames int) (Entry, *fakeTexture) {
	tex := &fakeTexture{}
	return Entry{
		Texture:    tex,
		SeriesID:   series,
		Width:      width,
		Height:     height,
		FrameCount: frames,
	}, tex
}

func TestVRAMSizeBytes(t *testing.T) {
	tests := []struct {
		name                 string
		width, height, count int
		want                 int64
	}{
		{"single frame", 100, 100, 1, 40000},
		{"cine loop", 640, 480, 60, 640 * 480 * 60 * 4},
		{"zero frames", 100, 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VRAMSizeBytes(tt.width, tt.height, tt.count); got != tt.want {
				t.Errorf("VRAMSizeBytes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewResidencyCacheDefaults(t *testing.T) {
	c := NewResidencyCache(0, nil)
	if c.Budget() != DefaultBudgetBytes {
		t.Errorf("Budget() = %d, want default %d", c.Budget(), DefaultBudgetBytes)
	}
	c = NewResidencyCache(-1, nil)
	if c.Budget() != DefaultBudgetBytes {
		t.Errorf("Budget() = %d, want default %d", c.Budget(), DefaultBudgetBytes)
	}
}

func TestGetMiss(t *testing.T) {
	c := NewResidencyCache(1<<20, nil)
	if _, ok := c.Get("absent"); ok {
		t.Error("Get returned true for absent entry")
	}
	if s := c.Stats(); s.Misses != 1 {
		t.Errorf("Misses = %d, want 1", s.Misses)
	}
}

func TestSetGet(t *testing.T) {
	c := NewResidencyCache(1<<20, nil)
	entry, _ := entryOfSize("s1", 10, 10, 2)
	c.Set("vp1", entry)

	got, ok := c.Get("vp1")
	if !ok {
		t.Fatal("Get returned false for resident entry")
	}
	if got.SeriesID != "s1" || got.FrameCount != 2 {
		t.Errorf("Get returned %+v", got)
	}
	if c.Size() != entry.SizeBytes() {
		t.Errorf("Size() = %d, want %d", c.Size(), entry.SizeBytes())
	}
}

func TestLRUEvictionOrder(t *testing.T) {
	// Budget fits exactly two 100x100x1 entries (40000 bytes each).
	var evicted []string
	c := NewResidencyCache(80000, func(id string, meta EvictedMeta) {
		evicted = append(evicted, id)
	})

	a, _ := entryOfSize("sa", 100, 100, 1)
	b, texB := entryOfSize("sb", 100, 100, 1)
	cc, _ := entryOfSize("sc", 100, 100, 1)

	c.Set("A", a)
	c.Set("B", b)

	// Recency order after these gets: A most recent, then B.
	c.Get("A")
	c.Get("B")
	c.Get("A")

	c.Set("C", cc)

	if len(evicted) != 1 || evicted[0] != "B" {
		t.Fatalf("evicted = %v, want [B]", evicted)
	}
	if texB.destroyed != 1 {
		t.Errorf("evicted texture destroyed %d times, want 1", texB.destroyed)
	}
	if !c.Has("A") || !c.Has("C") {
		t.Error("A and C should remain resident")
	}
	if c.Size() > c.Budget() {
		t.Errorf("Size() = %d exceeds budget %d", c.Size(), c.Budget())
	}
}

func TestEvictionMetadata(t *testing.T) {
	var gotID string
	var gotMeta EvictedMeta
	c := NewResidencyCache(40000, func(id string, meta EvictedMeta) {
		gotID = id
		gotMeta = meta
	})

	a, _ := entryOfSize("sa", 100, 100, 1)
	b, _ := entryOfSize("sb", 100, 100, 1)
	c.Set("A", a)
	c.Set("B", b)

	if gotID != "A" {
		t.Fatalf("evicted id = %q, want A", gotID)
	}
	want := EvictedMeta{SeriesID: "sa", Width: 100, Height: 100, FrameCount: 1, SizeBytes: 40000}
	if gotMeta != want {
		t.Errorf("meta = %+v, want %+v", gotMeta, want)
	}
}

func TestOversizedEntryAccepted(t *testing.T) {
	calls := 0
	c := NewResidencyCache(1000, func(string, EvictedMeta) { calls++ })

	// 40000 bytes against a 1000 byte budget.
	big, tex := entryOfSize("huge", 100, 100, 1)
	c.Set("A", big)

	if !c.Has("A") {
		t.Fatal("oversized entry was rejected")
	}
	if calls != 0 {
		t.Errorf("eviction callback fired %d times on empty cache, want 0", calls)
	}
	if tex.destroyed != 0 {
		t.Error("oversized entry's texture was destroyed")
	}
	if got := c.VRAMUsageMB(); got != 0.04 {
		t.Errorf("VRAMUsageMB() = %v, want 0.04", got)
	}
	if s := c.Stats(); !s.OverBudget {
		t.Error("Stats().OverBudget = false, want true")
	}
}

func TestOversizedEntryEvictsOthers(t *testing.T) {
	var evicted []string
	c := NewResidencyCache(80000, func(id string, _ EvictedMeta) {
		evicted = append(evicted, id)
	})

	a, _ := entryOfSize("sa", 100, 100, 1)
	b, _ := entryOfSize("sb", 100, 100, 1)
	c.Set("A", a)
	c.Set("B", b)

	big, _ := entryOfSize("huge", 200, 200, 1) // 160000 bytes
	c.Set("C", big)

	if c.EntryCount() != 1 || !c.Has("C") {
		t.Fatalf("want only the oversized entry resident, have %d entries", c.EntryCount())
	}
	if len(evicted) != 2 {
		t.Errorf("evicted = %v, want both prior entries", evicted)
	}
}

func TestReplaceFreesPrior(t *testing.T) {
	calls := 0
	c := NewResidencyCache(1<<20, func(string, EvictedMeta) { calls++ })

	first, tex1 := entryOfSize("s1", 10, 10, 1)
	second, tex2 := entryOfSize("s2", 20, 20, 1)

	c.Set("vp", first)
	c.Set("vp", second)

	if tex1.destroyed != 1 {
		t.Errorf("replaced texture destroyed %d times, want 1", tex1.destroyed)
	}
	if tex2.destroyed != 0 {
		t.Error("new texture was destroyed")
	}
	if calls != 0 {
		t.Errorf("replacement fired eviction callback %d times, want 0", calls)
	}
	if c.Size() != second.SizeBytes() {
		t.Errorf("Size() = %d, want %d", c.Size(), second.SizeBytes())
	}
}

func TestDeleteAndDispose(t *testing.T) {
	c := NewResidencyCache(1<<20, nil)
	entry, tex := entryOfSize("s1", 10, 10, 1)
	c.Set("vp", entry)

	c.DeleteAndDispose("vp")
	if c.Has("vp") {
		t.Error("entry still resident after DeleteAndDispose")
	}
	if tex.destroyed != 1 {
		t.Errorf("texture destroyed %d times, want 1", tex.destroyed)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}

	c.DeleteAndDispose("vp") // unknown id: no-op
}

func TestClear(t *testing.T) {
	c := NewResidencyCache(1<<20, nil)
	a, texA := entryOfSize("sa", 10, 10, 1)
	b, texB := entryOfSize("sb", 10, 10, 1)
	c.Set("A", a)
	c.Set("B", b)

	c.Clear()
	if c.EntryCount() != 0 || c.Size() != 0 {
		t.Errorf("cache not empty after Clear: %d entries, %d bytes", c.EntryCount(), c.Size())
	}
	if texA.destroyed != 1 || texB.destroyed != 1 {
		t.Error("Clear did not destroy resident textures")
	}
}

func TestClearWithoutDispose(t *testing.T) {
	c := NewResidencyCache(1<<20, nil)
	a, texA := entryOfSize("sa", 10, 10, 1)
	c.Set("A", a)

	c.ClearWithoutDispose()
	if c.EntryCount() != 0 || c.Size() != 0 {
		t.Error("bookkeeping not dropped by ClearWithoutDispose")
	}
	if texA.destroyed != 0 {
		t.Error("ClearWithoutDispose must not destroy textures; handles are already invalid")
	}
}

func TestBudgetInvariant(t *testing.T) {
	c := NewResidencyCache(100000, nil)

	// A mixed workload must never leave the cache over budget with more
	// than one entry resident.
	sizes := []struct {
		id                   string
		width, height, count int
	}{
		{"a", 100, 100, 1},
		{"b", 100, 100, 2},
		{"c", 50, 50, 4},
		{"d", 100, 100, 1},
		{"e", 200, 200, 1}, // oversized: 160000 bytes
		{"f", 100, 100, 1},
	}
	for _, s := range sizes {
		entry, _ := entryOfSize("series-"+s.id, s.width, s.height, s.count)
		c.Set(s.id, entry)
		if c.Size() > c.Budget() && c.EntryCount() != 1 {
			t.Fatalf("after Set(%s): %d bytes over budget with %d entries",
				s.id, c.Size(), c.EntryCount())
		}
	}
}

func TestEvictionCallbackMayReenter(t *testing.T) {
	// Callbacks run outside the cache lock: calling back into the cache
	// must not deadlock.
	var c *ResidencyCache
	c = NewResidencyCache(40000, func(id string, _ EvictedMeta) {
		c.Stats()
		c.Has(id)
	})

	a, _ := entryOfSize("sa", 100, 100, 1)
	b, _ := entryOfSize("sb", 100, 100, 1)
	c.Set("A", a)
	c.Set("B", b)

	if !c.Has("B") {
		t.Error("newest entry not resident")
	}
}
