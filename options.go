package cineview

import (
	"github.com/gogpu/cineview/render"
	"github.com/gogpu/cineview/schedule"
	"github.com/gogpu/cineview/texture"
)

// Option configures an Engine during creation.
// Use functional options to customize Engine behavior.
//
// Example:
//
//	// Default configuration
//	eng, err := cineview.New(backend, layout)
//
//	// Custom memory budget and a deterministic clock for tests
//	eng, err := cineview.New(backend, layout,
//	    cineview.WithMemoryBudget(256<<20),
//	    cineview.WithClock(schedule.NewManualClock(time.Now())),
//	)
type Option func(*engineOptions)

// engineOptions holds optional configuration for Engine creation.
type engineOptions struct {
	budgetBytes int64
	maxDPR      float64
	clock       schedule.Clock
	onEvict     texture.EvictionCallback
	frames      render.FrameSource
}

// defaultOptions returns the default engine options.
func defaultOptions() engineOptions {
	return engineOptions{
		budgetBytes: texture.DefaultBudgetBytes,
		maxDPR:      0,   // manager default applies
		clock:       nil, // scheduler creates a 60 Hz TickerClock
	}
}

// WithMemoryBudget bounds the total GPU memory held by resident frame
// sequences, in bytes. A single series larger than the budget is still
// accepted; the budget governs eviction, not admission.
func WithMemoryBudget(bytes int64) Option {
	return func(o *engineOptions) {
		o.budgetBytes = bytes
	}
}

// WithMaxDevicePixelRatio clamps the device pixel ratio used when
// mapping layout rectangles to draw regions. The default clamp is 2.
func WithMaxDevicePixelRatio(maxDPR float64) Option {
	return func(o *engineOptions) {
		o.maxDPR = maxDPR
	}
}

// WithClock injects the animation clock. Use schedule.NewManualClock
// for deterministic tick simulation in tests.
func WithClock(c schedule.Clock) Option {
	return func(o *engineOptions) {
		o.clock = c
	}
}

// WithEvictionCallback installs a diagnostics callback invoked when a
// resident series is evicted under memory pressure.
func WithEvictionCallback(fn texture.EvictionCallback) Option {
	return func(o *engineOptions) {
		o.onEvict = fn
	}
}

// WithFrameSource installs the decoded-frame source used to re-upload
// series after the shared surface was lost and restored. Without one,
// restored viewports stay blank until their series are attached again.
func WithFrameSource(src render.FrameSource) Option {
	return func(o *engineOptions) {
		o.frames = src
	}
}
