// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package viewport

// SeriesInfo describes a decoded multi-frame image series attached to a
// viewport slot. The engine never decodes pixel data itself; a frame
// source collaborator supplies decoded frames while SeriesInfo carries
// the metadata the engine needs for playback and memory accounting.
type SeriesInfo struct {
	// SeriesID identifies the source series (opaque to the engine).
	SeriesID string

	// ImageWidth and ImageHeight are the per-frame pixel dimensions.
	ImageWidth  int
	ImageHeight int

	// FrameCount is the number of frames in the cine loop. A value of 1
	// denotes a still image.
	FrameCount int

	// BitDepth is the source bits-allocated (8 or 16). Frames are
	// normalized to RGBA8 on upload regardless of source depth.
	BitDepth int

	// IsEncapsulated reports whether the source pixel data used an
	// encapsulated (compressed) transfer syntax. Informational only;
	// decoding happens upstream.
	IsEncapsulated bool
}

// Transform holds the spatial display state of one viewport slot.
type Transform struct {
	// PanX and PanY offset the image from the viewport center, in
	// viewport pixels.
	PanX float64
	PanY float64

	// Zoom is the magnification factor. 1 fits the image to the viewport.
	Zoom float64

	// RotationDegrees rotates the image clockwise around its center.
	RotationDegrees float64

	// FlipH and FlipV mirror the image horizontally / vertically.
	FlipH bool
	FlipV bool
}

// Identity returns the identity transform: no pan, zoom 1, no rotation,
// no flips.
func Identity() Transform {
	return Transform{Zoom: 1}
}

// WindowLevel holds the grayscale mapping window (center/width) applied
// to a slot. A nil WindowLevel on a slot means identity mapping.
type WindowLevel struct {
	Center float64
	Width  float64
}

// Playback holds the cine playback state of one viewport slot.
type Playback struct {
	// CurrentFrame is the frame currently displayed,
	// in [0, FrameCount-1] whenever a series is attached.
	CurrentFrame int

	// FPS is the playback rate in frames per second, in [MinFPS, MaxFPS].
	FPS float64

	// Playing reports whether the slot's cine clock is running.
	Playing bool
}

// Playback rate bounds. Rates outside this range are clamped, never
// rejected.
const (
	MinFPS = 1.0
	MaxFPS = 60.0
)

// Slot is an immutable snapshot of one viewport slot's state. Snapshots
// are returned by value; mutating a Slot has no effect on the manager.
type Slot struct {
	// ID is the stable opaque identifier assigned at creation.
	ID string

	// TextureUnit is the GPU texture binding slot assigned at creation.
	// Units are unique per manager and lie in [0, slot count).
	TextureUnit int

	// Series is the attached series metadata, or nil if none.
	Series *SeriesInfo

	Transform   Transform
	WindowLevel *WindowLevel
	Playback    Playback

	// Bounds is the last synced on-screen rectangle in device pixels
	// (top-left origin, y-down). Updated only by explicit sync calls.
	Bounds Rect

	// Region is the GPU draw region derived from Bounds
	// (bottom-left origin, y-up). Updated only by explicit sync calls.
	Region Region
}

// HasSeries reports whether a series is attached to the slot.
func (s Slot) HasSeries() bool {
	return s.Series != nil
}

// FrameCount returns the attached series' frame count, or 0 if no
// series is attached.
func (s Slot) FrameCount() int {
	if s.Series == nil {
		return 0
	}
	return s.Series.FrameCount
}
