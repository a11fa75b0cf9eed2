// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package render holds the shared draw-primitive glue between the
// cineview engine and a concrete rendering backend.
//
// The engine itself never issues GPU commands. A Backend implementation
// owns the shared surface and performs uploads and region-restricted
// draws on the engine's behalf; SoftwareBackend is the bundled
// reference implementation. GPU implementations wrap a DeviceHandle
// from the host application.
package render

import (
	"errors"
	"image"

	"github.com/gogpu/cineview/viewport"
)

// Common errors returned by backends.
var (
	// ErrBackendClosed is returned when operations are attempted on a
	// closed backend.
	ErrBackendClosed = errors.New("render: backend is closed")

	// ErrNoFrames is returned when a series upload carries no frames.
	ErrNoFrames = errors.New("render: series has no frames")

	// ErrFrameSizeMismatch is returned when frames in one series have
	// differing dimensions.
	ErrFrameSizeMismatch = errors.New("render: frame dimensions differ within series")

	// ErrForeignTexture is returned when a texture from a different
	// backend is passed to a draw call.
	ErrForeignTexture = errors.New("render: texture belongs to a different backend")

	// ErrUnsupportedFormat is returned when a backend cannot store the
	// descriptor's texture format.
	ErrUnsupportedFormat = errors.New("render: unsupported texture format")

	// ErrLayerCountMismatch is returned when the number of uploaded
	// frames differs from the descriptor's layer count.
	ErrLayerCountMismatch = errors.New("render: frame count differs from descriptor layers")
)

// FrameTexture is an uploaded frame sequence resident on the backend.
// Destroy frees the underlying resource; it is called by the residency
// cache, which owns every uploaded texture exclusively.
type FrameTexture interface {
	Width() int
	Height() int
	FrameCount() int
	Destroy()
}

// DrawState carries the per-viewport display state a draw call needs
// beyond the frame itself.
type DrawState struct {
	Transform   viewport.Transform
	WindowLevel *viewport.WindowLevel
}

// Backend owns the shared rendering surface and executes uploads and
// draws. Implementations are not required to be safe for concurrent
// draws: all draw calls arrive from the single scheduler tick loop.
// UploadSeries may be called from other goroutines, since decode and
// upload happen out-of-band.
type Backend interface {
	// SurfaceSize returns the shared surface dimensions in device
	// pixels.
	SurfaceSize() (width, height int)

	// UploadSeries uploads an ordered frame sequence described by desc
	// and returns the resident texture. Backends validate the frames
	// against the descriptor's dimensions, layer count and format. The
	// caller passes ownership of the returned texture to the residency
	// cache.
	UploadSeries(desc SeriesTextureDescriptor, frames []*image.RGBA) (FrameTexture, error)

	// DrawFrame draws one frame of a sequence into a region of the
	// shared surface. Effects are restricted to the region; pixels
	// outside it are never touched.
	DrawFrame(tex FrameTexture, frameIndex int, region viewport.Region, state DrawState) error

	// Flush ensures all submitted draws are visible on the surface.
	Flush() error

	// Close releases the backend's resources. Textures uploaded
	// through the backend are owned by the residency cache and are
	// freed separately.
	Close() error
}

// FrameSource supplies decoded frames for a series on demand. The
// engine uses it to re-upload series after the shared surface was lost
// and restored; decoding itself is the collaborator's concern.
type FrameSource interface {
	SeriesFrames(seriesID string) ([]*image.RGBA, error)
}
