// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/cineview/viewport"
)

// DeviceHandle provides GPU device access from the host application.
//
// The engine RECEIVES the shared device from the host, it does NOT
// create one: a single device and surface serve every viewport slot,
// which is the whole point of multiplexing dozens of logical viewports
// onto a platform that hard-limits native context count.
//
// DeviceHandle is an alias for gpucontext.DeviceProvider, giving the
// interface a cineview-local name while staying fully compatible with
// the gpucontext ecosystem.
type DeviceHandle = gpucontext.DeviceProvider

// FrameFormat is the texture format every frame sequence is normalized
// to on upload, regardless of source bit depth. Memory accounting
// assumes 4 bytes per pixel accordingly.
const FrameFormat = gputypes.TextureFormatRGBA8Unorm

// SeriesTextureDescriptor describes the GPU texture array holding one
// uploaded frame sequence. GPU backends translate it into their native
// texture descriptor; the software backend ignores it.
type SeriesTextureDescriptor struct {
	// Label is an optional debug label, typically the series id.
	Label string

	// Width and Height are the per-frame dimensions in pixels.
	Width  uint32
	Height uint32

	// Layers is the number of array layers, one per frame.
	Layers uint32

	// Format is the texture pixel format.
	Format gputypes.TextureFormat
}

// SeriesDescriptor builds the texture descriptor for a series.
func SeriesDescriptor(info viewport.SeriesInfo) SeriesTextureDescriptor {
	return SeriesTextureDescriptor{
		Label:  info.SeriesID,
		Width:  uint32(info.ImageWidth),
		Height: uint32(info.ImageHeight),
		Layers: uint32(info.FrameCount),
		Format: FrameFormat,
	}
}
