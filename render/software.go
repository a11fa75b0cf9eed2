// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/gogpu/cineview/viewport"
)

// SoftwareBackend renders frame sequences into a CPU-backed RGBA
// surface. It implements the full Backend contract, including region
// clipping and the viewport transform, and is used headless, in tests
// and as the fallback when no GPU device is available.
type SoftwareBackend struct {
	mu      sync.Mutex
	surface *image.RGBA
	closed  bool
}

// NewSoftwareBackend creates a software backend with a surface of the
// given size in device pixels.
func NewSoftwareBackend(width, height int) (*SoftwareBackend, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("render: invalid surface size %dx%d", width, height)
	}
	return &SoftwareBackend{
		surface: image.NewRGBA(image.Rect(0, 0, width, height)),
	}, nil
}

// SurfaceSize returns the surface dimensions in device pixels.
func (b *SoftwareBackend) SurfaceSize() (int, int) {
	r := b.surface.Bounds()
	return r.Dx(), r.Dy()
}

// Surface returns the backing image for readback. The returned image
// is live; read it only while no draws are in flight.
func (b *SoftwareBackend) Surface() *image.RGBA {
	return b.surface
}

// softwareTexture is a frame sequence kept in CPU memory.
type softwareTexture struct {
	frames    []*image.RGBA
	width     int
	height    int
	destroyed bool
}

func (t *softwareTexture) Width() int      { return t.width }
func (t *softwareTexture) Height() int     { return t.height }
func (t *softwareTexture) FrameCount() int { return len(t.frames) }

func (t *softwareTexture) Destroy() {
	t.frames = nil
	t.destroyed = true
}

// UploadSeries copies the frame sequence into backend-owned storage.
// Frames are validated against the descriptor: every frame must match
// its dimensions, the frame count must match its layer count, and the
// format must be the RGBA8 this backend stores.
func (b *SoftwareBackend) UploadSeries(desc SeriesTextureDescriptor, frames []*image.RGBA) (FrameTexture, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, ErrBackendClosed
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: series %q", ErrNoFrames, desc.Label)
	}
	if desc.Format != FrameFormat {
		return nil, fmt.Errorf("%w: series %q format %v", ErrUnsupportedFormat, desc.Label, desc.Format)
	}
	if desc.Layers > 0 && int(desc.Layers) != len(frames) {
		return nil, fmt.Errorf("%w: series %q has %d frames, descriptor declares %d",
			ErrLayerCountMismatch, desc.Label, len(frames), desc.Layers)
	}

	w := int(desc.Width)
	h := int(desc.Height)
	if w <= 0 || h <= 0 {
		w = frames[0].Bounds().Dx()
		h = frames[0].Bounds().Dy()
	}
	owned := make([]*image.RGBA, len(frames))
	for i, f := range frames {
		if f.Bounds().Dx() != w || f.Bounds().Dy() != h {
			return nil, fmt.Errorf("%w: series %q frame %d", ErrFrameSizeMismatch, desc.Label, i)
		}
		cp := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.Copy(cp, image.Point{}, f, f.Bounds(), xdraw.Src, nil)
		owned[i] = cp
	}

	return &softwareTexture{frames: owned, width: w, height: h}, nil
}

// DrawFrame draws one frame into a region of the surface, applying the
// viewport transform and optional window/level. The region is cleared
// to black first; pixels outside it are never touched.
func (b *SoftwareBackend) DrawFrame(tex FrameTexture, frameIndex int, region viewport.Region, state DrawState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBackendClosed
	}
	st, ok := tex.(*softwareTexture)
	if !ok {
		return ErrForeignTexture
	}
	if st.destroyed || len(st.frames) == 0 {
		return fmt.Errorf("render: draw on destroyed texture")
	}
	if region.Empty() {
		return nil
	}

	if frameIndex < 0 {
		frameIndex = 0
	}
	if frameIndex >= len(st.frames) {
		frameIndex = len(st.frames) - 1
	}
	src := st.frames[frameIndex]
	if state.WindowLevel != nil {
		src = applyWindowLevel(src, *state.WindowLevel)
	}

	// GPU regions are y-up from the bottom-left; image space is y-down
	// from the top-left.
	_, surfaceH := b.SurfaceSize()
	dstRect := image.Rect(
		region.X,
		surfaceH-(region.Y+region.Height),
		region.X+region.Width,
		surfaceH-region.Y,
	).Intersect(b.surface.Bounds())
	if dstRect.Empty() {
		return nil
	}
	dst := b.surface.SubImage(dstRect).(*image.RGBA)

	// Clear the region so stale content from a previous layout or a
	// larger previous frame never bleeds through.
	xdraw.Draw(dst, dstRect, image.NewUniform(color.Black), image.Point{}, xdraw.Src)

	m := frameMatrix(src.Bounds(), dstRect, state.Transform)
	xdraw.ApproxBiLinear.Transform(dst, m, src, src.Bounds(), xdraw.Over, nil)
	return nil
}

// frameMatrix builds the source-to-destination affine matrix for one
// draw: fit the frame into the region, then apply zoom, rotation,
// flips and pan around the region center.
func frameMatrix(src image.Rectangle, dst image.Rectangle, t viewport.Transform) f64.Aff3 {
	sw := float64(src.Dx())
	sh := float64(src.Dy())
	dw := float64(dst.Dx())
	dh := float64(dst.Dy())

	zoom := t.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	fit := math.Min(dw/sw, dh/sh) * zoom

	sx := fit
	sy := fit
	if t.FlipH {
		sx = -sx
	}
	if t.FlipV {
		sy = -sy
	}

	theta := t.RotationDegrees * math.Pi / 180
	cos := math.Cos(theta)
	sin := math.Sin(theta)

	cx := float64(dst.Min.X) + dw/2 + t.PanX
	cy := float64(dst.Min.Y) + dh/2 + t.PanY

	a := cos * sx
	bb := -sin * sy
	d := sin * sx
	e := cos * sy

	return f64.Aff3{
		a, bb, cx - a*sw/2 - bb*sh/2,
		d, e, cy - d*sw/2 - e*sh/2,
	}
}

// applyWindowLevel remaps the frame through a center/width lookup
// table. Values below the window map to black, above it to white.
func applyWindowLevel(src *image.RGBA, wl viewport.WindowLevel) *image.RGBA {
	width := wl.Width
	if width < 1 {
		width = 1
	}
	low := wl.Center - width/2

	var lut [256]uint8
	for i := range lut {
		v := (float64(i) - low) / width * 255
		switch {
		case v <= 0:
			lut[i] = 0
		case v >= 255:
			lut[i] = 255
		default:
			lut[i] = uint8(v)
		}
	}

	out := image.NewRGBA(src.Bounds())
	for i := 0; i+3 < len(src.Pix); i += 4 {
		out.Pix[i+0] = lut[src.Pix[i+0]]
		out.Pix[i+1] = lut[src.Pix[i+1]]
		out.Pix[i+2] = lut[src.Pix[i+2]]
		out.Pix[i+3] = src.Pix[i+3]
	}
	return out
}

// Flush is a no-op: software draws are synchronous.
func (b *SoftwareBackend) Flush() error {
	return nil
}

// Close releases the backend. Further uploads and draws fail with
// ErrBackendClosed. Close is idempotent.
func (b *SoftwareBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Ensure SoftwareBackend implements Backend.
var _ Backend = (*SoftwareBackend)(nil)
