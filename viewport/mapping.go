// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package viewport

// Rect is an on-screen rectangle reported by the host layout system:
// CSS pixels, origin top-left, y growing downward.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Bottom returns the y coordinate of the rectangle's bottom edge.
func (r Rect) Bottom() float64 {
	return r.Top + r.Height
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Scale returns the rectangle scaled by the device pixel ratio.
func (r Rect) Scale(dpr float64) Rect {
	return Rect{
		Left:   r.Left * dpr,
		Top:    r.Top * dpr,
		Width:  r.Width * dpr,
		Height: r.Height * dpr,
	}
}

// Region is a draw region on the shared GPU surface: device pixels,
// origin bottom-left, y growing upward. It is the rectangle passed to
// viewport/scissor state so one slot's draw cannot touch another's.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Empty reports whether the region has no area.
func (g Region) Empty() bool {
	return g.Width <= 0 || g.Height <= 0
}

// DefaultMaxDPR bounds the device pixel ratio used for mapping. High-DPR
// displays multiply texture bandwidth by dpr squared, so the ratio is
// clamped rather than taken verbatim.
const DefaultMaxDPR = 2.0

// MapRegion converts a layout rectangle to a GPU draw region on a shared
// surface of the given height. The layout rectangle is y-down from the
// top-left; GPU regions are y-up from the bottom-left, so the vertical
// axis is inverted around the surface height:
//
//	region.y = surfaceHeight - bottom*dpr
func MapRegion(r Rect, dpr, maxDPR float64, surfaceHeightPx int) Region {
	if maxDPR > 0 && dpr > maxDPR {
		dpr = maxDPR
	}
	if dpr <= 0 {
		dpr = 1
	}
	s := r.Scale(dpr)
	return Region{
		X:      int(s.Left),
		Y:      surfaceHeightPx - int(s.Top+s.Height),
		Width:  int(s.Width),
		Height: int(s.Height),
	}
}
