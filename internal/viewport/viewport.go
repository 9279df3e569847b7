// SPDX-License-Identifier: MIT
/*
Package viewport maps a zoom/pan window onto an index range of a data series
and bounds the number of points handed to a renderer.

Coordinates are normalized: zoom 1 shows the whole series, offset is the
window start inside the valid pan range. The invariant

	0 <= offset <= max(0, 1 - 1/zoom)

holds after every operation.
*/
package viewport

import "math"

// Defaults shared by every viewer.
const (
	DefaultMaxPoints = 2000 // Render cap per visible slice.
	DefaultMaxZoom   = 2000 // Upper zoom clamp.
	DefaultZoomStep  = 1.5  // Multiplier applied by ZoomIn/ZoomOut.
	MinZoom          = 1.0  // Fully zoomed out.
)

// Range is a half-open [Start, End) index window.
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices covered by the range.
func (r Range) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Empty reports whether the range covers nothing.
func (r Range) Empty() bool { return r.Len() == 0 }

// Viewport holds the zoom/offset state of a single viewer. It is not safe for
// concurrent use; owners serialize access.
type Viewport struct {
	zoom     float64
	offset   float64
	maxZoom  float64
	zoomStep float64
}

// Option configures a Viewport.
type Option func(*Viewport)

// WithMaxZoom overrides the upper zoom clamp. Values below 1 are ignored.
func WithMaxZoom(max float64) Option {
	return func(v *Viewport) {
		if max >= MinZoom {
			v.maxZoom = max
		}
	}
}

// WithZoomStep overrides the zoom multiplier. Values <= 1 are ignored.
func WithZoomStep(step float64) Option {
	return func(v *Viewport) {
		if step > 1 {
			v.zoomStep = step
		}
	}
}

// New returns a viewport at zoom 1, offset 0.
func New(opts ...Option) *Viewport {
	v := &Viewport{
		zoom:     MinZoom,
		maxZoom:  DefaultMaxZoom,
		zoomStep: DefaultZoomStep,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Zoom returns the current zoom factor (>= 1).
func (v *Viewport) Zoom() float64 { return v.zoom }

// Offset returns the current normalized offset.
func (v *Viewport) Offset() float64 { return v.offset }

// MaxOffset returns the largest offset allowed at the current zoom.
func (v *Viewport) MaxOffset() float64 {
	return math.Max(0, 1-1/v.zoom)
}

// Pan moves the window start to offset, clamped to the valid pan range, and
// returns the applied value.
func (v *Viewport) Pan(offset float64) float64 {
	if math.IsNaN(offset) {
		offset = 0
	}
	v.offset = offset
	v.clampOffset()
	return v.offset
}

// ZoomIn multiplies zoom by the zoom step.
func (v *Viewport) ZoomIn() float64 {
	return v.SetZoom(v.zoom * v.zoomStep)
}

// ZoomOut divides zoom by the zoom step.
func (v *Viewport) ZoomOut() float64 {
	return v.SetZoom(v.zoom / v.zoomStep)
}

// SetZoom clamps zoom to [1, maxZoom], re-clamps the offset and returns the
// applied zoom.
func (v *Viewport) SetZoom(zoom float64) float64 {
	if math.IsNaN(zoom) || zoom < MinZoom {
		zoom = MinZoom
	}
	if zoom > v.maxZoom {
		zoom = v.maxZoom
	}
	v.zoom = zoom
	v.clampOffset()
	return v.zoom
}

// Reset restores zoom 1 and offset 0.
func (v *Viewport) Reset() {
	v.zoom = MinZoom
	v.offset = 0
}

func (v *Viewport) clampOffset() {
	v.offset = math.Min(math.Max(v.offset, 0), v.MaxOffset())
}

// VisibleRange returns the index window of a series of totalLength elements.
// A non-empty series always yields at least one visible element.
func (v *Viewport) VisibleRange(totalLength int) Range {
	if totalLength <= 0 {
		return Range{}
	}

	visibleCount := int(math.Floor(float64(totalLength) / v.zoom))
	if visibleCount < 1 {
		visibleCount = 1
	}
	if visibleCount > totalLength {
		visibleCount = totalLength
	}

	start := int(math.Floor(v.offset * float64(totalLength-visibleCount)))
	if start < 0 {
		start = 0
	}
	end := min(start+visibleCount, totalLength)

	return Range{Start: start, End: end}
}
