// SPDX-License-Identifier: MIT
/*
Package series implements the viewer model shared by the waveform, spectrum
and spectrogram displays. A View owns one data series and one Viewport and
produces bounded, render-ready slices. All variants share the same zoom, pan
and reset behaviour; only slicing differs:

  - Waveform: min/max decimation so envelope peaks survive downsampling, plus
    a played/unplayed split driven by an optional playback.Track.
  - Spectrum: plain stride over frequency/magnitude pairs.
  - Spectrogram: plain stride over the time axis; the frequency axis is never
    windowed. Empty or ragged grids are treated as no data.

Views are created once per role and updated in place with UpdateData so that
references held by presentation adapters stay valid.
*/
package series

import (
	"sync"
	"time"

	applog "eqviewer/internal/log"
	"eqviewer/internal/playback"
	"eqviewer/internal/viewport"
)

// Slice is the visible, downsampled window of a View.
type Slice struct {
	Variant Variant        `json:"variant"`
	Empty   bool           `json:"empty"`
	Range   viewport.Range `json:"range"`
	Total   int            `json:"total"`
	Step    int            `json:"step"`
	Zoom    float64        `json:"zoom"`
	Offset  float64        `json:"offset"`

	X   []float64   `json:"x,omitempty"`   // Time (waveform, spectrogram) or frequency (spectrum).
	Y   []float64   `json:"y,omitempty"`   // Peak sample, magnitude, or spectrogram frequency axis.
	Min []float64   `json:"min,omitempty"` // Waveform envelope low.
	Max []float64   `json:"max,omitempty"` // Waveform envelope high.
	Z   [][]float64 `json:"z,omitempty"`   // Spectrogram [frequency][visible time].

	Played   int           `json:"played"`   // Leading points of X already played (waveform).
	Position time.Duration `json:"position"` // Playback position (waveform).
}

// View is a single viewer instance. It is safe for concurrent use.
type View struct {
	mu        sync.RWMutex
	variant   Variant
	vp        *viewport.Viewport
	data      Data
	total     int
	maxPoints int
	version   uint64

	// bindMu orders playback rebinds so the track follows the latest data.
	bindMu sync.Mutex
	track  *playback.Track
	opener playback.Opener
}

// Option configures a View.
type Option func(*View)

// WithMaxPoints overrides the per-slice render cap.
func WithMaxPoints(n int) Option {
	return func(v *View) {
		if n > 0 {
			v.maxPoints = n
		}
	}
}

// WithViewport passes options to the underlying viewport.
func WithViewport(opts ...viewport.Option) Option {
	return func(v *View) {
		v.vp = viewport.New(opts...)
	}
}

// WithPlayback attaches a playback track to a waveform view. opener creates
// the playable resource on each UpdateData; onPosition is called on every
// accepted position update.
func WithPlayback(opener playback.Opener, onPosition func(time.Duration)) Option {
	return func(v *View) {
		if v.variant != Waveform {
			return
		}
		v.opener = opener
		v.track = playback.NewTrack(onPosition)
	}
}

// New creates an empty view of the given variant.
func New(variant Variant, opts ...Option) *View {
	v := &View{
		variant:   variant,
		vp:        viewport.New(),
		maxPoints: viewport.DefaultMaxPoints,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Variant returns the view's variant.
func (v *View) Variant() Variant { return v.variant }

// Track returns the playback track, or nil for views without playback.
func (v *View) Track() *playback.Track { return v.track }

// UpdateData replaces the series in place, resets zoom and offset, and
// rebinds playback to the new resource. Empty or malformed data is accepted
// and renders as an explicit no-data slice.
func (v *View) UpdateData(d Data) {
	v.Replace(d)()
}

// Replace swaps the series like UpdateData but leaves playback untouched
// until the returned rebind is called. Callers holding other locks run the
// rebind after releasing them. A rebind overtaken by a later Replace does
// nothing.
func (v *View) Replace(d Data) (rebind func()) {
	v.mu.Lock()
	v.data = d
	v.total = d.length(v.variant)
	v.vp.Reset()
	v.version++
	version := v.version
	v.mu.Unlock()

	if v.track == nil {
		return func() {}
	}
	return func() { v.rebind(version, d) }
}

func (v *View) rebind(version uint64, d Data) {
	v.bindMu.Lock()
	defer v.bindMu.Unlock()
	if v.Version() != version {
		return
	}
	if v.opener == nil || len(d.Values) == 0 {
		v.track.Unbind()
		return
	}
	p, err := v.opener(d.Ref, d.Values, d.SampleRate)
	if err != nil {
		applog.Warnf("SeriesView: unable to open playback for %q: %v", d.Ref, err)
		v.track.Unbind()
		return
	}
	v.track.Bind(p, d.SampleRate)
}

// Data returns the current series. The returned slices are shared and must
// not be modified.
func (v *View) Data() Data {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.data
}

// Len returns the length of the windowed axis (0 when there is no data).
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.total
}

// Version increments on every UpdateData.
func (v *View) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// Duration returns the length of a waveform in time.
func (v *View) Duration() time.Duration {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.variant != Waveform || v.data.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(v.total) / float64(v.data.SampleRate) * float64(time.Second))
}

// Zoom returns the current zoom factor.
func (v *View) Zoom() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.vp.Zoom()
}

// Offset returns the current normalized offset.
func (v *View) Offset() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.vp.Offset()
}

// ZoomIn zooms in one step and returns the new visible slice.
func (v *View) ZoomIn() Slice {
	v.mu.Lock()
	v.vp.ZoomIn()
	v.mu.Unlock()
	return v.Visible()
}

// ZoomOut zooms out one step and returns the new visible slice.
func (v *View) ZoomOut() Slice {
	v.mu.Lock()
	v.vp.ZoomOut()
	v.mu.Unlock()
	return v.Visible()
}

// Pan moves the window and returns the new visible slice.
func (v *View) Pan(offset float64) Slice {
	v.mu.Lock()
	v.vp.Pan(offset)
	v.mu.Unlock()
	return v.Visible()
}

// Reset restores zoom 1 and offset 0 and returns the full-range slice.
func (v *View) Reset() Slice {
	v.mu.Lock()
	v.vp.Reset()
	v.mu.Unlock()
	return v.Visible()
}

// Visible computes the current render-ready slice.
func (v *View) Visible() Slice {
	v.mu.RLock()
	defer v.mu.RUnlock()

	s := Slice{
		Variant: v.variant,
		Total:   v.total,
		Step:    1,
		Zoom:    v.vp.Zoom(),
		Offset:  v.vp.Offset(),
	}
	if v.total == 0 {
		s.Empty = true
		return s
	}

	r := v.vp.VisibleRange(v.total)
	s.Range = r

	switch v.variant {
	case Waveform:
		v.sliceWaveform(&s, r)
	case Spectrum:
		idx := viewport.Indices(r, v.maxPoints)
		s.Step = viewport.Step(r.Len(), v.maxPoints)
		s.X = viewport.Pick(v.data.Frequencies, idx)
		s.Y = viewport.Pick(v.data.Values, idx)
	case Spectrogram:
		idx := viewport.Indices(r, v.maxPoints)
		s.Step = viewport.Step(r.Len(), v.maxPoints)
		s.X = viewport.Pick(v.data.Times, idx)
		s.Y = v.data.Frequencies
		s.Z = make([][]float64, len(v.data.Grid))
		for f, row := range v.data.Grid {
			s.Z[f] = viewport.Pick(row, idx)
		}
	}
	s.Empty = len(s.Y) == 0 && len(s.Z) == 0
	return s
}

func (v *View) sliceWaveform(s *Slice, r viewport.Range) {
	env := viewport.Decimate(v.data.Values, r, v.maxPoints)
	s.Step = env.Step
	s.Y = env.Peak
	s.Min = env.Min
	s.Max = env.Max

	s.X = make([]float64, len(env.Index))
	for k, i := range env.Index {
		switch {
		case i < len(v.data.Times):
			s.X[k] = v.data.Times[i]
		case v.data.SampleRate > 0:
			s.X[k] = float64(i) / float64(v.data.SampleRate)
		default:
			s.X[k] = float64(i)
		}
	}

	if v.track == nil {
		return
	}
	s.Position = v.track.Position()
	played := v.track.PlayedIndex()
	for _, i := range env.Index {
		if i >= played {
			break
		}
		s.Played++
	}
}
