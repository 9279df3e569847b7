// SPDX-License-Identifier: MIT
package viewport

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Step returns the stride needed to keep a span of n points under maxPoints.
// It is always >= 1.
func Step(n, maxPoints int) int {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	if n <= maxPoints {
		return 1
	}
	return int(math.Ceil(float64(n) / float64(maxPoints)))
}

// Indices returns the source indices emitted for r after plain stride
// decimation: r.Start, r.Start+step, ... < r.End.
func Indices(r Range, maxPoints int) []int {
	if r.Empty() {
		return nil
	}
	step := Step(r.Len(), maxPoints)
	idx := make([]int, 0, (r.Len()+step-1)/step)
	for i := r.Start; i < r.End; i += step {
		idx = append(idx, i)
	}
	return idx
}

// Envelope is the min/max decimation of a range of samples. Bucket k covers
// source indices [Index[k], Index[k]+Step) clipped to the range.
type Envelope struct {
	Step  int
	Index []int     // First source index of each bucket.
	Min   []float64 // Lowest sample of each bucket.
	Max   []float64 // Highest sample of each bucket.
	Peak  []float64 // Sample with the largest magnitude in each bucket.
}

// Decimate builds the min/max envelope of data over r so that envelope peaks
// survive downsampling.
func Decimate(data []float64, r Range, maxPoints int) Envelope {
	if r.End > len(data) {
		r.End = len(data)
	}
	if r.Empty() {
		return Envelope{Step: 1}
	}

	step := Step(r.Len(), maxPoints)
	n := (r.Len() + step - 1) / step
	env := Envelope{
		Step:  step,
		Index: make([]int, 0, n),
		Min:   make([]float64, 0, n),
		Max:   make([]float64, 0, n),
		Peak:  make([]float64, 0, n),
	}

	for i := r.Start; i < r.End; i += step {
		bucket := data[i:min(i+step, r.End)]
		lo := floats.Min(bucket)
		hi := floats.Max(bucket)
		peak := hi
		if math.Abs(lo) > math.Abs(hi) {
			peak = lo
		}
		env.Index = append(env.Index, i)
		env.Min = append(env.Min, lo)
		env.Max = append(env.Max, hi)
		env.Peak = append(env.Peak, peak)
	}
	return env
}

// Pick returns data[i] for every index, tolerating indices beyond data.
func Pick(data []float64, idx []int) []float64 {
	out := make([]float64, 0, len(idx))
	for _, i := range idx {
		if i >= 0 && i < len(data) {
			out = append(out, data[i])
		}
	}
	return out
}
