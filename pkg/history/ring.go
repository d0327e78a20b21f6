// Package history implements a fixed-length, allocation-free ring
// buffer: a rotating "current" index over 8 past samples, used both
// for device-level time-delay state and for the transient
// controller's Δt/solution rings.
package history

import "math"

// Ring holds Length most-recent (value, time) samples. Index 0 is
// always the current slot; 1..Length-1 are progressively older.
const Length = 8

type sample struct {
	value T
	t     float64
	valid bool
}

// T is the sample payload type. A history ring stores float64 scalars;
// devices with vector state keep one Ring per scalar component.
type T = float64

type Ring struct {
	buf [Length]sample
}

// New returns an empty ring.
func New() *Ring { return &Ring{} }

// Push rotates the ring and inserts a new current sample. No
// allocations per step.
func (r *Ring) Push(value T, t float64) {
	for i := Length - 1; i > 0; i-- {
		r.buf[i] = r.buf[i-1]
	}
	r.buf[0] = sample{value: value, t: t, valid: true}
}

// At returns the value stored k slots back (k=0 is current).
func (r *Ring) At(k int) (T, bool) {
	if k < 0 || k >= Length || !r.buf[k].valid {
		return 0, false
	}
	return r.buf[k].value, true
}

// TimeAt returns the timestamp stored k slots back.
func (r *Ring) TimeAt(k int) (float64, bool) {
	if k < 0 || k >= Length || !r.buf[k].valid {
		return 0, false
	}
	return r.buf[k].t, true
}

// Interpolate returns the value at tPast, linearly interpolated
// between the two bracketing ring samples.
func (r *Ring) Interpolate(tPast float64) (T, bool) {
	for k := 0; k < Length-1; k++ {
		v0, ok0 := r.At(k)
		t0, _ := r.TimeAt(k)
		v1, ok1 := r.At(k + 1)
		t1, _ := r.TimeAt(k + 1)
		if !ok0 {
			return 0, false
		}
		if !ok1 {
			return v0, true
		}
		if tPast <= t0 && tPast >= t1 {
			if t0 == t1 {
				return v0, true
			}
			frac := (tPast - t1) / (t0 - t1)
			return v1 + frac*(v0-v1), true
		}
	}
	if v0, ok := r.At(0); ok {
		return v0, true
	}
	return 0, false
}

// Reset clears all samples, e.g. at restart_dc() after a rejected step.
func (r *Ring) Reset() {
	for i := range r.buf {
		r.buf[i] = sample{}
	}
}

// Len reports how many valid samples are currently stored.
func (r *Ring) Len() int {
	n := 0
	for _, s := range r.buf {
		if s.valid {
			n++
		}
	}
	return n
}

// IsFiniteAll reports whether every stored sample is finite, used by
// the transient controller's non-finite fatal check.
func (r *Ring) IsFiniteAll() bool {
	for _, s := range r.buf {
		if s.valid && (math.IsNaN(s.value) || math.IsInf(s.value, 0)) {
			return false
		}
	}
	return true
}
