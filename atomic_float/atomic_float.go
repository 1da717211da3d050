package atomic_float

import (
	"math"
	"sync/atomic"
)

// AtomicFloat64 stores a float64 as its IEEE-754 bits in an atomic.Uint64, so that
// readers (the live view) never lock out the single writer (the learner).
// The zero value holds 0.0 and is ready to use.
type AtomicFloat64 struct {
	bits atomic.Uint64
}

// NewAtomicFloat64 returns a cell holding val.
func NewAtomicFloat64(val float64) *AtomicFloat64 {
	af := &AtomicFloat64{}
	af.Set(val)
	return af
}

// Read the current value.
func (af *AtomicFloat64) Read() float64 {
	return math.Float64frombits(af.bits.Load())
}

// Set unconditionally replaces the value.
func (af *AtomicFloat64) Set(val float64) {
	af.bits.Store(math.Float64bits(val))
}

// TryAdd makes a single attempt to add addend. It fails if the value changed between
// the read and the swap, leaving it to the caller to retry, drop or recompute.
func (af *AtomicFloat64) TryAdd(addend float64) (newVal float64, succeeded bool) {
	old := af.bits.Load()
	newVal = math.Float64frombits(old) + addend
	succeeded = af.bits.CompareAndSwap(old, math.Float64bits(newVal))
	return
}

// Add retries TryAdd until it lands.
func (af *AtomicFloat64) Add(addend float64) (newVal float64) {
	for {
		var ok bool
		if newVal, ok = af.TryAdd(addend); ok {
			return
		}
	}
}
