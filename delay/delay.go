// Package delay provides the calibrated busy-wait timer used by the Wii
// driver stack.
//
// The original firmware calibrated a spin loop against the peripheral bus
// clock. On a hosted Go runtime the monotonic clock already provides that
// calibration, so Init only records the clock value for diagnostics;
// re-initializing with a consistent value is harmless. Sub-millisecond
// waits spin on the monotonic clock (time.Sleep is too coarse for bus
// settle times on most kernels), longer waits sleep.
package delay

import (
	"sync/atomic"
	"time"
)

// Waits at or below this threshold spin instead of sleeping.
const spinThreshold = time.Millisecond

var clockHz atomic.Uint32

// Init records the system clock the stack was configured against. Must be
// called once before any delay is used; calling it again with the same
// value is a no-op.
func Init(hz uint32) {
	clockHz.Store(hz)
}

// ClockHz reports the clock value passed to Init, or zero if Init has not
// run yet.
func ClockHz() uint32 {
	return clockHz.Load()
}

// Us blocks for n microseconds.
func Us(n uint32) {
	For(time.Duration(n) * time.Microsecond)
}

// Ms blocks for n milliseconds.
func Ms(n uint32) {
	For(time.Duration(n) * time.Millisecond)
}

// For blocks for the given duration.
func For(d time.Duration) {
	if d <= 0 {
		return
	}
	if d > spinThreshold {
		time.Sleep(d)
		return
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}
