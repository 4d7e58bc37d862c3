// Package tick converts between kernel ticks and durations.
package tick

import (
	"math"
	"time"

	"txthread/kernel"
)

// Duration is a span of kernel ticks.
type Duration uint32

// Infinity is the duration that never elapses (TX_WAIT_FOREVER).
const Infinity = Duration(kernel.WaitForever)

// Of converts d to ticks of the active kernel, rounding up so a wait lasts at
// least d. Non-positive durations are zero; long ones saturate just below
// Infinity.
func Of(d time.Duration) Duration {
	return OfRate(d, kernel.Active().TicksPerSecond())
}

// OfRate is Of for an explicit tick rate.
func OfRate(d time.Duration, hz uint32) Duration {
	if d <= 0 || hz == 0 {
		return 0
	}
	sec, frac := d/time.Second, d%time.Second
	ticks := uint64(sec) * uint64(hz)
	ticks += (uint64(frac)*uint64(hz) + uint64(time.Second) - 1) / uint64(time.Second)
	if sec > math.MaxUint32 || ticks >= uint64(Infinity) {
		return Infinity - 1
	}
	return Duration(ticks)
}

// Ticks returns d as a raw tick count.
func (d Duration) Ticks() uint32 { return uint32(d) }

// Std converts d back to a time.Duration at the active kernel's tick rate.
// Infinity has no finite equivalent and maps to the largest time.Duration.
func (d Duration) Std() time.Duration {
	return d.StdRate(kernel.Active().TicksPerSecond())
}

// StdRate is Std for an explicit tick rate.
func (d Duration) StdRate(hz uint32) time.Duration {
	if d == Infinity {
		return math.MaxInt64
	}
	if hz == 0 {
		return 0
	}
	return time.Duration(uint64(d) * uint64(time.Second) / uint64(hz))
}

// ToTicks returns the tick count of d.
func ToTicks(d Duration) uint32 { return uint32(d) }

// TimePoint is a tick count since the kernel started. It wraps like the
// kernel's 32-bit counter.
type TimePoint uint32

// Now reads the active kernel's tick counter (tx_time_get).
func Now() TimePoint {
	return TimePoint(kernel.Active().TimeGet())
}

// Ticks returns tp as a raw tick count.
func (tp TimePoint) Ticks() uint32 { return uint32(tp) }

// Add returns tp moved forward by d.
func (tp TimePoint) Add(d Duration) TimePoint { return tp + TimePoint(d) }

// Sub returns the ticks from u to tp, or zero when tp is not after u.
func (tp TimePoint) Sub(u TimePoint) Duration {
	if !u.Before(tp) {
		return 0
	}
	return Duration(tp - u)
}

// Before reports whether tp is earlier than u, allowing for wrap-around.
func (tp TimePoint) Before(u TimePoint) bool {
	return int32(uint32(tp)-uint32(u)) < 0
}
