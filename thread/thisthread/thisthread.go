// Package thisthread operates on the calling thread.
package thisthread

import (
	"time"

	"txthread/kernel"
	"txthread/thread"
	"txthread/tick"
)

// Yield offers the CPU to other ready threads of the same priority. It is a
// hint; the caller may continue immediately.
func Yield() {
	kernel.Active().Relinquish()
}

// ID returns the identity of the calling thread, or 0 outside a thread.
func ID() thread.ID {
	if t := thread.Current(); t != nil {
		return t.ID()
	}
	return 0
}

// SleepFor blocks the calling thread for at least d ticks. tick.Infinity
// blocks until the thread is terminated.
func SleepFor(d tick.Duration) {
	sleep("sleep", d.Ticks())
}

// Sleep is SleepFor with a time.Duration, rounded up to whole ticks.
func Sleep(d time.Duration) {
	SleepFor(tick.Of(d))
}

// SleepUntil blocks the calling thread until tp. It returns at once when tp
// has passed.
func SleepUntil(tp tick.TimePoint) {
	SleepFor(tp.Sub(tick.Now()))
}

func sleep(op string, ticks uint32) {
	if st := kernel.Active().Sleep(ticks); st != kernel.Success {
		panic(&thread.Error{Op: op, Thread: name(), Status: st, Err: thread.ErrKernel})
	}
}

func name() string {
	if t := thread.Current(); t != nil {
		return t.Name()
	}
	return ""
}
