package kernel

import (
	"errors"
	"sync/atomic"
)

// ErrNotRunning is raised when a kernel service is needed but no kernel is
// bound.
var ErrNotRunning = errors.New("kernel: not running")

type binding struct {
	k Kernel
}

var active atomic.Pointer[binding]

// Bind makes k the process-wide kernel used by thread objects, the tick
// clock and the calling-thread helpers. It is valid until Unbind.
func Bind(k Kernel) {
	if k == nil {
		active.Store(nil)
		return
	}
	active.Store(&binding{k: k})
}

// Unbind forgets the process-wide kernel.
func Unbind() {
	active.Store(nil)
}

// Running reports whether a kernel is bound.
func Running() bool {
	return active.Load() != nil
}

// Active returns the bound kernel. Calling it with no kernel bound is a
// programming error and panics with ErrNotRunning.
func Active() Kernel {
	b := active.Load()
	if b == nil {
		panic(ErrNotRunning)
	}
	return b.k
}
