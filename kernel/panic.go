package kernel

import (
	log "github.com/sirupsen/logrus"

	"txthread/trace"
)

// PanicInfo contains details about a panic recovered from a kernel thread.
type PanicInfo struct {
	Thread string
	Value  any
	Stack  []byte
}

// InPanicMode reports whether a thread has panicked. Dispatching stops once
// the kernel is in panic mode.
func (s *Sim) InPanicMode() bool {
	return s.panicActive.Load()
}

// SetPanicHandler installs the panic handler for this kernel.
//
// The handler is invoked at most once (on the first panic), from the
// goroutine of the thread that panicked. It must not panic.
func (s *Sim) SetPanicHandler(fn func(PanicInfo)) {
	s.panicHandler.Store(fn)
}

func (s *Sim) triggerPanic(t *TCB, v any) {
	s.panicOnce.Do(func() {
		info := PanicInfo{Thread: t.Name(), Value: v, Stack: captureStack()}

		s.mu.Lock()
		s.halted = true
		s.record(trace.KindPanic, t, 0)
		s.mu.Unlock()
		s.panicActive.Store(true)

		s.log.WithFields(log.Fields{"thread": info.Thread, "panic": v}).Error("thread panic, dispatching halted")
		if v := s.panicHandler.Load(); v != nil {
			if fn, ok := v.(func(PanicInfo)); ok && fn != nil {
				fn(info)
			}
		}
	})
}
