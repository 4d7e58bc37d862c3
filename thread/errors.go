package thread

import (
	"errors"
	"fmt"

	"txthread/kernel"
)

// Misuse of a Thread is a programming error. It is reported by panicking with
// an *Error whose Err is one of these.
var (
	ErrKernel      = errors.New("kernel refused the request")
	ErrNotJoinable = errors.New("thread is not joinable")
	ErrSelfJoin    = errors.New("thread cannot join itself")
	ErrSelfClose   = errors.New("thread cannot close itself")
	ErrClosed      = errors.New("thread is closed")
	ErrCreated     = errors.New("thread already created")
	ErrNotCreated  = errors.New("thread not created")
	ErrPriority    = errors.New("priority out of range")
	ErrSlotBusy    = errors.New("entry/exit callback slot in use")
)

// Error describes a failed thread operation.
type Error struct {
	Op     string
	Thread string
	// Status is the kernel's answer when Err is ErrKernel.
	Status kernel.Status
	Err    error
}

func (e *Error) Error() string {
	if errors.Is(e.Err, ErrKernel) {
		return fmt.Sprintf("thread %s: %s: %v: %s", e.Thread, e.Op, e.Err, e.Status)
	}
	return fmt.Sprintf("thread %s: %s: %v", e.Thread, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (t *Thread) fail(op string, err error) {
	panic(&Error{Op: op, Thread: t.name, Err: err})
}

func (t *Thread) check(op string, st kernel.Status) {
	if st != kernel.Success {
		panic(&Error{Op: op, Thread: t.name, Status: st, Err: ErrKernel})
	}
}
