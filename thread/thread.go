// Package thread wraps kernel threads in objects that own their control
// block and manage its lifecycle.
//
// A Thread is created dormant, started with Resume and released with Close:
//
//	w := thread.NewStaticFunc[thread.Stack2K](worker.Run, thread.WithName("worker"))
//	w.Create()
//	w.Resume()
//	...
//	w.Join()
//	w.Close()
//
// Misuse (bad parameters, joining yourself, a kernel refusing a request that
// cannot fail on a correct program) panics with an *Error.
package thread

import (
	"sync"
	"unsafe"

	"txthread/kernel"
)

// ID identifies a Thread for as long as the object lives.
type ID uintptr

// Thread is a kernel thread. The control block lives inside the object, so a
// Thread must not be copied once created; always handle it by pointer. The
// zero-size func field makes Thread non-comparable, and go vet's copylocks
// check reports copies through its mutex.
type Thread struct {
	tcb kernel.TCB
	_   [0]func()

	k        kernel.Kernel
	stack    []byte
	entry    kernel.EntryFunc
	input    uintptr
	priority Priority
	name     string

	created bool
	closed  bool

	mu   sync.Mutex // guards slot
	slot exitSlot
}

// Option configures a Thread at construction.
type Option func(*Thread)

// WithPriority sets the initial priority (default DefaultPriority).
func WithPriority(p Priority) Option {
	return func(t *Thread) { t.priority = p }
}

// WithName sets the thread name (default "N/A").
func WithName(name string) Option {
	return func(t *Thread) { t.name = name }
}

// New describes a thread that runs entry(input) on stack. The caller owns
// stack and must keep it for the life of the thread. The thread is bound to
// the active kernel; nothing is registered until Create.
func New(stack []byte, entry kernel.EntryFunc, input uintptr, opts ...Option) *Thread {
	t := new(Thread)
	t.init(stack, entry, input, opts)
	return t
}

func (t *Thread) init(stack []byte, entry kernel.EntryFunc, input uintptr, opts []Option) {
	t.k = kernel.Active()
	t.stack = stack
	t.entry = entry
	t.input = input
	t.priority = DefaultPriority
	t.name = "N/A"
	for _, opt := range opts {
		opt(t)
	}
}

// Current returns the Thread running the caller, or nil when the caller is
// not a thread created by this package.
func Current() *Thread {
	return owner(kernel.Active().Identify())
}

func owner(tcb *kernel.TCB) *Thread {
	if tcb == nil {
		return nil
	}
	t, _ := tcb.Extension().(*Thread)
	return t
}

// Create registers the thread with the kernel. The thread starts dormant:
// it runs only after Resume.
func (t *Thread) Create() {
	if t.closed {
		t.fail("create", ErrClosed)
	}
	if t.created {
		t.fail("create", ErrCreated)
	}
	if !t.priority.Valid() {
		t.fail("create", ErrPriority)
	}
	t.tcb.SetExtension(t)
	t.check("create", t.k.CreateThread(&t.tcb, kernel.ThreadParams{
		Name:             t.name,
		Entry:            t.entry,
		Input:            t.input,
		Stack:            t.stack,
		Priority:         uint(t.priority),
		PreemptThreshold: uint(t.priority),
		TimeSlice:        kernel.NoTimeSlice,
		Start:            kernel.DontStart,
	}))
	t.created = true
}

// Close terminates the thread unless it has completed and deletes it from
// the kernel. Close is idempotent and does nothing for a thread that was
// never created. A Thread cannot be created again after Close.
func (t *Thread) Close() {
	if t.closed {
		return
	}
	if !t.created {
		t.closed = true
		return
	}
	if t.self() {
		t.fail("close", ErrSelfClose)
	}
	if t.info("close").State != kernel.StateCompleted {
		t.check("terminate", t.k.TerminateThread(&t.tcb))
	}
	t.check("delete", t.k.DeleteThread(&t.tcb))
	t.closed = true
}

// Suspend suspends the thread. Suspending a suspended thread does nothing.
func (t *Thread) Suspend() {
	t.live("suspend")
	t.check("suspend", t.k.SuspendThread(&t.tcb))
}

// Resume makes a suspended or dormant thread ready. Resuming a ready thread
// does nothing.
func (t *Thread) Resume() {
	t.live("resume")
	t.check("resume", t.k.ResumeThread(&t.tcb))
}

// Terminate ends the thread immediately; it gets no chance to clean up.
// Terminating a finished thread does nothing. A thread terminating itself
// does not return.
func (t *Thread) Terminate() {
	t.live("terminate")
	t.check("terminate", t.k.TerminateThread(&t.tcb))
}

// Reset returns a completed or terminated thread to the dormant state so it
// can be resumed again from its entry function.
func (t *Thread) Reset() {
	t.live("reset")
	t.check("reset", t.k.ResetThread(&t.tcb))

	// A joiner of the previous run is let go before its slot is reused.
	t.releaseJoin()
	t.mu.Lock()
	drop := t.slot.kind == slotJoin || t.slot.kind == slotSpent
	if drop {
		t.slot = exitSlot{}
	}
	t.mu.Unlock()
	if drop {
		t.check("reset", t.k.EntryExitNotify(&t.tcb, nil))
	}
}

// Priority returns the current priority.
func (t *Thread) Priority() Priority {
	if !t.created || t.closed {
		return t.priority
	}
	return Priority(t.info("priority").Priority)
}

// SetPriority changes the priority. The preemption threshold follows it.
func (t *Thread) SetPriority(p Priority) {
	if !p.Valid() {
		t.fail("set priority", ErrPriority)
	}
	if !t.created || t.closed {
		t.priority = p
		return
	}
	_, st := t.k.PriorityChange(&t.tcb, uint(p))
	t.check("set priority", st)
	t.priority = p
}

// State reports the scheduling state. Only the thread itself ever sees
// Running.
func (t *Thread) State() State {
	t.live("state")
	return stateOf(t.info("state").State, t.self())
}

// ID returns the identity of t.
func (t *Thread) ID() ID {
	return ID(uintptr(unsafe.Pointer(t)))
}

// Name returns the thread name.
func (t *Thread) Name() string { return t.name }

// StackSize returns the size of the thread stack in bytes.
func (t *Thread) StackSize() int { return len(t.stack) }

// RunCount returns how many times the kernel has dispatched the thread.
func (t *Thread) RunCount() uint32 {
	t.live("run count")
	return t.info("run count").RunCount
}

func (t *Thread) live(op string) {
	switch {
	case t.closed:
		t.fail(op, ErrClosed)
	case !t.created:
		t.fail(op, ErrNotCreated)
	}
}

func (t *Thread) info(op string) kernel.ThreadInfo {
	info, st := t.k.ThreadInfo(&t.tcb)
	t.check(op, st)
	return info
}

// self reports whether the caller is t.
func (t *Thread) self() bool {
	return t.k.Identify() == &t.tcb
}

func (t *Thread) finished() bool {
	return t.info("state").State.Finished()
}
