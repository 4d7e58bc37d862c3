package kernel

// TCB is a thread control block (TX_THREAD). Its fields are owned by the
// kernel; callers only hold pointers to it and read it through ThreadInfo.
//
// A TCB is usually embedded as the first field of the object that owns the
// thread. The owner can attach itself through SetExtension so it can be found
// again from the pointer Identify returns.
type TCB struct {
	_ [0]func() // not comparable

	name      string
	entry     EntryFunc
	input     uintptr
	stack     []byte
	priority  uint
	threshold uint
	timeSlice uint32

	owner          *Sim
	created        bool
	state          ThreadState
	runCount       uint32
	delayedSuspend bool
	notify         NotifyFunc
	ext            any

	// exec is the goroutine currently backing the thread; nil while dormant.
	exec *execution
	wait *waiter
}

// Name returns the name given at creation.
func (t *TCB) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// SetExtension stores an owner reference (TX_THREAD_USER_EXTENSION). It must
// be set before the thread is created and not changed afterwards.
func (t *TCB) SetExtension(v any) { t.ext = v }

// Extension returns the value stored with SetExtension.
func (t *TCB) Extension() any {
	if t == nil {
		return nil
	}
	return t.ext
}

// execution is one run of a thread, from first dispatch until its goroutine
// returns. ResetThread detaches it so a fresh one can start later.
type execution struct {
	tcb    *TCB
	run    chan struct{}
	exited chan struct{}
	goid   uint64

	// killed is set when the thread is terminated; exiting once its
	// goroutine has started unwinding.
	killed  bool
	exiting bool
}

func newExecution(t *TCB) *execution {
	return &execution{
		tcb:    t,
		run:    make(chan struct{}, 1),
		exited: make(chan struct{}),
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// waiter is a pending sleep or semaphore get.
type waiter struct {
	tcb *TCB
	ex  *execution
	// ch receives the result when the waiter is not a kernel thread.
	ch chan Status

	sem      *Semaphore
	timed    bool
	deadline uint32
	status   Status
}

// Semaphore is a counting semaphore control block (TX_SEMAPHORE).
type Semaphore struct {
	_ [0]func() // not comparable

	name    string
	owner   *Sim
	created bool
	count   uint32
	waiters []*waiter
}

// Name returns the name given at creation.
func (s *Semaphore) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

func (s *Semaphore) remove(w *waiter) {
	for i, x := range s.waiters {
		if x == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}
