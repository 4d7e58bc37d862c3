// Package kernel defines the RTOS thread contract consumed by the thread
// façade, plus a host simulation of that contract.
//
// The names and numeric values follow ThreadX: status codes, thread states,
// notification ids and the wait sentinels are the ones firmware code is used
// to seeing in tx_api.h.
package kernel

const (
	// MaxPriorities is the number of priority levels (TX_MAX_PRIORITIES).
	// Valid priorities are 0 (most urgent) to MaxPriorities-1.
	MaxPriorities = 32

	// MinStackSize is the smallest stack accepted by CreateThread (TX_MINIMUM_STACK).
	MinStackSize = 200

	// DefaultStackSize matches TX_TIMER_THREAD_STACK_SIZE.
	DefaultStackSize = 1024

	// MaxThreads bounds the simulated thread table.
	MaxThreads = 64
)

// Wait options, in ticks.
const (
	NoWait      uint32 = 0
	WaitForever uint32 = 0xFFFFFFFF
)

// NoTimeSlice disables round-robin slicing for a thread.
const NoTimeSlice uint32 = 0

// StartOption selects whether CreateThread makes the thread ready.
type StartOption uint8

const (
	DontStart StartOption = iota
	AutoStart
)

// NotifyID is passed to an entry/exit notification callback.
type NotifyID uint8

const (
	NotifyEntry NotifyID = iota
	NotifyExit
)

func (id NotifyID) String() string {
	switch id {
	case NotifyEntry:
		return "entry"
	case NotifyExit:
		return "exit"
	default:
		return "unknown"
	}
}

// ThreadState is the kernel's tx_thread_state field.
type ThreadState uint8

const (
	StateReady ThreadState = iota
	StateCompleted
	StateTerminated
	StateSuspended
	StateSleep
	StateQueueSusp
	StateSemaphoreSusp
)

func (s ThreadState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateCompleted:
		return "completed"
	case StateTerminated:
		return "terminated"
	case StateSuspended:
		return "suspended"
	case StateSleep:
		return "sleep"
	case StateQueueSusp:
		return "queue-susp"
	case StateSemaphoreSusp:
		return "semaphore-susp"
	default:
		return "unknown"
	}
}

// Finished reports whether the state is terminal.
func (s ThreadState) Finished() bool {
	return s == StateCompleted || s == StateTerminated
}

// EntryFunc is a thread entry point. It receives the one-word input given at
// creation.
type EntryFunc func(input uintptr)

// NotifyFunc is called by the kernel when a thread starts and when it exits.
// It runs in the context of the thread that caused the notification and must
// not block.
type NotifyFunc func(t *TCB, id NotifyID)

// ThreadParams are the tx_thread_create arguments.
type ThreadParams struct {
	Name             string
	Entry            EntryFunc
	Input            uintptr
	Stack            []byte
	Priority         uint
	PreemptThreshold uint
	TimeSlice        uint32
	Start            StartOption
}

// ThreadInfo is a snapshot of a control block (tx_thread_info_get).
type ThreadInfo struct {
	Name             string
	State            ThreadState
	RunCount         uint32
	Priority         uint
	PreemptThreshold uint
	TimeSlice        uint32
	StackSize        int
}

// Stats are kernel-wide counters.
type Stats struct {
	Ticks           uint32
	ContextSwitches uint64
	Threads         int
	Panicked        bool
}

// Kernel is the set of kernel services the thread façade is built on.
//
// Every method that returns a Status reports Success or the reason the
// request was refused; none of them panic on bad arguments.
type Kernel interface {
	CreateThread(t *TCB, p ThreadParams) Status
	DeleteThread(t *TCB) Status
	SuspendThread(t *TCB) Status
	ResumeThread(t *TCB) Status
	TerminateThread(t *TCB) Status
	ResetThread(t *TCB) Status
	PriorityChange(t *TCB, priority uint) (old uint, st Status)
	EntryExitNotify(t *TCB, fn NotifyFunc) Status
	ThreadInfo(t *TCB) (ThreadInfo, Status)

	// Identify returns the control block of the calling thread, or nil when
	// the caller is not a kernel thread.
	Identify() *TCB
	Relinquish()
	Sleep(ticks uint32) Status

	TimeGet() uint32
	TicksPerSecond() uint32

	SemaphoreCreate(s *Semaphore, name string, initial uint32) Status
	SemaphoreDelete(s *Semaphore) Status
	SemaphoreGet(s *Semaphore, wait uint32) Status
	SemaphorePut(s *Semaphore) Status
	SemaphoreCeilingPut(s *Semaphore, ceiling uint32) Status
}
