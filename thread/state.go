package thread

import "txthread/kernel"

// State is the scheduling state of a thread as seen by its caller.
type State uint8

const (
	Running State = iota
	Ready
	Suspended
	Terminated
	Completed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Ready:
		return "ready"
	case Suspended:
		return "suspended"
	case Terminated:
		return "terminated"
	case Completed:
		return "completed"
	}
	return "unknown"
}

// stateOf maps a kernel state. Anything the thread is blocked on counts as
// suspended.
func stateOf(ks kernel.ThreadState, self bool) State {
	switch ks {
	case kernel.StateReady:
		if self {
			return Running
		}
		return Ready
	case kernel.StateCompleted:
		return Completed
	case kernel.StateTerminated:
		return Terminated
	}
	return Suspended
}
