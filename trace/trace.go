// Package trace records kernel events: thread lifecycle, context switches and
// semaphore traffic.
package trace

import "fmt"

// Kind identifies the kernel service that produced an event.
type Kind uint8

const (
	KindCreate Kind = iota + 1
	KindDelete
	KindResume
	KindSuspend
	KindTerminate
	KindComplete
	KindReset
	KindPriority
	KindSleep
	KindWake
	KindSwitch
	KindSemGet
	KindSemPut
	KindNotify
	KindPanic
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindDelete:
		return "delete"
	case KindResume:
		return "resume"
	case KindSuspend:
		return "suspend"
	case KindTerminate:
		return "terminate"
	case KindComplete:
		return "complete"
	case KindReset:
		return "reset"
	case KindPriority:
		return "priority"
	case KindSleep:
		return "sleep"
	case KindWake:
		return "wake"
	case KindSwitch:
		return "switch"
	case KindSemGet:
		return "sem-get"
	case KindSemPut:
		return "sem-put"
	case KindNotify:
		return "notify"
	case KindPanic:
		return "panic"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Event is one kernel trace record.
//
// Thread names the control block the event is about; Arg carries a
// kind-specific value (new priority, sleep ticks, notify id).
type Event struct {
	Seq    uint64
	Tick   uint32
	Kind   Kind
	Thread string
	Arg    uint64
}

func (e Event) String() string {
	return fmt.Sprintf("#%d t=%d %s %s %d", e.Seq, e.Tick, e.Kind, e.Thread, e.Arg)
}

// Recorder consumes events. Record is called with the kernel lock held, so it
// must not call back into the kernel.
type Recorder interface {
	Record(Event)
}

// Discard drops every event.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(Event) {}

// Tee fans events out to several recorders in order.
func Tee(recs ...Recorder) Recorder {
	out := make(tee, 0, len(recs))
	for _, r := range recs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type tee []Recorder

func (t tee) Record(e Event) {
	for _, r := range t {
		r.Record(e)
	}
}
