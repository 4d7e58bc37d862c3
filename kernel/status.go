package kernel

// Status is a kernel service return code.
type Status uint8

const (
	Success         Status = 0x00
	Deleted         Status = 0x01
	PtrError        Status = 0x03
	WaitError       Status = 0x04
	SizeError       Status = 0x05
	SemaphoreError  Status = 0x0C
	NoInstance      Status = 0x0D
	ThreadError     Status = 0x0E
	PriorityError   Status = 0x0F
	StartError      Status = 0x10
	DeleteError     Status = 0x11
	ResumeError     Status = 0x12
	CallerError     Status = 0x13
	SuspendError    Status = 0x14
	ThreshError     Status = 0x18
	SuspendLifted   Status = 0x19
	WaitAborted     Status = 0x1A
	NotDone         Status = 0x20
	CeilingExceeded Status = 0x21
	InvalidCeiling  Status = 0x22
	FeatureDisabled Status = 0xFF
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Deleted:
		return "deleted"
	case PtrError:
		return "invalid pointer"
	case WaitError:
		return "invalid wait option"
	case SizeError:
		return "invalid size"
	case SemaphoreError:
		return "invalid semaphore"
	case NoInstance:
		return "no instance"
	case ThreadError:
		return "invalid thread"
	case PriorityError:
		return "invalid priority"
	case StartError:
		return "invalid start option"
	case DeleteError:
		return "thread not finished"
	case ResumeError:
		return "thread cannot be resumed"
	case CallerError:
		return "invalid caller"
	case SuspendError:
		return "thread cannot be suspended"
	case ThreshError:
		return "invalid preemption threshold"
	case SuspendLifted:
		return "delayed suspension lifted"
	case WaitAborted:
		return "wait aborted"
	case NotDone:
		return "thread not done"
	case CeilingExceeded:
		return "ceiling exceeded"
	case InvalidCeiling:
		return "invalid ceiling"
	case FeatureDisabled:
		return "feature not enabled"
	default:
		return "unknown"
	}
}

// OK reports whether s is Success.
func (s Status) OK() bool { return s == Success }
