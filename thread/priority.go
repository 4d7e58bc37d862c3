package thread

import "txthread/kernel"

// Priority is a kernel thread priority. Lower values are more urgent.
type Priority uint

const (
	MinPriority     Priority = 0
	MaxPriority     Priority = kernel.MaxPriorities - 1
	DefaultPriority Priority = 1
)

// Valid reports whether p is within [MinPriority, MaxPriority].
func (p Priority) Valid() bool { return p <= MaxPriority }
