// Package semaphore provides a binary semaphore on top of kernel counting
// semaphores.
package semaphore

import (
	"fmt"

	"txthread/kernel"
	"txthread/tick"
)

// Error is raised (via panic) when the kernel refuses a semaphore service
// that cannot fail on a correctly used semaphore.
type Error struct {
	Op     string
	Name   string
	Status kernel.Status
}

func (e *Error) Error() string {
	return fmt.Sprintf("semaphore %s: %s: %s", e.Name, e.Op, e.Status)
}

// Binary is a semaphore whose count is 0 or 1. Release is safe from a
// thread that is about to exit and from non-thread contexts.
type Binary struct {
	_ [0]func()

	k   kernel.Kernel
	sem kernel.Semaphore
}

// NewBinary creates an unavailable binary semaphore on k.
func NewBinary(k kernel.Kernel, name string) *Binary {
	b := &Binary{k: k}
	if st := k.SemaphoreCreate(&b.sem, name, 0); st != kernel.Success {
		panic(&Error{Op: "create", Name: name, Status: st})
	}
	return b
}

// Acquire blocks until the semaphore is released.
func (b *Binary) Acquire() {
	if st := b.k.SemaphoreGet(&b.sem, kernel.WaitForever); st != kernel.Success {
		panic(&Error{Op: "acquire", Name: b.sem.Name(), Status: st})
	}
}

// TryAcquire takes the semaphore if it is available.
func (b *Binary) TryAcquire() bool {
	return b.TryAcquireFor(0)
}

// TryAcquireFor waits up to d ticks for the semaphore.
func (b *Binary) TryAcquireFor(d tick.Duration) bool {
	switch st := b.k.SemaphoreGet(&b.sem, d.Ticks()); st {
	case kernel.Success:
		return true
	case kernel.NoInstance:
		return false
	default:
		panic(&Error{Op: "acquire", Name: b.sem.Name(), Status: st})
	}
}

// Release makes the semaphore available. Releasing an available semaphore
// has no effect.
func (b *Binary) Release() {
	switch st := b.k.SemaphoreCeilingPut(&b.sem, 1); st {
	case kernel.Success, kernel.CeilingExceeded:
	default:
		panic(&Error{Op: "release", Name: b.sem.Name(), Status: st})
	}
}

// Close deletes the kernel semaphore. Pending Acquire calls panic with
// status Deleted.
func (b *Binary) Close() {
	if st := b.k.SemaphoreDelete(&b.sem); st != kernel.Success {
		panic(&Error{Op: "delete", Name: b.sem.Name(), Status: st})
	}
}
