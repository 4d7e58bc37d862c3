package trace

import "sync"

// Ring keeps the most recent events in a fixed number of slots, overwriting
// the oldest once full.
type Ring struct {
	_       [0]func()
	mu      sync.Mutex
	head    uint64
	tail    uint64
	dropped uint64
	slots   []Event
}

// NewRing returns a ring with n slots. n below 1 is treated as 1.
func NewRing(n int) *Ring {
	if n < 1 {
		n = 1
	}
	return &Ring{slots: make([]Event, n)}
}

// Record stores e, dropping the oldest event when the ring is full.
func (r *Ring) Record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := uint64(len(r.slots))
	if r.head-r.tail >= size {
		r.tail++
		r.dropped++
	}
	r.slots[r.head%size] = e
	r.head++
}

// Len returns the number of buffered events.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.head - r.tail)
}

// Dropped returns how many events were overwritten.
func (r *Ring) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Snapshot copies the buffered events, oldest first.
func (r *Ring) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := uint64(len(r.slots))
	out := make([]Event, 0, r.head-r.tail)
	for i := r.tail; i < r.head; i++ {
		out = append(out, r.slots[i%size])
	}
	return out
}

// TryPop removes and returns the oldest event.
func (r *Ring) TryPop() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tail == r.head {
		return Event{}, false
	}
	e := r.slots[r.tail%uint64(len(r.slots))]
	r.tail++
	return e, true
}
