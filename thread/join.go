package thread

import (
	"txthread/kernel"
	"txthread/semaphore"
)

type slotKind uint8

const (
	slotFree slotKind = iota
	slotUser
	slotJoin
	// slotSpent marks a join that has completed. The thread cannot be
	// joined again until it is Reset.
	slotSpent
)

// exitSlot is the single entry/exit notification the kernel keeps per
// thread. It serves either a user callback or one joiner.
type exitSlot struct {
	kind slotKind
	user func(*Thread, kernel.NotifyID)
	join *joinWait
}

// joinWait is the semaphore one joiner waits on. Both the joiner and the
// exit notification may outlive the slot, so whichever of them is last to
// let go of done closes it. Fields are guarded by the thread's mu.
type joinWait struct {
	done     *semaphore.Binary
	claimed  bool // done is being released, or will never be
	released bool
	left     bool // the joiner stopped waiting
}

// Joinable reports whether Join may be called: the thread has not finished
// and its entry/exit slot is free.
func (t *Thread) Joinable() bool {
	if !t.created || t.closed {
		return false
	}
	t.mu.Lock()
	free := t.slot.kind == slotFree
	t.mu.Unlock()
	return free && !t.finished()
}

// Join blocks until the thread completes or is terminated. Only one caller
// may join a thread, and only once.
func (t *Thread) Join() {
	t.live("join")
	if t.self() {
		t.fail("join", ErrSelfJoin)
	}
	if t.finished() {
		t.fail("join", ErrNotJoinable)
	}

	jw := &joinWait{done: semaphore.NewBinary(t.k, t.name+".join")}
	t.mu.Lock()
	if t.slot.kind != slotFree {
		t.mu.Unlock()
		jw.done.Close()
		t.fail("join", ErrNotJoinable)
	}
	t.slot = exitSlot{kind: slotJoin, join: jw}
	t.mu.Unlock()

	if st := t.k.EntryExitNotify(&t.tcb, t.notify); st != kernel.Success {
		t.mu.Lock()
		t.slot = exitSlot{}
		t.mu.Unlock()
		jw.done.Close()
		t.check("join", st)
	}

	// Runs as well when the joiner is terminated while it waits.
	defer t.leaveJoin(jw)

	// The thread may have exited before the notification was installed.
	if t.finished() {
		t.releaseJoin()
	}
	jw.done.Acquire()
}

// leaveJoin ends the wait jw. A joiner that leaves before being released
// gives the slot back, so the thread can be joined again.
func (t *Thread) leaveJoin(jw *joinWait) {
	t.mu.Lock()
	abandoned := !jw.claimed
	jw.claimed = true
	t.mu.Unlock()
	if abandoned {
		// The thread may already be gone.
		t.k.EntryExitNotify(&t.tcb, nil)
	}

	t.mu.Lock()
	if t.slot.kind == slotJoin && t.slot.join == jw {
		if abandoned {
			t.slot = exitSlot{}
		} else {
			t.slot = exitSlot{kind: slotSpent}
		}
	}
	jw.left = true
	last := abandoned || jw.released
	t.mu.Unlock()
	if last {
		jw.done.Close()
	}
}

// SetEntryExitCallback installs fn to be called when the thread starts and
// when it exits. It occupies the slot Join needs: a thread with a callback is
// not joinable, and a thread being joined cannot take a callback. A nil fn
// removes the callback.
func (t *Thread) SetEntryExitCallback(fn func(*Thread, kernel.NotifyID)) {
	t.live("set callback")

	t.mu.Lock()
	if t.slot.kind == slotJoin || t.slot.kind == slotSpent {
		t.mu.Unlock()
		t.fail("set callback", ErrSlotBusy)
	}
	var notify kernel.NotifyFunc
	if fn == nil {
		t.slot = exitSlot{}
	} else {
		t.slot = exitSlot{kind: slotUser, user: fn}
		notify = t.notify
	}
	t.mu.Unlock()

	t.check("set callback", t.k.EntryExitNotify(&t.tcb, notify))
}

// notify is the kernel entry/exit notification for t. It runs on the
// exiting thread or on whoever terminated it.
func (t *Thread) notify(_ *kernel.TCB, id kernel.NotifyID) {
	t.mu.Lock()
	slot := t.slot
	t.mu.Unlock()

	switch slot.kind {
	case slotUser:
		slot.user(t, id)
	case slotJoin:
		if id == kernel.NotifyExit {
			t.releaseJoin()
		}
	}
}

// releaseJoin wakes the joiner exactly once.
func (t *Thread) releaseJoin() {
	t.mu.Lock()
	if t.slot.kind != slotJoin || t.slot.join.claimed {
		t.mu.Unlock()
		return
	}
	jw := t.slot.join
	jw.claimed = true
	t.mu.Unlock()

	jw.done.Release()

	t.mu.Lock()
	jw.released = true
	last := jw.left
	t.mu.Unlock()
	if last {
		jw.done.Close()
	}
}
