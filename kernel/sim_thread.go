package kernel

import (
	"runtime"

	log "github.com/sirupsen/logrus"

	"txthread/trace"
)

// CreateThread registers t (tx_thread_create).
func (s *Sim) CreateThread(t *TCB, p ThreadParams) Status {
	if t == nil || p.Entry == nil || p.Stack == nil {
		return PtrError
	}
	ex := s.enter()
	defer s.settle(ex)

	switch {
	case t.created:
		return ThreadError
	case len(p.Stack) < MinStackSize:
		return SizeError
	case p.Priority >= MaxPriorities:
		return PriorityError
	case p.PreemptThreshold > p.Priority:
		return ThreshError
	case p.Start != DontStart && p.Start != AutoStart:
		return StartError
	case len(s.threads) >= MaxThreads:
		return NoInstance
	}

	t.name = p.Name
	t.entry = p.Entry
	t.input = p.Input
	t.stack = p.Stack
	t.priority = p.Priority
	t.threshold = p.PreemptThreshold
	t.timeSlice = p.TimeSlice
	t.owner = s
	t.created = true
	t.state = StateSuspended
	t.runCount = 0
	t.delayedSuspend = false
	t.notify = nil
	t.exec = nil
	t.wait = nil
	s.threads = append(s.threads, t)
	s.record(trace.KindCreate, t, uint64(p.Priority))
	s.log.WithFields(log.Fields{"thread": t.name, "priority": p.Priority, "stack": len(p.Stack)}).Debug("thread created")

	if p.Start == AutoStart {
		t.state = StateReady
		s.readyPush(t)
		s.record(trace.KindResume, t, 0)
	}
	return Success
}

// DeleteThread removes a completed or terminated thread (tx_thread_delete).
func (s *Sim) DeleteThread(t *TCB) Status {
	ex := s.enter()
	defer s.settle(ex)

	if !s.owns(t) {
		return ThreadError
	}
	if !t.state.Finished() {
		return DeleteError
	}
	for i, x := range s.threads {
		if x == t {
			s.threads = append(s.threads[:i], s.threads[i+1:]...)
			break
		}
	}
	s.record(trace.KindDelete, t, 0)
	s.log.WithField("thread", t.name).Debug("thread deleted")
	t.created = false
	t.owner = nil
	t.notify = nil
	t.exec = nil
	return Success
}

// SuspendThread suspends t (tx_thread_suspend). A thread that is sleeping or
// waiting on a semaphore is suspended once its wait ends.
func (s *Sim) SuspendThread(t *TCB) Status {
	ex := s.enter()
	defer s.settle(ex)

	if !s.owns(t) {
		return ThreadError
	}
	switch t.state {
	case StateCompleted, StateTerminated:
		return SuspendError
	case StateSuspended:
		return Success
	case StateReady:
		s.readyRemove(t)
		t.state = StateSuspended
	default:
		t.delayedSuspend = true
	}
	s.record(trace.KindSuspend, t, 0)
	return Success
}

// ResumeThread resumes a suspended or dormant thread (tx_thread_resume).
func (s *Sim) ResumeThread(t *TCB) Status {
	ex := s.enter()
	defer s.settle(ex)

	if !s.owns(t) {
		return ThreadError
	}
	switch t.state {
	case StateReady:
		return Success
	case StateSuspended:
		t.state = StateReady
		if s.running(t) {
			s.readyPushFront(t)
		} else {
			s.readyPush(t)
		}
	case StateSleep, StateSemaphoreSusp:
		if !t.delayedSuspend {
			return ResumeError
		}
		t.delayedSuspend = false
	default:
		return ResumeError
	}
	s.record(trace.KindResume, t, 0)
	return Success
}

// TerminateThread ends t (tx_thread_terminate). The exit notification runs
// in the caller's context. A thread terminating itself does not return.
func (s *Sim) TerminateThread(t *TCB) Status {
	ex := s.enter()
	if !s.owns(t) {
		s.settle(ex)
		return ThreadError
	}
	if t.state.Finished() {
		s.settle(ex)
		return Success
	}

	s.cancelWait(t)
	s.readyRemove(t)
	t.state = StateTerminated
	t.delayedSuspend = false
	notify := t.notify
	s.record(trace.KindTerminate, t, 0)
	s.log.WithField("thread", t.name).Debug("thread terminated")

	self := ex != nil && ex.tcb == t && t.exec == ex
	if target := t.exec; target != nil {
		target.killed = true
		if self {
			target.exiting = true
		} else {
			signal(target.run)
		}
	}
	s.mu.Unlock()

	if notify != nil {
		s.notify(t, notify, NotifyExit)
	}
	if self {
		runtime.Goexit()
	}

	s.mu.Lock()
	s.settle(ex)
	return Success
}

// ResetThread returns a completed or terminated thread to the dormant state
// (tx_thread_reset).
func (s *Sim) ResetThread(t *TCB) Status {
	ex := s.enter()
	defer s.settle(ex)

	if !s.owns(t) {
		return ThreadError
	}
	if !t.state.Finished() {
		return NotDone
	}
	t.state = StateSuspended
	t.delayedSuspend = false
	t.exec = nil
	t.wait = nil
	s.record(trace.KindReset, t, 0)
	return Success
}

// PriorityChange sets the priority and preemption threshold of t
// (tx_thread_priority_change) and returns the previous priority.
func (s *Sim) PriorityChange(t *TCB, priority uint) (uint, Status) {
	ex := s.enter()
	defer s.settle(ex)

	if !s.owns(t) {
		return 0, ThreadError
	}
	if priority >= MaxPriorities {
		return 0, PriorityError
	}
	old := t.priority
	if t.state == StateReady {
		s.readyRemove(t)
		t.priority, t.threshold = priority, priority
		if s.running(t) {
			s.readyPushFront(t)
		} else {
			s.readyPush(t)
		}
	} else {
		t.priority, t.threshold = priority, priority
	}
	s.record(trace.KindPriority, t, uint64(priority))
	return old, Success
}

// EntryExitNotify installs the entry/exit notification for t
// (tx_thread_entry_exit_notify). A nil fn removes it.
func (s *Sim) EntryExitNotify(t *TCB, fn NotifyFunc) Status {
	ex := s.enter()
	defer s.settle(ex)

	if !s.owns(t) {
		return ThreadError
	}
	t.notify = fn
	return Success
}

// ThreadInfo reports the state of t (tx_thread_info_get).
func (s *Sim) ThreadInfo(t *TCB) (ThreadInfo, Status) {
	ex := s.enter()
	defer s.settle(ex)

	if !s.owns(t) {
		return ThreadInfo{}, ThreadError
	}
	return t.info(), Success
}

// Identify returns the control block of the calling thread, or nil when the
// caller is not a kernel thread (tx_thread_identify).
func (s *Sim) Identify() *TCB {
	ex := s.enter()
	defer s.settle(ex)

	if ex == nil {
		return nil
	}
	return ex.tcb
}

// Relinquish lets other ready threads of the same priority run
// (tx_thread_relinquish).
func (s *Sim) Relinquish() {
	ex := s.enter()
	if ex == nil || ex.exiting || s.current != ex || ex.tcb.state != StateReady {
		s.mu.Unlock()
		return
	}
	t := ex.tcb
	s.readyRemove(t)
	s.readyPush(t)
	// reschedule does not return if the thread is terminated while parked.
	s.reschedule(ex, true)
	s.mu.Unlock()
}

// Sleep suspends the calling thread for ticks (tx_thread_sleep). WaitForever
// sleeps until the thread is terminated.
func (s *Sim) Sleep(ticks uint32) Status {
	ex := s.enter()
	if ex == nil || ex.exiting {
		s.mu.Unlock()
		return CallerError
	}
	if ticks == 0 {
		s.settle(ex)
		return Success
	}

	t := ex.tcb
	s.readyRemove(t)
	t.state = StateSleep
	w := &waiter{tcb: t, ex: ex}
	if ticks != WaitForever {
		w.timed = true
		w.deadline = s.ticks + ticks
		s.timed = append(s.timed, w)
	}
	t.wait = w
	s.record(trace.KindSleep, t, uint64(ticks))

	st := s.block(ex, w)
	s.mu.Unlock()
	return st
}
