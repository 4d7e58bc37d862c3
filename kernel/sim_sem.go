package kernel

import "txthread/trace"

// SemaphoreCreate initialises sem with count initial (tx_semaphore_create).
func (s *Sim) SemaphoreCreate(sem *Semaphore, name string, initial uint32) Status {
	if sem == nil {
		return PtrError
	}
	ex := s.enter()
	defer s.settle(ex)

	if sem.created {
		return SemaphoreError
	}
	sem.name = name
	sem.owner = s
	sem.created = true
	sem.count = initial
	sem.waiters = nil
	s.sems[sem] = struct{}{}
	return Success
}

// SemaphoreDelete deletes sem; pending gets complete with Deleted
// (tx_semaphore_delete).
func (s *Sim) SemaphoreDelete(sem *Semaphore) Status {
	ex := s.enter()
	defer s.settle(ex)

	if !s.ownsSem(sem) {
		return SemaphoreError
	}
	waiters := sem.waiters
	sem.waiters = nil
	for _, w := range waiters {
		s.wake(w, Deleted)
	}
	delete(s.sems, sem)
	sem.created = false
	sem.owner = nil
	return Success
}

// SemaphoreGet takes one instance of sem, waiting up to wait ticks
// (tx_semaphore_get). Callers that are not kernel threads block their
// goroutine.
func (s *Sim) SemaphoreGet(sem *Semaphore, wait uint32) Status {
	ex := s.enter()
	if !s.ownsSem(sem) {
		s.settle(ex)
		return SemaphoreError
	}
	if sem.count > 0 {
		sem.count--
		s.record(trace.KindSemGet, ex.tcbOrNil(), uint64(sem.count))
		s.settle(ex)
		return Success
	}
	if wait == NoWait {
		s.settle(ex)
		return NoInstance
	}
	if s.stopped {
		s.mu.Unlock()
		return Deleted
	}

	w := &waiter{sem: sem}
	if wait != WaitForever {
		w.timed = true
		w.deadline = s.ticks + wait
		s.timed = append(s.timed, w)
	}

	if ex == nil {
		w.ch = make(chan Status, 1)
		sem.waiters = append(sem.waiters, w)
		s.mu.Unlock()
		return <-w.ch
	}
	if ex.exiting {
		s.dropTimed(w)
		s.mu.Unlock()
		return WaitError
	}

	t := ex.tcb
	w.tcb, w.ex = t, ex
	s.readyRemove(t)
	t.state = StateSemaphoreSusp
	t.wait = w
	sem.waiters = append(sem.waiters, w)
	s.record(trace.KindSemGet, t, uint64(wait))

	st := s.block(ex, w)
	s.mu.Unlock()
	return st
}

// SemaphorePut releases one instance of sem, handing it to the oldest waiter
// if there is one (tx_semaphore_put).
func (s *Sim) SemaphorePut(sem *Semaphore) Status {
	ex := s.enter()
	defer s.settle(ex)

	if !s.ownsSem(sem) {
		return SemaphoreError
	}
	s.put(ex, sem)
	return Success
}

// SemaphoreCeilingPut is SemaphorePut that fails instead of raising the
// count past ceiling (tx_semaphore_ceiling_put).
func (s *Sim) SemaphoreCeilingPut(sem *Semaphore, ceiling uint32) Status {
	ex := s.enter()
	defer s.settle(ex)

	if !s.ownsSem(sem) {
		return SemaphoreError
	}
	if ceiling == 0 {
		return InvalidCeiling
	}
	if len(sem.waiters) == 0 && sem.count >= ceiling {
		return CeilingExceeded
	}
	s.put(ex, sem)
	return Success
}

func (s *Sim) put(ex *execution, sem *Semaphore) {
	s.record(trace.KindSemPut, ex.tcbOrNil(), uint64(sem.count))
	if len(sem.waiters) == 0 {
		sem.count++
		return
	}
	w := sem.waiters[0]
	sem.waiters = sem.waiters[1:]
	s.wake(w, Success)
}

func (s *Sim) ownsSem(sem *Semaphore) bool {
	return sem != nil && sem.created && sem.owner == s
}

func (ex *execution) tcbOrNil() *TCB {
	if ex == nil {
		return nil
	}
	return ex.tcb
}
