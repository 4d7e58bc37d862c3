package kernel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"txthread/trace"
)

// Config controls a simulation kernel.
type Config struct {
	// TicksPerSecond is the tick rate (TX_TIMER_TICKS_PER_SECOND).
	TicksPerSecond uint32
	Logger         *log.Entry
	Recorder       trace.Recorder
}

// DefaultConfig returns the ThreadX defaults: 100 ticks per second, the
// standard logrus logger and no trace.
func DefaultConfig() Config {
	return Config{
		TicksPerSecond: 100,
		Logger:         log.WithField("component", "kernel"),
		Recorder:       trace.Discard,
	}
}

// Sim is a host simulation of the kernel contract.
//
// Every kernel thread runs on its own goroutine, but only one of them holds
// the CPU at a time: the highest-priority ready thread, first come first
// served within a priority and without time slicing. A thread gives up the
// CPU only inside a kernel call (blocking, suspending itself, yielding, or
// making a more urgent thread ready). Calls from goroutines that are not
// kernel threads (the ticker, host code, tests) behave like interrupt
// handlers: they never hold the CPU, and the preemption they cause is taken
// at the running thread's next kernel call.
type Sim struct {
	cfg Config
	log *log.Entry

	mu       sync.Mutex
	threads  []*TCB
	ready    [MaxPriorities][]*TCB
	current  *execution
	byGoid   map[uint64]*execution
	sems     map[*Semaphore]struct{}
	timed    []*waiter
	ticks    uint32
	switches uint64
	seq      uint64
	halted   bool
	stopped  bool
	cancel   context.CancelFunc

	panicHandler atomic.Value // func(PanicInfo)
	panicOnce    sync.Once
	panicActive  atomic.Bool
}

var _ Kernel = (*Sim)(nil)

// NewSim creates a simulation kernel. Zero fields of cfg take their
// DefaultConfig values.
func NewSim(cfg Config) *Sim {
	def := DefaultConfig()
	if cfg.TicksPerSecond == 0 {
		cfg.TicksPerSecond = def.TicksPerSecond
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	if cfg.Recorder == nil {
		cfg.Recorder = def.Recorder
	}
	return &Sim{
		cfg:    cfg,
		log:    cfg.Logger,
		byGoid: make(map[uint64]*execution),
		sems:   make(map[*Semaphore]struct{}),
	}
}

// enter locks the kernel on behalf of the caller and returns the caller's
// execution, or nil when the caller is not a kernel thread. A running thread
// that was terminated from outside unwinds here; one that was preempted or
// suspended from outside gives up the CPU here.
func (s *Sim) enter() *execution {
	gid := goroutineID()
	s.mu.Lock()
	ex := s.byGoid[gid]
	if ex == nil || ex.exiting {
		return ex
	}
	if ex.killed {
		s.unwind(ex)
	}
	if s.current == ex {
		s.reschedule(ex, false)
	}
	return ex
}

// settle applies the scheduling consequences of a state change made by the
// caller and unlocks the kernel.
func (s *Sim) settle(ex *execution) {
	if ex != nil && !ex.exiting && s.current == ex {
		s.reschedule(ex, false)
	} else {
		s.kick()
	}
	s.mu.Unlock()
}

// reschedule hands the CPU away from the running thread ex when it is no
// longer ready or a more urgent thread is. With yield set, a ready thread of
// equal priority also takes over. It returns with s.mu held.
func (s *Sim) reschedule(ex *execution, yield bool) {
	self := ex.tcb
	next := s.highestReady()
	if self.state == StateReady && self.exec == ex {
		if next == nil || next == self {
			return
		}
		if !yield && next.priority >= self.threshold {
			return
		}
	}
	s.switchTo(next)
	if !s.park(ex) {
		s.unwind(ex)
	}
}

// kick dispatches on behalf of a caller that does not hold the CPU. A
// running thread keeps the CPU until its next kernel call, where enter
// reschedules it.
func (s *Sim) kick() {
	if s.halted || s.current != nil {
		return
	}
	if next := s.highestReady(); next != nil {
		s.switchTo(next)
	}
}

// park releases the kernel lock and waits until ex is dispatched again. It
// returns with s.mu held; false means the thread was terminated meanwhile.
func (s *Sim) park(ex *execution) bool {
	s.mu.Unlock()
	<-ex.run
	s.mu.Lock()
	return !ex.killed
}

// block suspends the running thread ex on w until woken.
func (s *Sim) block(ex *execution, w *waiter) Status {
	s.switchTo(s.highestReady())
	if !s.park(ex) {
		s.unwind(ex)
	}
	return w.status
}

// unwind ends the goroutine of the terminated thread ex. Its deferred calls
// still reach the kernel as an exiting caller: they never block or hold the
// CPU.
func (s *Sim) unwind(ex *execution) {
	ex.exiting = true
	s.mu.Unlock()
	runtime.Goexit()
}

// switchTo makes next the running thread, starting its goroutine on first
// dispatch. A nil next leaves the CPU idle.
func (s *Sim) switchTo(next *TCB) {
	if s.halted || next == nil {
		s.current = nil
		return
	}
	if next.exec == nil {
		next.exec = newExecution(next)
		go s.threadMain(next.exec)
	}
	if s.current == next.exec {
		return
	}
	s.current = next.exec
	s.switches++
	next.runCount++
	s.record(trace.KindSwitch, next, uint64(next.priority))
	signal(next.exec.run)
}

func (s *Sim) threadMain(ex *execution) {
	t := ex.tcb
	gid := goroutineID()
	s.mu.Lock()
	ex.goid = gid
	s.byGoid[gid] = ex
	s.mu.Unlock()

	defer s.threadExit(ex)

	<-ex.run
	s.mu.Lock()
	if ex.killed {
		s.mu.Unlock()
		return
	}
	entry, input, notify := t.entry, t.input, t.notify
	s.mu.Unlock()

	if notify != nil {
		notify(t, NotifyEntry)
	}
	entry(input)
}

// threadExit runs when a thread's goroutine ends: the entry function
// returned, the thread was terminated, or it panicked.
func (s *Sim) threadExit(ex *execution) {
	r := recover()
	t := ex.tcb

	s.mu.Lock()
	ex.exiting = true
	faulted := r != nil && !ex.killed
	completed := r == nil && !ex.killed
	var notify NotifyFunc
	if t.exec == ex && (faulted || completed) {
		s.readyRemove(t)
		if faulted {
			t.state = StateTerminated
			s.record(trace.KindTerminate, t, 0)
		} else {
			t.state = StateCompleted
			s.record(trace.KindComplete, t, 0)
			notify = t.notify
		}
	}
	ex.killed = true
	s.mu.Unlock()

	if faulted {
		s.triggerPanic(t, r)
	}
	if notify != nil {
		s.notify(t, notify, NotifyExit)
	}

	s.mu.Lock()
	delete(s.byGoid, ex.goid)
	if s.current == ex {
		s.current = nil
		s.kick()
	}
	s.mu.Unlock()
	close(ex.exited)
}

func (s *Sim) notify(t *TCB, fn NotifyFunc, id NotifyID) {
	s.mu.Lock()
	s.record(trace.KindNotify, t, uint64(id))
	s.mu.Unlock()
	fn(t, id)
}

func (s *Sim) highestReady() *TCB {
	for p := range s.ready {
		if q := s.ready[p]; len(q) > 0 {
			return q[0]
		}
	}
	return nil
}

func (s *Sim) readyPush(t *TCB) {
	s.ready[t.priority] = append(s.ready[t.priority], t)
}

func (s *Sim) readyPushFront(t *TCB) {
	q := s.ready[t.priority]
	q = append(q, nil)
	copy(q[1:], q)
	q[0] = t
	s.ready[t.priority] = q
}

func (s *Sim) readyRemove(t *TCB) {
	q := s.ready[t.priority]
	for i, x := range q {
		if x == t {
			s.ready[t.priority] = append(q[:i], q[i+1:]...)
			return
		}
	}
}

// running reports whether t's current execution holds the CPU.
func (s *Sim) running(t *TCB) bool {
	return s.current != nil && s.current.tcb == t && t.exec == s.current
}

func (s *Sim) owns(t *TCB) bool {
	return t != nil && t.created && t.owner == s
}

func (s *Sim) record(k trace.Kind, t *TCB, arg uint64) {
	s.seq++
	s.cfg.Recorder.Record(trace.Event{Seq: s.seq, Tick: s.ticks, Kind: k, Thread: t.Name(), Arg: arg})
}

// wake completes the wait w with st.
func (s *Sim) wake(w *waiter, st Status) {
	w.status = st
	s.dropTimed(w)
	if w.tcb == nil {
		w.ch <- st
		return
	}

	t := w.tcb
	t.wait = nil
	s.record(trace.KindWake, t, uint64(st))
	if t.delayedSuspend {
		t.delayedSuspend = false
		t.state = StateSuspended
		return
	}
	t.state = StateReady
	s.readyPush(t)
}

// cancelWait removes t from whatever it is waiting on.
func (s *Sim) cancelWait(t *TCB) {
	w := t.wait
	if w == nil {
		return
	}
	t.wait = nil
	s.dropTimed(w)
	if w.sem != nil {
		w.sem.remove(w)
	}
}

func (s *Sim) dropTimed(w *waiter) {
	if !w.timed {
		return
	}
	for i, x := range s.timed {
		if x == w {
			s.timed = append(s.timed[:i], s.timed[i+1:]...)
			return
		}
	}
}

// Tick advances the kernel clock by one tick and expires sleeps and timed
// waits that are due.
func (s *Sim) Tick() {
	ex := s.enter()
	s.ticks++
	now := s.ticks

	var due []*waiter
	kept := s.timed[:0]
	for _, w := range s.timed {
		if int32(now-w.deadline) >= 0 {
			due = append(due, w)
		} else {
			kept = append(kept, w)
		}
	}
	s.timed = kept

	for _, w := range due {
		w.timed = false
		if w.sem != nil {
			w.sem.remove(w)
			if w.tcb != nil {
				w.tcb.wait = nil
			}
			s.wake(w, NoInstance)
			continue
		}
		s.wake(w, Success)
	}
	s.settle(ex)
}

// StartTicker calls Tick at the configured rate until ctx is done or the
// kernel is stopped.
func (s *Sim) StartTicker(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	period := time.Second / time.Duration(s.cfg.TicksPerSecond)
	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Tick()
			}
		}
	}()
}

// Stop halts dispatching, stops the ticker and unwinds every thread
// goroutine that is waiting in the kernel. A thread that is executing its
// own code unwinds at its next kernel call. Non-thread waiters are released
// with Deleted.
func (s *Sim) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	s.halted = true
	if s.cancel != nil {
		s.cancel()
	}
	for _, t := range s.threads {
		if ex := t.exec; ex != nil {
			ex.killed = true
			signal(ex.run)
		}
	}
	for _, w := range s.timed {
		w.timed = false
	}
	s.timed = nil
	for sem := range s.sems {
		for _, w := range sem.waiters {
			if w.tcb == nil {
				w.status = Deleted
				w.ch <- Deleted
			}
		}
		sem.waiters = nil
	}
	s.log.Debug("kernel stopped")
}

// TimeGet returns the tick counter (tx_time_get).
func (s *Sim) TimeGet() uint32 {
	ex := s.enter()
	now := s.ticks
	s.settle(ex)
	return now
}

// TicksPerSecond returns the configured tick rate.
func (s *Sim) TicksPerSecond() uint32 { return s.cfg.TicksPerSecond }

// Stats returns kernel-wide counters.
func (s *Sim) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Ticks:           s.ticks,
		ContextSwitches: s.switches,
		Threads:         len(s.threads),
		Panicked:        s.panicActive.Load(),
	}
}

// Threads returns a snapshot of every created thread, in creation order.
func (s *Sim) Threads() []ThreadInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ThreadInfo, 0, len(s.threads))
	for _, t := range s.threads {
		out = append(out, t.info())
	}
	return out
}

func (t *TCB) info() ThreadInfo {
	return ThreadInfo{
		Name:             t.name,
		State:            t.state,
		RunCount:         t.runCount,
		Priority:         t.priority,
		PreemptThreshold: t.threshold,
		TimeSlice:        t.timeSlice,
		StackSize:        len(t.stack),
	}
}
