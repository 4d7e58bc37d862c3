// Package app is the demo firmware: a handful of threads exercising the
// thread, semaphore and sleep services, with the thread table drawn on the
// host framebuffer.
package app

import (
	"errors"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"txthread/hal"
	"txthread/kernel"
	"txthread/monitor"
	"txthread/semaphore"
	"txthread/thread"
	"txthread/thread/thisthread"
	"txthread/tick"
	"txthread/trace"
)

// ErrHalted is returned by Step once a thread has panicked.
var ErrHalted = errors.New("app: kernel halted after a thread panic")

type Config struct {
	// TicksPerSecond must match the tick rate of the HAL time source.
	TicksPerSecond uint32
	// Items is how many values the producer hands to the consumer.
	Items int
	// RedrawEvery redraws the thread table every that many frames.
	RedrawEvery uint64
	Recorder    trace.Recorder
	Logger      *log.Entry
}

// System is a running demo.
type System struct {
	cfg    Config
	log    *log.Entry
	sim    *kernel.Sim
	ticks  <-chan uint64
	seq    uint64
	screen *monitor.Screen
	frames uint64

	full, empty *semaphore.Binary
	slot        int

	threads  []*thread.Thread
	worker   *thread.Thread
	result   int
	closed   bool
	consumed atomic.Int64
	sum      atomic.Int64
	beats    atomic.Int64
	joined   atomic.Bool
}

// New starts the kernel and the demo threads and binds the kernel for the
// life of the System.
func New(h hal.HAL, cfg Config) *System {
	if cfg.Items <= 0 {
		cfg.Items = 16
	}
	if cfg.RedrawEvery == 0 {
		cfg.RedrawEvery = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = log.WithField("component", "app")
	}

	sim := kernel.NewSim(kernel.Config{
		TicksPerSecond: cfg.TicksPerSecond,
		Logger:         cfg.Logger.WithField("component", "kernel"),
		Recorder:       cfg.Recorder,
	})
	kernel.Bind(sim)

	s := &System{cfg: cfg, log: cfg.Logger, sim: sim}
	sim.SetPanicHandler(func(info kernel.PanicInfo) {
		s.log.WithFields(log.Fields{"thread": info.Thread, "value": info.Value}).
			Errorf("thread panic\n%s", info.Stack)
	})

	if h != nil {
		if t := h.Time(); t != nil {
			s.ticks = t.Ticks()
		}
		if d := h.Display(); d != nil {
			if fb := d.Framebuffer(); fb != nil {
				s.screen = monitor.NewScreen(sim, fb)
			}
		}
	}

	s.full = semaphore.NewBinary(sim, "full")
	s.empty = semaphore.NewBinary(sim, "empty")

	producer := thread.NewStaticFunc[thread.Stack2K](s.produce,
		thread.WithName("producer"), thread.WithPriority(5))
	consumer := thread.NewStaticFunc[thread.Stack2K](s.consume,
		thread.WithName("consumer"), thread.WithPriority(4))
	supervisor := thread.NewStaticFunc[thread.Stack4K](s.supervise,
		thread.WithName("supervisor"), thread.WithPriority(3))
	heartbeat := thread.NewStaticFunc[thread.Stack1K](s.heartbeat,
		thread.WithName("heartbeat"), thread.WithPriority(8))
	// The supervisor resumes the worker; the System owns it so Close can
	// delete it however far the supervisor got.
	worker := thread.NewStaticPtr[thread.Stack2K](func(out *int) {
		*out = fib(20)
		thisthread.SleepFor(2)
	}, &s.result, thread.WithName("worker"), thread.WithPriority(6))
	worker.Create()
	s.worker = &worker.Thread
	s.threads = append(s.threads, s.worker)

	for _, t := range []*thread.Thread{&producer.Thread, &consumer.Thread, &supervisor.Thread, &heartbeat.Thread} {
		t.Create()
		t.Resume()
		s.threads = append(s.threads, t)
	}

	s.log.WithField("threads", len(s.threads)).Info("demo started")
	return s
}

func (s *System) produce() {
	for i := 1; i <= s.cfg.Items; i++ {
		thisthread.SleepFor(1)
		s.slot = i
		s.full.Release()
		s.empty.Acquire()
	}
}

func (s *System) consume() {
	for n := 0; n < s.cfg.Items; n++ {
		s.full.Acquire()
		s.sum.Add(int64(s.slot))
		s.consumed.Add(1)
		s.empty.Release()
	}
	s.log.WithField("sum", s.sum.Load()).Debug("consumer done")
}

func (s *System) supervise() {
	s.worker.Resume()
	s.worker.Join()
	s.log.WithField("result", s.result).Debug("worker joined")
	s.joined.Store(true)
}

func (s *System) heartbeat() {
	for {
		thisthread.SleepFor(tick.OfRate(100*time.Millisecond, s.sim.TicksPerSecond()))
		s.beats.Add(1)
	}
}

func fib(n int) int {
	a, b := 0, 1
	for i := 0; i < n; i++ {
		a, b = b, a+b
	}
	return a
}

// Step advances the kernel clock to the HAL tick count and redraws the
// thread table. It runs once per frame.
func (s *System) Step() error {
	s.drainTicks()
	if s.sim.InPanicMode() {
		return ErrHalted
	}
	s.frames++
	if s.screen != nil && s.frames%s.cfg.RedrawEvery == 0 {
		return s.screen.Redraw()
	}
	return nil
}

func (s *System) drainTicks() {
	if s.ticks == nil {
		return
	}
	for {
		select {
		case seq, ok := <-s.ticks:
			if !ok {
				s.ticks = nil
				return
			}
			for s.seq < seq {
				s.seq++
				s.sim.Tick()
			}
		default:
			return
		}
	}
}

// Kernel returns the kernel the demo runs on.
func (s *System) Kernel() *kernel.Sim { return s.sim }

// Done reports whether the producer, consumer and supervisor have finished.
func (s *System) Done() bool {
	return s.consumed.Load() == int64(s.cfg.Items) && s.joined.Load()
}

// Sum is the total of the values the consumer received.
func (s *System) Sum() int64 { return s.sum.Load() }

// Beats counts heartbeat wakeups.
func (s *System) Beats() int64 { return s.beats.Load() }

// Close deletes the demo threads and semaphores, then stops the kernel and
// unbinds it. Closing twice does nothing.
func (s *System) Close() {
	if s.closed {
		return
	}
	s.closed = true
	// Supervisor before worker: the last thread created is closed first.
	for i := len(s.threads) - 1; i >= 0; i-- {
		s.threads[i].Close()
	}
	s.full.Close()
	s.empty.Close()
	s.sim.Stop()
	kernel.Unbind()
	s.log.WithFields(log.Fields{
		"sum":   s.sum.Load(),
		"beats": s.beats.Load(),
	}).Info("demo stopped")
}
