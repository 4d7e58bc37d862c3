package kernel_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"txthread/kernel"
	"txthread/trace"
)

var _ = Describe("Sim", func() {
	var (
		sim  *kernel.Sim
		ring *trace.Ring

		mu    sync.Mutex
		order []string
	)

	note := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}
	seen := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), order...)
	}

	BeforeEach(func() {
		ring = trace.NewRing(256)
		sim = kernel.NewSim(kernel.Config{Logger: quietLogger(), Recorder: ring})
		order = nil
	})

	AfterEach(func() {
		sim.Stop()
	})

	Context("thread creation", func() {
		It("should reject bad parameters", func() {
			var t kernel.TCB
			entry := func(uintptr) {}
			p := kernel.ThreadParams{Name: "t", Entry: entry, Stack: make([]byte, kernel.MinStackSize), Priority: 4, PreemptThreshold: 4}

			Expect(sim.CreateThread(nil, p)).To(Equal(kernel.PtrError))

			small := p
			small.Stack = make([]byte, kernel.MinStackSize-1)
			Expect(sim.CreateThread(&t, small)).To(Equal(kernel.SizeError))

			prio := p
			prio.Priority, prio.PreemptThreshold = kernel.MaxPriorities, kernel.MaxPriorities
			Expect(sim.CreateThread(&t, prio)).To(Equal(kernel.PriorityError))

			thresh := p
			thresh.PreemptThreshold = 5
			Expect(sim.CreateThread(&t, thresh)).To(Equal(kernel.ThreshError))

			start := p
			start.Start = 7
			Expect(sim.CreateThread(&t, start)).To(Equal(kernel.StartError))

			Expect(sim.CreateThread(&t, p)).To(Equal(kernel.Success))
			Expect(sim.CreateThread(&t, p)).To(Equal(kernel.ThreadError))
		})

		It("should leave a created thread dormant", func() {
			var t kernel.TCB
			ran := make(chan struct{}, 1)
			spawn(sim, &t, "dormant", 3, func() { ran <- struct{}{} })

			Consistently(ran, 20*time.Millisecond).ShouldNot(Receive())
			info, st := sim.ThreadInfo(&t)
			Expect(st).To(Equal(kernel.Success))
			Expect(info.State).To(Equal(kernel.StateSuspended))
			Expect(info.RunCount).To(BeZero())
			Expect(info.StackSize).To(Equal(kernel.DefaultStackSize))
		})

		It("should run an auto-started thread", func() {
			var t kernel.TCB
			ran := make(chan struct{})
			Expect(sim.CreateThread(&t, kernel.ThreadParams{
				Name:  "auto",
				Entry: func(uintptr) { close(ran) },
				Stack: make([]byte, kernel.MinStackSize),
				Start: kernel.AutoStart,
			})).To(Equal(kernel.Success))

			Eventually(ran).Should(BeClosed())
			Eventually(stateOf(sim, &t)).Should(Equal(kernel.StateCompleted))
		})

		It("should refuse to delete a live thread", func() {
			var t kernel.TCB
			spawn(sim, &t, "live", 3, func() {})
			Expect(sim.DeleteThread(&t)).To(Equal(kernel.DeleteError))
			Expect(sim.TerminateThread(&t)).To(Equal(kernel.Success))
			Expect(sim.DeleteThread(&t)).To(Equal(kernel.Success))
			Expect(sim.DeleteThread(&t)).To(Equal(kernel.ThreadError))
		})
	})

	Context("dispatching", func() {
		It("should pass the input word to the entry function", func() {
			var t kernel.TCB
			got := make(chan uintptr, 1)
			Expect(sim.CreateThread(&t, kernel.ThreadParams{
				Name:  "input",
				Entry: func(in uintptr) { got <- in },
				Input: 42,
				Stack: make([]byte, kernel.MinStackSize),
			})).To(Equal(kernel.Success))
			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			Eventually(got).Should(Receive(Equal(uintptr(42))))
		})

		It("should preempt for a more urgent thread", func() {
			var low, high kernel.TCB
			done := make(chan struct{})
			spawn(sim, &high, "high", 5, func() { note("high") })
			spawn(sim, &low, "low", 10, func() {
				note("low-1")
				sim.ResumeThread(&high)
				note("low-2")
				close(done)
			})

			Expect(sim.ResumeThread(&low)).To(Equal(kernel.Success))
			Eventually(done).Should(BeClosed())
			Expect(seen()).To(Equal([]string{"low-1", "high", "low-2"}))
		})

		It("should not preempt within the preemption threshold", func() {
			var low, high kernel.TCB
			done := make(chan struct{})
			spawn(sim, &high, "high", 5, func() {
				note("high")
				close(done)
			})
			Expect(sim.CreateThread(&low, kernel.ThreadParams{
				Name: "low",
				Entry: func(uintptr) {
					note("low-1")
					sim.ResumeThread(&high)
					note("low-2")
				},
				Stack:            make([]byte, kernel.MinStackSize),
				Priority:         10,
				PreemptThreshold: 4,
			})).To(Equal(kernel.Success))

			Expect(sim.ResumeThread(&low)).To(Equal(kernel.Success))
			Eventually(done).Should(BeClosed())
			Expect(seen()).To(Equal([]string{"low-1", "low-2", "high"}))
		})

		It("should run equal priorities first come first served", func() {
			var a, b kernel.TCB
			done := make(chan struct{})
			spawn(sim, &b, "b", 7, func() {
				note("b")
				close(done)
			})
			spawn(sim, &a, "a", 7, func() {
				note("a-1")
				sim.ResumeThread(&b)
				note("a-2")
			})

			Expect(sim.ResumeThread(&a)).To(Equal(kernel.Success))
			Eventually(done).Should(BeClosed())
			Expect(seen()).To(Equal([]string{"a-1", "a-2", "b"}))
		})

		It("should hand the CPU over on relinquish", func() {
			var a, b kernel.TCB
			done := make(chan struct{})
			spawn(sim, &b, "b", 7, func() { note("b") })
			spawn(sim, &a, "a", 7, func() {
				note("a-1")
				sim.ResumeThread(&b)
				sim.Relinquish()
				note("a-2")
				close(done)
			})

			Expect(sim.ResumeThread(&a)).To(Equal(kernel.Success))
			Eventually(done).Should(BeClosed())
			Expect(seen()).To(Equal([]string{"a-1", "b", "a-2"}))
		})

		It("should unwind a yielding thread that is terminated", func() {
			var a, b kernel.TCB
			gone := make(chan struct{})
			done := make(chan kernel.Status, 1)
			spawn(sim, &a, "yielder", 5, func() {
				defer close(gone)
				for {
					sim.Relinquish()
				}
			})
			spawn(sim, &b, "killer", 5, func() {
				done <- sim.TerminateThread(&a)
			})

			Expect(sim.ResumeThread(&a)).To(Equal(kernel.Success))
			Expect(sim.ResumeThread(&b)).To(Equal(kernel.Success))
			Eventually(done).Should(Receive(Equal(kernel.Success)))
			Eventually(gone).Should(BeClosed())
			Expect(stateOf(sim, &a)()).To(Equal(kernel.StateTerminated))

			var c kernel.TCB
			ran := make(chan struct{})
			spawn(sim, &c, "after", 5, func() { close(ran) })
			Expect(sim.ResumeThread(&c)).To(Equal(kernel.Success))
			Eventually(ran).Should(BeClosed())
		})

		It("should unwind yielding threads when stopped", func() {
			var a, b kernel.TCB
			goneA := make(chan struct{})
			goneB := make(chan struct{})
			var spins atomic.Int64
			yield := func(gone chan struct{}) func() {
				return func() {
					defer close(gone)
					for {
						spins.Add(1)
						sim.Relinquish()
					}
				}
			}
			spawn(sim, &a, "a", 5, yield(goneA))
			spawn(sim, &b, "b", 5, yield(goneB))

			Expect(sim.ResumeThread(&a)).To(Equal(kernel.Success))
			Expect(sim.ResumeThread(&b)).To(Equal(kernel.Success))
			Eventually(spins.Load).Should(BeNumerically(">", 10))

			sim.Stop()
			Eventually(goneA).Should(BeClosed())
			Eventually(goneB).Should(BeClosed())
		})

		It("should let a thread identify itself", func() {
			var t kernel.TCB
			got := make(chan *kernel.TCB, 1)
			spawn(sim, &t, "self", 3, func() { got <- sim.Identify() })

			Expect(sim.Identify()).To(BeNil())
			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			Eventually(got).Should(Receive(BeIdenticalTo(&t)))
		})

		It("should block a thread that suspends itself", func() {
			var t kernel.TCB
			after := make(chan struct{})
			spawn(sim, &t, "self-suspend", 3, func() {
				note("before")
				sim.SuspendThread(sim.Identify())
				note("after")
				close(after)
			})

			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			Eventually(stateOf(sim, &t)).Should(Equal(kernel.StateSuspended))
			Consistently(after, 20*time.Millisecond).ShouldNot(BeClosed())
			Expect(sim.SuspendThread(&t)).To(Equal(kernel.Success))

			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			Eventually(after).Should(BeClosed())
			Expect(seen()).To(Equal([]string{"before", "after"}))
		})

		It("should count context switches", func() {
			var t kernel.TCB
			spawn(sim, &t, "counted", 3, func() {})
			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			Eventually(stateOf(sim, &t)).Should(Equal(kernel.StateCompleted))

			stats := sim.Stats()
			Expect(stats.ContextSwitches).To(BeNumerically(">=", 1))
			Expect(stats.Threads).To(Equal(1))
			Expect(sim.Threads()).To(HaveLen(1))
			Expect(sim.Threads()[0].RunCount).To(Equal(uint32(1)))
		})
	})

	Context("ticker", func() {
		It("should advance the clock until the context ends", func() {
			ctx, cancel := context.WithCancel(context.Background())
			sim.StartTicker(ctx)
			Eventually(sim.TimeGet).Should(BeNumerically(">=", 3))

			cancel()
			time.Sleep(30 * time.Millisecond)
			now := sim.TimeGet()
			Consistently(sim.TimeGet, 50*time.Millisecond).Should(Equal(now))
		})

		It("should wake sleepers from the ticker", func() {
			var t kernel.TCB
			woke := make(chan kernel.Status, 1)
			spawn(sim, &t, "sleeper", 3, func() { woke <- sim.Sleep(2) })
			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			sim.StartTicker(context.Background())
			Eventually(woke).Should(Receive(Equal(kernel.Success)))
		})
	})

	Context("sleeping", func() {
		It("should wake a sleeper after the requested ticks", func() {
			var t kernel.TCB
			woke := make(chan kernel.Status, 1)
			spawn(sim, &t, "sleeper", 3, func() { woke <- sim.Sleep(3) })

			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			Eventually(stateOf(sim, &t)).Should(Equal(kernel.StateSleep))

			sim.Tick()
			sim.Tick()
			Consistently(woke, 20*time.Millisecond).ShouldNot(Receive())
			sim.Tick()
			Eventually(woke).Should(Receive(Equal(kernel.Success)))
			Expect(sim.TimeGet()).To(Equal(uint32(3)))
		})

		It("should reject sleeping outside a thread", func() {
			Expect(sim.Sleep(1)).To(Equal(kernel.CallerError))
		})

		It("should suspend a sleeper once its sleep ends", func() {
			var t kernel.TCB
			woke := make(chan struct{})
			spawn(sim, &t, "sleeper", 3, func() {
				sim.Sleep(1)
				close(woke)
			})

			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			Eventually(stateOf(sim, &t)).Should(Equal(kernel.StateSleep))
			Expect(sim.SuspendThread(&t)).To(Equal(kernel.Success))

			sim.Tick()
			Expect(stateOf(sim, &t)()).To(Equal(kernel.StateSuspended))
			Consistently(woke, 20*time.Millisecond).ShouldNot(BeClosed())

			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			Eventually(woke).Should(BeClosed())
		})
	})

	Context("termination and notification", func() {
		It("should notify entry and exit of a completing thread", func() {
			var t kernel.TCB
			ids := make(chan kernel.NotifyID, 2)
			spawn(sim, &t, "notified", 3, func() {})
			Expect(sim.EntryExitNotify(&t, func(_ *kernel.TCB, id kernel.NotifyID) { ids <- id })).
				To(Equal(kernel.Success))

			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			Eventually(ids).Should(Receive(Equal(kernel.NotifyEntry)))
			Eventually(ids).Should(Receive(Equal(kernel.NotifyExit)))
			Expect(stateOf(sim, &t)()).To(Equal(kernel.StateCompleted))
		})

		It("should notify exit when a sleeping thread is terminated", func() {
			var t kernel.TCB
			ids := make(chan kernel.NotifyID, 2)
			after := make(chan struct{})
			spawn(sim, &t, "victim", 3, func() {
				sim.Sleep(kernel.WaitForever)
				close(after)
			})
			Expect(sim.EntryExitNotify(&t, func(_ *kernel.TCB, id kernel.NotifyID) { ids <- id })).
				To(Equal(kernel.Success))

			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			Eventually(stateOf(sim, &t)).Should(Equal(kernel.StateSleep))
			Expect(sim.TerminateThread(&t)).To(Equal(kernel.Success))

			Expect(ids).To(Receive(Equal(kernel.NotifyEntry)))
			Expect(ids).To(Receive(Equal(kernel.NotifyExit)))
			Expect(stateOf(sim, &t)()).To(Equal(kernel.StateTerminated))
			Consistently(after, 20*time.Millisecond).ShouldNot(BeClosed())
			Expect(sim.TerminateThread(&t)).To(Equal(kernel.Success))
		})

		It("should end a thread that terminates itself", func() {
			var t kernel.TCB
			spawn(sim, &t, "quitter", 3, func() {
				note("before")
				sim.TerminateThread(sim.Identify())
				note("after")
			})

			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			Eventually(stateOf(sim, &t)).Should(Equal(kernel.StateTerminated))
			Consistently(seen, 20*time.Millisecond).Should(Equal([]string{"before"}))
		})

		It("should reset a finished thread to dormant", func() {
			var t kernel.TCB
			runs := make(chan struct{}, 2)
			spawn(sim, &t, "again", 3, func() { runs <- struct{}{} })

			Expect(sim.ResetThread(&t)).To(Equal(kernel.NotDone))
			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			Eventually(stateOf(sim, &t)).Should(Equal(kernel.StateCompleted))
			Expect(sim.ResumeThread(&t)).To(Equal(kernel.ResumeError))
			Expect(sim.SuspendThread(&t)).To(Equal(kernel.SuspendError))

			Expect(sim.ResetThread(&t)).To(Equal(kernel.Success))
			Expect(stateOf(sim, &t)()).To(Equal(kernel.StateSuspended))
			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			Eventually(stateOf(sim, &t)).Should(Equal(kernel.StateCompleted))
			Expect(runs).To(HaveLen(2))

			info, _ := sim.ThreadInfo(&t)
			Expect(info.RunCount).To(Equal(uint32(2)))
		})

		It("should change priority and threshold together", func() {
			var t kernel.TCB
			spawn(sim, &t, "prio", 9, func() {})
			old, st := sim.PriorityChange(&t, 2)
			Expect(st).To(Equal(kernel.Success))
			Expect(old).To(Equal(uint(9)))

			info, _ := sim.ThreadInfo(&t)
			Expect(info.Priority).To(Equal(uint(2)))
			Expect(info.PreemptThreshold).To(Equal(uint(2)))

			_, st = sim.PriorityChange(&t, kernel.MaxPriorities)
			Expect(st).To(Equal(kernel.PriorityError))
		})
	})

	Context("semaphores", func() {
		var sem kernel.Semaphore

		BeforeEach(func() {
			sem = kernel.Semaphore{}
			Expect(sim.SemaphoreCreate(&sem, "sem", 0)).To(Equal(kernel.Success))
		})

		It("should hand a put to a waiting thread", func() {
			var t kernel.TCB
			got := make(chan kernel.Status, 1)
			spawn(sim, &t, "taker", 3, func() { got <- sim.SemaphoreGet(&sem, kernel.WaitForever) })

			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			Eventually(stateOf(sim, &t)).Should(Equal(kernel.StateSemaphoreSusp))
			Expect(sim.SemaphorePut(&sem)).To(Equal(kernel.Success))
			Eventually(got).Should(Receive(Equal(kernel.Success)))
		})

		It("should time out a bounded get", func() {
			var t kernel.TCB
			got := make(chan kernel.Status, 1)
			spawn(sim, &t, "taker", 3, func() { got <- sim.SemaphoreGet(&sem, 2) })

			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			Eventually(stateOf(sim, &t)).Should(Equal(kernel.StateSemaphoreSusp))
			sim.Tick()
			sim.Tick()
			Eventually(got).Should(Receive(Equal(kernel.NoInstance)))
		})

		It("should release waiters when deleted", func() {
			var t kernel.TCB
			got := make(chan kernel.Status, 1)
			spawn(sim, &t, "taker", 3, func() { got <- sim.SemaphoreGet(&sem, kernel.WaitForever) })

			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			Eventually(stateOf(sim, &t)).Should(Equal(kernel.StateSemaphoreSusp))
			Expect(sim.SemaphoreDelete(&sem)).To(Equal(kernel.Success))
			Eventually(got).Should(Receive(Equal(kernel.Deleted)))
			Expect(sim.SemaphorePut(&sem)).To(Equal(kernel.SemaphoreError))
		})

		It("should serve callers outside kernel threads", func() {
			got := make(chan kernel.Status, 1)
			go func() { got <- sim.SemaphoreGet(&sem, kernel.WaitForever) }()
			Expect(sim.SemaphorePut(&sem)).To(Equal(kernel.Success))
			Eventually(got).Should(Receive(Equal(kernel.Success)))
			Expect(sim.SemaphoreGet(&sem, kernel.NoWait)).To(Equal(kernel.NoInstance))
		})

		It("should enforce the ceiling", func() {
			Expect(sim.SemaphoreCeilingPut(&sem, 0)).To(Equal(kernel.InvalidCeiling))
			Expect(sim.SemaphoreCeilingPut(&sem, 1)).To(Equal(kernel.Success))
			Expect(sim.SemaphoreCeilingPut(&sem, 1)).To(Equal(kernel.CeilingExceeded))
			Expect(sim.SemaphoreGet(&sem, kernel.NoWait)).To(Equal(kernel.Success))
			Expect(sim.SemaphoreGet(&sem, kernel.NoWait)).To(Equal(kernel.NoInstance))
		})
	})

	Context("panics", func() {
		It("should report a thread panic and halt dispatching", func() {
			var faulty, other kernel.TCB
			infos := make(chan kernel.PanicInfo, 1)
			ran := make(chan struct{}, 1)
			sim.SetPanicHandler(func(info kernel.PanicInfo) { infos <- info })
			spawn(sim, &faulty, "faulty", 3, func() { panic("boom") })
			spawn(sim, &other, "other", 3, func() { ran <- struct{}{} })

			Expect(sim.ResumeThread(&faulty)).To(Equal(kernel.Success))
			var info kernel.PanicInfo
			Eventually(infos).Should(Receive(&info))
			Expect(info.Thread).To(Equal("faulty"))
			Expect(info.Value).To(Equal("boom"))
			Expect(sim.InPanicMode()).To(BeTrue())
			Expect(stateOf(sim, &faulty)()).To(Equal(kernel.StateTerminated))

			Expect(sim.ResumeThread(&other)).To(Equal(kernel.Success))
			Consistently(ran, 20*time.Millisecond).ShouldNot(Receive())
		})
	})

	Context("tracing", func() {
		It("should record the thread lifecycle", func() {
			var t kernel.TCB
			spawn(sim, &t, "traced", 3, func() {})
			Expect(sim.ResumeThread(&t)).To(Equal(kernel.Success))
			Eventually(stateOf(sim, &t)).Should(Equal(kernel.StateCompleted))

			var kinds []trace.Kind
			for i, ev := range ring.Snapshot() {
				Expect(ev.Thread).To(Equal("traced"))
				Expect(ev.Seq).To(Equal(uint64(i + 1)))
				kinds = append(kinds, ev.Kind)
			}
			Expect(kinds).To(Equal([]trace.Kind{
				trace.KindCreate, trace.KindResume, trace.KindSwitch, trace.KindComplete,
			}))
		})
	})
})
