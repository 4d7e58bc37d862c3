// Package monitor exposes the state of a kernel: as Prometheus metrics and
// as a thread table drawn on a framebuffer.
package monitor

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"txthread/kernel"
)

// Source is a kernel that can be observed. *kernel.Sim implements it.
type Source interface {
	Threads() []kernel.ThreadInfo
	Stats() kernel.Stats
}

var threadStates = []kernel.ThreadState{
	kernel.StateReady,
	kernel.StateCompleted,
	kernel.StateTerminated,
	kernel.StateSuspended,
	kernel.StateSleep,
	kernel.StateQueueSusp,
	kernel.StateSemaphoreSusp,
}

// Collector implements prometheus.Collector for a kernel. It keeps no state
// of its own: every scrape takes a fresh snapshot of the source.
type Collector struct {
	src Source

	threadState    *prometheus.Desc
	threadRuns     *prometheus.Desc
	threadPriority *prometheus.Desc
	switches       *prometheus.Desc
	ticks          *prometheus.Desc
	threads        *prometheus.Desc
	panicked       *prometheus.Desc
}

// NewCollector creates a collector for src.
func NewCollector(src Source) *Collector {
	return &Collector{
		src: src,
		threadState: prometheus.NewDesc(
			"txthread_thread_state",
			"Kernel state of each thread (1 for the current state, 0 otherwise)",
			[]string{"thread", "state"}, nil,
		),
		threadRuns: prometheus.NewDesc(
			"txthread_thread_run_count",
			"Number of times each thread has been dispatched",
			[]string{"thread"}, nil,
		),
		threadPriority: prometheus.NewDesc(
			"txthread_thread_priority",
			"Current priority of each thread (0 is most urgent)",
			[]string{"thread"}, nil,
		),
		switches: prometheus.NewDesc(
			"txthread_context_switches_total",
			"Total number of context switches",
			nil, nil,
		),
		ticks: prometheus.NewDesc(
			"txthread_kernel_ticks",
			"Current value of the kernel tick counter",
			nil, nil,
		),
		threads: prometheus.NewDesc(
			"txthread_threads",
			"Number of created threads",
			nil, nil,
		),
		panicked: prometheus.NewDesc(
			"txthread_kernel_panicked",
			"1 once a thread has panicked and dispatching has halted",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.threadState
	ch <- c.threadRuns
	ch <- c.threadPriority
	ch <- c.switches
	ch <- c.ticks
	ch <- c.threads
	ch <- c.panicked
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.switches, prometheus.CounterValue, float64(stats.ContextSwitches))
	ch <- prometheus.MustNewConstMetric(c.ticks, prometheus.GaugeValue, float64(stats.Ticks))
	ch <- prometheus.MustNewConstMetric(c.threads, prometheus.GaugeValue, float64(stats.Threads))
	ch <- prometheus.MustNewConstMetric(c.panicked, prometheus.GaugeValue, boolValue(stats.Panicked))

	for _, th := range uniqueNames(c.src.Threads()) {
		for _, st := range threadStates {
			ch <- prometheus.MustNewConstMetric(c.threadState, prometheus.GaugeValue,
				boolValue(th.State == st), th.Name, st.String())
		}
		ch <- prometheus.MustNewConstMetric(c.threadRuns, prometheus.CounterValue, float64(th.RunCount), th.Name)
		ch <- prometheus.MustNewConstMetric(c.threadPriority, prometheus.GaugeValue, float64(th.Priority), th.Name)
	}
}

// uniqueNames suffixes repeated thread names so every thread gets its own
// series ("worker", "worker#2").
func uniqueNames(in []kernel.ThreadInfo) []kernel.ThreadInfo {
	seen := make(map[string]int, len(in))
	out := make([]kernel.ThreadInfo, len(in))
	for i, th := range in {
		seen[th.Name]++
		if n := seen[th.Name]; n > 1 {
			th.Name = th.Name + "#" + strconv.Itoa(n)
		}
		out[i] = th
	}
	return out
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
