package monitor

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"txthread/trace"
)

// Events is a trace recorder whose recent events can be read back.
// *trace.Ring implements it.
type Events interface {
	Snapshot() []trace.Event
}

type threadView struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Priority  uint   `json:"priority"`
	Threshold uint   `json:"preemptThreshold"`
	RunCount  uint32 `json:"runCount"`
	StackSize int    `json:"stackSize"`
}

type statsView struct {
	Ticks           uint32 `json:"ticks"`
	ContextSwitches uint64 `json:"contextSwitches"`
	Threads         int    `json:"threads"`
	Panicked        bool   `json:"panicked"`
}

type eventView struct {
	Seq    uint64 `json:"seq"`
	Tick   uint32 `json:"tick"`
	Kind   string `json:"kind"`
	Thread string `json:"thread"`
	Arg    uint64 `json:"arg"`
}

// NewRouter serves the kernel state over HTTP:
//
//	GET /metrics   Prometheus exposition of g
//	GET /threads   thread table as JSON
//	GET /stats     kernel counters as JSON
//	GET /trace     recent trace events as JSON (404 when ev is nil)
//	GET /healthz   200 until a thread panics, 503 after
func NewRouter(src Source, g prometheus.Gatherer, ev Events) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	r.Get("/threads", func(w http.ResponseWriter, req *http.Request) {
		threads := src.Threads()
		out := make([]threadView, 0, len(threads))
		for _, th := range threads {
			out = append(out, threadView{
				Name:      th.Name,
				State:     th.State.String(),
				Priority:  th.Priority,
				Threshold: th.PreemptThreshold,
				RunCount:  th.RunCount,
				StackSize: th.StackSize,
			})
		}
		render.JSON(w, req, out)
	})
	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		st := src.Stats()
		render.JSON(w, req, statsView(st))
	})
	r.Get("/trace", func(w http.ResponseWriter, req *http.Request) {
		if ev == nil {
			http.NotFound(w, req)
			return
		}
		events := ev.Snapshot()
		out := make([]eventView, 0, len(events))
		for _, e := range events {
			out = append(out, eventView{Seq: e.Seq, Tick: e.Tick, Kind: e.Kind.String(), Thread: e.Thread, Arg: e.Arg})
		}
		render.JSON(w, req, out)
	})
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if src.Stats().Panicked {
			render.Status(req, http.StatusServiceUnavailable)
			render.PlainText(w, req, "panicked")
			return
		}
		render.PlainText(w, req, "ok")
	})
	return r
}
