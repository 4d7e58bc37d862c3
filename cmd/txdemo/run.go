package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"txthread/app"
	"txthread/hal"
	"txthread/monitor"
	"txthread/trace"
)

func run(ctx context.Context, o options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	logger := log.NewEntry(o.logger())
	ring := trace.NewRing(o.TraceRing)
	recs := []trace.Recorder{ring}
	if o.TraceDB != "" {
		w, err := trace.NewSQLiteWriter(o.TraceDB)
		if err != nil {
			return err
		}
		defer func() {
			if err := w.Close(); err != nil {
				logger.WithError(err).Warn("close trace database")
			}
		}()
		recs = append(recs, w)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	var (
		sys    *app.System
		router atomic.Pointer[chi.Mux]
	)
	newApp := func(h hal.HAL) func() error {
		sys = app.New(h, app.Config{
			TicksPerSecond: o.TickHz,
			Items:          o.Items,
			RedrawEvery:    uint64(max(1, o.FPS/10)),
			Recorder:       trace.Tee(recs...),
			Logger:         logger.WithField("component", "app"),
		})
		reg.MustRegister(monitor.NewCollector(sys.Kernel()))
		router.Store(monitor.NewRouter(sys.Kernel(), reg, ring))
		return sys.Step
	}

	g, gctx := errgroup.WithContext(ctx)
	var srv *http.Server
	if o.MetricsAddr != "" {
		ln, err := net.Listen("tcp", o.MetricsAddr)
		if err != nil {
			return err
		}
		srv = &http.Server{
			Handler:           pending(&router),
			ReadHeaderTimeout: 5 * time.Second,
		}
		logger.WithField("addr", ln.Addr().String()).Info("serving metrics")
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	cfg := hal.Config{Width: o.Width, Height: o.Height, TickHz: int(o.TickHz)}
	var runErr error
	if o.Headless {
		runErr = hal.RunHeadless(gctx, newApp, hal.HeadlessConfig{Config: cfg, Hz: o.FPS, Frames: o.Frames})
	} else {
		runErr = hal.RunWindow(newApp, cfg)
	}
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("metrics server shutdown")
		}
	}
	if sys != nil {
		logger.WithField("done", sys.Done()).Info("demo finished")
		sys.Close()
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return runErr
}

// pending serves 503 until the kernel exists and its router is stored.
func pending(router *atomic.Pointer[chi.Mux]) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := router.Load(); h != nil {
			h.ServeHTTP(w, r)
			return
		}
		http.Error(w, "starting", http.StatusServiceUnavailable)
	})
}
