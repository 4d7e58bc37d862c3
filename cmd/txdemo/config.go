package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "TXDEMO_"

type options struct {
	TickHz      uint32
	FPS         int
	Frames      uint64
	Items       int
	Headless    bool
	Width       int
	Height      int
	MetricsAddr string
	TraceDB     string
	TraceRing   int
	LogLevel    string
	LogFormat   string
}

func defaultOptions() options {
	return options{
		TickHz:      100,
		FPS:         60,
		Items:       32,
		Width:       320,
		Height:      240,
		MetricsAddr: "localhost:9464",
		TraceRing:   4096,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// loadDotEnv reads .env files into the process environment. Variables that
// are already set win. A missing file is not an error.
func loadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// applyEnv overrides the defaults with TXDEMO_* variables. Flags given on
// the command line are applied after this and win.
func (o *options) applyEnv(getenv func(string) string) error {
	var errs []error
	str := func(name string, dst *string) {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, bits int, set func(uint64)) {
		v := getenv(envPrefix + name)
		if v == "" {
			return
		}
		n, err := strconv.ParseUint(v, 10, bits)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		set(n)
	}
	flag := func(name string, dst *bool) {
		v := getenv(envPrefix + name)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		*dst = b
	}

	num("HZ", 32, func(n uint64) { o.TickHz = uint32(n) })
	num("FPS", 31, func(n uint64) { o.FPS = int(n) })
	num("FRAMES", 64, func(n uint64) { o.Frames = n })
	num("ITEMS", 31, func(n uint64) { o.Items = int(n) })
	num("WIDTH", 15, func(n uint64) { o.Width = int(n) })
	num("HEIGHT", 15, func(n uint64) { o.Height = int(n) })
	num("TRACE_RING", 31, func(n uint64) { o.TraceRing = int(n) })
	flag("HEADLESS", &o.Headless)
	str("METRICS_ADDR", &o.MetricsAddr)
	str("TRACE_DB", &o.TraceDB)
	str("LOG_LEVEL", &o.LogLevel)
	str("LOG_FORMAT", &o.LogFormat)
	return errors.Join(errs...)
}

func (o options) validate() error {
	switch {
	case o.TickHz == 0:
		return errors.New("tick rate must be positive")
	case o.FPS <= 0:
		return errors.New("frame rate must be positive")
	case o.Items <= 0:
		return errors.New("items must be positive")
	case o.Width <= 0 || o.Height <= 0:
		return fmt.Errorf("invalid screen size %dx%d", o.Width, o.Height)
	case o.TraceRing <= 0:
		return errors.New("trace ring size must be positive")
	}
	if _, err := log.ParseLevel(o.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(o.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", o.LogFormat)
	}
	return nil
}

func (o options) logger() *log.Logger {
	l := log.New()
	l.SetOutput(os.Stderr)
	if lvl, err := log.ParseLevel(o.LogLevel); err == nil {
		l.SetLevel(lvl)
	}
	if strings.EqualFold(o.LogFormat, "json") {
		l.SetFormatter(&log.JSONFormatter{})
	} else {
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return l
}
