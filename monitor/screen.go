package monitor

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"

	"txthread/hal"
	"txthread/internal/buildinfo"
)

// Screen draws the thread table of a kernel into a framebuffer.
type Screen struct {
	src Source
	fb  hal.Framebuffer
	d   *fbDisplay
	log *log.Entry
}

// NewScreen creates a screen for src drawing into fb.
func NewScreen(src Source, fb hal.Framebuffer) *Screen {
	return &Screen{
		src: src,
		fb:  fb,
		d:   &fbDisplay{fb: fb},
		log: log.WithField("component", "monitor"),
	}
}

// Redraw clears the framebuffer, draws the current table and presents it.
func (s *Screen) Redraw() error {
	if s.fb.Format() != hal.PixelFormatRGB565 {
		return fmt.Errorf("monitor: unsupported pixel format %d", s.fb.Format())
	}
	s.fb.ClearRGB(0, 0, 0)

	t := tinyterm.NewTerminal(s.d)
	t.Configure(&tinyterm.Config{
		Font:       &proggy.TinySZ8pt7b,
		FontHeight: 10,
		FontOffset: 6,
	})
	if err := Render(t, s.src); err != nil {
		s.log.WithError(err).Warn("draw thread table")
		return err
	}
	return s.d.Display()
}

// Render writes the thread table as text, one line per thread.
func Render(w io.Writer, src Source) error {
	stats := src.Stats()
	status := "running"
	if stats.Panicked {
		status = "PANIC"
	}
	if _, err := fmt.Fprintf(w, "txthread %s  %s\r\ntick %d  switches %d\r\n\r\n",
		buildinfo.Short(), status, stats.Ticks, stats.ContextSwitches); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%-12s %-14s %3s %6s\r\n", "THREAD", "STATE", "PRI", "RUNS"); err != nil {
		return err
	}
	for _, th := range src.Threads() {
		name := th.Name
		if len(name) > 12 {
			name = name[:12]
		}
		if _, err := fmt.Fprintf(w, "%-12s %-14s %3d %6d\r\n", name, th.State, th.Priority, th.RunCount); err != nil {
			return err
		}
	}
	return nil
}
