//go:build !tinygo

package hal

import "time"

// Config sizes the host machine.
type Config struct {
	Width  int
	Height int
	// TickHz is the rate of the Time tick stream.
	TickHz int
}

func (c Config) withDefaults() Config {
	if c.Width <= 0 {
		c.Width = 320
	}
	if c.Height <= 0 {
		c.Height = 320
	}
	if c.TickHz <= 0 {
		c.TickHz = 1000
	}
	return c
}

type hostHAL struct {
	fb *hostFramebuffer
	t  *hostTime
}

// New returns a host HAL implementation.
func New(cfg Config) HAL {
	return newHost(cfg)
}

func newHost(cfg Config) *hostHAL {
	cfg = cfg.withDefaults()
	return &hostHAL{
		fb: newHostFramebuffer(cfg.Width, cfg.Height),
		t:  newHostTime(time.Second / time.Duration(cfg.TickHz)),
	}
}

func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Time() Time       { return h.t }

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }
