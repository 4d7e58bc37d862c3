// Package hal is the host side of the monitor: a framebuffer to draw the
// thread table into and a tick stream to drive the kernel clock.
package hal

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Time provides a base tick stream. Each value is the sequence number of a
// tick; ticks are dropped rather than queued when the reader falls behind.
type Time interface {
	Ticks() <-chan uint64
}

// HAL is everything the demo firmware needs from the machine.
type HAL interface {
	Display() Display
	Time() Time
}
