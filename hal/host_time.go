//go:build !tinygo

package hal

import "time"

// hostTime turns wall-clock time observed at each step into a stream of
// fixed-length ticks.
type hostTime struct {
	ch     chan uint64
	seq    uint64
	period time.Duration

	last time.Time
	acc  time.Duration
}

func newHostTime(period time.Duration) *hostTime {
	if period <= 0 {
		period = time.Millisecond
	}
	return &hostTime{ch: make(chan uint64, 1024), period: period}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

// step emits the ticks that elapsed since the previous step. The first step
// emits n ticks to get the clock going.
func (t *hostTime) step(n uint64) {
	t.stepAt(time.Now(), n)
}

func (t *hostTime) stepAt(now time.Time, n uint64) {
	if t.last.IsZero() {
		t.last = now
		t.acc = 0
		t.stepN(n)
		return
	}

	t.acc += now.Sub(t.last)
	t.last = now

	ticks := uint64(t.acc / t.period)
	if ticks == 0 {
		return
	}
	t.acc = t.acc % t.period
	t.stepN(ticks)
}

func (t *hostTime) stepN(n uint64) {
	for i := uint64(0); i < n; i++ {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
		}
	}
}
