//go:build !tinygo

package hal

import "time"

// hostTime turns wall time into a millisecond tick stream. It only advances
// when stepped, so a paused window pauses kernel time.
type hostTime struct {
	ch  chan uint64
	seq uint64

	last time.Time
	acc  time.Duration
}

func newHostTime() *hostTime {
	return &hostTime{ch: make(chan uint64, 1024)}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

// step emits the ticks elapsed since the previous step.
func (t *hostTime) step() {
	now := time.Now()
	if t.last.IsZero() {
		t.last = now
		t.advance(1)
		return
	}
	t.acc += now.Sub(t.last)
	t.last = now

	n := uint64(t.acc / time.Millisecond)
	t.acc %= time.Millisecond
	t.advance(n)
}

func (t *hostTime) advance(n uint64) {
	for i := uint64(0); i < n; i++ {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
		}
	}
}
