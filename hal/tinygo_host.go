//go:build tinygo && !baremetal

package hal

import (
	"time"

	"sparkcore/sparkos/kernel/irq"
)

type tinyGoHostHAL struct {
	logger tinyGoHostLogger
	fb     *memFramebuffer
	t      *tinyGoHostTime
	irqs   tinyGoHostInterrupts
}

// New returns a TinyGo-on-host HAL implementation.
//
// This is used by `tinygo run` targets like linux/wasm where there is no MCU
// pin mapping. There are no input devices.
func New() HAL {
	return &tinyGoHostHAL{
		fb: newMemFramebuffer(320, 320),
		t:  newTinyGoHostTime(),
	}
}

func (h *tinyGoHostHAL) Logger() Logger         { return h.logger }
func (h *tinyGoHostHAL) Display() Display       { return tinyGoHostDisplay{fb: h.fb} }
func (h *tinyGoHostHAL) Input() Input           { return tinyGoHostInput{} }
func (h *tinyGoHostHAL) Time() Time             { return h.t }
func (h *tinyGoHostHAL) Interrupts() Interrupts { return &h.irqs }

type tinyGoHostDisplay struct {
	fb Framebuffer
}

func (d tinyGoHostDisplay) Framebuffer() Framebuffer { return d.fb }

type tinyGoHostInput struct{}

func (tinyGoHostInput) Keyboard() Keyboard { return nil }
func (tinyGoHostInput) Pointer() Pointer   { return nil }

type tinyGoHostTime struct {
	ch  chan uint64
	seq uint64
}

func newTinyGoHostTime() *tinyGoHostTime {
	t := &tinyGoHostTime{ch: make(chan uint64, 16)}
	go func() {
		ticker := time.NewTicker(1 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			t.seq++
			select {
			case t.ch <- t.seq:
			default:
			}
		}
	}()
	return t
}

func (t *tinyGoHostTime) Ticks() <-chan uint64 { return t.ch }

type tinyGoHostLogger struct{}

func (tinyGoHostLogger) WriteLineString(s string) { println(s) }
func (tinyGoHostLogger) WriteLineBytes(b []byte)  { println(string(b)) }

// A single simulated core.
type tinyGoHostInterrupts struct {
	ctl irq.Soft
}

func (c *tinyGoHostInterrupts) Cores() int                    { return 1 }
func (c *tinyGoHostInterrupts) Controller(int) irq.Controller { return &c.ctl }
