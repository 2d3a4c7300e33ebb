//go:build tinygo && baremetal

package hal

import (
	"machine"
	"runtime/interrupt"
	"time"

	"sparkcore/sparkos/kernel/irq"
)

type tinyGoDisplay struct {
	fb Framebuffer
}

func (d tinyGoDisplay) Framebuffer() Framebuffer { return d.fb }

type tinyGoInput struct {
	kbd Keyboard
}

func (in tinyGoInput) Keyboard() Keyboard { return in.kbd }

// No pointer device on the supported boards.
func (in tinyGoInput) Pointer() Pointer { return nil }

type tinyGoTime struct {
	ch  chan uint64
	seq uint64
}

func newTinyGoTime() *tinyGoTime {
	t := &tinyGoTime{ch: make(chan uint64, 16)}
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

func (t *tinyGoTime) Ticks() <-chan uint64 { return t.ch }

type uartLogger struct {
	uart *machine.UART
}

func newUARTLogger() *uartLogger {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP0,
		RX:       machine.GP1,
	})
	return &uartLogger{uart: uart}
}

func (l *uartLogger) WriteLineString(s string) {
	for i := 0; i < len(s); i++ {
		l.uart.WriteByte(s[i])
	}
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

func (l *uartLogger) WriteLineBytes(b []byte) {
	l.uart.Write(b)
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

// cpuInterrupts masks the interrupts of the core it runs on. The kernel
// drives a single core on the board.
type cpuInterrupts struct {
	ctl cpuController
}

func (c *cpuInterrupts) Cores() int                    { return 1 }
func (c *cpuInterrupts) Controller(int) irq.Controller { return &c.ctl }

// cpuController is only called for the outermost disable and restore of a
// core (see irq.CPU), so it keeps the saved mask itself.
type cpuController struct {
	off   bool
	saved interrupt.State
}

func (c *cpuController) Disable() irq.State {
	st := interrupt.Disable()
	if c.off {
		return 0
	}
	c.off, c.saved = true, st
	return 1
}

func (c *cpuController) Restore(s irq.State) {
	if s == 0 {
		return
	}
	c.off = false
	interrupt.Restore(c.saved)
}

func (c *cpuController) Enabled() bool { return !c.off }
