// Package irq provides the interrupt-safe locking primitives of the kernel:
// a per-core interrupt suppression counter, a reader-writer lock and a spin
// mutex. Every held guard keeps local interrupt delivery off on its core.
package irq

import (
	"fmt"

	"golang.org/x/sys/cpu"
)

// State is the saved interrupt-enable state of one core, as returned by
// Controller.Disable. It is opaque to this package.
type State uintptr

// Controller is the architecture primitive that gates local interrupt
// delivery on one core.
type Controller interface {
	// Disable turns local interrupt delivery off and returns the prior state.
	Disable() State
	// Restore reinstates a state previously returned by Disable.
	Restore(State)
	// Enabled reports whether local interrupts are currently delivered.
	Enabled() bool
}

// CPU tracks interrupt suppression on one core.
//
// Suppression nests: the first PushOff saves the prior state and the matching
// last PopOff restores it, exactly once. A CPU is only ever touched by the
// execution contexts of its own core, so the counter is not atomic.
//
// Every lock acquire and release writes depth. The CPUs of a system are
// allocated back to back at boot and each is written from its own core, so
// the padding keeps two cores off one cache line.
type CPU struct {
	_     cpu.CacheLinePad
	id    int
	ctl   Controller
	depth int32
	saved State
	_     cpu.CacheLinePad
}

// NewCPU returns the suppression state for core id driven by ctl.
func NewCPU(id int, ctl Controller) *CPU {
	if ctl == nil {
		panic("irq: nil controller")
	}
	return &CPU{id: id, ctl: ctl}
}

// ID returns the core number.
func (c *CPU) ID() int { return c.id }

// Depth returns the number of live suppressions on this core.
func (c *CPU) Depth() int { return int(c.depth) }

// Suppressed reports whether interrupts are held off by at least one guard
// (or handler) on this core.
func (c *CPU) Suppressed() bool { return c.depth > 0 }

// Enabled reports whether the controller currently delivers interrupts.
func (c *CPU) Enabled() bool { return c.ctl.Enabled() }

// PushOff disables local interrupts. Interrupts are turned off before the
// depth is recorded so an interrupt cannot observe a half-updated counter.
func (c *CPU) PushOff() {
	s := c.ctl.Disable()
	if c.depth == 0 {
		c.saved = s
	}
	c.depth++
}

// PopOff undoes one PushOff. The state saved by the outermost PushOff is
// restored when the depth returns to zero.
func (c *CPU) PopOff() {
	if c.ctl.Enabled() {
		panic(fmt.Sprintf("irq: cpu%d: pop with interrupts enabled", c.id))
	}
	if c.depth <= 0 {
		panic(fmt.Sprintf("irq: cpu%d: unbalanced pop", c.id))
	}
	c.depth--
	if c.depth == 0 {
		c.ctl.Restore(c.saved)
	}
}
