package irq

import "sync/atomic"

// Soft is a software interrupt controller for cores without an interrupt
// flag the kernel can reach, such as the host build. It only records whether
// delivery is enabled; interrupt sources are expected to check Enabled.
type Soft struct {
	off atomic.Bool
}

// Disable implements Controller.
func (s *Soft) Disable() State {
	if s.off.Swap(true) {
		return 0
	}
	return 1
}

// Restore implements Controller.
func (s *Soft) Restore(st State) { s.off.Store(st == 0) }

// Enabled implements Controller.
func (s *Soft) Enabled() bool { return !s.off.Load() }
