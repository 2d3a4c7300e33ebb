// Package trap routes raised interrupt lines to their handlers on whichever
// core services them next.
package trap

import (
	"errors"
	"fmt"
	"math/bits"
	"sync/atomic"

	"sparkcore/sparkos/kernel/lockorder"
)

// MaxLines is the number of interrupt lines.
const MaxLines = 32

var (
	ErrBadLine  = errors.New("trap: line out of range")
	ErrLineBusy = errors.New("trap: line already has a handler")
	ErrSealed   = errors.New("trap: table sealed")
)

// Handler runs in interrupt context with a clean token of its own and local
// interrupts off. It must release every guard it takes before returning.
type Handler func(tok lockorder.Token[lockorder.Clean])

type line struct {
	name string
	h    Handler
}

// Table holds the handlers of all lines and the pending line mask.
//
// Handlers are registered during boot; Seal ends registration before cores
// start servicing.
type Table struct {
	lines   [MaxLines]line
	pending atomic.Uint32
	counts  [MaxLines]atomic.Uint64
	sealed  atomic.Bool
}

// Register installs h for line n.
func (t *Table) Register(n int, name string, h Handler) error {
	if t.sealed.Load() {
		return ErrSealed
	}
	if n < 0 || n >= MaxLines {
		return fmt.Errorf("register %q on line %d: %w", name, n, ErrBadLine)
	}
	if t.lines[n].h != nil {
		return fmt.Errorf("register %q on line %d (%s): %w", name, n, t.lines[n].name, ErrLineBusy)
	}
	t.lines[n] = line{name: name, h: h}
	return nil
}

// Seal ends registration.
func (t *Table) Seal() { t.sealed.Store(true) }

// Raise marks line n pending. It is safe to call from any goroutine; this is
// how device sources signal the kernel.
func (t *Table) Raise(n int) {
	if n < 0 || n >= MaxLines {
		return
	}
	t.pending.Or(1 << uint(n))
}

// Pending reports whether any line is waiting for service.
func (t *Table) Pending() bool { return t.pending.Load() != 0 }

// Count returns how many times line n was serviced.
func (t *Table) Count(n int) uint64 { return t.counts[n].Load() }

// Name returns the name registered for line n.
func (t *Table) Name(n int) string { return t.lines[n].name }

// Service runs the handlers of all pending lines in the interrupt context e.
// Nothing runs while the core has interrupts suppressed; the lines stay
// pending until a later call. It returns the number of handlers run.
func (t *Table) Service(e *lockorder.Exec) int {
	c := e.CPU()
	if c.Suppressed() || !c.Enabled() {
		return 0
	}
	mask := t.pending.Swap(0)
	run := 0
	for mask != 0 {
		n := bits.TrailingZeros32(mask)
		mask &^= 1 << uint(n)
		l := &t.lines[n]
		if l.h == nil {
			continue
		}
		c.PushOff()
		l.h(e.Begin())
		if e.Depth() != 0 {
			panic(fmt.Sprintf("trap: handler %q returned holding %d locks", l.name, e.Depth()))
		}
		c.PopOff()
		t.counts[n].Add(1)
		run++
	}
	return run
}
