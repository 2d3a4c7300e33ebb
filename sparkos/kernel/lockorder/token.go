package lockorder

import (
	"fmt"

	"sparkcore/sparkos/kernel/irq"
)

// OrderViolation describes a broken lock ordering rule. It is the panic value
// of every ordering check; ordering bugs are fatal.
type OrderViolation struct {
	Context string
	Op      string
	Lock    string
	Level   Level
	Bound   Level
	Reason  string
}

func (v *OrderViolation) Error() string {
	return fmt.Sprintf("lock order violation in %s: %s %q (%s) under bound %s: %s",
		v.Context, v.Op, v.Lock, v.Level, v.Bound, v.Reason)
}

// Exec is one execution context: a task activation or an interrupt handler
// invocation. It records the levels it currently holds and the core whose
// interrupts its guards suppress.
//
// An Exec must not be shared between goroutines running at the same time.
type Exec struct {
	name  string
	cpu   *irq.CPU
	held  [Levels]Level
	depth uint8
}

// NewExec returns an execution context running on cpu.
func NewExec(name string, cpu *irq.CPU) *Exec {
	if cpu == nil {
		panic("lockorder: nil cpu")
	}
	return &Exec{name: name, cpu: cpu}
}

// Name returns the context name used in violation reports.
func (e *Exec) Name() string { return e.name }

// CPU returns the core the context runs on.
func (e *Exec) CPU() *irq.CPU { return e.cpu }

// Depth returns the number of locks currently held by the context.
func (e *Exec) Depth() int { return int(e.depth) }

// Begin returns the clean token of the context. It fails fast if the context
// still holds a lock: the clean token only exists at the start of a context.
func (e *Exec) Begin() Token[Clean] {
	if e.depth != 0 {
		e.fail("begin", "", e.held[e.depth-1], unbounded, "context already holds locks")
	}
	return Token[Clean]{e: e}
}

// Rebind moves an idle context to another core, e.g. when a task is resumed
// on a different core than the one it last ran on.
func (e *Exec) Rebind(cpu *irq.CPU) {
	if e.depth != 0 {
		e.fail("rebind", "", e.held[e.depth-1], unbounded, "context holds locks across a switch")
	}
	e.cpu = cpu
}

func (e *Exec) fail(op, lock string, level, bound Level, reason string) {
	panic(&OrderViolation{Context: e.name, Op: op, Lock: lock, Level: level, Bound: bound, Reason: reason})
}

// enter records the acquisition of a lock at level under a token of the given
// depth and bound, and returns the new depth.
func (e *Exec) enter(op, lock string, depth uint8, bound, level Level) uint8 {
	if depth != e.depth {
		e.fail(op, lock, level, bound, "stale token: a lock acquired with a newer token is still held")
	}
	if level >= bound {
		e.fail(op, lock, level, bound, "level not below token bound")
	}
	e.held[e.depth] = level
	e.depth++
	return e.depth
}

// leave records the release of the lock acquired at depth.
func (e *Exec) leave(op, lock string, depth uint8, level Level) {
	if depth != e.depth || e.held[depth-1] != level {
		e.fail(op, lock, level, e.bound(), "guards released out of order")
	}
	e.depth--
}

func (e *Exec) bound() Level {
	if e.depth == 0 {
		return unbounded
	}
	return e.held[e.depth-1]
}

// Token is the capability to acquire locks below its bound B within one
// execution context.
//
// A token is consumed by an acquisition: while the returned guard is held,
// only the token returned alongside it is valid. Releasing the guard makes
// the previous token valid again.
type Token[B Bound] struct {
	e     *Exec
	depth uint8
}

// Exec returns the context the token belongs to.
func (t Token[B]) Exec() *Exec { return t.e }

// Bound returns the lowest level that may no longer be acquired.
func (t Token[B]) Bound() Level { return boundOf[B]() }

// Valid reports whether t is the live token of its context.
func (t Token[B]) Valid() bool { return t.e != nil && t.depth == t.e.depth }

func (t Token[B]) exec(op, lock string, level Level) *Exec {
	if t.e == nil {
		panic(&OrderViolation{Context: "?", Op: op, Lock: lock, Level: level, Bound: boundOf[B](), Reason: "zero token"})
	}
	return t.e
}
