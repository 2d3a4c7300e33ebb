package irq

import (
	"runtime"
	"sync/atomic"
)

const writeLocked = -1

// RWLock is a busy-wait reader-writer lock around a value of type V that keeps
// local interrupts suppressed while any guard is held.
//
// Interrupts are turned off before spinning: an interrupt taken while
// spinning could otherwise try to enter the same lock on the same core.
// There is no timeout. A lock that never becomes free is a lock ordering bug.
//
// A waiting writer blocks new readers so a stream of readers cannot starve it.
type RWLock[V any] struct {
	_ [0]func() // prevent accidental copying.

	state   atomic.Int32 // writeLocked, 0 (free) or reader count.
	writers atomic.Int32 // writers waiting for the lock.
	spins   atomic.Uint64
	v       V
}

// NewRWLock returns a lock protecting v.
func NewRWLock[V any](v V) *RWLock[V] {
	l := &RWLock[V]{}
	l.v = v
	return l
}

// Read acquires the lock for shared access on core c.
func (l *RWLock[V]) Read(c *CPU) ReadGuard[V] {
	c.PushOff()
	for !l.tryRead() {
		l.spin()
	}
	return ReadGuard[V]{l: l, cpu: c}
}

// TryRead acquires the lock for shared access if that is possible without
// waiting. Interrupt state is left untouched on failure.
func (l *RWLock[V]) TryRead(c *CPU) (ReadGuard[V], bool) {
	c.PushOff()
	if !l.tryRead() {
		c.PopOff()
		return ReadGuard[V]{}, false
	}
	return ReadGuard[V]{l: l, cpu: c}, true
}

// Write acquires the lock for exclusive access on core c.
func (l *RWLock[V]) Write(c *CPU) WriteGuard[V] {
	c.PushOff()
	if !l.state.CompareAndSwap(0, writeLocked) {
		l.writers.Add(1)
		for !l.state.CompareAndSwap(0, writeLocked) {
			l.spin()
		}
		l.writers.Add(-1)
	}
	return WriteGuard[V]{l: l, cpu: c}
}

// TryWrite acquires the lock for exclusive access if it is free.
func (l *RWLock[V]) TryWrite(c *CPU) (WriteGuard[V], bool) {
	c.PushOff()
	if !l.state.CompareAndSwap(0, writeLocked) {
		c.PopOff()
		return WriteGuard[V]{}, false
	}
	return WriteGuard[V]{l: l, cpu: c}, true
}

// Unguarded returns the protected value without locking.
//
// It is only valid when the caller can prove no other reference to the lock
// exists, e.g. while tearing down the last reference to an object.
func (l *RWLock[V]) Unguarded() *V { return &l.v }

// Spins returns how many times acquirers had to wait.
func (l *RWLock[V]) Spins() uint64 { return l.spins.Load() }

func (l *RWLock[V]) tryRead() bool {
	if l.writers.Load() != 0 {
		return false
	}
	s := l.state.Load()
	return s >= 0 && l.state.CompareAndSwap(s, s+1)
}

func (l *RWLock[V]) spin() {
	l.spins.Add(1)
	runtime.Gosched()
}

// ReadGuard is a held shared acquisition. The zero value is not held.
type ReadGuard[V any] struct {
	l   *RWLock[V]
	cpu *CPU
}

// Held reports whether g still holds the lock.
func (g *ReadGuard[V]) Held() bool { return g.l != nil }

// Value returns the protected value. Callers must not modify it.
func (g *ReadGuard[V]) Value() *V {
	if g.l == nil {
		panic("irq: read guard used after release")
	}
	return &g.l.v
}

// Release drops the shared acquisition and undoes its interrupt suppression.
func (g *ReadGuard[V]) Release() {
	if g.l == nil {
		panic("irq: read guard released twice")
	}
	g.l.state.Add(-1)
	g.l = nil
	g.cpu.PopOff()
}

// WriteGuard is a held exclusive acquisition. The zero value is not held.
type WriteGuard[V any] struct {
	l   *RWLock[V]
	cpu *CPU
}

// Held reports whether g still holds the lock.
func (g *WriteGuard[V]) Held() bool { return g.l != nil }

// Value returns the protected value for modification.
func (g *WriteGuard[V]) Value() *V {
	if g.l == nil {
		panic("irq: write guard used after release")
	}
	return &g.l.v
}

// Release drops the exclusive acquisition and undoes its interrupt
// suppression.
func (g *WriteGuard[V]) Release() {
	if g.l == nil {
		panic("irq: write guard released twice")
	}
	g.l.state.Store(0)
	g.l = nil
	g.cpu.PopOff()
}
