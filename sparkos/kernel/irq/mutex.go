package irq

import (
	"runtime"
	"sync/atomic"
)

// Mutex is a busy-wait mutual exclusion lock around a value of type V. It is
// meant for short critical sections (a table write) that never suspend.
// Like RWLock it keeps local interrupts off while held.
type Mutex[V any] struct {
	_ [0]func() // prevent accidental copying.

	locked atomic.Bool
	spins  atomic.Uint64
	v      V
}

// NewMutex returns a mutex protecting v.
func NewMutex[V any](v V) *Mutex[V] {
	m := &Mutex[V]{}
	m.v = v
	return m
}

// Lock acquires m on core c.
func (m *Mutex[V]) Lock(c *CPU) MutexGuard[V] {
	c.PushOff()
	for !m.locked.CompareAndSwap(false, true) {
		m.spins.Add(1)
		runtime.Gosched()
	}
	return MutexGuard[V]{m: m, cpu: c}
}

// TryLock acquires m if it is free.
func (m *Mutex[V]) TryLock(c *CPU) (MutexGuard[V], bool) {
	c.PushOff()
	if !m.locked.CompareAndSwap(false, true) {
		c.PopOff()
		return MutexGuard[V]{}, false
	}
	return MutexGuard[V]{m: m, cpu: c}, true
}

// Unguarded returns the protected value without locking. See RWLock.Unguarded.
func (m *Mutex[V]) Unguarded() *V { return &m.v }

// Spins returns how many times acquirers had to wait.
func (m *Mutex[V]) Spins() uint64 { return m.spins.Load() }

// MutexGuard is a held Mutex. The zero value is not held.
type MutexGuard[V any] struct {
	m   *Mutex[V]
	cpu *CPU
}

// Held reports whether g still holds the mutex.
func (g *MutexGuard[V]) Held() bool { return g.m != nil }

// Value returns the protected value.
func (g *MutexGuard[V]) Value() *V {
	if g.m == nil {
		panic("irq: mutex guard used after release")
	}
	return &g.m.v
}

// Release unlocks the mutex and undoes its interrupt suppression.
func (g *MutexGuard[V]) Release() {
	if g.m == nil {
		panic("irq: mutex guard released twice")
	}
	g.m.locked.Store(false)
	g.m = nil
	g.cpu.PopOff()
}
