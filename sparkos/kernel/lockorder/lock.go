package lockorder

import "sparkcore/sparkos/kernel/irq"

// RWLock is an interrupt-safe reader-writer lock at level L.
type RWLock[L Marker, V any] struct {
	name string
	rw   irq.RWLock[V]
}

// NewRWLock returns a level L lock protecting v.
func NewRWLock[L Marker, V any](name string, v V) *RWLock[L, V] {
	l := &RWLock[L, V]{name: name}
	*l.rw.Unguarded() = v
	return l
}

// Name returns the lock name.
func (l *RWLock[L, V]) Name() string { return l.name }

// Level returns the lock level.
func (l *RWLock[L, V]) Level() Level { return LevelOf[L]() }

// Spins returns the contention counter of the underlying lock.
func (l *RWLock[L, V]) Spins() uint64 { return l.rw.Spins() }

// Unguarded returns the protected value without locking. See
// irq.RWLock.Unguarded.
func (l *RWLock[L, V]) Unguarded() *V { return l.rw.Unguarded() }

// Mutex is an interrupt-safe spin mutex at level L.
type Mutex[L Marker, V any] struct {
	name string
	m    irq.Mutex[V]
}

// NewMutex returns a level L mutex protecting v.
func NewMutex[L Marker, V any](name string, v V) *Mutex[L, V] {
	m := &Mutex[L, V]{name: name}
	*m.m.Unguarded() = v
	return m
}

// Name returns the mutex name.
func (m *Mutex[L, V]) Name() string { return m.name }

// Level returns the mutex level.
func (m *Mutex[L, V]) Level() Level { return LevelOf[L]() }

// Spins returns the contention counter of the underlying mutex.
func (m *Mutex[L, V]) Spins() uint64 { return m.m.Spins() }

// Unguarded returns the protected value without locking. See
// irq.Mutex.Unguarded.
func (m *Mutex[L, V]) Unguarded() *V { return m.m.Unguarded() }

// ReadGuard is a held shared acquisition of an RWLock.
type ReadGuard[V any] struct {
	g     irq.ReadGuard[V]
	e     *Exec
	name  string
	depth uint8
	level Level
}

// Value returns the protected value. Callers must not modify it.
func (g *ReadGuard[V]) Value() *V { return g.g.Value() }

// Release drops the lock; the token that acquired it becomes valid again.
func (g *ReadGuard[V]) Release() {
	g.g.Release()
	g.e.leave("release read", g.name, g.depth, g.level)
}

// WriteGuard is a held exclusive acquisition of an RWLock.
type WriteGuard[V any] struct {
	g     irq.WriteGuard[V]
	e     *Exec
	name  string
	depth uint8
	level Level
}

// Value returns the protected value.
func (g *WriteGuard[V]) Value() *V { return g.g.Value() }

// Release drops the lock; the token that acquired it becomes valid again.
func (g *WriteGuard[V]) Release() {
	g.g.Release()
	g.e.leave("release write", g.name, g.depth, g.level)
}

// MutexGuard is a held Mutex.
type MutexGuard[V any] struct {
	g     irq.MutexGuard[V]
	e     *Exec
	name  string
	depth uint8
	level Level
}

// Value returns the protected value.
func (g *MutexGuard[V]) Value() *V { return g.g.Value() }

// Release unlocks the mutex; the token that locked it becomes valid again.
func (g *MutexGuard[V]) Release() {
	g.g.Release()
	g.e.leave("unlock", g.name, g.depth, g.level)
}

// The ordering bookkeeping is updated before spinning so that a violation is
// reported instead of deadlocking.

func read[H, B Bound, L Marker, V any](t Token[B], l *RWLock[L, V]) (Token[H], ReadGuard[V]) {
	lvl := LevelOf[L]()
	e := t.exec("read", l.name, lvl)
	d := e.enter("read", l.name, t.depth, boundOf[B](), lvl)
	g := l.rw.Read(e.cpu)
	return Token[H]{e: e, depth: d}, ReadGuard[V]{g: g, e: e, name: l.name, depth: d, level: lvl}
}

func write[H, B Bound, L Marker, V any](t Token[B], l *RWLock[L, V]) (Token[H], WriteGuard[V]) {
	lvl := LevelOf[L]()
	e := t.exec("write", l.name, lvl)
	d := e.enter("write", l.name, t.depth, boundOf[B](), lvl)
	g := l.rw.Write(e.cpu)
	return Token[H]{e: e, depth: d}, WriteGuard[V]{g: g, e: e, name: l.name, depth: d, level: lvl}
}

func lock[H, B Bound, L Marker, V any](t Token[B], m *Mutex[L, V]) (Token[H], MutexGuard[V]) {
	lvl := LevelOf[L]()
	e := t.exec("lock", m.name, lvl)
	d := e.enter("lock", m.name, t.depth, boundOf[B](), lvl)
	g := m.m.Lock(e.cpu)
	return Token[H]{e: e, depth: d}, MutexGuard[V]{g: g, e: e, name: m.name, depth: d, level: lvl}
}
