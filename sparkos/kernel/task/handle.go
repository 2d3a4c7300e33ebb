package task

import (
	"fmt"
	"sync/atomic"

	"sparkcore/sparkos/kernel/ctxsw"
	"sparkcore/sparkos/kernel/event"
	"sparkcore/sparkos/kernel/lockorder"
)

// LifetimeError is the panic value of handle misuse: dropping the last
// reference of a live task, dropping below zero or cloning a freed task.
type LifetimeError struct {
	ID     ID
	Op     string
	Reason string
}

func (e *LifetimeError) Error() string {
	return fmt.Sprintf("task %d: %s: %s", uint32(e.ID), e.Op, e.Reason)
}

type shared struct {
	id     ID
	lock   *lockorder.RWLock[lockorder.Level4, Task]
	refs   atomic.Int32
	freed  atomic.Bool
	frame  ctxsw.Frame
	onFree func(ID)
}

// Handle is one counted reference to a task. Copying a Handle does not add a
// reference; use Clone, and Drop every clone exactly once.
//
// The task state is freed when the last reference is dropped, which is only
// allowed once the task is Terminated.
type Handle struct {
	s *shared
}

// New returns the first reference to t. onFree, if not nil, runs once when
// the task state is freed.
func New(t Task, onFree func(ID)) Handle {
	if t.ID == InvalidID {
		panic("task: new task with invalid id")
	}
	s := &shared{
		id:     t.ID,
		lock:   lockorder.NewRWLock[lockorder.Level4]("task", t),
		onFree: onFree,
	}
	s.refs.Store(1)
	return Handle{s: s}
}

// Valid reports whether h refers to a task.
func (h Handle) Valid() bool { return h.s != nil }

// ID returns the task ID, or InvalidID for the zero Handle.
func (h Handle) ID() ID {
	if h.s == nil {
		return InvalidID
	}
	return h.s.id
}

// Refs returns the current reference count.
func (h Handle) Refs() int { return int(h.s.refs.Load()) }

// Freed reports whether the task state has been released.
func (h Handle) Freed() bool { return h.s.freed.Load() }

// Frame returns the context-switch save area of the task. It is outside the
// task lock and only touched by the core running the task.
func (h Handle) Frame() *ctxsw.Frame { return &h.s.frame }

// Clone adds a reference.
func (h Handle) Clone() Handle {
	for {
		n := h.s.refs.Load()
		if n <= 0 {
			panic(&LifetimeError{ID: h.s.id, Op: "clone", Reason: "task already freed"})
		}
		if h.s.refs.CompareAndSwap(n, n+1) {
			return h
		}
	}
}

// Drop releases one reference. Dropping the last reference frees the task
// state; that is fatal unless the task is Terminated.
func (h Handle) Drop() {
	n := h.s.refs.Add(-1)
	switch {
	case n > 0:
		return
	case n < 0:
		panic(&LifetimeError{ID: h.s.id, Op: "drop", Reason: "more drops than references"})
	}
	// No other reference exists, so nothing can hold the task lock.
	t := h.s.lock.Unguarded()
	if !t.Terminal() {
		panic(&LifetimeError{ID: h.s.id, Op: "drop", Reason: "last reference to " + t.State.String() + " task"})
	}
	t.Events.Clear()
	t.Events = event.Queue{}
	h.s.freed.Store(true)
	if h.s.onFree != nil {
		h.s.onFree(h.s.id)
	}
}

// Read takes the task lock for reading.
func Read[B lockorder.Allows4](tok lockorder.Token[B], h Handle) (lockorder.Token[lockorder.Held4], lockorder.ReadGuard[Task]) {
	return lockorder.Read4(tok, h.s.lock)
}

// Write takes the task lock for writing.
func Write[B lockorder.Allows4](tok lockorder.Token[B], h Handle) (lockorder.Token[lockorder.Held4], lockorder.WriteGuard[Task]) {
	return lockorder.Write4(tok, h.s.lock)
}
