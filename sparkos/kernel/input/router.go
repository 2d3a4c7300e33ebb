// Package input routes hardware input to the task focused for each event
// class and gives tasks access to their event queues.
//
// Focus changes and deliveries race freely: an event goes to whichever task
// the focus table names when the event is routed. Events already queued stay
// with the task that received them.
package input

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"sparkcore/sparkos/kernel/event"
	"sparkcore/sparkos/kernel/lockorder"
	"sparkcore/sparkos/kernel/task"
	"sparkcore/sparkos/klog"
)

// ErrBadClass is returned for an unknown event class.
var ErrBadClass = errors.New("input: unknown event class")

// Waker makes a blocked task ready. The scheduler's Wake satisfies it.
type Waker func(tok lockorder.Token[lockorder.Clean], id task.ID) error

// Config configures a Router.
type Config struct {
	// Clock returns the event timestamp in milliseconds.
	Clock func() uint64
	// Wake, if set, is called after an event lands in the queue of a
	// blocked task.
	Wake Waker
	// Width and Height bound the pointer position. Zero means unbounded.
	Width, Height int32
	// Logger receives unfocused-drop reports, rate limited.
	Logger klog.Logger
}

type focusTable struct {
	owner [event.NumClasses]task.Handle
	ptr   pointerState
}

// swap installs h as the owner of class and returns the previous owner with
// the current pointer state.
func (ft *focusTable) swap(class event.Class, h task.Handle) (task.Handle, pointerState) {
	old := ft.owner[class]
	ft.owner[class] = h
	return old, ft.ptr
}

// Router is the input event router.
type Router struct {
	cfg   Config
	log   klog.Logger
	focus *lockorder.Mutex[lockorder.Level3, focusTable]

	delivered atomic.Uint64
	unfocused atomic.Uint64
	overflow  atomic.Uint64
}

// New returns a router with an empty focus table.
func New(cfg Config) *Router {
	if cfg.Clock == nil {
		start := time.Now()
		cfg.Clock = func() uint64 { return uint64(time.Since(start).Milliseconds()) }
	}
	if cfg.Logger == nil {
		cfg.Logger = klog.Discard
	}
	return &Router{
		cfg:   cfg,
		log:   klog.RateLimited(cfg.Logger, time.Second),
		focus: lockorder.NewMutex[lockorder.Level3]("input.focus", focusTable{}),
	}
}

// Deliver routes one raw record. It runs in interrupt context and returns
// the number of events queued. Events of an unfocused class are dropped and
// counted.
func (r *Router) Deliver(tok lockorder.Token[lockorder.Clean], raw Raw) int {
	var evs [maxExpand]event.Event
	ts := r.cfg.Clock()

	_, g := lockorder.Lock3(tok, r.focus)
	ft := g.Value()
	class, n := classify(raw, &ft.ptr, r.cfg.Width, r.cfg.Height, ts, &evs)
	h := ft.owner[class]
	if h.Valid() {
		h = h.Clone()
	}
	g.Release()

	if n == 0 {
		if h.Valid() {
			h.Drop()
		}
		return 0
	}
	if !h.Valid() {
		r.unfocused.Add(uint64(n))
		r.log.Debugf("dropped %d %v event(s): no focus", n, class)
		return 0
	}
	r.push(tok, h, evs[:n])
	h.Drop()
	return n
}

// push appends evs to the queue of h and wakes it if it was blocked.
func (r *Router) push(tok lockorder.Token[lockorder.Clean], h task.Handle, evs []event.Event) {
	_, g := task.Write(tok, h)
	t := g.Value()
	for _, ev := range evs {
		if !t.Events.Push(ev) {
			r.overflow.Add(1)
		}
	}
	blocked := t.State == task.Blocked
	g.Release()

	r.delivered.Add(uint64(len(evs)))
	if blocked && r.cfg.Wake != nil {
		// The task may have exited since; that is not an error here.
		_ = r.cfg.Wake(tok, h.ID())
	}
}

// SetFocus makes h the focus of class; the zero Handle clears it. The table
// keeps its own reference. Moving pointer focus sends PointerLeave to the
// old owner and PointerEnter to the new one.
//
// A terminated task cannot take focus. The table is written under the task's
// read lock, so either the exit path finds the focus and clears it or
// SetFocus sees the task terminated and fails with task.ErrNotFound.
func (r *Router) SetFocus(tok lockorder.Token[lockorder.Clean], class event.Class, h task.Handle) error {
	if int(class) >= event.NumClasses {
		return fmt.Errorf("set focus %d: %w", class, ErrBadClass)
	}

	var old task.Handle
	var ptr pointerState
	if h.Valid() {
		t4, tg := task.Read(tok, h)
		if tg.Value().Terminal() {
			tg.Release()
			return fmt.Errorf("set focus %v: %v: %w", class, h.ID(), task.ErrNotFound)
		}
		h = h.Clone()
		_, g := lockorder.Lock3(t4, r.focus)
		old, ptr = g.Value().swap(class, h)
		g.Release()
		tg.Release()
	} else {
		_, g := lockorder.Lock3(tok, r.focus)
		old, ptr = g.Value().swap(class, h)
		g.Release()
	}

	if old.Valid() && h.Valid() && old.ID() == h.ID() {
		old.Drop()
		return nil
	}
	if class == event.Pointer {
		ts := r.cfg.Clock()
		if old.Valid() {
			r.push(tok, old, []event.Event{event.Crossing(false, ptr.x, ptr.y, ts)})
		}
		if h.Valid() {
			r.push(tok, h, []event.Event{event.Crossing(true, ptr.x, ptr.y, ts)})
		}
	}
	if old.Valid() {
		old.Drop()
	}
	return nil
}

// Focus returns the task focused for class, or task.InvalidID.
func (r *Router) Focus(tok lockorder.Token[lockorder.Clean], class event.Class) task.ID {
	if int(class) >= event.NumClasses {
		return task.InvalidID
	}
	_, g := lockorder.Lock3(tok, r.focus)
	id := g.Value().owner[class].ID()
	g.Release()
	return id
}

// ClearTask removes task id from every focus slot. The scheduler calls it
// when a task exits.
func (r *Router) ClearTask(tok lockorder.Token[lockorder.Clean], id task.ID) {
	var gone [event.NumClasses]task.Handle
	_, g := lockorder.Lock3(tok, r.focus)
	ft := g.Value()
	for c := range ft.owner {
		if ft.owner[c].Valid() && ft.owner[c].ID() == id {
			gone[c] = ft.owner[c]
			ft.owner[c] = task.Handle{}
		}
	}
	g.Release()
	for _, h := range gone {
		if h.Valid() {
			h.Drop()
		}
	}
}

// Poll removes the oldest event queued for h.
func (r *Router) Poll(tok lockorder.Token[lockorder.Clean], h task.Handle) (event.Event, bool) {
	_, g := task.Write(tok, h)
	ev, ok := g.Value().Events.Pop()
	g.Release()
	return ev, ok
}

// Peek returns the oldest event queued for h without removing it.
func (r *Router) Peek(tok lockorder.Token[lockorder.Clean], h task.Handle) (event.Event, bool) {
	_, g := task.Read(tok, h)
	ev, ok := g.Value().Events.Peek()
	g.Release()
	return ev, ok
}

// Count returns the number of events queued for h.
func (r *Router) Count(tok lockorder.Token[lockorder.Clean], h task.Handle) int {
	_, g := task.Read(tok, h)
	n := g.Value().Events.Len()
	g.Release()
	return n
}

// Stats counts routed events.
type Stats struct {
	Delivered uint64 // queued to a focused task
	Unfocused uint64 // dropped for lack of focus
	Overflow  uint64 // older events pushed out of a full queue
}

// Stats returns the router counters.
func (r *Router) Stats() Stats {
	return Stats{
		Delivered: r.delivered.Load(),
		Unfocused: r.unfocused.Load(),
		Overflow:  r.overflow.Load(),
	}
}
