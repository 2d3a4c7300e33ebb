package input

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"sparkcore/sparkos/kernel/event"
	"sparkcore/sparkos/kernel/irq"
	"sparkcore/sparkos/kernel/lockorder"
	"sparkcore/sparkos/kernel/task"
)

func newExec(name string, core int) *lockorder.Exec {
	return lockorder.NewExec(name, irq.NewCPU(core, &irq.Soft{}))
}

func newTask(id task.ID, depth int) task.Handle {
	return task.New(task.Task{ID: id, State: task.Ready, Events: event.NewQueue(depth)}, nil)
}

func fixedClock(ts uint64) func() uint64 { return func() uint64 { return ts } }

func drain(r *Router, e *lockorder.Exec, h task.Handle) []event.Event {
	var out []event.Event
	for {
		ev, ok := r.Poll(e.Begin(), h)
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func key(code uint16, press bool) Raw {
	return Raw{Device: DeviceKeyboard, Code: code, Rune: rune('a' + code), Press: press}
}

func TestFocusedDeliveryInOrder(t *testing.T) {
	e := newExec("irq", 0)
	r := New(Config{Clock: fixedClock(42)})
	tk := newTask(1, 64)
	if err := r.SetFocus(e.Begin(), event.Keyboard, tk); err != nil {
		t.Fatal(err)
	}

	for _, raw := range []Raw{key(1, true), key(2, true), key(1, false)} {
		if n := r.Deliver(e.Begin(), raw); n != 1 {
			t.Fatalf("Deliver() = %d, want 1", n)
		}
	}
	if got := r.Count(e.Begin(), tk); got != 3 {
		t.Fatalf("Count() = %d, want 3", got)
	}
	if ev, ok := r.Peek(e.Begin(), tk); !ok || ev.Code != 1 {
		t.Fatalf("Peek() = %+v, %v", ev, ok)
	}
	want := []event.Event{
		event.Key(true, 1, 'b', 42),
		event.Key(true, 2, 'c', 42),
		event.Key(false, 1, 'b', 42),
	}
	if diff := cmp.Diff(want, drain(r, e, tk)); diff != "" {
		t.Fatalf("drained events mismatch (-want +got):\n%s", diff)
	}

	// Losing focus mid-stream drops later events.
	r.Deliver(e.Begin(), key(3, true))
	r.SetFocus(e.Begin(), event.Keyboard, task.Handle{})
	r.Deliver(e.Begin(), key(4, true))
	r.Deliver(e.Begin(), key(4, false))

	got := drain(r, e, tk)
	if len(got) != 1 || got[0].Code != 3 {
		t.Fatalf("events after unfocus = %+v, want only code 3", got)
	}
	if st := r.Stats(); st.Delivered != 4 || st.Unfocused != 2 {
		t.Fatalf("Stats() = %+v, want 4 delivered, 2 unfocused", st)
	}
	if id := r.Focus(e.Begin(), event.Keyboard); id != task.InvalidID {
		t.Fatalf("Focus() = %v, want invalid", id)
	}
}

func TestPointerClassification(t *testing.T) {
	e := newExec("irq", 0)
	r := New(Config{Clock: fixedClock(7), Width: 100, Height: 50})
	tk := newTask(2, 64)
	r.SetFocus(e.Begin(), event.Pointer, tk)
	drain(r, e, tk) // PointerEnter

	r.Deliver(e.Begin(), Raw{Device: DeviceMouse, DX: 30, DY: 80})
	r.Deliver(e.Begin(), Raw{Device: DeviceMouse, Buttons: event.ButtonLeft | event.ButtonRight})
	r.Deliver(e.Begin(), Raw{Device: DeviceTablet, X: -5, Y: 10, Buttons: event.ButtonRight})
	if n := r.Deliver(e.Begin(), Raw{Device: DeviceTablet, X: 0, Y: 10, Buttons: event.ButtonRight}); n != 0 {
		t.Fatalf("Deliver(no change) = %d, want 0", n)
	}

	lr := event.ButtonLeft | event.ButtonRight
	want := []event.Event{
		event.Motion(30, 49, 0, 7),
		event.ButtonChange(true, event.ButtonLeft, 30, 49, event.ButtonLeft, 7),
		event.ButtonChange(true, event.ButtonRight, 30, 49, lr, 7),
		event.Motion(0, 10, lr, 7),
		event.ButtonChange(false, event.ButtonLeft, 0, 10, event.ButtonRight, 7),
	}
	if diff := cmp.Diff(want, drain(r, e, tk)); diff != "" {
		t.Fatalf("pointer events mismatch (-want +got):\n%s", diff)
	}
}

func TestPointerFocusCrossing(t *testing.T) {
	e := newExec("wm", 0)
	r := New(Config{Clock: fixedClock(1)})
	a, b := newTask(1, 8), newTask(2, 8)

	r.SetFocus(e.Begin(), event.Pointer, a)
	r.Deliver(e.Begin(), Raw{Device: DeviceTablet, X: 4, Y: 5})
	r.SetFocus(e.Begin(), event.Pointer, b)
	r.SetFocus(e.Begin(), event.Pointer, b)

	wantA := []event.Event{
		event.Crossing(true, 0, 0, 1),
		event.Motion(4, 5, 0, 1),
		event.Crossing(false, 4, 5, 1),
	}
	if diff := cmp.Diff(wantA, drain(r, e, a)); diff != "" {
		t.Fatalf("old focus events mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]event.Event{event.Crossing(true, 4, 5, 1)}, drain(r, e, b)); diff != "" {
		t.Fatalf("new focus events mismatch (-want +got):\n%s", diff)
	}
	if got := b.Refs(); got != 2 {
		t.Fatalf("Refs() = %d after refocusing the same task, want 2", got)
	}
}

func TestClearTaskReleasesReferences(t *testing.T) {
	e := newExec("core", 0)
	r := New(Config{})
	h := newTask(5, 8)
	r.SetFocus(e.Begin(), event.Keyboard, h)
	r.SetFocus(e.Begin(), event.Pointer, h)
	if got := h.Refs(); got != 3 {
		t.Fatalf("Refs() = %d with two focus slots, want 3", got)
	}

	r.ClearTask(e.Begin(), 5)
	for _, c := range []event.Class{event.Keyboard, event.Pointer} {
		if id := r.Focus(e.Begin(), c); id != task.InvalidID {
			t.Fatalf("Focus(%v) = %v after ClearTask", c, id)
		}
	}
	_, g := task.Write(e.Begin(), h)
	g.Value().Terminate(task.ExitNormal, 0)
	g.Release()
	h.Drop()
	if !h.Freed() {
		t.Fatalf("task not freed after ClearTask and last drop")
	}
}

func TestSetFocusRejectsTerminatedTask(t *testing.T) {
	e := newExec("core", 0)
	r := New(Config{})
	h := newTask(6, 4)
	_, g := task.Write(e.Begin(), h)
	g.Value().Terminate(task.ExitNormal, 0)
	g.Release()

	if err := r.SetFocus(e.Begin(), event.Keyboard, h); !errors.Is(err, task.ErrNotFound) {
		t.Fatalf("SetFocus(terminated) = %v, want task.ErrNotFound", err)
	}
	if id := r.Focus(e.Begin(), event.Keyboard); id != task.InvalidID {
		t.Fatalf("Focus(keyboard) = %v, want none", id)
	}
	if got := h.Refs(); got != 1 {
		t.Fatalf("Refs() = %d after rejected SetFocus, want 1", got)
	}
	r.Deliver(e.Begin(), key(1, true))
	if st := r.Stats(); st.Unfocused != 1 || st.Delivered != 0 {
		t.Fatalf("Stats() = %+v, want the key counted as unfocused", st)
	}
	h.Drop()
	if !h.Freed() {
		t.Fatalf("terminated task not freed after last drop")
	}
}

func TestDeliveryWakesBlockedTask(t *testing.T) {
	e := newExec("irq", 0)
	var woken []task.ID
	r := New(Config{Wake: func(_ lockorder.Token[lockorder.Clean], id task.ID) error {
		woken = append(woken, id)
		return nil
	}})
	h := newTask(9, 2)
	_, g := task.Write(e.Begin(), h)
	g.Value().State = task.Blocked
	g.Release()

	r.SetFocus(e.Begin(), event.Keyboard, h)
	for i := 0; i < 3; i++ {
		r.Deliver(e.Begin(), key(uint16(i), true))
	}
	if diff := cmp.Diff([]task.ID{9, 9, 9}, woken); diff != "" {
		t.Fatalf("wake calls mismatch (-want +got):\n%s", diff)
	}
	if st := r.Stats(); st.Overflow != 1 {
		t.Fatalf("Overflow = %d, want 1", st.Overflow)
	}
}

func TestSetFocusBadClass(t *testing.T) {
	r := New(Config{})
	err := r.SetFocus(newExec("x", 0).Begin(), event.Class(9), task.Handle{})
	if !errors.Is(err, ErrBadClass) {
		t.Fatalf("SetFocus(bad class) = %v, want ErrBadClass", err)
	}
}

// TestConcurrentDeliveryAndFocus checks that every event is either queued to
// some task or counted as unfocused while focus moves under load.
func TestConcurrentDeliveryAndFocus(t *testing.T) {
	const (
		sources = 4
		perSrc  = 2000
	)
	r := New(Config{})
	tasks := []task.Handle{newTask(1, 1<<16), newTask(2, 1<<16)}

	var g errgroup.Group
	for s := 0; s < sources; s++ {
		e := newExec(fmt.Sprintf("irq%d", s), s)
		g.Go(func() error {
			for i := 0; i < perSrc; i++ {
				r.Deliver(e.Begin(), key(uint16(i), true))
			}
			return nil
		})
	}
	wm := newExec("wm", sources)
	g.Go(func() error {
		for i := 0; i < 500; i++ {
			var h task.Handle
			if i%3 != 2 {
				h = tasks[i%2]
			}
			if err := r.SetFocus(wm.Begin(), event.Keyboard, h); err != nil {
				return err
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	e := newExec("check", 0)
	queued := 0
	for _, h := range tasks {
		queued += r.Count(e.Begin(), h)
	}
	st := r.Stats()
	if uint64(queued) != st.Delivered || st.Delivered+st.Unfocused != sources*perSrc {
		t.Fatalf("queued=%d stats=%+v, want delivered+unfocused=%d", queued, st, sources*perSrc)
	}
}
