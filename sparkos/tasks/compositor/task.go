// Package compositor is a demo window manager. It starts one task per
// window, owns the pointer and moves keyboard focus between its windows.
package compositor

import (
	"sparkcore/sparkos/kernel/event"
	"sparkcore/sparkos/kernel/syscall"
	"sparkcore/sparkos/kernel/task"
	"sparkcore/sparkos/klog"
)

// Window is a task started by the compositor.
type Window struct {
	Name     string
	Priority task.Priority
	Program  syscall.Program
}

// CheckInterval is how long the compositor sleeps between window liveness
// checks while its queue is empty. Input ends the sleep early.
const CheckInterval = 20 // ms

// Task is the compositor. A left click moves keyboard focus to the next
// live window. When the focused window exits, focus moves to the first live
// one within CheckInterval. It exits once every window is gone.
type Task struct {
	windows []Window
	log     klog.Logger

	ids     []task.ID
	focused task.ID
}

// New returns a compositor managing windows.
func New(windows []Window, log klog.Logger) *Task {
	if log == nil {
		log = klog.Discard
	}
	return &Task{windows: windows, log: log}
}

func (t *Task) Run(ctx *syscall.Context) {
	for _, w := range t.windows {
		id, r := ctx.Spawn(w.Name, w.Priority, w.Program)
		if r != syscall.OK {
			t.log.Warningf("compositor: start %q: %v", w.Name, r)
			continue
		}
		t.ids = append(t.ids, id)
	}
	if len(t.ids) == 0 {
		return
	}
	if r := ctx.SetFocus(event.Pointer, ctx.TaskID()); r != syscall.OK {
		t.log.Warningf("compositor: pointer focus: %v", r)
	}
	t.focus(ctx, 0)

	for {
		ev, ok := ctx.PollEvent()
		if !ok {
			if !t.prune(ctx) {
				return
			}
			ctx.Sleep(CheckInterval)
			continue
		}
		if ev.Kind == event.PointerButtonPress && event.Button(ev.Code) == event.ButtonLeft {
			t.focus(ctx, t.index(t.focused)+1)
		}
	}
}

// focus gives keyboard focus to window i, wrapping around.
func (t *Task) focus(ctx *syscall.Context, i int) {
	id := t.ids[i%len(t.ids)]
	t.focused = id
	if r := ctx.SetFocus(event.Keyboard, id); r != syscall.OK {
		t.log.Warningf("compositor: focus %v: %v", id, r)
		return
	}
	t.log.Debugf("compositor: keyboard focus -> %v", id)
}

// prune forgets windows whose task is gone and reports whether any is left.
// If the focused window went away focus moves on.
func (t *Task) prune(ctx *syscall.Context) bool {
	live := t.ids[:0]
	for _, id := range t.ids {
		ti, r := ctx.TaskInfo(id)
		if r == syscall.OK && task.State(ti.State) != task.Terminated {
			live = append(live, id)
		}
	}
	t.ids = live
	if len(t.ids) == 0 {
		return false
	}
	if t.index(t.focused) < 0 {
		t.focus(ctx, 0)
	}
	return true
}

func (t *Task) index(id task.ID) int {
	for i, w := range t.ids {
		if w == id {
			return i
		}
	}
	return -1
}
