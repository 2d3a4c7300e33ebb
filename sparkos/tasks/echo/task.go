// Package echo is a demo task that logs the input events it receives.
package echo

import (
	"sparkcore/sparkos/kernel/event"
	"sparkcore/sparkos/kernel/syscall"
	"sparkcore/sparkos/klog"
)

// Task waits for input events and logs them. It exits when it reads the
// quit rune or after Limit events.
type Task struct {
	name  string
	log   klog.Logger
	quit  rune
	limit int

	// Seen receives every event, if set. It is called from the task.
	Seen func(event.Event)
}

// New returns an echo task. A zero quit rune disables quitting by key and a
// zero limit means no limit.
func New(name string, log klog.Logger, quit rune, limit int) *Task {
	if log == nil {
		log = klog.Discard
	}
	return &Task{name: name, log: log, quit: quit, limit: limit}
}

func (t *Task) Run(ctx *syscall.Context) {
	n := 0
	for {
		ev, ok := ctx.WaitEvent()
		if !ok {
			continue
		}
		n++
		if t.Seen != nil {
			t.Seen(ev)
		}
		switch ev.Kind {
		case event.KeyPress:
			t.log.Infof("%s: key %d %q", t.name, ev.Code, ev.Rune)
			if t.quit != 0 && ev.Rune == t.quit {
				ctx.Exit(0)
			}
		case event.KeyRelease:
		default:
			t.log.Debugf("%s: %v at %d,%d buttons=%d", t.name, ev.Kind, ev.X, ev.Y, ev.Buttons)
		}
		if t.limit > 0 && n >= t.limit {
			return
		}
	}
}
