package sched

import (
	"fmt"

	"sparkcore/sparkos/kernel/ctxsw"
	"sparkcore/sparkos/kernel/lockorder"
	"sparkcore/sparkos/kernel/task"
)

// Self is a running task's view of itself. Its methods may only be called
// from the task's own activation.
type Self struct {
	s      *Scheduler
	e      *entry
	entry  func(*Self)
	exec   *lockorder.Exec
	core   *Core
	exited bool
}

// ID returns the task ID.
func (x *Self) ID() task.ID { return x.e.id }

// Handle returns the task handle. The reference is borrowed: Clone it to
// keep it beyond the task's lifetime.
func (x *Self) Handle() task.Handle { return x.e.h }

// Exec returns the execution context of the task.
func (x *Self) Exec() *lockorder.Exec { return x.exec }

// Begin returns the clean ordering token of the task.
func (x *Self) Begin() lockorder.Token[lockorder.Clean] { return x.exec.Begin() }

// Scheduler returns the scheduler running the task.
func (x *Self) Scheduler() *Scheduler { return x.s }

// Yield gives up the core. The task stays ready.
func (x *Self) Yield() {
	x.s.yields.Add(1)
	_, g := task.Write(x.exec.Begin(), x.e.h)
	g.Value().Yields++
	g.Release()
	x.switchOut()
}

// Block suspends the task until ready reports true. ready is evaluated under
// the task lock; a Wake between the check and the switch is not lost.
func (x *Self) Block(ready func(*task.Task) bool) {
	for {
		_, g := task.Write(x.exec.Begin(), x.e.h)
		t := g.Value()
		if ready(t) {
			g.Release()
			return
		}
		t.State = task.Blocked
		g.Release()
		x.switchOut()
	}
}

// Sleep suspends the task for at least ms milliseconds of scheduler clock.
// A Wake ends the sleep early.
func (x *Self) Sleep(ms uint64) {
	if ms == 0 {
		x.Yield()
		return
	}
	x.s.sleep(x.exec.Begin(), x.e, x.s.Now()+ms)
	x.switchOut()
}

// Exit terminates the task with code. It does not return.
func (x *Self) Exit(code int) {
	_, g := task.Write(x.exec.Begin(), x.e.h)
	g.Value().Terminate(task.ExitNormal, code)
	g.Release()
	x.exit()
}

func (x *Self) exit() {
	x.exited = true
	ctxsw.Exit(x.e.h.Frame(), &x.core.idle)
}

func (x *Self) switchOut() {
	ctxsw.Switch(x.e.h.Frame(), &x.core.idle)
	x.exitIfKilled()
}

func (x *Self) exitIfKilled() {
	_, g := task.Read(x.exec.Begin(), x.e.h)
	dead := g.Value().Terminal()
	g.Release()
	if dead {
		x.exit()
	}
}

func (x *Self) run(uintptr) {
	defer func() {
		if x.exited {
			return
		}
		x.fault(recover())
	}()
	x.exitIfKilled()
	x.entry(x)
	x.Exit(0)
}

// fault ends a task whose body panicked. A panic while the task holds locks
// leaves them held, so it is fatal for the kernel.
func (x *Self) fault(r any) {
	if x.exec.Depth() != 0 {
		x.fatal(r)
		panic(r)
	}
	switch r.(type) {
	case *lockorder.OrderViolation, *task.LifetimeError:
		x.fatal(r)
		panic(r)
	}
	x.s.log.Warningf("%v faulted: %v", x.e.id, describe(r))
	_, g := task.Write(x.exec.Begin(), x.e.h)
	g.Value().Terminate(task.ExitFault, -1)
	g.Release()
	x.exit()
}

func describe(r any) string {
	if r == nil {
		return "activation ended without exit"
	}
	return fmt.Sprint(r)
}
