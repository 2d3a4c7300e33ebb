package syscall

import (
	"sparkcore/sparkos/kernel/event"
	"sparkcore/sparkos/kernel/lockorder"
	"sparkcore/sparkos/kernel/task"
	"sparkcore/sparkos/proto"
)

// Program is the body of a task started through SysSpawn.
type Program interface {
	Run(*Context)
}

// ProgramFunc adapts a function to Program.
type ProgramFunc func(*Context)

// Run implements Program.
func (f ProgramFunc) Run(ctx *Context) { f(ctx) }

// Context is a task's system call interface. Each method is one call through
// the dispatcher.
type Context struct {
	d   *Dispatcher
	c   Caller
	buf [proto.TaskInfoRecordSize]byte
}

// NewContext binds caller to d.
func NewContext(d *Dispatcher, caller Caller) *Context {
	return &Context{d: d, c: caller}
}

// TaskID returns the calling task's ID.
func (ctx *Context) TaskID() task.ID { return ctx.c.ID() }

// Begin returns the task's clean ordering token, for locks a program owns.
func (ctx *Context) Begin() lockorder.Token[lockorder.Clean] { return ctx.c.Begin() }

// Call issues a raw system call.
func (ctx *Context) Call(a Args) Ret { return ctx.d.Dispatch(ctx.c, a) }

// Yield gives up the core.
func (ctx *Context) Yield() { ctx.Call(Args{Num: SysYield}) }

// Sleep suspends the task for at least ms milliseconds.
func (ctx *Context) Sleep(ms uint64) { ctx.Call(Args{Num: SysSleep, A0: ms}) }

// Exit ends the task. It does not return.
func (ctx *Context) Exit(code int) { ctx.Call(Args{Num: SysExit, A0: uint64(uint32(int32(code)))}) }

// Spawn starts prog as a new task.
func (ctx *Context) Spawn(name string, prio task.Priority, prog Program) (task.ID, Result) {
	r := ctx.Call(Args{Num: SysSpawn, Spawn: &SpawnRequest{Name: name, Priority: prio, Program: prog}})
	if r.Result != OK {
		return task.InvalidID, r.Result
	}
	return task.ID(r.Value), OK
}

func (ctx *Context) eventCall(n Number) (event.Event, bool) {
	b := ctx.buf[:proto.EventRecordSize]
	if r := ctx.Call(Args{Num: n, Buf: b}); r.Result != OK {
		return event.Event{}, false
	}
	return proto.DecodeEvent(b)
}

// PollEvent removes the next queued input event.
func (ctx *Context) PollEvent() (event.Event, bool) { return ctx.eventCall(SysPollEvent) }

// PeekEvent returns the next queued input event without removing it.
func (ctx *Context) PeekEvent() (event.Event, bool) { return ctx.eventCall(SysPeekEvent) }

// WaitEvent blocks until an input event is queued and removes it. It
// reports false if the task was unable to receive one.
func (ctx *Context) WaitEvent() (event.Event, bool) { return ctx.eventCall(SysWaitEvent) }

// EventCount returns the number of queued input events.
func (ctx *Context) EventCount() int {
	return int(ctx.Call(Args{Num: SysEventCount}).Value)
}

// SetFocus focuses class on task id; task.InvalidID clears the focus.
func (ctx *Context) SetFocus(class event.Class, id task.ID) Result {
	return ctx.Call(Args{Num: SysSetFocus, A0: uint64(class), A1: uint64(id)}).Result
}

// FocusOf returns the task focused for class.
func (ctx *Context) FocusOf(class event.Class) task.ID {
	r := ctx.Call(Args{Num: SysFocusOf, A0: uint64(class)})
	if r.Result != OK {
		return task.InvalidID
	}
	return task.ID(r.Value)
}

// Stats returns the kernel counters.
func (ctx *Context) Stats() (proto.Stats, Result) {
	b := ctx.buf[:proto.StatsRecordSize]
	if r := ctx.Call(Args{Num: SysStats, Buf: b}); r.Result != OK {
		return proto.Stats{}, r.Result
	}
	s, _ := proto.DecodeStats(b)
	return s, OK
}

// TaskInfo returns the summary of task id.
func (ctx *Context) TaskInfo(id task.ID) (proto.TaskInfo, Result) {
	b := ctx.buf[:proto.TaskInfoRecordSize]
	if r := ctx.Call(Args{Num: SysTaskInfo, A0: uint64(id), Buf: b}); r.Result != OK {
		return proto.TaskInfo{}, r.Result
	}
	ti, _ := proto.DecodeTaskInfo(b)
	return ti, OK
}

// Kill terminates task id.
func (ctx *Context) Kill(id task.ID) Result {
	return ctx.Call(Args{Num: SysKill, A0: uint64(id)}).Result
}
