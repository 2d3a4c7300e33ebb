package syscall

import (
	"errors"
	"fmt"
	"sync/atomic"

	"sparkcore/sparkos/kernel/event"
	"sparkcore/sparkos/kernel/lockorder"
	"sparkcore/sparkos/kernel/task"
	"sparkcore/sparkos/klog"
	"sparkcore/sparkos/proto"
)

// Number is a system call number.
type Number uint16

const (
	SysYield Number = iota
	SysExit
	SysSpawn
	SysPollEvent
	SysPeekEvent
	SysEventCount
	SysWaitEvent
	SysSetFocus
	SysFocusOf
	SysStats
	SysTaskInfo
	SysKill
	SysSleep

	numCalls
)

var callNames = [numCalls]string{
	"yield", "exit", "spawn", "poll_event", "peek_event", "event_count",
	"wait_event", "set_focus", "focus_of", "stats", "task_info", "kill", "sleep",
}

func (n Number) String() string {
	if n < numCalls {
		return callNames[n]
	}
	return fmt.Sprintf("sys(%d)", uint16(n))
}

// Result is the status a system call returns to the task.
type Result int32

const (
	OK Result = iota
	ResultNoSlot
	ResultNoTask
	ResultEmpty
	ResultBadArg
	ResultBadBuffer
	ResultBadCall
)

func (r Result) String() string {
	switch r {
	case OK:
		return "ok"
	case ResultNoSlot:
		return "no free task slot"
	case ResultNoTask:
		return "no such task"
	case ResultEmpty:
		return "queue empty"
	case ResultBadArg:
		return "bad argument"
	case ResultBadBuffer:
		return "buffer too small"
	case ResultBadCall:
		return "unknown system call"
	default:
		return "unknown"
	}
}

// resultOf maps a kernel error to the result seen by the task.
func resultOf(err error) Result {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, task.ErrNoSlot):
		return ResultNoSlot
	case errors.Is(err, task.ErrNotFound):
		return ResultNoTask
	default:
		return ResultBadArg
	}
}

// Caller is the task issuing a system call.
type Caller interface {
	ID() task.ID
	Handle() task.Handle
	Begin() lockorder.Token[lockorder.Clean]
	Yield()
	Sleep(ms uint64)
	Block(ready func(*task.Task) bool)
	Exit(code int)
}

// Tasks is the scheduler surface reachable from system calls.
type Tasks interface {
	Lookup(tok lockorder.Token[lockorder.Clean], id task.ID) (task.Handle, error)
	Kill(tok lockorder.Token[lockorder.Clean], id task.ID) error
	TaskInfo(tok lockorder.Token[lockorder.Clean], id task.ID) (proto.TaskInfo, error)
	Stats(tok lockorder.Token[lockorder.Clean]) proto.Stats
}

// Input is the input router surface reachable from system calls.
type Input interface {
	Poll(tok lockorder.Token[lockorder.Clean], h task.Handle) (event.Event, bool)
	Peek(tok lockorder.Token[lockorder.Clean], h task.Handle) (event.Event, bool)
	Count(tok lockorder.Token[lockorder.Clean], h task.Handle) int
	SetFocus(tok lockorder.Token[lockorder.Clean], class event.Class, h task.Handle) error
	Focus(tok lockorder.Token[lockorder.Clean], class event.Class) task.ID
}

// Args are the arguments of one system call. Buf receives record output.
type Args struct {
	Num   Number
	A0    uint64
	A1    uint64
	Buf   []byte
	Spawn *SpawnRequest
}

// Ret is the outcome of one system call.
type Ret struct {
	Result Result
	Value  uint64
}

// Dispatcher executes system calls on behalf of tasks.
type Dispatcher struct {
	spawn *SpawnCell
	tasks Tasks
	input Input
	log   klog.Logger
	calls [numCalls]atomic.Uint64
}

// NewDispatcher returns a dispatcher. spawn must be registered before the
// first SysSpawn.
func NewDispatcher(spawn *SpawnCell, tasks Tasks, input Input, log klog.Logger) *Dispatcher {
	if log == nil {
		log = klog.Discard
	}
	return &Dispatcher{spawn: spawn, tasks: tasks, input: input, log: log}
}

// Calls returns how many times n was dispatched.
func (d *Dispatcher) Calls(n Number) uint64 {
	if n >= numCalls {
		return 0
	}
	return d.calls[n].Load()
}

// Dispatch runs one system call for c.
func (d *Dispatcher) Dispatch(c Caller, a Args) Ret {
	if a.Num >= numCalls {
		d.log.Debugf("%v: unknown call %d", c.ID(), a.Num)
		return Ret{Result: ResultBadCall}
	}
	d.calls[a.Num].Add(1)

	switch a.Num {
	case SysYield:
		c.Yield()
		return Ret{}

	case SysSleep:
		c.Sleep(a.A0)
		return Ret{}

	case SysExit:
		c.Exit(int(int32(a.A0)))
		return Ret{} // not reached

	case SysSpawn:
		if a.Spawn == nil || a.Spawn.Program == nil {
			return Ret{Result: ResultBadArg}
		}
		id, err := d.spawn.Spawn(c.Begin(), *a.Spawn)
		if err != nil {
			d.log.Infof("%v: spawn %q: %v", c.ID(), a.Spawn.Name, err)
			return Ret{Result: resultOf(err)}
		}
		return Ret{Value: uint64(id)}

	case SysPollEvent, SysPeekEvent, SysWaitEvent:
		if len(a.Buf) < proto.EventRecordSize {
			return Ret{Result: ResultBadBuffer}
		}
		h := c.Handle()
		if a.Num == SysWaitEvent {
			c.Block(func(t *task.Task) bool { return t.Events.Len() > 0 })
		}
		var ev event.Event
		var ok bool
		if a.Num == SysPeekEvent {
			ev, ok = d.input.Peek(c.Begin(), h)
		} else {
			ev, ok = d.input.Poll(c.Begin(), h)
		}
		if !ok {
			return Ret{Result: ResultEmpty}
		}
		proto.PutEvent(a.Buf, ev)
		return Ret{Value: 1}

	case SysEventCount:
		return Ret{Value: uint64(d.input.Count(c.Begin(), c.Handle()))}

	case SysSetFocus:
		class := event.Class(a.A0)
		if int(class) >= event.NumClasses {
			return Ret{Result: ResultBadArg}
		}
		id := task.ID(a.A1)
		if id == task.InvalidID {
			return Ret{Result: resultOf(d.input.SetFocus(c.Begin(), class, task.Handle{}))}
		}
		h, err := d.tasks.Lookup(c.Begin(), id)
		if err != nil {
			return Ret{Result: resultOf(err)}
		}
		err = d.input.SetFocus(c.Begin(), class, h)
		h.Drop()
		return Ret{Result: resultOf(err)}

	case SysFocusOf:
		class := event.Class(a.A0)
		if int(class) >= event.NumClasses {
			return Ret{Result: ResultBadArg}
		}
		return Ret{Value: uint64(d.input.Focus(c.Begin(), class))}

	case SysStats:
		if len(a.Buf) < proto.StatsRecordSize {
			return Ret{Result: ResultBadBuffer}
		}
		proto.PutStats(a.Buf, d.tasks.Stats(c.Begin()))
		return Ret{}

	case SysTaskInfo:
		if len(a.Buf) < proto.TaskInfoRecordSize {
			return Ret{Result: ResultBadBuffer}
		}
		ti, err := d.tasks.TaskInfo(c.Begin(), task.ID(a.A0))
		if err != nil {
			return Ret{Result: resultOf(err)}
		}
		proto.PutTaskInfo(a.Buf, ti)
		return Ret{}

	case SysKill:
		id := task.ID(a.A0)
		if err := d.tasks.Kill(c.Begin(), id); err != nil {
			return Ret{Result: resultOf(err)}
		}
		if id == c.ID() {
			// A killed task leaves at its next switch.
			c.Yield()
		}
		return Ret{}
	}
	return Ret{Result: ResultBadCall}
}
