// Package task defines the kernel task record and the reference counted
// handle through which every subsystem reaches it.
package task

import (
	"errors"
	"fmt"

	"sparkcore/sparkos/kernel/event"
)

var (
	// ErrNoSlot reports that every task slot is in use.
	ErrNoSlot = errors.New("no free task slot")
	// ErrNotFound reports an ID that names no live task.
	ErrNotFound = errors.New("no such task")
)

// ID identifies a task. IDs are never reused while a handle to a task with
// the same ID is alive.
type ID uint32

// InvalidID is never assigned to a task.
const InvalidID ID = 0xFFFFFFFF

func (id ID) String() string {
	if id == InvalidID {
		return "task(invalid)"
	}
	return fmt.Sprintf("task(%d)", uint32(id))
}

// State is the scheduling state of a task.
type State uint8

const (
	Invalid State = iota
	Ready
	Running
	Blocked
	Terminated
)

func (s State) String() string {
	switch s {
	case Invalid:
		return "invalid"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// ExitReason records why a task terminated.
type ExitReason uint8

const (
	ExitNone ExitReason = iota
	ExitNormal
	ExitFault
	ExitKilled
)

func (r ExitReason) String() string {
	switch r {
	case ExitNone:
		return "none"
	case ExitNormal:
		return "normal"
	case ExitFault:
		return "fault"
	case ExitKilled:
		return "killed"
	default:
		return fmt.Sprintf("ExitReason(%d)", uint8(r))
	}
}

// Priority orders ready tasks. Lower values run first.
type Priority uint8

const (
	High Priority = iota
	Normal
	Low
	Idle

	NumPriorities = int(Idle) + 1
)

func (p Priority) String() string {
	switch p {
	case High:
		return "high"
	case Normal:
		return "normal"
	case Low:
		return "low"
	case Idle:
		return "idle"
	default:
		return fmt.Sprintf("Priority(%d)", uint8(p))
	}
}

// Task is the lock protected state of one task.
type Task struct {
	ID       ID
	Name     string
	State    State
	Priority Priority
	Exit     ExitReason
	Code     int
	Events   event.Queue

	Yields  uint64
	Runtime uint64 // ticks spent running
	Created uint64 // tick of creation
}

// Terminal reports whether the task reached its final state.
func (t *Task) Terminal() bool { return t.State == Terminated }

// Terminate moves t to Terminated with the given reason. Only the first
// termination is recorded.
func (t *Task) Terminate(reason ExitReason, code int) bool {
	if t.State == Terminated {
		return false
	}
	t.State = Terminated
	t.Exit = reason
	t.Code = code
	return true
}
