package sched

import (
	"sync"
	"sync/atomic"

	"sparkcore/sparkos/kernel/task"
)

// PanicInfo is the report of a fatal task panic: one that broke a kernel
// invariant or left locks held.
type PanicInfo struct {
	TaskID task.ID
	Core   int // core slot the task ran on
	Locks  int // ordered locks still held by the task
	Value  any
	Stack  []byte
}

var (
	panicked     atomic.Bool
	panicOnce    sync.Once
	panicHandler atomic.Pointer[func(PanicInfo)]
)

// InPanicMode reports whether a fatal panic has been raised.
func InPanicMode() bool { return panicked.Load() }

// SetPanicHandler installs the process-wide handler for fatal panics. It
// runs once, on the first one, from the faulting task, and must not panic.
func SetPanicHandler(fn func(PanicInfo)) {
	if fn == nil {
		panicHandler.Store(nil)
		return
	}
	panicHandler.Store(&fn)
}

// fatal reports a fatal panic of x. The caller re-panics afterwards.
func (x *Self) fatal(r any) {
	info := PanicInfo{TaskID: x.e.id, Core: -1, Locks: x.exec.Depth(), Value: r}
	if x.core != nil {
		info.Core = x.core.Slot()
	}
	panicOnce.Do(func() {
		panicked.Store(true)
		info.Stack = captureStack()
		if fn := panicHandler.Load(); fn != nil {
			(*fn)(info)
		}
	})
}
