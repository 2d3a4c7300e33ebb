// Package ctxsw is the context-switch boundary: the only code that transfers
// control between task activations.
//
// Everything here takes and returns Frames and nothing else. The functions
// take no locks, log nothing and run no scheduler logic; callers release
// every guard before switching. A goroutine backs each frame and a one-slot
// gate parks it while it is switched out, so exactly one activation of a
// core runs at a time.
package ctxsw

import "runtime"

// Entry is the first code run by a new activation.
// It must leave through Exit and never return.
type Entry func(arg uintptr)

// Flags describe the lifecycle of a Frame.
type Flags uint32

const (
	Initialized Flags = 1 << iota
	Started
	Exited
)

// Frame is the save area of one activation.
type Frame struct {
	Arg      uintptr
	Flags    Flags
	Switches uint64

	entry Entry
	gate  chan struct{}
}

// Init prepares f to start at entry(arg) on its first activation.
func Init(f *Frame, entry Entry, arg uintptr) {
	if entry == nil {
		panic("ctxsw: nil entry")
	}
	if f.Flags&Initialized != 0 {
		panic("ctxsw: frame initialised twice")
	}
	*f = Frame{Arg: arg, Flags: Initialized, entry: entry, gate: make(chan struct{}, 1)}
}

// InitCurrent adopts the running activation into f, so that it can be
// switched away from and back to. A core uses it for its idle frame.
func InitCurrent(f *Frame) {
	if f.Flags&Initialized != 0 {
		panic("ctxsw: frame initialised twice")
	}
	*f = Frame{Flags: Initialized | Started, gate: make(chan struct{}, 1)}
}

// Switch saves the running activation into from and resumes to. It returns
// when another activation switches back to from.
func Switch(from, to *Frame) {
	transfer(from, to)
	<-from.gate
}

// Exit ends the running activation, recorded in from, and resumes to. It does
// not return; deferred calls of the activation run.
func Exit(from, to *Frame) {
	from.Flags |= Exited
	transfer(from, to)
	runtime.Goexit()
}

func transfer(from, to *Frame) {
	switch {
	case from == to:
		panic("ctxsw: switch to self")
	case to.Flags&Initialized == 0:
		panic("ctxsw: switch to uninitialised frame")
	case to.Flags&Exited != 0:
		panic("ctxsw: switch to exited frame")
	}
	to.Switches++
	if to.Flags&Started == 0 {
		to.Flags |= Started
		go run(to)
		return
	}
	to.gate <- struct{}{}
}

func run(f *Frame) {
	f.entry(f.Arg)
	panic("ctxsw: entry returned without Exit")
}
