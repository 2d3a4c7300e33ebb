package syscall

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"sparkcore/sparkos/kernel/event"
	"sparkcore/sparkos/kernel/input"
	"sparkcore/sparkos/kernel/irq"
	"sparkcore/sparkos/kernel/lockorder"
	"sparkcore/sparkos/kernel/task"
	"sparkcore/sparkos/proto"
)

func newExec(name string) *lockorder.Exec {
	return lockorder.NewExec(name, irq.NewCPU(0, &irq.Soft{}))
}

type exitCall struct{ code int }

type fakeCaller struct {
	h      task.Handle
	exec   *lockorder.Exec
	yields int
	blocks int
	slept  uint64
}

func newFakeCaller(id task.ID) *fakeCaller {
	return &fakeCaller{
		h:    task.New(task.Task{ID: id, State: task.Running, Events: event.NewQueue(8)}, nil),
		exec: newExec(fmt.Sprintf("task%d", id)),
	}
}

func (f *fakeCaller) ID() task.ID                             { return f.h.ID() }
func (f *fakeCaller) Handle() task.Handle                     { return f.h }
func (f *fakeCaller) Begin() lockorder.Token[lockorder.Clean] { return f.exec.Begin() }
func (f *fakeCaller) Yield()                                  { f.yields++ }
func (f *fakeCaller) Sleep(ms uint64)                         { f.slept += ms }
func (f *fakeCaller) Exit(code int)                           { panic(exitCall{code}) }

func (f *fakeCaller) Block(ready func(*task.Task) bool) {
	_, g := task.Write(f.exec.Begin(), f.h)
	ok := ready(g.Value())
	g.Release()
	if !ok {
		f.blocks++
	}
}

type fakeTasks struct {
	handles map[task.ID]task.Handle
	killed  []task.ID
}

func (f *fakeTasks) Lookup(_ lockorder.Token[lockorder.Clean], id task.ID) (task.Handle, error) {
	h, ok := f.handles[id]
	if !ok {
		return task.Handle{}, fmt.Errorf("lookup %v: %w", id, task.ErrNotFound)
	}
	return h.Clone(), nil
}

func (f *fakeTasks) Kill(_ lockorder.Token[lockorder.Clean], id task.ID) error {
	if _, ok := f.handles[id]; !ok {
		return task.ErrNotFound
	}
	f.killed = append(f.killed, id)
	return nil
}

func (f *fakeTasks) TaskInfo(_ lockorder.Token[lockorder.Clean], id task.ID) (proto.TaskInfo, error) {
	if _, ok := f.handles[id]; !ok {
		return proto.TaskInfo{}, task.ErrNotFound
	}
	return proto.TaskInfo{ID: uint32(id), Name: "echo", State: uint8(task.Ready)}, nil
}

func (f *fakeTasks) Stats(lockorder.Token[lockorder.Clean]) proto.Stats {
	return proto.Stats{Total: uint32(len(f.handles)), Active: uint32(len(f.handles))}
}

func TestSpawnCellRegistration(t *testing.T) {
	var cell SpawnCell
	if err := cell.Register(nil); !errors.Is(err, ErrNilSpawn) {
		t.Fatalf("Register(nil) = %v, want ErrNilSpawn", err)
	}
	var got []SpawnRequest
	first := func(_ lockorder.Token[lockorder.Clean], req SpawnRequest) (task.ID, error) {
		got = append(got, req)
		return 11, nil
	}
	second := func(lockorder.Token[lockorder.Clean], SpawnRequest) (task.ID, error) {
		t.Errorf("second registration was called")
		return 0, nil
	}
	if err := cell.Register(first); err != nil {
		t.Fatal(err)
	}
	if err := cell.Register(second); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("second Register = %v, want ErrAlreadyRegistered", err)
	}
	cell.Seal()
	if !cell.Sealed() {
		t.Fatalf("Sealed() = false after Seal")
	}

	id, err := cell.Spawn(newExec("boot").Begin(), SpawnRequest{Name: "echo"})
	if err != nil || id != 11 {
		t.Fatalf("Spawn() = %v, %v; want 11, nil", id, err)
	}
	if len(got) != 1 || got[0].Name != "echo" {
		t.Fatalf("spawn requests = %+v", got)
	}
}

func TestSpawnCellUnregisteredIsFatal(t *testing.T) {
	for name, fn := range map[string]func(c *SpawnCell){
		"spawn": func(c *SpawnCell) { c.Spawn(newExec("boot").Begin(), SpawnRequest{}) },
		"seal":  func(c *SpawnCell) { c.Seal() },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("%s on empty cell did not panic", name)
				}
			}()
			fn(&SpawnCell{})
		})
	}
}

type dispatchFixture struct {
	caller *fakeCaller
	tasks  *fakeTasks
	router *input.Router
	cell   *SpawnCell
	ctx    *Context
	d      *Dispatcher
}

func newFixture(t *testing.T, spawn SpawnFunc) *dispatchFixture {
	t.Helper()
	f := &dispatchFixture{
		caller: newFakeCaller(1),
		router: input.New(input.Config{Clock: func() uint64 { return 5 }}),
		cell:   &SpawnCell{},
	}
	f.tasks = &fakeTasks{handles: map[task.ID]task.Handle{1: f.caller.h}}
	if spawn != nil {
		if err := f.cell.Register(spawn); err != nil {
			t.Fatal(err)
		}
	}
	f.d = NewDispatcher(f.cell, f.tasks, f.router, nil)
	f.ctx = NewContext(f.d, f.caller)
	return f
}

func TestEventCalls(t *testing.T) {
	f := newFixture(t, nil)
	if r := f.ctx.SetFocus(event.Keyboard, 1); r != OK {
		t.Fatalf("SetFocus() = %v", r)
	}
	if id := f.ctx.FocusOf(event.Keyboard); id != 1 {
		t.Fatalf("FocusOf() = %v, want 1", id)
	}
	irqExec := newExec("irq")
	for i := uint16(0); i < 3; i++ {
		f.router.Deliver(irqExec.Begin(), input.Raw{Device: input.DeviceKeyboard, Code: i, Press: true})
	}

	if n := f.ctx.EventCount(); n != 3 {
		t.Fatalf("EventCount() = %d, want 3", n)
	}
	peek, ok := f.ctx.PeekEvent()
	if !ok || peek.Code != 0 {
		t.Fatalf("PeekEvent() = %+v, %v", peek, ok)
	}
	var got []event.Event
	for {
		ev, ok := f.ctx.PollEvent()
		if !ok {
			break
		}
		got = append(got, ev)
	}
	want := []event.Event{event.Key(true, 0, 0, 5), event.Key(true, 1, 0, 5), event.Key(true, 2, 0, 5)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("polled events mismatch (-want +got):\n%s", diff)
	}

	f.router.Deliver(irqExec.Begin(), input.Raw{Device: input.DeviceKeyboard, Code: 9})
	if ev, ok := f.ctx.WaitEvent(); !ok || ev.Kind != event.KeyRelease || f.caller.blocks != 0 {
		t.Fatalf("WaitEvent() = %+v, %v (blocks=%d)", ev, ok, f.caller.blocks)
	}

	if r := f.ctx.SetFocus(event.Keyboard, task.InvalidID); r != OK {
		t.Fatalf("SetFocus(clear) = %v", r)
	}
	if r := f.ctx.SetFocus(event.Pointer, 77); r != ResultNoTask {
		t.Fatalf("SetFocus(unknown task) = %v, want %v", r, ResultNoTask)
	}
	if r := f.ctx.SetFocus(event.Class(5), 1); r != ResultBadArg {
		t.Fatalf("SetFocus(bad class) = %v, want %v", r, ResultBadArg)
	}
}

func TestSpawnCall(t *testing.T) {
	full := false
	f := newFixture(t, func(_ lockorder.Token[lockorder.Clean], req SpawnRequest) (task.ID, error) {
		if full {
			return task.InvalidID, fmt.Errorf("spawn %q: %w", req.Name, task.ErrNoSlot)
		}
		return 2, nil
	})
	prog := ProgramFunc(func(*Context) {})

	if id, r := f.ctx.Spawn("child", task.Normal, prog); r != OK || id != 2 {
		t.Fatalf("Spawn() = %v, %v; want 2, ok", id, r)
	}
	full = true
	if id, r := f.ctx.Spawn("child", task.Normal, prog); r != ResultNoSlot || id != task.InvalidID {
		t.Fatalf("Spawn() when full = %v, %v; want invalid, %v", id, r, ResultNoSlot)
	}
	if _, r := f.ctx.Spawn("nil", task.Normal, nil); r != ResultBadArg {
		t.Fatalf("Spawn(nil program) = %v, want %v", r, ResultBadArg)
	}
	if got := f.d.Calls(SysSpawn); got != 3 {
		t.Fatalf("Calls(SysSpawn) = %d, want 3", got)
	}
}

func TestInfoCalls(t *testing.T) {
	f := newFixture(t, nil)
	ti, r := f.ctx.TaskInfo(1)
	if r != OK || ti.Name != "echo" || ti.ID != 1 {
		t.Fatalf("TaskInfo(1) = %+v, %v", ti, r)
	}
	if _, r := f.ctx.TaskInfo(3); r != ResultNoTask {
		t.Fatalf("TaskInfo(3) = %v, want %v", r, ResultNoTask)
	}
	st, r := f.ctx.Stats()
	if r != OK || st.Total != 1 {
		t.Fatalf("Stats() = %+v, %v", st, r)
	}
	if r := f.ctx.Call(Args{Num: SysPollEvent, Buf: make([]byte, 4)}); r.Result != ResultBadBuffer {
		t.Fatalf("poll with short buffer = %v, want %v", r.Result, ResultBadBuffer)
	}
	if r := f.ctx.Call(Args{Num: 99}); r.Result != ResultBadCall {
		t.Fatalf("call 99 = %v, want %v", r.Result, ResultBadCall)
	}
}

func TestKillAndExit(t *testing.T) {
	f := newFixture(t, nil)
	if r := f.ctx.Kill(1); r != OK || f.caller.yields != 1 {
		t.Fatalf("Kill(self) = %v, yields = %d; want ok, 1", r, f.caller.yields)
	}
	if diff := cmp.Diff([]task.ID{1}, f.tasks.killed); diff != "" {
		t.Fatalf("killed mismatch (-want +got):\n%s", diff)
	}
	if r := f.ctx.Kill(8); r != ResultNoTask {
		t.Fatalf("Kill(8) = %v, want %v", r, ResultNoTask)
	}

	defer func() {
		ec, ok := recover().(exitCall)
		if !ok || ec.code != -3 {
			t.Fatalf("Exit(-3) recovered %+v", ec)
		}
	}()
	f.ctx.Exit(-3)
}

func TestNumberStrings(t *testing.T) {
	if got := SysWaitEvent.String(); got != "wait_event" {
		t.Errorf("SysWaitEvent.String() = %q", got)
	}
	if got := Number(40).String(); got != "sys(40)" {
		t.Errorf("Number(40).String() = %q", got)
	}
	if got := ResultNoSlot.String(); got != "no free task slot" {
		t.Errorf("ResultNoSlot.String() = %q", got)
	}
}

func TestSleepCall(t *testing.T) {
	f := newFixture(t, nil)
	f.ctx.Sleep(15)
	f.ctx.Sleep(5)
	if f.caller.slept != 20 {
		t.Fatalf("slept = %d ms, want 20", f.caller.slept)
	}
	if got := f.d.Calls(SysSleep); got != 2 {
		t.Fatalf("Calls(SysSleep) = %d, want 2", got)
	}
	if got := SysSleep.String(); got != "sleep" {
		t.Errorf("SysSleep.String() = %q", got)
	}
}
