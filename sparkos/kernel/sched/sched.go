// Package sched owns the task table and the ready queues, creates tasks and
// runs them on cores.
//
// Lock order: the table lock (L5) is always taken before a task lock (L4).
// Spawn, Wake and Kill take L5 then L4; code that only holds a task lock and
// needs the table releases the task lock first.
package sched

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/btree"

	"sparkcore/sparkos/kernel/ctxsw"
	"sparkcore/sparkos/kernel/event"
	"sparkcore/sparkos/kernel/lockorder"
	"sparkcore/sparkos/kernel/task"
	"sparkcore/sparkos/klog"
)

const (
	// DefaultMaxTasks is the number of task slots.
	DefaultMaxTasks = 32
	// MaxCores is the number of cores a scheduler can drive.
	MaxCores = 8
)

var (
	// ErrNoTaskSlot is returned by Spawn when every task slot is in use.
	ErrNoTaskSlot = task.ErrNoSlot
	// ErrNoSuchTask is returned for IDs that are not in the task table.
	ErrNoSuchTask = task.ErrNotFound
)

// Config configures a Scheduler.
type Config struct {
	// MaxTasks bounds the number of live tasks. Zero means DefaultMaxTasks.
	MaxTasks int
	// QueueDepth is the event queue capacity of each task.
	QueueDepth int
	// Clock returns milliseconds since boot. Zero means wall time since New.
	Clock func() uint64
	// Logger defaults to klog.Discard.
	Logger klog.Logger
}

// Spec describes a task to spawn.
type Spec struct {
	Name     string
	Priority task.Priority
	// Entry is the task body. Returning from it exits the task with code 0.
	Entry func(*Self)
}

// ExitHook runs on a core after a task terminated and before its table
// reference is dropped.
type ExitHook func(tok lockorder.Token[lockorder.Clean], id task.ID)

type entry struct {
	id     task.ID
	h      task.Handle
	self   *Self
	parked bool // blocked and off the ready queues

	// wakeAt is the sleep deadline while the entry is in the sleep queue.
	wakeAt   uint64
	sleeping bool
}

type table struct {
	tasks    *btree.BTreeG[*entry]
	sleepers *btree.BTreeG[*entry] // by wakeAt, then id
	ready    [task.NumPriorities]runq
}

// coreTable records the task each core is running.
type coreTable struct {
	n       int
	running [MaxCores]task.ID
}

// Scheduler is the kernel task scheduler.
type Scheduler struct {
	cfg   Config
	log   klog.Logger
	tbl   *lockorder.RWLock[lockorder.Level5, table]
	cores *lockorder.Mutex[lockorder.Level2, coreTable]
	hooks []ExitHook

	nextID   atomic.Uint32
	live     atomic.Int32
	spawned  atomic.Uint64
	switches atomic.Uint64
	yields   atomic.Uint64

	kick chan struct{}
}

// New returns a scheduler with no tasks.
func New(cfg Config) *Scheduler {
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = DefaultMaxTasks
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = event.DefaultDepth
	}
	if cfg.Clock == nil {
		start := time.Now()
		cfg.Clock = func() uint64 { return uint64(time.Since(start).Milliseconds()) }
	}
	if cfg.Logger == nil {
		cfg.Logger = klog.Discard
	}
	var t table
	t.tasks = btree.NewG(8, func(a, b *entry) bool { return a.id < b.id })
	t.sleepers = btree.NewG(8, func(a, b *entry) bool {
		if a.wakeAt != b.wakeAt {
			return a.wakeAt < b.wakeAt
		}
		return a.id < b.id
	})
	for i := range t.ready {
		t.ready[i] = newRunq(cfg.MaxTasks)
	}
	return &Scheduler{
		cfg:   cfg,
		log:   cfg.Logger,
		tbl:   lockorder.NewRWLock[lockorder.Level5]("sched.table", t),
		cores: lockorder.NewMutex[lockorder.Level2]("sched.cores", coreTable{}),
		kick:  make(chan struct{}, 1),
	}
}

// OnExit adds a hook run for every terminated task. Hooks are added during
// boot, before any core runs.
func (s *Scheduler) OnExit(h ExitHook) { s.hooks = append(s.hooks, h) }

// Now returns the scheduler clock in milliseconds.
func (s *Scheduler) Now() uint64 { return s.cfg.Clock() }

// Kick wakes an idle core.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Scheduler) onFree(id task.ID) {
	s.live.Add(-1)
	s.log.Debugf("%v freed", id)
}

// Spawn creates a task and makes it ready. It fails with ErrNoTaskSlot when
// MaxTasks tasks are alive.
func (s *Scheduler) Spawn(tok lockorder.Token[lockorder.Clean], spec Spec) (task.ID, error) {
	if spec.Entry == nil {
		return task.InvalidID, fmt.Errorf("spawn %q: nil entry", spec.Name)
	}
	if int(spec.Priority) >= task.NumPriorities {
		return task.InvalidID, fmt.Errorf("spawn %q: bad priority %d", spec.Name, spec.Priority)
	}
	for {
		n := s.live.Load()
		if int(n) >= s.cfg.MaxTasks {
			return task.InvalidID, fmt.Errorf("spawn %q: %w", spec.Name, ErrNoTaskSlot)
		}
		if s.live.CompareAndSwap(n, n+1) {
			break
		}
	}

	// Everything that allocates happens before the table lock is taken.
	id := task.ID(s.nextID.Add(1))
	if id == task.InvalidID {
		panic("sched: task id space exhausted")
	}
	h := task.New(task.Task{
		ID:       id,
		Name:     spec.Name,
		State:    task.Ready,
		Priority: spec.Priority,
		Events:   event.NewQueue(s.cfg.QueueDepth),
		Created:  s.Now(),
	}, s.onFree)
	e := &entry{id: id, h: h}
	e.self = &Self{s: s, e: e, entry: spec.Entry, exec: lockorder.NewExec(spec.Name, tok.Exec().CPU())}
	ctxsw.Init(h.Frame(), e.self.run, uintptr(id))

	_, g := lockorder.Write5(tok, s.tbl)
	t := g.Value()
	t.tasks.ReplaceOrInsert(e)
	t.ready[spec.Priority].push(e)
	g.Release()

	s.spawned.Add(1)
	s.log.Infof("spawned %v %q priority=%v", id, spec.Name, spec.Priority)
	s.Kick()
	return id, nil
}

// Lookup returns a new reference to task id. The caller drops it.
func (s *Scheduler) Lookup(tok lockorder.Token[lockorder.Clean], id task.ID) (task.Handle, error) {
	_, g := lockorder.Read5(tok, s.tbl)
	e, ok := g.Value().tasks.Get(&entry{id: id})
	var h task.Handle
	if ok {
		h = e.h.Clone()
	}
	g.Release()
	if !ok {
		return task.Handle{}, fmt.Errorf("lookup %v: %w", id, ErrNoSuchTask)
	}
	return h, nil
}

// Wake makes a blocked task ready. Waking a task that is not blocked is a
// no-op.
func (s *Scheduler) Wake(tok lockorder.Token[lockorder.Clean], id task.ID) error {
	t5, g := lockorder.Write5(tok, s.tbl)
	defer g.Release()
	e, ok := g.Value().tasks.Get(&entry{id: id})
	if !ok {
		return fmt.Errorf("wake %v: %w", id, ErrNoSuchTask)
	}
	_, tg := task.Write(t5, e.h)
	t := tg.Value()
	if t.State == task.Blocked {
		t.State = task.Ready
		if e.parked {
			e.parked = false
			g.Value().ready[t.Priority].push(e)
		}
	}
	tg.Release()
	s.Kick()
	return nil
}

// Kill terminates task id. A task that never ran is reaped without running;
// a started one is resumed once so that its activation can unwind.
func (s *Scheduler) Kill(tok lockorder.Token[lockorder.Clean], id task.ID) error {
	t5, g := lockorder.Write5(tok, s.tbl)
	defer g.Release()
	e, ok := g.Value().tasks.Get(&entry{id: id})
	if !ok {
		return fmt.Errorf("kill %v: %w", id, ErrNoSuchTask)
	}
	_, tg := task.Write(t5, e.h)
	t := tg.Value()
	killed := t.Terminate(task.ExitKilled, -1)
	if killed && e.parked {
		e.parked = false
		g.Value().ready[t.Priority].push(e)
	}
	tg.Release()
	if killed {
		s.log.Infof("killed %v", id)
		s.Kick()
	}
	return nil
}

// Info is a snapshot of one task.
type Info struct {
	ID       task.ID
	Name     string
	State    task.State
	Priority task.Priority
	Exit     task.ExitReason
	Queued   int
	Dropped  uint64
	Yields   uint64
	Runtime  uint64
	// Core is the core running the task, or -1.
	Core int
}

func infoOf(t *task.Task, cores *coreTable) Info {
	core := -1
	for i, id := range cores.running[:cores.n] {
		if id == t.ID {
			core = i
			break
		}
	}
	return Info{
		Core:     core,
		ID:       t.ID,
		Name:     t.Name,
		State:    t.State,
		Priority: t.Priority,
		Exit:     t.Exit,
		Queued:   t.Events.Len(),
		Dropped:  t.Events.Dropped(),
		Yields:   t.Yields,
		Runtime:  t.Runtime,
	}
}

// Tasks lists the tasks in the table ordered by ID.
func (s *Scheduler) Tasks(tok lockorder.Token[lockorder.Clean]) []Info {
	t5, g := lockorder.Read5(tok, s.tbl)
	cores := s.runningOn(t5)
	out := make([]Info, 0, g.Value().tasks.Len())
	g.Value().tasks.Ascend(func(e *entry) bool {
		_, tg := task.Read(t5, e.h)
		out = append(out, infoOf(tg.Value(), &cores))
		tg.Release()
		return true
	})
	g.Release()
	return out
}

// TaskInfo returns the snapshot of one task.
func (s *Scheduler) TaskInfo(tok lockorder.Token[lockorder.Clean], id task.ID) (Info, error) {
	t5, g := lockorder.Read5(tok, s.tbl)
	defer g.Release()
	e, ok := g.Value().tasks.Get(&entry{id: id})
	if !ok {
		return Info{}, fmt.Errorf("task info %v: %w", id, ErrNoSuchTask)
	}
	cores := s.runningOn(t5)
	_, tg := task.Read(t5, e.h)
	info := infoOf(tg.Value(), &cores)
	tg.Release()
	return info, nil
}

// Stats summarises the scheduler.
type Stats struct {
	Total           uint64 // tasks spawned since boot
	Active          int    // live tasks, including terminated ones not yet freed
	ContextSwitches uint64
	Yields          uint64
}

// Stats returns the scheduler counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Total:           s.spawned.Load(),
		Active:          int(s.live.Load()),
		ContextSwitches: s.switches.Load(),
		Yields:          s.yields.Load(),
	}
}

// runningOn snapshots the core table.
func (s *Scheduler) runningOn(tok lockorder.Token[lockorder.Held5]) coreTable {
	_, g := lockorder.Lock2(tok, s.cores)
	ct := *g.Value()
	g.Release()
	return ct
}

// addCore claims a core slot.
func (s *Scheduler) addCore(tok lockorder.Token[lockorder.Clean]) int {
	_, g := lockorder.Lock2(tok, s.cores)
	defer g.Release()
	ct := g.Value()
	if ct.n == MaxCores {
		panic(fmt.Sprintf("sched: more than %d cores", MaxCores))
	}
	ct.running[ct.n] = task.InvalidID
	ct.n++
	return ct.n - 1
}

// setRunning records the task running on core slot.
func (s *Scheduler) setRunning(tok lockorder.Token[lockorder.Clean], slot int, id task.ID) {
	_, g := lockorder.Lock2(tok, s.cores)
	g.Value().running[slot] = id
	g.Release()
}

// sleep puts e in the sleep queue until wakeAt and blocks it. The caller
// switches out afterwards.
func (s *Scheduler) sleep(tok lockorder.Token[lockorder.Clean], e *entry, wakeAt uint64) {
	t5, g := lockorder.Write5(tok, s.tbl)
	t := g.Value()
	if e.sleeping {
		t.sleepers.Delete(e)
	}
	e.wakeAt, e.sleeping = wakeAt, true
	t.sleepers.ReplaceOrInsert(e)
	_, tg := task.Write(t5, e.h)
	if !tg.Value().Terminal() {
		tg.Value().State = task.Blocked
	}
	tg.Release()
	g.Release()
}

// wakeSleepers makes every task whose sleep deadline passed ready and
// returns how many were woken.
func (s *Scheduler) wakeSleepers(tok lockorder.Token[lockorder.Clean]) int {
	now := s.Now()
	t5, g := lockorder.Write5(tok, s.tbl)
	defer g.Release()
	t := g.Value()
	n := 0
	for {
		e, ok := t.sleepers.Min()
		if !ok || e.wakeAt > now {
			return n
		}
		t.sleepers.DeleteMin()
		e.sleeping = false
		_, tg := task.Write(t5, e.h)
		tk := tg.Value()
		if tk.State == task.Blocked {
			tk.State = task.Ready
			if e.parked {
				e.parked = false
				t.ready[tk.Priority].push(e)
			}
		}
		tg.Release()
		n++
	}
}

// pick removes the next ready task, highest priority first.
func (s *Scheduler) pick(tok lockorder.Token[lockorder.Clean]) *entry {
	_, g := lockorder.Write5(tok, s.tbl)
	defer g.Release()
	t := g.Value()
	for p := range t.ready {
		if e := t.ready[p].pop(); e != nil {
			return e
		}
	}
	return nil
}

// requeue puts e back after it switched out, unless it blocked.
func (s *Scheduler) requeue(tok lockorder.Token[lockorder.Clean], e *entry) {
	t5, g := lockorder.Write5(tok, s.tbl)
	_, tg := task.Write(t5, e.h)
	t := tg.Value()
	switch t.State {
	case task.Running:
		t.State = task.Ready
		g.Value().ready[t.Priority].push(e)
	case task.Ready, task.Terminated:
		// Woken before it finished switching out, or killed while running.
		g.Value().ready[t.Priority].push(e)
	case task.Blocked:
		e.parked = true
	}
	tg.Release()
	g.Release()
}

// reap removes a terminated task from the table and drops the table's
// reference.
func (s *Scheduler) reap(exec *lockorder.Exec, e *entry) {
	for _, h := range s.hooks {
		h(exec.Begin(), e.id)
	}
	_, g := lockorder.Write5(exec.Begin(), s.tbl)
	t := g.Value()
	t.tasks.Delete(e)
	if e.sleeping {
		t.sleepers.Delete(e)
		e.sleeping = false
	}
	g.Release()
	e.h.Drop()
}
