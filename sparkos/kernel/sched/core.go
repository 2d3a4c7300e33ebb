package sched

import (
	"context"
	"fmt"
	"time"

	"sparkcore/sparkos/kernel/ctxsw"
	"sparkcore/sparkos/kernel/irq"
	"sparkcore/sparkos/kernel/lockorder"
	"sparkcore/sparkos/kernel/task"
	"sparkcore/sparkos/kernel/trap"
)

// DefaultTick is how often an idle core checks for work without a kick.
const DefaultTick = 10 * time.Millisecond

// Core runs tasks on one CPU. A Core is driven by a single goroutine, the
// one that calls Step or Run.
type Core struct {
	s     *Scheduler
	slot  int
	cpu   *irq.CPU
	traps *trap.Table
	exec  *lockorder.Exec // scheduler context
	intr  *lockorder.Exec // interrupt context
	idle  ctxsw.Frame
	tick  time.Duration
}

// NewCore returns a core running on cpu. Pending lines of traps, if not nil,
// are serviced before each task switch.
func (s *Scheduler) NewCore(cpu *irq.CPU, traps *trap.Table) *Core {
	c := &Core{
		s:     s,
		cpu:   cpu,
		traps: traps,
		exec:  lockorder.NewExec(fmt.Sprintf("core%d", cpu.ID()), cpu),
		intr:  lockorder.NewExec(fmt.Sprintf("irq%d", cpu.ID()), cpu),
		tick:  DefaultTick,
	}
	c.slot = s.addCore(c.exec.Begin())
	ctxsw.InitCurrent(&c.idle)
	return c
}

// Slot returns the index of the core in the scheduler's core table.
func (c *Core) Slot() int { return c.slot }

// CPU returns the core's interrupt state.
func (c *Core) CPU() *irq.CPU { return c.cpu }

// Exec returns the scheduler execution context of the core.
func (c *Core) Exec() *lockorder.Exec { return c.exec }

// Step services pending interrupts, wakes expired sleepers and runs the next ready task until it
// yields, blocks or exits. It reports whether a task was picked.
func (c *Core) Step() bool {
	if c.traps != nil {
		c.traps.Service(c.intr)
	}
	c.s.wakeSleepers(c.exec.Begin())
	e := c.s.pick(c.exec.Begin())
	if e == nil {
		return false
	}

	f := e.h.Frame()
	_, g := task.Write(c.exec.Begin(), e.h)
	t := g.Value()
	if t.State == task.Terminated && f.Flags&ctxsw.Started == 0 {
		g.Release()
		c.s.reap(c.exec, e)
		return true
	}
	if t.State != task.Terminated {
		t.State = task.Running
	}
	g.Release()

	e.self.core = c
	e.self.exec.Rebind(c.cpu)
	c.s.setRunning(c.exec.Begin(), c.slot, e.id)
	start := c.s.Now()
	ctxsw.Switch(&c.idle, f)
	c.s.switches.Add(1)
	c.s.setRunning(c.exec.Begin(), c.slot, task.InvalidID)

	_, g = task.Write(c.exec.Begin(), e.h)
	g.Value().Runtime += c.s.Now() - start
	g.Release()

	if e.self.exited {
		c.s.reap(c.exec, e)
	} else {
		c.s.requeue(c.exec.Begin(), e)
	}
	return true
}

// Run steps the core until ctx is done. An idle core waits for a kick or
// the next tick.
func (c *Core) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.Step() {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.s.kick:
		case <-ticker.C:
		}
	}
}

// Drain steps the core until no task is ready. It is meant for tests and
// single-core batch runs.
func (c *Core) Drain() int {
	n := 0
	for c.Step() {
		n++
	}
	return n
}
