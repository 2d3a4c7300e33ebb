package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"sparkcore/hal"
	"sparkcore/sparkos/kernel/input"
	"sparkcore/sparkos/kernel/irq"
	"sparkcore/sparkos/kernel/lockorder"
	"sparkcore/sparkos/kernel/sched"
	"sparkcore/sparkos/kernel/syscall"
	"sparkcore/sparkos/kernel/task"
	"sparkcore/sparkos/kernel/trap"
	"sparkcore/sparkos/klog"
	"sparkcore/sparkos/services/inputdrv"
	"sparkcore/sparkos/services/status"
	"sparkcore/sparkos/tasks/compositor"
	"sparkcore/sparkos/tasks/echo"
)

// System is a booted kernel: scheduler, input path and system call layer.
type System struct {
	cfg   Config
	hal   hal.HAL
	log   *klog.SinkLogger
	boot  *lockorder.Exec
	clock atomic.Uint64

	traps  trap.Table
	sched  *sched.Scheduler
	router *input.Router
	spawn  syscall.SpawnCell
	calls  *syscall.Dispatcher
	drv    *inputdrv.Driver
	panel  *status.Panel
	cores  []*sched.Core
}

// NewSystem boots the kernel on h. Tasks do not run until Run is called.
func NewSystem(h hal.HAL, cfg Config) (*System, error) {
	irqs := h.Interrupts()
	if irqs == nil || irqs.Cores() == 0 {
		return nil, errors.New("boot: no interrupt controllers")
	}
	level, err := cfg.normalize(irqs.Cores())
	if err != nil {
		return nil, err
	}

	s := &System{cfg: cfg, hal: h, log: klog.New(h.Logger(), level)}
	blog := s.log.Named("boot")

	cpus := make([]*irq.CPU, cfg.Cores)
	for i := range cpus {
		cpus[i] = irq.NewCPU(i, irqs.Controller(i))
	}
	// The boot context has a CPU of its own so that it stays usable from
	// outside the core loops once they run.
	s.boot = lockorder.NewExec("boot", irq.NewCPU(len(cpus), &irq.Soft{}))

	var clock func() uint64
	if t := h.Time(); t != nil && t.Ticks() != nil {
		clock = s.clock.Load
	}
	s.sched = sched.New(sched.Config{
		MaxTasks:   cfg.MaxTasks,
		QueueDepth: cfg.QueueDepth,
		Clock:      clock,
		Logger:     s.log.Named("sched"),
	})
	blog.Debugf("scheduler: %d slots, queue depth %d", cfg.MaxTasks, cfg.QueueDepth)

	var fb hal.Framebuffer
	if d := h.Display(); d != nil {
		fb = d.Framebuffer()
	}
	rcfg := input.Config{Clock: s.sched.Now, Wake: s.sched.Wake, Logger: s.log.Named("input")}
	if fb != nil {
		rcfg.Width, rcfg.Height = int32(fb.Width()), int32(fb.Height())
	}
	s.router = input.New(rcfg)
	s.sched.OnExit(s.router.ClearTask)

	s.calls = syscall.NewDispatcher(&s.spawn, kernelTasks{s}, s.router, s.log.Named("syscall"))
	if err := s.spawn.Register(s.spawnProgram); err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	s.spawn.Seal()
	blog.Debugf("spawn registered")

	s.drv = inputdrv.New(inputdrv.Config{
		Router: s.router,
		Traps:  &s.traps,
		Kick:   s.sched.Kick,
		Logger: s.log.Named("inputdrv"),
	})
	if err := s.drv.Attach(); err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	s.traps.Seal()

	// Device interrupts are routed to core 0.
	for i, cpu := range cpus {
		var traps *trap.Table
		if i == 0 {
			traps = &s.traps
		}
		s.cores = append(s.cores, s.sched.NewCore(cpu, traps))
	}

	installPanicHandler(h)

	if cfg.Status && fb != nil {
		s.panel = status.New(status.Config{Surface: fb})
		fb.ClearRGB(0x10, 0x18, 0x30)
		if _, err := s.Spawn("status", task.Low, s.panel); err != nil {
			return nil, fmt.Errorf("boot: %w", err)
		}
	}
	if cfg.Demo {
		if _, err := s.Spawn("compositor", task.High, s.demo()); err != nil {
			return nil, fmt.Errorf("boot: %w", err)
		}
	}
	blog.Infof("booted: %d cores", len(s.cores))
	return s, nil
}

// spawnProgram is the spawn implementation registered with the system call
// layer.
func (s *System) spawnProgram(tok lockorder.Token[lockorder.Clean], req syscall.SpawnRequest) (task.ID, error) {
	return s.sched.Spawn(tok, sched.Spec{
		Name:     req.Name,
		Priority: req.Priority,
		Entry: func(x *sched.Self) {
			req.Program.Run(syscall.NewContext(s.calls, x))
		},
	})
}

// Spawn starts prog from the boot context.
func (s *System) Spawn(name string, prio task.Priority, prog syscall.Program) (task.ID, error) {
	return s.spawn.Spawn(s.boot.Begin(), syscall.SpawnRequest{Name: name, Priority: prio, Program: prog})
}

func (s *System) demo() syscall.Program {
	l := s.log.Named("demo")
	return compositor.New([]compositor.Window{
		{Name: "echo1", Priority: task.Normal, Program: echo.New("echo1", l, 0, 0)},
		{Name: "echo2", Priority: task.Normal, Program: echo.New("echo2", l, 0, 0)},
	}, l)
}

// Inject feeds a raw input record to the input device.
func (s *System) Inject(r input.Raw) bool { return s.drv.Inject(r) }

// Tasks lists the live tasks. Tasks, Stats and Spawn use the boot context
// and must not be called concurrently with each other.
func (s *System) Tasks() []sched.Info { return s.sched.Tasks(s.boot.Begin()) }

// Stats returns the kernel counters as reported to tasks.
func (s *System) Stats() Stats {
	return Stats{
		Sched:  s.sched.Stats(),
		Input:  s.router.Stats(),
		Driver: s.drv.Stats(s.boot.Begin()),
	}
}

// Stats gathers the counters of the kernel components.
type Stats struct {
	Sched  sched.Stats
	Input  input.Stats
	Driver inputdrv.Stats
}

// Run drives every core and the HAL input and tick pumps until ctx is
// done.
func (s *System) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range s.cores {
		g.Go(func() error { return c.Run(ctx) })
	}
	g.Go(func() error { return s.pumpInput(ctx, s.hal.Input()) })
	g.Go(func() error { return s.pumpTicks(ctx, s.hal.Time()) })
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
