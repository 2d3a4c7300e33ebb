//go:build !tinygo

package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"sparkcore/app"
	"sparkcore/hal"
	"sparkcore/sparkos/kernel/event"
	"sparkcore/sparkos/kernel/input"
	"sparkcore/sparkos/kernel/syscall"
	"sparkcore/sparkos/kernel/task"
)

// Stress implements subcommands.Command for the "stress" command. It boots
// a kernel without the demo, runs yielding workers on every core and
// floods the input device from several producers.
type Stress struct {
	boot      bootFlags
	workers   int
	rounds    int
	producers int
	events    int
	timeout   time.Duration
}

// Name implements subcommands.Command.Name.
func (*Stress) Name() string { return "stress" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Stress) Synopsis() string { return "exercise the scheduler and the input path" }

// Usage implements subcommands.Command.Usage.
func (*Stress) Usage() string { return "stress [flags]\n" }

// SetFlags implements subcommands.Command.SetFlags.
func (s *Stress) SetFlags(f *flag.FlagSet) {
	s.boot.register(f)
	f.IntVar(&s.workers, "workers", 16, "Number of yielding worker tasks.")
	f.IntVar(&s.rounds, "rounds", 1000, "Yields per worker.")
	f.IntVar(&s.producers, "producers", 4, "Number of input producers.")
	f.IntVar(&s.events, "events", 10000, "Key records injected per producer.")
	f.DurationVar(&s.timeout, "timeout", time.Minute, "Give up after this long.")
}

// Execute implements subcommands.Command.Execute.
func (s *Stress) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg, err := s.boot.load(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	cfg.Demo, cfg.Status = false, false
	if cfg.MaxTasks < s.workers+1 {
		cfg.MaxTasks = s.workers + 1
	}
	if err := s.run(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (s *Stress) run(ctx context.Context, cfg app.Config) error {
	sys, err := app.NewSystem(hal.New(), cfg)
	if err != nil {
		return err
	}

	var done, received atomic.Int64
	for i := 0; i < s.workers; i++ {
		_, err := sys.Spawn(fmt.Sprintf("worker%d", i), task.Normal, syscall.ProgramFunc(func(c *syscall.Context) {
			for r := 0; r < s.rounds; r++ {
				c.Yield()
			}
			done.Add(1)
		}))
		if err != nil {
			return fmt.Errorf("spawn worker %d: %w", i, err)
		}
	}
	focused := make(chan struct{})
	_, err = sys.Spawn("sink", task.High, syscall.ProgramFunc(func(c *syscall.Context) {
		c.SetFocus(event.Keyboard, c.TaskID())
		close(focused)
		for {
			if _, ok := c.WaitEvent(); ok {
				received.Add(1)
			}
		}
	}))
	if err != nil {
		return fmt.Errorf("spawn sink: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	kernel := make(chan error, 1)
	go func() { kernel <- sys.Run(ctx) }()

	start := time.Now()
	var inject errgroup.Group
	var accepted atomic.Int64
	select {
	case <-focused:
	case <-ctx.Done():
		return fmt.Errorf("sink never ran: %w", ctx.Err())
	}
	for p := 0; p < s.producers; p++ {
		inject.Go(func() error {
			for i := 0; i < s.events; i++ {
				r := input.Raw{Device: input.DeviceKeyboard, Code: uint16(p), Rune: 'a' + rune(i%26), Press: i%2 == 0}
				if sys.Inject(r) {
					accepted.Add(1)
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
			return nil
		})
	}
	if err := inject.Wait(); err != nil {
		return err
	}
	for done.Load() < int64(s.workers) && ctx.Err() == nil {
		time.Sleep(time.Millisecond)
	}
	elapsed := time.Since(start)
	cancel()
	if err := <-kernel; err != nil {
		return err
	}
	if got := done.Load(); got < int64(s.workers) {
		return fmt.Errorf("only %d of %d workers finished in %v", got, s.workers, s.timeout)
	}

	st := sys.Stats()
	fmt.Printf("elapsed         %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("tasks spawned   %d\n", st.Sched.Total)
	fmt.Printf("yields          %d\n", st.Sched.Yields)
	fmt.Printf("switches        %d\n", st.Sched.ContextSwitches)
	fmt.Printf("injected        %d of %d\n", accepted.Load(), s.producers*s.events)
	fmt.Printf("overruns        %d\n", st.Driver.Overruns)
	fmt.Printf("batches         %d\n", st.Driver.Batches)
	fmt.Printf("delivered       %d\n", st.Input.Delivered)
	fmt.Printf("overflowed      %d\n", st.Input.Overflow)
	fmt.Printf("received        %d\n", received.Load())
	return nil
}
