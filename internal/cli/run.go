//go:build !tinygo

package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"sparkcore/app"
	"sparkcore/hal"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	boot     bootFlags
	headless hal.HeadlessConfig
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string { return "run" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string { return "boot the kernel in a window or headless" }

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string { return "run [flags]\n" }

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	r.boot.register(f)
	f.BoolVar(&r.headless.Enabled, "headless", false, "Run without a window.")
	f.IntVar(&r.headless.Hz, "hz", 60, "Tick rate in headless mode.")
	f.Uint64Var(&r.headless.Ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run forever).")
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg, err := r.boot.load(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	newApp := func(h hal.HAL) func() error { return app.NewWithConfig(h, cfg) }

	if r.headless.Enabled {
		err = hal.RunHeadless(ctx, newApp, r.headless)
	} else {
		err = hal.RunWindow(newApp)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
