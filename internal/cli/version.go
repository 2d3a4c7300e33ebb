//go:build !tinygo

package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"sparkcore/internal/buildinfo"
)

// Version implements subcommands.Command for the "version" command.
type Version struct{}

// Name implements subcommands.Command.Name.
func (*Version) Name() string { return "version" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Version) Synopsis() string { return "print the build version" }

// Usage implements subcommands.Command.Usage.
func (*Version) Usage() string { return "version\n" }

// SetFlags implements subcommands.Command.SetFlags.
func (*Version) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Version) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	fmt.Println(buildinfo.String())
	return subcommands.ExitSuccess
}
