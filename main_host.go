//go:build !tinygo

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/google/subcommands"

	"sparkcore/internal/cli"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(new(cli.Run), "")
	subcommands.Register(new(cli.Stress), "")
	subcommands.Register(new(cli.Version), "")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	status := subcommands.Execute(ctx)
	stop()
	os.Exit(int(status))
}
