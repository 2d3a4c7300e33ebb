//go:build !tinygo

// Package cli implements the host command line.
package cli

import (
	"flag"
	"fmt"

	"github.com/BurntSushi/toml"

	"sparkcore/app"
)

// bootFlags are the app.Config flags shared by run and stress. Flags that
// are set on the command line override the config file.
type bootFlags struct {
	path string
	set  app.Config
}

func (b *bootFlags) register(f *flag.FlagSet) {
	def := app.DefaultConfig()
	f.StringVar(&b.path, "config", "", "TOML boot config file.")
	f.IntVar(&b.set.Cores, "cores", def.Cores, "Number of cores to run tasks on.")
	f.IntVar(&b.set.MaxTasks, "max-tasks", def.MaxTasks, "Number of task slots.")
	f.IntVar(&b.set.QueueDepth, "queue-depth", def.QueueDepth, "Event queue capacity per task.")
	f.BoolVar(&b.set.Demo, "demo", def.Demo, "Start the compositor demo.")
	f.BoolVar(&b.set.Status, "status", def.Status, "Start the status panel.")
	f.StringVar(&b.set.LogLevel, "log-level", def.LogLevel, "Log level: warning, info or debug.")
}

// load returns the config file merged with the flags set in f.
func (b *bootFlags) load(f *flag.FlagSet) (app.Config, error) {
	cfg := app.DefaultConfig()
	if b.path != "" {
		md, err := toml.DecodeFile(b.path, &cfg)
		if err != nil {
			return app.Config{}, fmt.Errorf("config %s: %w", b.path, err)
		}
		if un := md.Undecoded(); len(un) > 0 {
			return app.Config{}, fmt.Errorf("config %s: unknown keys %v", b.path, un)
		}
	}
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "cores":
			cfg.Cores = b.set.Cores
		case "max-tasks":
			cfg.MaxTasks = b.set.MaxTasks
		case "queue-depth":
			cfg.QueueDepth = b.set.QueueDepth
		case "demo":
			cfg.Demo = b.set.Demo
		case "status":
			cfg.Status = b.set.Status
		case "log-level":
			cfg.LogLevel = b.set.LogLevel
		}
	})
	return cfg, nil
}
