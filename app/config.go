package app

import (
	"fmt"

	"sparkcore/sparkos/kernel/event"
	"sparkcore/sparkos/kernel/sched"
	"sparkcore/sparkos/klog"
)

// Config is the boot configuration. The host reads it from a TOML file.
type Config struct {
	// Cores is the number of cores to run tasks on. It is capped by the
	// HAL's interrupt controllers.
	Cores int `toml:"cores"`
	// MaxTasks bounds the number of live tasks.
	MaxTasks int `toml:"max_tasks"`
	// QueueDepth is the capacity of each task's event queue.
	QueueDepth int `toml:"queue_depth"`
	// Demo starts the compositor with two echo windows.
	Demo bool `toml:"demo"`
	// Status starts the status panel on the framebuffer.
	Status bool `toml:"status"`
	// LogLevel is "warning", "info" or "debug".
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Cores:      2,
		MaxTasks:   sched.DefaultMaxTasks,
		QueueDepth: event.DefaultDepth,
		Demo:       true,
		Status:     true,
		LogLevel:   "info",
	}
}

// normalize fills zero fields from DefaultConfig and validates the rest.
// cores is the number of interrupt controllers available.
func (c *Config) normalize(cores int) (klog.Level, error) {
	def := DefaultConfig()
	if c.Cores <= 0 {
		c.Cores = def.Cores
	}
	c.Cores = min(c.Cores, cores, sched.MaxCores)
	if c.MaxTasks <= 0 {
		c.MaxTasks = def.MaxTasks
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = def.QueueDepth
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	level, err := klog.ParseLevel(c.LogLevel)
	if err != nil {
		return 0, fmt.Errorf("config: %w", err)
	}
	return level, nil
}
