//go:build tinygo

package main

import (
	"sparkcore/app"
	"sparkcore/hal"
)

func main() {
	cfg := app.DefaultConfig()
	// One core on the device; extra goroutine cores would only time-slice.
	cfg.Cores = 1
	app.RunWithConfig(hal.New(), cfg)
}
