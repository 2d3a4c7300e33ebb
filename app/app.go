// Package app boots the kernel on a HAL.
package app

import (
	"context"
	"sync/atomic"

	"sparkcore/hal"
)

// NewWithConfig boots the OS in the background and returns the per-frame
// step function of the host runners. Step reports a boot or run failure.
func NewWithConfig(h hal.HAL, cfg Config) func() error {
	s, err := NewSystem(h, cfg)
	if err != nil {
		return func() error { return err }
	}
	var failed atomic.Pointer[error]
	go func() {
		if err := s.Run(context.Background()); err != nil {
			failed.Store(&err)
		}
	}()
	return func() error {
		if p := failed.Load(); p != nil {
			return *p
		}
		return nil
	}
}

// RunWithConfig boots the OS and runs it until it fails, then parks. It is
// the TinyGo entrypoint.
func RunWithConfig(h hal.HAL, cfg Config) {
	s, err := NewSystem(h, cfg)
	if err != nil {
		h.Logger().WriteLineString("W boot: " + err.Error())
		select {}
	}
	if err := s.Run(context.Background()); err != nil {
		h.Logger().WriteLineString("W kernel: " + err.Error())
	}
	select {}
}
