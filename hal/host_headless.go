//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	Hz      int
	// Ticks stops the runner after that many steps. Zero runs until ctx is
	// done.
	Ticks uint64
}

// RunHeadless runs the OS without opening a window. Input devices stay
// silent; records can still be injected by the app.
func RunHeadless(ctx context.Context, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}

	h := New().(*hostHAL)
	step := newApp(h)

	t := time.NewTicker(d)
	defer t.Stop()
	for n := uint64(1); ; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		h.t.step()
		if step != nil {
			if err := step(); err != nil {
				return err
			}
		}
		if cfg.Ticks > 0 && n >= cfg.Ticks {
			return nil
		}
	}
}
