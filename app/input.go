package app

import (
	"context"

	"sparkcore/hal"
	"sparkcore/sparkos/kernel/event"
	"sparkcore/sparkos/kernel/input"
)

func keyRaw(ev hal.KeyEvent) input.Raw {
	return input.Raw{Device: input.DeviceKeyboard, Code: uint16(ev.Code), Rune: ev.Rune, Press: ev.Press}
}

func pointerRaw(ev hal.PointerEvent) input.Raw {
	return input.Raw{Device: input.DeviceTablet, X: ev.X, Y: ev.Y, Buttons: event.Button(ev.Buttons)}
}

// pumpInput forwards HAL input to the input driver until ctx is done.
func (s *System) pumpInput(ctx context.Context, in hal.Input) error {
	var keys <-chan hal.KeyEvent
	var ptrs <-chan hal.PointerEvent
	if in != nil {
		if kbd := in.Keyboard(); kbd != nil {
			keys = kbd.Events()
		}
		if ptr := in.Pointer(); ptr != nil {
			ptrs = ptr.Events()
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			s.drv.Inject(keyRaw(ev))
		case ev, ok := <-ptrs:
			if !ok {
				ptrs = nil
				continue
			}
			s.drv.Inject(pointerRaw(ev))
		}
	}
}

// pumpTicks advances the kernel clock from the HAL tick stream.
func (s *System) pumpTicks(ctx context.Context, t hal.Time) error {
	if t == nil {
		return nil
	}
	ticks := t.Ticks()
	if ticks == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case seq, ok := <-ticks:
			if !ok {
				return nil
			}
			s.clock.Store(seq)
		}
	}
}
