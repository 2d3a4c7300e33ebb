package input

import "sparkcore/sparkos/kernel/event"

// Device identifies the hardware source of a raw record.
type Device uint8

const (
	DeviceKeyboard Device = iota
	DeviceMouse
	DeviceTablet // absolute pointer
)

// Raw is a hardware input record as produced by a driver. Keyboards set
// Code, Rune and Press. Mice report relative motion in DX, DY; tablets report
// an absolute position in X, Y. Both report the full button state.
type Raw struct {
	Device  Device
	Code    uint16
	Rune    rune
	Press   bool
	DX, DY  int32
	X, Y    int32
	Buttons event.Button
}

// maxExpand is the largest number of events one raw record expands to:
// a motion plus one change per button.
const maxExpand = 4

var buttonOrder = [...]event.Button{event.ButtonLeft, event.ButtonRight, event.ButtonMiddle}

// pointerState is the pointer position and button state tracked by the
// router.
type pointerState struct {
	x, y    int32
	buttons event.Button
}

// classify expands r into events using and updating the pointer state p.
// It does not allocate.
func classify(r Raw, p *pointerState, w, h int32, ts uint64, out *[maxExpand]event.Event) (event.Class, int) {
	if r.Device == DeviceKeyboard {
		out[0] = event.Key(r.Press, r.Code, r.Rune, ts)
		return event.Keyboard, 1
	}

	n := 0
	x, y := p.x, p.y
	if r.Device == DeviceTablet {
		x, y = r.X, r.Y
	} else {
		x, y = x+r.DX, y+r.DY
	}
	x, y = clamp(x, w), clamp(y, h)
	if x != p.x || y != p.y {
		p.x, p.y = x, y
		out[n] = event.Motion(x, y, p.buttons, ts)
		n++
	}
	changed := p.buttons ^ r.Buttons
	for _, b := range buttonOrder {
		if changed&b == 0 {
			continue
		}
		press := r.Buttons&b != 0
		if press {
			p.buttons |= b
		} else {
			p.buttons &^= b
		}
		out[n] = event.ButtonChange(press, b, x, y, p.buttons, ts)
		n++
	}
	return event.Pointer, n
}

func clamp(v, limit int32) int32 {
	if v < 0 {
		return 0
	}
	if limit > 0 && v >= limit {
		return limit - 1
	}
	return v
}
