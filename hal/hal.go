// Package hal is the only contact point between the kernel and the outside
// world: log output, the framebuffer, input devices, the tick source and the
// per-core interrupt controllers.
package hal

import (
	"errors"

	"sparkcore/sparkos/kernel/irq"
)

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var ErrNotImplemented = errors.New("not implemented")

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// KeyCode is a minimal key identifier.
type KeyCode uint16

const (
	KeyUnknown KeyCode = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeyEscape
	KeyBackspace
	KeyTab
	KeyDelete
	KeyHome
	KeyEnd
	KeyF1
	KeyF2
	KeyF3
)

// KeyEvent is a keyboard event.
type KeyEvent struct {
	Code  KeyCode
	Press bool
	Rune  rune
}

// Keyboard provides key events (best-effort on each platform).
type Keyboard interface {
	Events() <-chan KeyEvent
}

// Pointer buttons.
const (
	ButtonLeft uint8 = 1 << iota
	ButtonRight
	ButtonMiddle
)

// PointerEvent is an absolute pointer sample: the position and the full
// button state.
type PointerEvent struct {
	X, Y    int32
	Buttons uint8
}

// Pointer provides pointer samples. Samples are only sent on change.
type Pointer interface {
	Events() <-chan PointerEvent
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Input provides access to input devices. Either may be nil.
type Input interface {
	Keyboard() Keyboard
	Pointer() Pointer
}

// Time provides a base tick stream of one tick per millisecond.
type Time interface {
	Ticks() <-chan uint64
}

// Interrupts provides the local interrupt controller of each core.
type Interrupts interface {
	Cores() int
	Controller(core int) irq.Controller
}

// HAL provides the only contact point between the OS and the outside world.
type HAL interface {
	Logger() Logger
	Display() Display
	Input() Input
	Time() Time
	Interrupts() Interrupts
}
