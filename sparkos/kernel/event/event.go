// Package event defines the structured input events delivered to tasks and
// the bounded per-task queue that holds them.
package event

import "fmt"

// Class is the input device class an event belongs to. Focus is tracked per
// class.
type Class uint8

const (
	Keyboard Class = iota
	Pointer

	// NumClasses is the number of event classes.
	NumClasses = int(Pointer) + 1
)

func (c Class) String() string {
	switch c {
	case Keyboard:
		return "keyboard"
	case Pointer:
		return "pointer"
	default:
		return fmt.Sprintf("Class(%d)", uint8(c))
	}
}

// Kind is the type of an input event.
type Kind uint8

const (
	KeyPress Kind = iota
	KeyRelease
	PointerMotion
	PointerButtonPress
	PointerButtonRelease
	PointerEnter
	PointerLeave
)

func (k Kind) String() string {
	switch k {
	case KeyPress:
		return "KeyPress"
	case KeyRelease:
		return "KeyRelease"
	case PointerMotion:
		return "PointerMotion"
	case PointerButtonPress:
		return "PointerButtonPress"
	case PointerButtonRelease:
		return "PointerButtonRelease"
	case PointerEnter:
		return "PointerEnter"
	case PointerLeave:
		return "PointerLeave"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k <= PointerLeave }

// Class returns the device class of k.
func (k Kind) Class() Class {
	if k <= KeyRelease {
		return Keyboard
	}
	return Pointer
}

// Button is a pointer button bit.
type Button uint8

const (
	ButtonLeft Button = 1 << iota
	ButtonRight
	ButtonMiddle
)

// Event is one timestamped input occurrence.
//
// Key events carry Code (scan code) and Rune. Pointer events carry the
// absolute position X, Y and the button state after the event; button
// events also set Code to the button that changed.
type Event struct {
	Kind      Kind
	Timestamp uint64 // ms since boot
	Code      uint16
	Rune      rune
	X, Y      int32
	Buttons   Button
}

// Class returns the class of the event.
func (e Event) Class() Class { return e.Kind.Class() }

// Key returns a key event.
func Key(press bool, code uint16, r rune, ts uint64) Event {
	k := KeyRelease
	if press {
		k = KeyPress
	}
	return Event{Kind: k, Timestamp: ts, Code: code, Rune: r}
}

// Motion returns a pointer motion event.
func Motion(x, y int32, buttons Button, ts uint64) Event {
	return Event{Kind: PointerMotion, Timestamp: ts, X: x, Y: y, Buttons: buttons}
}

// ButtonChange returns a pointer button event for b.
func ButtonChange(press bool, b Button, x, y int32, buttons Button, ts uint64) Event {
	k := PointerButtonRelease
	if press {
		k = PointerButtonPress
	}
	return Event{Kind: k, Timestamp: ts, Code: uint16(b), X: x, Y: y, Buttons: buttons}
}

// Crossing returns a PointerEnter or PointerLeave event.
func Crossing(enter bool, x, y int32, ts uint64) Event {
	k := PointerLeave
	if enter {
		k = PointerEnter
	}
	return Event{Kind: k, Timestamp: ts, X: x, Y: y}
}
