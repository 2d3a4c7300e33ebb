//go:build !tinygo && !cgo

package hal

type hostKeyboard struct {
	ch chan KeyEvent
}

func newHostKeyboard() *hostKeyboard {
	return &hostKeyboard{ch: make(chan KeyEvent, 64)}
}

func (k *hostKeyboard) Events() <-chan KeyEvent { return k.ch }

// No keyboard support without the window backend.
func (k *hostKeyboard) poll() {}

type hostPointer struct {
	ch chan PointerEvent
}

func newHostPointer() *hostPointer {
	return &hostPointer{ch: make(chan PointerEvent, 64)}
}

func (p *hostPointer) Events() <-chan PointerEvent { return p.ch }

func (p *hostPointer) poll() {}
