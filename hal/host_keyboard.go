//go:build !tinygo && cgo

package hal

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

var hostKeys = [...]struct {
	key  ebiten.Key
	code KeyCode
}{
	{ebiten.KeyArrowUp, KeyUp},
	{ebiten.KeyArrowDown, KeyDown},
	{ebiten.KeyArrowLeft, KeyLeft},
	{ebiten.KeyArrowRight, KeyRight},
	{ebiten.KeyEnter, KeyEnter},
	{ebiten.KeyEscape, KeyEscape},
	{ebiten.KeyBackspace, KeyBackspace},
	{ebiten.KeyTab, KeyTab},
	{ebiten.KeyDelete, KeyDelete},
	{ebiten.KeyHome, KeyHome},
	{ebiten.KeyEnd, KeyEnd},
	{ebiten.KeyF1, KeyF1},
	{ebiten.KeyF2, KeyF2},
	{ebiten.KeyF3, KeyF3},
}

// Ctrl chords delivered as control characters.
var hostCtrlKeys = [...]struct {
	key ebiten.Key
	r   rune
}{
	{ebiten.KeyA, 0x01},
	{ebiten.KeyC, 0x03},
	{ebiten.KeyE, 0x05},
	{ebiten.KeyU, 0x15},
	{ebiten.KeyW, 0x17},
}

type hostKeyboard struct {
	ch chan KeyEvent
}

func newHostKeyboard() *hostKeyboard {
	return &hostKeyboard{ch: make(chan KeyEvent, 64)}
}

func (k *hostKeyboard) Events() <-chan KeyEvent { return k.ch }

func (k *hostKeyboard) emit(ev KeyEvent) {
	select {
	case k.ch <- ev:
	default:
	}
}

// poll runs on the ebiten update goroutine.
func (k *hostKeyboard) poll() {
	if ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight) {
		for _, c := range hostCtrlKeys {
			if inpututil.IsKeyJustPressed(c.key) {
				k.emit(KeyEvent{Press: true, Rune: c.r})
			}
		}
	}
	for _, r := range ebiten.AppendInputChars(nil) {
		k.emit(KeyEvent{Press: true, Rune: r})
	}
	for _, m := range hostKeys {
		if inpututil.IsKeyJustPressed(m.key) {
			k.emit(KeyEvent{Code: m.code, Press: true})
		}
		if inpututil.IsKeyJustReleased(m.key) {
			k.emit(KeyEvent{Code: m.code})
		}
	}
}

type hostPointer struct {
	ch   chan PointerEvent
	last PointerEvent
	seen bool
}

func newHostPointer() *hostPointer {
	return &hostPointer{ch: make(chan PointerEvent, 64)}
}

func (p *hostPointer) Events() <-chan PointerEvent { return p.ch }

// poll samples the cursor in framebuffer coordinates and sends a sample
// when the position or a button changed.
func (p *hostPointer) poll() {
	x, y := ebiten.CursorPosition()
	ev := PointerEvent{X: int32(x), Y: int32(y)}
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		ev.Buttons |= ButtonLeft
	}
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight) {
		ev.Buttons |= ButtonRight
	}
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonMiddle) {
		ev.Buttons |= ButtonMiddle
	}
	if p.seen && ev == p.last {
		return
	}
	p.last, p.seen = ev, true
	select {
	case p.ch <- ev:
	default:
	}
}
