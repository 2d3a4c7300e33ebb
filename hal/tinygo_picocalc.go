//go:build tinygo && baremetal && picocalc

package hal

import "time"

type picoCalcHAL struct {
	logger *uartLogger
	fb     Framebuffer
	kbd    Keyboard
	t      *tinyGoTime
	irqs   *cpuInterrupts
}

// New returns a PicoCalc HAL implementation (Pico/Pico2 on the PicoCalc
// carrier). The LCD is not driven; the framebuffer stays in memory.
//
// UART: UART0 on GP0 (TX) / GP1 (RX), 115200 8N1.
func New() HAL {
	var kbd Keyboard = &stubKeyboard{}
	if kb, err := newPicoCalcKeyboard(); err == nil {
		kbd = kb
	}
	return &picoCalcHAL{
		logger: newUARTLogger(),
		fb:     newMemFramebuffer(320, 320),
		kbd:    kbd,
		t:      newTinyGoTime(),
		irqs:   &cpuInterrupts{},
	}
}

func (h *picoCalcHAL) Logger() Logger         { return h.logger }
func (h *picoCalcHAL) Display() Display       { return tinyGoDisplay{fb: h.fb} }
func (h *picoCalcHAL) Input() Input           { return tinyGoInput{kbd: h.kbd} }
func (h *picoCalcHAL) Time() Time             { return h.t }
func (h *picoCalcHAL) Interrupts() Interrupts { return h.irqs }

type picoCalcKeyboard struct {
	ch chan KeyEvent
}

func (k *picoCalcKeyboard) Events() <-chan KeyEvent { return k.ch }

// newPicoCalcKeyboard polls the keyboard controller every 2ms.
func newPicoCalcKeyboard() (*picoCalcKeyboard, error) {
	kbd, err := initI2CKeyboard()
	if err != nil {
		return nil, err
	}
	dev := &picoCalcKeyboard{ch: make(chan KeyEvent, 64)}
	go func() {
		for {
			if ev, ok := kbd.readEvent(); ok {
				select {
				case dev.ch <- ev:
				default:
				}
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()
	return dev, nil
}
