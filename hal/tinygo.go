//go:build tinygo && baremetal && !picocalc

package hal

type tinyGoHAL struct {
	logger *uartLogger
	fb     Framebuffer
	kbd    Keyboard
	t      *tinyGoTime
	irqs   *cpuInterrupts
}

// New returns a Pico 2 (RP2350) HAL implementation.
//
// UART: UART0 on GP0 (TX) / GP1 (RX), 115200 8N1.
func New() HAL {
	return &tinyGoHAL{
		logger: newUARTLogger(),
		fb:     &stubFramebuffer{w: 320, h: 320, format: PixelFormatRGB565},
		kbd:    &stubKeyboard{},
		t:      newTinyGoTime(),
		irqs:   &cpuInterrupts{},
	}
}

func (h *tinyGoHAL) Logger() Logger         { return h.logger }
func (h *tinyGoHAL) Display() Display       { return tinyGoDisplay{fb: h.fb} }
func (h *tinyGoHAL) Input() Input           { return tinyGoInput{kbd: h.kbd} }
func (h *tinyGoHAL) Time() Time             { return h.t }
func (h *tinyGoHAL) Interrupts() Interrupts { return h.irqs }
