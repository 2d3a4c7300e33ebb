//go:build !tinygo

package hal

import (
	"os"

	"github.com/sirupsen/logrus"

	"sparkcore/sparkos/kernel/irq"
)

// HostCores is the number of simulated cores on the host.
const HostCores = 4

type hostHAL struct {
	logger *hostLogger
	fb     *hostFramebuffer
	kbd    *hostKeyboard
	ptr    *hostPointer
	t      *hostTime
	irqs   *softInterrupts
}

// New returns a host HAL implementation.
func New() HAL {
	return &hostHAL{
		logger: newHostLogger(),
		fb:     newHostFramebuffer(320, 320),
		kbd:    newHostKeyboard(),
		ptr:    newHostPointer(),
		t:      newHostTime(),
		irqs:   newSoftInterrupts(HostCores),
	}
}

func (h *hostHAL) Logger() Logger         { return h.logger }
func (h *hostHAL) Display() Display       { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Input() Input           { return hostInput{kbd: h.kbd, ptr: h.ptr} }
func (h *hostHAL) Time() Time             { return h.t }
func (h *hostHAL) Interrupts() Interrupts { return h.irqs }

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostInput struct {
	kbd *hostKeyboard
	ptr *hostPointer
}

func (in hostInput) Keyboard() Keyboard { return in.kbd }
func (in hostInput) Pointer() Pointer   { return in.ptr }

// hostLogger writes kernel log lines through logrus. A leading level
// letter ("W ", "I ", "D ") selects the logrus level.
type hostLogger struct {
	log *logrus.Logger
}

func newHostLogger() *hostLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableQuote: true})
	return &hostLogger{log: l}
}

func (l *hostLogger) WriteLineString(s string) {
	level := logrus.InfoLevel
	if len(s) > 2 && s[1] == ' ' {
		switch s[0] {
		case 'W':
			level, s = logrus.WarnLevel, s[2:]
		case 'I':
			level, s = logrus.InfoLevel, s[2:]
		case 'D':
			level, s = logrus.DebugLevel, s[2:]
		}
	}
	l.log.Log(level, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) { l.WriteLineString(string(b)) }

// softInterrupts are the software interrupt controllers of the simulated
// cores.
type softInterrupts struct {
	ctl []irq.Soft
}

func newSoftInterrupts(n int) *softInterrupts {
	return &softInterrupts{ctl: make([]irq.Soft, n)}
}

func (s *softInterrupts) Cores() int { return len(s.ctl) }

func (s *softInterrupts) Controller(core int) irq.Controller {
	return &s.ctl[core%len(s.ctl)]
}
