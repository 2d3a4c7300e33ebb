//go:build tinygo && baremetal && picocalc

package hal

import (
	"errors"
	"machine"
	"time"
)

// The PicoCalc keyboard controller answers a FIFO read command with a
// (state, key) pair; (0, 0) means the FIFO is empty.
const (
	kbdAddr    uint16 = 0x1F
	kbdFIFOCmd        = 0x09

	kbdStatePressed  = 0x01
	kbdStateHeld     = 0x02
	kbdStateReleased = 0x03

	kbdAlt  byte = 0xA1
	kbdCtrl byte = 0xA5
)

var kbdSpecial = map[byte]KeyCode{
	0x08: KeyBackspace,
	0xB1: KeyEscape,
	0xD4: KeyDelete,
	0xD2: KeyHome,
	0xD5: KeyEnd,
	0xB4: KeyLeft,
	0xB7: KeyRight,
	0xB5: KeyUp,
	0xB6: KeyDown,
	0x81: KeyF1,
	0x82: KeyF2,
	0x83: KeyF3,
	0xD1: KeyTab, // Ins
	'\r': KeyEnter,
	'\n': KeyEnter,
}

var errNoKeyboard = errors.New("keyboard: I2C unavailable")

type i2cKeyboard struct {
	i2c *machine.I2C
	cmd [1]byte
	rx  [2]byte

	alt, ctrl bool
}

// initI2CKeyboard finds the controller on I2C1 (PicoCalc wiring) or I2C0.
// The controller can be slow to answer after power-up, so each bus is
// probed for up to half a second.
func initI2CKeyboard() (*i2cKeyboard, error) {
	for _, bus := range []*machine.I2C{machine.I2C1, machine.I2C0} {
		if bus == nil {
			continue
		}
		for _, freq := range []uint32{100_000, 400_000} {
			err := bus.Configure(machine.I2CConfig{SCL: machine.GP7, SDA: machine.GP6, Frequency: freq})
			if err != nil {
				continue
			}
			k := &i2cKeyboard{i2c: bus, cmd: [1]byte{kbdFIFOCmd}}
			for try := 0; try < 50; try++ {
				if k.i2c.Tx(kbdAddr, k.cmd[:], k.rx[:]) == nil {
					return k, nil
				}
				time.Sleep(10 * time.Millisecond)
			}
		}
	}
	return nil, errNoKeyboard
}

// readEvent pops one FIFO entry. Modifier keys only update state.
func (k *i2cKeyboard) readEvent() (KeyEvent, bool) {
	if err := k.i2c.Tx(kbdAddr, k.cmd[:], k.rx[:]); err != nil {
		return KeyEvent{}, false
	}
	state, key := k.rx[0], k.rx[1]
	if state == 0 && key == 0 {
		return KeyEvent{}, false
	}

	var press bool
	switch state {
	case kbdStatePressed, kbdStateHeld:
		press = true
	case kbdStateReleased:
	default:
		return KeyEvent{}, false
	}
	switch key {
	case kbdAlt:
		k.alt = press
		return KeyEvent{}, false
	case kbdCtrl:
		k.ctrl = press
		return KeyEvent{}, false
	}
	if state == kbdStateHeld {
		return KeyEvent{}, false
	}

	if code, ok := kbdSpecial[key]; ok {
		return KeyEvent{Code: code, Press: press}, true
	}
	if !press || key == 0 {
		return KeyEvent{}, false
	}
	r := rune(key)
	if k.ctrl && r >= 'a' && r <= 'z' {
		r = r - 'a' + 1
	}
	return KeyEvent{Press: true, Rune: r}, true
}
