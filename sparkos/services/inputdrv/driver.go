// Package inputdrv is the input device driver. Hardware sources push raw
// records into a device FIFO and raise an interrupt line; the interrupt
// handler drains the FIFO and hands each record to the input router.
package inputdrv

import (
	"context"
	"fmt"
	"sync/atomic"

	"sparkcore/sparkos/kernel/input"
	"sparkcore/sparkos/kernel/lockorder"
	"sparkcore/sparkos/kernel/trap"
	"sparkcore/sparkos/klog"
)

const (
	// DefaultLine is the interrupt line of the input device.
	DefaultLine = 1
	// DefaultDepth is the device FIFO size.
	DefaultDepth = 256

	batchSize = 16
	devices   = int(input.DeviceTablet) + 1
)

// Config configures a Driver.
type Config struct {
	Router *input.Router
	Traps  *trap.Table
	Line   int
	Depth  int
	// Kick wakes an idle core after an interrupt is raised.
	Kick   func()
	Logger klog.Logger
}

type devState struct {
	received [devices]uint64
	batches  uint64
}

// Driver is the input device driver.
type Driver struct {
	cfg      Config
	log      klog.Logger
	fifo     *FIFO[input.Raw]
	dev      *lockorder.Mutex[lockorder.Level1, devState]
	overruns atomic.Uint64
}

// New returns a driver. Attach registers its interrupt handler.
func New(cfg Config) *Driver {
	if cfg.Line == 0 {
		cfg.Line = DefaultLine
	}
	if cfg.Depth <= 0 {
		cfg.Depth = DefaultDepth
	}
	if cfg.Logger == nil {
		cfg.Logger = klog.Discard
	}
	return &Driver{
		cfg:  cfg,
		log:  cfg.Logger,
		fifo: NewFIFO[input.Raw](cfg.Depth),
		dev:  lockorder.NewMutex[lockorder.Level1]("inputdrv.dev", devState{}),
	}
}

// Attach installs the interrupt handler.
func (d *Driver) Attach() error {
	if err := d.cfg.Traps.Register(d.cfg.Line, "input", d.service); err != nil {
		return fmt.Errorf("inputdrv: %w", err)
	}
	return nil
}

// Inject is the hardware side: it queues r and raises the interrupt line.
// A full FIFO drops r and counts an overrun.
func (d *Driver) Inject(r input.Raw) bool {
	ok := d.fifo.TryPush(r)
	if !ok {
		d.overruns.Add(1)
	}
	d.cfg.Traps.Raise(d.cfg.Line)
	if d.cfg.Kick != nil {
		d.cfg.Kick()
	}
	return ok
}

// Feed injects records from src until src is closed or ctx is done.
func (d *Driver) Feed(ctx context.Context, src <-chan input.Raw) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-src:
			if !ok {
				return nil
			}
			d.Inject(r)
		}
	}
}

// service is the interrupt handler. Records are moved out of the FIFO under
// the device lock, which is released before they are routed.
func (d *Driver) service(tok lockorder.Token[lockorder.Clean]) {
	var batch [batchSize]input.Raw
	for {
		_, g := lockorder.Lock1(tok, d.dev)
		st := g.Value()
		n := 0
		for n < batchSize {
			r, ok := d.fifo.TryPop()
			if !ok {
				break
			}
			if int(r.Device) < devices {
				st.received[r.Device]++
			}
			batch[n] = r
			n++
		}
		if n > 0 {
			st.batches++
		}
		g.Release()

		if n == 0 {
			return
		}
		for i := range batch[:n] {
			d.cfg.Router.Deliver(tok, batch[i])
		}
	}
}

// Stats counts driver activity.
type Stats struct {
	Keyboard uint64
	Mouse    uint64
	Tablet   uint64
	Batches  uint64
	Overruns uint64
}

// Stats returns the driver counters.
func (d *Driver) Stats(tok lockorder.Token[lockorder.Clean]) Stats {
	_, g := lockorder.Lock1(tok, d.dev)
	st := *g.Value()
	g.Release()
	return Stats{
		Keyboard: st.received[input.DeviceKeyboard],
		Mouse:    st.received[input.DeviceMouse],
		Tablet:   st.received[input.DeviceTablet],
		Batches:  st.batches,
		Overruns: d.overruns.Load(),
	}
}
