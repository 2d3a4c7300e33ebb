package inputdrv

import (
	"runtime"
	"sync/atomic"
)

type cell[T any] struct {
	seq atomic.Uint32
	v   T
}

// FIFO is a fixed-size multi-producer, single-consumer queue. It models a
// device FIFO: producers are hardware sources, the consumer is the interrupt
// handler. It never allocates after construction.
type FIFO[T any] struct {
	_     [0]func() // prevent accidental copying.
	mask  uint32
	cells []cell[T]
	head  atomic.Uint32 // next producer slot
	tail  uint32        // next consumer slot; consumer only
}

// NewFIFO returns a FIFO with room for size entries, rounded up to a power
// of two.
func NewFIFO[T any](size int) *FIFO[T] {
	n := 2
	for n < size {
		n <<= 1
	}
	f := &FIFO[T]{mask: uint32(n - 1), cells: make([]cell[T], n)}
	for i := range f.cells {
		f.cells[i].seq.Store(uint32(i))
	}
	return f
}

// Cap returns the FIFO capacity.
func (f *FIFO[T]) Cap() int { return len(f.cells) }

// TryPush enqueues v, returning false if the FIFO is full.
func (f *FIFO[T]) TryPush(v T) bool {
	for {
		pos := f.head.Load()
		c := &f.cells[pos&f.mask]
		switch d := int32(c.seq.Load() - pos); {
		case d == 0:
			if f.head.CompareAndSwap(pos, pos+1) {
				c.v = v
				c.seq.Store(pos + 1)
				return true
			}
		case d < 0:
			return false
		}
	}
}

// Push enqueues v, busy-waiting until there is room.
func (f *FIFO[T]) Push(v T) {
	for !f.TryPush(v) {
		runtime.Gosched()
	}
}

// TryPop dequeues one entry, returning false if the FIFO is empty or the
// oldest entry is still being written. Only one goroutine may pop at a time.
func (f *FIFO[T]) TryPop() (T, bool) {
	var zero T
	pos := f.tail
	c := &f.cells[pos&f.mask]
	if int32(c.seq.Load()-(pos+1)) < 0 {
		return zero, false
	}
	v := c.v
	c.v = zero
	c.seq.Store(pos + f.mask + 1)
	f.tail = pos + 1
	return v, true
}
