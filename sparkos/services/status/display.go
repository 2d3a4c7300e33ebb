package status

import (
	"image/color"

	"tinygo.org/x/drivers"
)

// Surface is an RGB565 little-endian framebuffer. hal.Framebuffer satisfies
// it.
type Surface interface {
	Width() int
	Height() int
	StrideBytes() int
	Buffer() []byte
	Present() error
}

var _ drivers.Displayer = (*Canvas)(nil)

// Canvas adapts a Surface to drivers.Displayer so tinyfont can draw on it.
// A nil surface gives a zero-sized canvas that ignores drawing.
type Canvas struct {
	fb     Surface
	w, h   int
	stride int
}

// NewCanvas returns a canvas over fb. The surface geometry is read once.
func NewCanvas(fb Surface) *Canvas {
	if fb == nil {
		return &Canvas{}
	}
	return &Canvas{fb: fb, w: fb.Width(), h: fb.Height(), stride: fb.StrideBytes()}
}

func (c *Canvas) Size() (x, y int16) { return int16(c.w), int16(c.h) }

func (c *Canvas) SetPixel(x, y int16, col color.RGBA) {
	if int(x) < 0 || int(x) >= c.w || int(y) < 0 || int(y) >= c.h {
		return
	}
	c.put(c.fb.Buffer(), int(y)*c.stride+int(x)*2, rgb565(col))
}

func (c *Canvas) Display() error {
	if c.fb == nil {
		return nil
	}
	return c.fb.Present()
}

func (c *Canvas) FillRectangle(x, y, width, height int16, col color.RGBA) error {
	if c.fb == nil {
		return nil
	}
	x0, x1 := span(int(x), int(width), c.w)
	y0, y1 := span(int(y), int(height), c.h)
	buf, p := c.fb.Buffer(), rgb565(col)
	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			c.put(buf, py*c.stride+px*2, p)
		}
	}
	return nil
}

// Clear fills the whole canvas with col.
func (c *Canvas) Clear(col color.RGBA) {
	_ = c.FillRectangle(0, 0, int16(c.w), int16(c.h), col)
}

func (c *Canvas) put(buf []byte, off int, p uint16) {
	if off >= 0 && off+1 < len(buf) {
		buf[off], buf[off+1] = byte(p), byte(p>>8)
	}
}

func rgb565(c color.RGBA) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

// span clips [start, start+n) to [0, limit).
func span(start, n, limit int) (lo, hi int) {
	return min(max(start, 0), limit), min(max(start+n, 0), limit)
}
