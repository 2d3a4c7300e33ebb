//go:build tinygo

package hal

// memFramebuffer is an RGB565 framebuffer with no attached panel.
type memFramebuffer struct {
	w, h int
	buf  []byte
}

func newMemFramebuffer(w, h int) *memFramebuffer {
	return &memFramebuffer{w: w, h: h, buf: make([]byte, w*h*2)}
}

func (f *memFramebuffer) Width() int          { return f.w }
func (f *memFramebuffer) Height() int         { return f.h }
func (f *memFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *memFramebuffer) StrideBytes() int    { return f.w * 2 }
func (f *memFramebuffer) Buffer() []byte      { return f.buf }
func (f *memFramebuffer) Present() error      { return nil }

func (f *memFramebuffer) ClearRGB(r, g, b uint8) { fill565(f.buf, rgb565(r, g, b)) }
