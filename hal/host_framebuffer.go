//go:build !tinygo

package hal

import (
	"sync"
	"sync/atomic"
)

type hostFramebuffer struct {
	mu     sync.Mutex
	width  int
	height int
	stride int
	buf    []byte

	// presented counts Present calls; the window redraws when it changes.
	presented atomic.Uint64
}

func newHostFramebuffer(width, height int) *hostFramebuffer {
	stride := width * 2
	return &hostFramebuffer{
		width:  width,
		height: height,
		stride: stride,
		buf:    make([]byte, stride*height),
	}
}

func (f *hostFramebuffer) Width() int          { return f.width }
func (f *hostFramebuffer) Height() int         { return f.height }
func (f *hostFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *hostFramebuffer) StrideBytes() int    { return f.stride }
func (f *hostFramebuffer) Buffer() []byte      { return f.buf }

func (f *hostFramebuffer) Present() error {
	f.presented.Add(1)
	return nil
}

func (f *hostFramebuffer) ClearRGB(r, g, b uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fill565(f.buf, rgb565(r, g, b))
	f.presented.Add(1)
}

// snapshotRGB565 copies the pixels into dst and returns the present count
// they belong to.
func (f *hostFramebuffer) snapshotRGB565(dst []byte) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(dst, f.buf)
	return f.presented.Load()
}
