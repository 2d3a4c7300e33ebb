//go:build !tinygo && cgo

package hal

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"

	"sparkcore/internal/buildinfo"
)

// RunWindow starts a desktop window that displays the framebuffer and
// forwards keyboard and pointer input. It blocks until the window closes or
// the step function fails.
func RunWindow(newApp func(HAL) func() error) error {
	h := New().(*hostHAL)
	step := newApp(h)

	g := &hostGame{h: h, step: step}
	ebiten.SetWindowTitle("sparkcore (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*2, h.fb.height*2)
	ebiten.SetTPS(60)
	return ebiten.RunGame(g)
}

type hostGame struct {
	h       *hostHAL
	img     *image.RGBA
	fbImg   *ebiten.Image
	scratch []byte
	shown   uint64
	step    func() error
}

func (g *hostGame) Update() error {
	g.h.kbd.poll()
	g.h.ptr.poll()
	g.h.t.step()
	if g.step != nil {
		return g.step()
	}
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		g.scratch = make([]byte, len(fb.buf))
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
		g.shown = ^uint64(0)
	}

	if gen := fb.snapshotRGB565(g.scratch); gen != g.shown {
		g.shown = gen
		expand565(g.img.Pix, g.scratch)
		g.fbImg.WritePixels(g.img.Pix)
	}
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}
