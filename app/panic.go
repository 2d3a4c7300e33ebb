package app

import (
	"fmt"
	"image/color"
	"strings"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"sparkcore/hal"
	"sparkcore/sparkos/kernel/sched"
	"sparkcore/sparkos/services/status"
)

const (
	panicLineHeight = 10
	panicBaseline   = 8
)

var (
	panicBG = color.RGBA{R: 0x80, A: 0xFF}
	panicFG = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

// installPanicHandler reports fatal task panics to the log and paints them
// over the framebuffer.
func installPanicHandler(h hal.HAL) {
	sched.SetPanicHandler(func(info sched.PanicInfo) {
		lines := panicLines(info)
		if l := h.Logger(); l != nil {
			for _, line := range lines {
				l.WriteLineString("W panic: " + line)
			}
		}
		if fb := panicSurface(h); fb != nil {
			drawPanic(status.NewCanvas(fb), lines)
		}
	})
}

func panicSurface(h hal.HAL) hal.Framebuffer {
	d := h.Display()
	if d == nil {
		return nil
	}
	fb := d.Framebuffer()
	if fb == nil || fb.Format() != hal.PixelFormatRGB565 || fb.Buffer() == nil {
		return nil
	}
	return fb
}

func drawPanic(c *status.Canvas, lines []string) {
	c.Clear(panicBG)
	_, h := c.Size()
	for i, line := range lines {
		y := i*panicLineHeight + panicBaseline
		if y >= int(h) {
			break
		}
		tinyfont.WriteLine(c, &proggy.TinySZ8pt7b, 2, int16(y), line, panicFG)
	}
	_ = c.Display()
}

// panicLines is the report shown for a kernel panic.
func panicLines(info sched.PanicInfo) []string {
	lines := []string{
		"kernel panic",
		fmt.Sprintf("task %v on core %d, %d locks held", info.TaskID, info.Core, info.Locks),
		fmt.Sprintf("panic: %v", info.Value),
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line != "" {
			lines = append(lines, strings.ReplaceAll(line, "\t", "  "))
		}
	}
	return lines
}
