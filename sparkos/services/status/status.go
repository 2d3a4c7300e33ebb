// Package status is the status panel service. It periodically samples the
// kernel counters and the focus table through system calls and draws them
// on a framebuffer.
package status

import (
	"fmt"
	"image/color"
	"sync/atomic"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"sparkcore/sparkos/kernel/event"
	"sparkcore/sparkos/kernel/lockorder"
	"sparkcore/sparkos/kernel/syscall"
	"sparkcore/sparkos/kernel/task"
	"sparkcore/sparkos/proto"
)

const (
	// DefaultPeriod is the refresh interval in milliseconds.
	DefaultPeriod = 250

	maxLines   = 8
	lineHeight = 12
	baseline   = 9
	margin     = 4
)

var (
	fg = color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	bg = color.RGBA{R: 0x10, G: 0x18, B: 0x30, A: 0xFF}
)

// Config configures a Panel.
type Config struct {
	Surface Surface
	// Period is the refresh interval in milliseconds.
	Period uint64
	// Once makes Run return after the first frame.
	Once bool
}

type canvas struct {
	d     *Canvas
	shown [maxLines]string
}

// Panel is the status panel. Run is its task body.
type Panel struct {
	cfg    Config
	canvas *lockorder.Mutex[lockorder.Level0, canvas]
	frames atomic.Uint64
}

// New returns a panel drawing on cfg.Surface.
func New(cfg Config) *Panel {
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	return &Panel{
		cfg:    cfg,
		canvas: lockorder.NewMutex[lockorder.Level0]("status.canvas", canvas{d: NewCanvas(cfg.Surface)}),
	}
}

// Frames returns the number of frames presented.
func (p *Panel) Frames() uint64 { return p.frames.Load() }

// Run samples and draws until the task is killed.
func (p *Panel) Run(ctx *syscall.Context) {
	for {
		p.Render(ctx.Begin(), Sample(ctx))
		if p.cfg.Once {
			return
		}
		ctx.Sleep(p.cfg.Period)
	}
}

// Snapshot is one sample of the kernel state shown by the panel.
type Snapshot struct {
	Stats proto.Stats
	Focus [event.NumClasses]proto.TaskInfo
}

// Sample reads a snapshot through system calls.
func Sample(ctx *syscall.Context) Snapshot {
	var s Snapshot
	s.Stats, _ = ctx.Stats()
	for c := range s.Focus {
		s.Focus[c].ID = uint32(task.InvalidID)
		id := ctx.FocusOf(event.Class(c))
		if id == task.InvalidID {
			continue
		}
		if ti, r := ctx.TaskInfo(id); r == syscall.OK {
			s.Focus[c] = ti
		}
	}
	return s
}

// Lines formats s as panel rows.
func Lines(s Snapshot) []string {
	out := []string{
		fmt.Sprintf("tasks %d/%d  switches %d", s.Stats.Active, s.Stats.Total, s.Stats.ContextSwitches),
		fmt.Sprintf("yields %d", s.Stats.Yields),
		fmt.Sprintf("input %d delivered  %d dropped", s.Stats.Delivered, s.Stats.Dropped),
	}
	for c, ti := range s.Focus {
		if ti.ID == uint32(task.InvalidID) {
			out = append(out, fmt.Sprintf("%v: -", event.Class(c)))
			continue
		}
		out = append(out, fmt.Sprintf("%v: %s (%d) q=%d", event.Class(c), ti.Name, ti.ID, ti.Queued))
	}
	return out
}

// Render draws the rows of s that changed since the last frame and presents
// the surface. It returns the number of rows redrawn.
func (p *Panel) Render(tok lockorder.Token[lockorder.Clean], s Snapshot) int {
	lines := Lines(s)
	_, g := lockorder.Lock0(tok, p.canvas)
	defer g.Release()
	cv := g.Value()
	w, _ := cv.d.Size()
	if w == 0 {
		return 0
	}
	n := 0
	for i := 0; i < maxLines; i++ {
		var line string
		if i < len(lines) {
			line = lines[i]
		}
		if line == cv.shown[i] {
			continue
		}
		y := int16(margin + i*lineHeight)
		cv.d.FillRectangle(0, y, w, lineHeight, bg)
		tinyfont.WriteLine(cv.d, &proggy.TinySZ8pt7b, margin, y+baseline, line, fg)
		cv.shown[i] = line
		n++
	}
	if n > 0 {
		_ = cv.d.Display()
		p.frames.Add(1)
	}
	return n
}
