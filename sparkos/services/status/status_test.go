package status

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"sparkcore/sparkos/kernel/event"
	"sparkcore/sparkos/kernel/irq"
	"sparkcore/sparkos/kernel/lockorder"
	"sparkcore/sparkos/kernel/task"
	"sparkcore/sparkos/proto"
)

type memSurface struct {
	w, h     int
	buf      []byte
	presents int
}

func newMemSurface(w, h int) *memSurface {
	return &memSurface{w: w, h: h, buf: make([]byte, w*h*2)}
}

func (s *memSurface) Width() int       { return s.w }
func (s *memSurface) Height() int      { return s.h }
func (s *memSurface) StrideBytes() int { return s.w * 2 }
func (s *memSurface) Buffer() []byte   { return s.buf }
func (s *memSurface) Present() error   { s.presents++; return nil }

// lit counts pixels in rows [y0, y1) that have the foreground color.
func (s *memSurface) lit(y0, y1 int) int {
	want := rgb565(fg)
	n := 0
	for y := y0; y < y1; y++ {
		for x := 0; x < s.w; x++ {
			off := y*s.w*2 + x*2
			if uint16(s.buf[off])|uint16(s.buf[off+1])<<8 == want {
				n++
			}
		}
	}
	return n
}

func snapshot() Snapshot {
	s := Snapshot{Stats: proto.Stats{Total: 5, Active: 3, ContextSwitches: 40, Yields: 12, Delivered: 7, Dropped: 1}}
	s.Focus[event.Keyboard] = proto.TaskInfo{ID: 2, Name: "echo", Queued: 4}
	s.Focus[event.Pointer].ID = uint32(task.InvalidID)
	return s
}

func TestLines(t *testing.T) {
	want := []string{
		"tasks 3/5  switches 40",
		"yields 12",
		"input 7 delivered  1 dropped",
		"keyboard: echo (2) q=4",
		"pointer: -",
	}
	if diff := cmp.Diff(want, Lines(snapshot())); diff != "" {
		t.Fatalf("Lines() mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderRedrawsChangedRows(t *testing.T) {
	surf := newMemSurface(200, 120)
	p := New(Config{Surface: surf})
	e := lockorder.NewExec("status", irq.NewCPU(0, &irq.Soft{}))

	s := snapshot()
	if n := p.Render(e.Begin(), s); n != 5 {
		t.Fatalf("first Render() = %d rows, want 5", n)
	}
	if surf.lit(margin, margin+lineHeight) == 0 {
		t.Fatalf("first row has no text pixels")
	}
	if n := p.Render(e.Begin(), s); n != 0 {
		t.Fatalf("unchanged Render() = %d rows, want 0", n)
	}

	s.Stats.Yields++
	if n := p.Render(e.Begin(), s); n != 1 {
		t.Fatalf("Render() after one change = %d rows, want 1", n)
	}
	if p.Frames() != 2 || surf.presents != 2 {
		t.Fatalf("frames = %d, presents = %d; want 2, 2", p.Frames(), surf.presents)
	}
	if e.Depth() != 0 {
		t.Fatalf("Render left %d locks held", e.Depth())
	}
}

func TestRenderWithoutSurface(t *testing.T) {
	p := New(Config{})
	e := lockorder.NewExec("status", irq.NewCPU(0, &irq.Soft{}))
	if n := p.Render(e.Begin(), snapshot()); n != 0 {
		t.Fatalf("Render() = %d rows without a surface", n)
	}
}

func TestCanvasClips(t *testing.T) {
	s := newMemSurface(4, 3)
	c := NewCanvas(s)
	if err := c.FillRectangle(-2, 1, 4, 10, fg); err != nil {
		t.Fatal(err)
	}
	c.SetPixel(3, 0, fg)
	c.SetPixel(4, 0, fg)
	c.SetPixel(0, -1, fg)
	// Row 0 has only (3,0); rows 1 and 2 have x 0 and 1.
	if got := s.lit(0, 1); got != 1 {
		t.Errorf("row 0 lit = %d, want 1", got)
	}
	if got := s.lit(1, 3); got != 4 {
		t.Errorf("rows 1-2 lit = %d, want 4", got)
	}

	empty := NewCanvas(nil)
	if x, y := empty.Size(); x != 0 || y != 0 {
		t.Errorf("Size() of nil surface = %d,%d", x, y)
	}
	empty.Clear(fg)
	if err := empty.Display(); err != nil {
		t.Errorf("Display() = %v", err)
	}
}
