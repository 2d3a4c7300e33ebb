package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"sparkcore/hal"
	"sparkcore/sparkos/kernel/event"
	"sparkcore/sparkos/kernel/input"
	"sparkcore/sparkos/kernel/irq"
	"sparkcore/sparkos/kernel/sched"
	"sparkcore/sparkos/kernel/syscall"
	"sparkcore/sparkos/kernel/task"
	"sparkcore/sparkos/tasks/compositor"
	"sparkcore/sparkos/tasks/echo"
)

type fakeHAL struct {
	mu    sync.Mutex
	lines []string

	fb   *fakeFramebuffer
	keys chan hal.KeyEvent
	ptrs chan hal.PointerEvent
	irqs fakeInterrupts
}

func newFakeHAL() *fakeHAL {
	return &fakeHAL{
		fb:   &fakeFramebuffer{w: 160, h: 120, buf: make([]byte, 160*120*2)},
		keys: make(chan hal.KeyEvent, 16),
		ptrs: make(chan hal.PointerEvent, 16),
		irqs: fakeInterrupts{ctl: make([]irq.Soft, 4)},
	}
}

func (h *fakeHAL) Logger() hal.Logger         { return h }
func (h *fakeHAL) Display() hal.Display       { return h }
func (h *fakeHAL) Input() hal.Input           { return h }
func (h *fakeHAL) Time() hal.Time             { return nil }
func (h *fakeHAL) Interrupts() hal.Interrupts { return &h.irqs }

func (h *fakeHAL) Framebuffer() hal.Framebuffer { return h.fb }
func (h *fakeHAL) Keyboard() hal.Keyboard       { return fakeKeyboard(h.keys) }
func (h *fakeHAL) Pointer() hal.Pointer         { return fakePointer(h.ptrs) }

func (h *fakeHAL) WriteLineString(s string) {
	h.mu.Lock()
	h.lines = append(h.lines, s)
	h.mu.Unlock()
}

func (h *fakeHAL) WriteLineBytes(b []byte) { h.WriteLineString(string(b)) }

func (h *fakeHAL) logged(sub string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, l := range h.lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

type fakeKeyboard chan hal.KeyEvent

func (k fakeKeyboard) Events() <-chan hal.KeyEvent { return k }

type fakePointer chan hal.PointerEvent

func (p fakePointer) Events() <-chan hal.PointerEvent { return p }

type fakeInterrupts struct {
	ctl []irq.Soft
}

func (f *fakeInterrupts) Cores() int                      { return len(f.ctl) }
func (f *fakeInterrupts) Controller(i int) irq.Controller { return &f.ctl[i] }

type fakeFramebuffer struct {
	w, h int
	buf  []byte
}

func (f *fakeFramebuffer) Width() int              { return f.w }
func (f *fakeFramebuffer) Height() int             { return f.h }
func (f *fakeFramebuffer) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *fakeFramebuffer) StrideBytes() int        { return f.w * 2 }
func (f *fakeFramebuffer) Buffer() []byte          { return f.buf }
func (f *fakeFramebuffer) ClearRGB(r, g, b uint8)  {}
func (f *fakeFramebuffer) Present() error          { return nil }

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func startSystem(t *testing.T, h hal.HAL, cfg Config) (*System, func()) {
	t.Helper()
	s, err := NewSystem(h, cfg)
	if err != nil {
		t.Fatalf("NewSystem() = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return s, func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() = %v", err)
		}
	}
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name  string
		in    Config
		cores int
		want  Config
		err   bool
	}{
		{
			name:  "defaults",
			cores: 4,
			want:  Config{Cores: 2, MaxTasks: sched.DefaultMaxTasks, QueueDepth: event.DefaultDepth, LogLevel: "info"},
		},
		{
			name:  "capped by controllers",
			in:    Config{Cores: 16, MaxTasks: 3, QueueDepth: 5, LogLevel: "debug", Demo: true},
			cores: 3,
			want:  Config{Cores: 3, MaxTasks: 3, QueueDepth: 5, LogLevel: "debug", Demo: true},
		},
		{
			name:  "bad level",
			in:    Config{LogLevel: "loud"},
			cores: 1,
			err:   true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in
			_, err := got.normalize(tc.cores)
			if (err != nil) != tc.err {
				t.Fatalf("normalize() error = %v, want error %v", err, tc.err)
			}
			if tc.err {
				return
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDemoRoutesInputToFocusedWindow(t *testing.T) {
	h := newFakeHAL()
	s, stop := startSystem(t, h, Config{Cores: 2, Demo: true, Status: true, LogLevel: "debug"})
	defer stop()

	names := func() map[string]task.ID {
		m := map[string]task.ID{}
		for _, info := range s.Tasks() {
			m[info.Name] = info.ID
		}
		return m
	}
	waitFor(t, "demo tasks", func() bool { return len(names()) == 4 })
	ids := names()
	focus := func(c event.Class) task.ID { return s.router.Focus(s.boot.Begin(), c) }
	waitFor(t, "initial focus", func() bool {
		return focus(event.Keyboard) == ids["echo1"] && focus(event.Pointer) == ids["compositor"]
	})

	for _, r := range "hi" {
		h.keys <- hal.KeyEvent{Press: true, Rune: r}
	}
	waitFor(t, "key delivery", func() bool { return h.logged(`echo1: key 0 'i'`) })

	// A left click moves keyboard focus to the next window.
	h.ptrs <- hal.PointerEvent{X: 10, Y: 10, Buttons: hal.ButtonLeft}
	h.ptrs <- hal.PointerEvent{X: 10, Y: 10}
	waitFor(t, "focus change", func() bool { return focus(event.Keyboard) == ids["echo2"] })

	h.keys <- hal.KeyEvent{Press: true, Rune: 'x'}
	waitFor(t, "key delivery to echo2", func() bool { return h.logged(`echo2: key 0 'x'`) })

	waitFor(t, "status frame", func() bool { return s.panel.Frames() > 0 })
	st := s.Stats()
	if st.Driver.Keyboard != 3 || st.Driver.Tablet != 2 {
		t.Errorf("driver counters = %+v, want 3 keyboard and 2 tablet records", st.Driver)
	}
	if st.Input.Delivered < 3 {
		t.Errorf("Delivered = %d, want at least 3", st.Input.Delivered)
	}
}

func TestCompositorRefocusesWhenWindowExits(t *testing.T) {
	h := newFakeHAL()
	s, stop := startSystem(t, h, Config{Cores: 2})
	defer stop()

	comp := compositor.New([]compositor.Window{
		{Name: "w1", Priority: task.Normal, Program: echo.New("w1", s.log, 'q', 0)},
		{Name: "w2", Priority: task.Normal, Program: echo.New("w2", s.log, 0, 0)},
	}, s.log)
	if _, err := s.Spawn("compositor", task.High, comp); err != nil {
		t.Fatal(err)
	}

	ids := map[string]task.ID{}
	waitFor(t, "windows", func() bool {
		for _, info := range s.Tasks() {
			ids[info.Name] = info.ID
		}
		_, ok1 := ids["w1"]
		_, ok2 := ids["w2"]
		return ok1 && ok2
	})
	focus := func() task.ID { return s.router.Focus(s.boot.Begin(), event.Keyboard) }
	waitFor(t, "w1 focused", func() bool { return focus() == ids["w1"] })

	// The quit key goes to w1 only. The compositor sees no input and still
	// has to notice that w1 is gone.
	h.keys <- hal.KeyEvent{Press: true, Rune: 'q'}
	waitFor(t, "focus to move to w2", func() bool { return focus() == ids["w2"] })
	if st := s.Stats(); st.Input.Delivered != 1 {
		t.Errorf("Delivered = %d, want 1", st.Input.Delivered)
	}
}

func TestSpawnThroughBootContext(t *testing.T) {
	h := newFakeHAL()
	s, stop := startSystem(t, h, Config{Cores: 1, MaxTasks: 2})
	defer stop()

	results := make(chan syscall.Result, 4)
	parent := syscall.ProgramFunc(func(ctx *syscall.Context) {
		_, r := ctx.Spawn("child", task.Normal, syscall.ProgramFunc(func(ctx *syscall.Context) {
			ctx.Sleep(5)
		}))
		results <- r
		_, r = ctx.Spawn("extra", task.Normal, syscall.ProgramFunc(func(*syscall.Context) {}))
		results <- r
	})
	if _, err := s.Spawn("parent", task.Normal, parent); err != nil {
		t.Fatal(err)
	}

	var got []syscall.Result
	for len(got) < 2 {
		select {
		case r := <-results:
			got = append(got, r)
		case <-time.After(10 * time.Second):
			t.Fatalf("timed out, results so far %v", got)
		}
	}
	if diff := cmp.Diff([]syscall.Result{syscall.OK, syscall.ResultNoSlot}, got); diff != "" {
		t.Fatalf("spawn results mismatch (-want +got):\n%s", diff)
	}
	waitFor(t, "all tasks to exit", func() bool { return s.Stats().Sched.Active == 0 })
	if _, err := s.Spawn("late", task.Normal, parent); err != nil {
		t.Fatalf("Spawn() after tasks exited = %v", err)
	}
}

func TestInjectWithoutFocusIsDropped(t *testing.T) {
	h := newFakeHAL()
	s, stop := startSystem(t, h, Config{Cores: 1})
	defer stop()

	s.Inject(input.Raw{Device: input.DeviceKeyboard, Code: 4, Press: true})
	waitFor(t, "unfocused drop", func() bool { return s.Stats().Input.Unfocused == 1 })
}

func TestBootFailsWithoutInterrupts(t *testing.T) {
	h := newFakeHAL()
	h.irqs.ctl = nil
	if _, err := NewSystem(h, Config{}); err == nil {
		t.Fatalf("NewSystem() without interrupt controllers succeeded")
	}
	step := NewWithConfig(h, Config{})
	if err := step(); err == nil {
		t.Fatalf("step() after failed boot = nil")
	}
}

func TestPanicLines(t *testing.T) {
	got := panicLines(sched.PanicInfo{TaskID: 3, Core: 1, Locks: 2, Value: errors.New("boom"), Stack: []byte("main.f()\n\tfile.go:1\n")})
	want := []string{"kernel panic", "task task(3) on core 1, 2 locks held", "panic: boom", "stack:", "main.f()", "  file.go:1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("panicLines() mismatch (-want +got):\n%s", diff)
	}
}
