package trap

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"sparkcore/sparkos/kernel/irq"
	"sparkcore/sparkos/kernel/lockorder"
)

func TestServiceRunsPendingInLineOrder(t *testing.T) {
	var tb Table
	var got []string
	for _, n := range []int{3, 0, 7} {
		name := string(rune('a' + n))
		if err := tb.Register(n, name, func(tok lockorder.Token[lockorder.Clean]) {
			if !tok.Valid() {
				t.Errorf("handler %s: invalid token", name)
			}
			if !tok.Exec().CPU().Suppressed() {
				t.Errorf("handler %s: interrupts not suppressed", name)
			}
			got = append(got, name)
		}); err != nil {
			t.Fatal(err)
		}
	}
	tb.Seal()

	e := lockorder.NewExec("irq0", irq.NewCPU(0, &irq.Soft{}))
	tb.Raise(7)
	tb.Raise(3)
	tb.Raise(0)
	tb.Raise(5) // no handler
	tb.Raise(MaxLines)

	if n := tb.Service(e); n != 3 {
		t.Fatalf("Service() = %d, want 3", n)
	}
	if diff := cmp.Diff([]string{"a", "d", "h"}, got); diff != "" {
		t.Fatalf("handler order mismatch (-want +got):\n%s", diff)
	}
	if tb.Pending() || tb.Count(3) != 1 || tb.Count(5) != 0 {
		t.Fatalf("pending=%v count3=%d count5=%d", tb.Pending(), tb.Count(3), tb.Count(5))
	}
	if e.CPU().Suppressed() {
		t.Fatalf("cpu left suppressed after service")
	}
}

func TestServiceDefersWhileSuppressed(t *testing.T) {
	var tb Table
	runs := 0
	tb.Register(1, "timer", func(lockorder.Token[lockorder.Clean]) { runs++ })

	ctl := &irq.Soft{}
	c := irq.NewCPU(0, ctl)
	e := lockorder.NewExec("irq0", c)

	tb.Raise(1)
	c.PushOff()
	if n := tb.Service(e); n != 0 {
		t.Fatalf("Service() with interrupts off = %d, want 0", n)
	}
	c.PopOff()
	if !tb.Pending() {
		t.Fatalf("line lost while interrupts were off")
	}
	if n := tb.Service(e); n != 1 || runs != 1 {
		t.Fatalf("Service() = %d, runs = %d; want 1, 1", n, runs)
	}
}

func TestRegisterErrors(t *testing.T) {
	var tb Table
	noop := func(lockorder.Token[lockorder.Clean]) {}
	if err := tb.Register(-1, "x", noop); !errors.Is(err, ErrBadLine) {
		t.Errorf("Register(-1) = %v, want ErrBadLine", err)
	}
	if err := tb.Register(2, "kbd", noop); err != nil {
		t.Fatalf("Register(2) = %v", err)
	}
	if err := tb.Register(2, "mouse", noop); !errors.Is(err, ErrLineBusy) {
		t.Errorf("Register(2) again = %v, want ErrLineBusy", err)
	}
	if tb.Name(2) != "kbd" {
		t.Errorf("Name(2) = %q, want kbd", tb.Name(2))
	}
	tb.Seal()
	if err := tb.Register(4, "late", noop); !errors.Is(err, ErrSealed) {
		t.Errorf("Register after Seal = %v, want ErrSealed", err)
	}
}

func TestHandlerLeakingGuardPanics(t *testing.T) {
	var tb Table
	leaf := lockorder.NewMutex[lockorder.Level0]("leaf", 0)
	tb.Register(0, "leaky", func(tok lockorder.Token[lockorder.Clean]) {
		lockorder.Lock0(tok, leaf)
	})
	tb.Raise(0)
	defer func() {
		if recover() == nil {
			t.Fatalf("leaked guard did not panic")
		}
	}()
	tb.Service(lockorder.NewExec("irq0", irq.NewCPU(0, &irq.Soft{})))
}
