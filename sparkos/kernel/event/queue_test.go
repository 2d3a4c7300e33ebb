package event

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func drain(q *Queue) []Event {
	var out []Event
	for {
		ev, ok := q.Pop()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4)
	want := []Event{
		Key(true, 0x1e, 'a', 1),
		Key(false, 0x1e, 'a', 2),
		Motion(10, 20, 0, 3),
	}
	for _, ev := range want {
		if !q.Push(ev) {
			t.Fatalf("Push(%v) reported drop on non-full queue", ev.Kind)
		}
	}
	if got, ok := q.Peek(); !ok || got != want[0] {
		t.Fatalf("Peek() = %v, %v; want %v, true", got, ok, want[0])
	}
	if diff := cmp.Diff(want, drain(&q)); diff != "" {
		t.Fatalf("drained events mismatch (-want +got):\n%s", diff)
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("Pop() on empty queue ok = true")
	}
}

func TestQueueDropsOldest(t *testing.T) {
	q := NewQueue(3)
	for i := uint64(1); i <= 5; i++ {
		q.Push(Key(true, uint16(i), 0, i))
	}
	if got := q.Dropped(); got != 2 {
		t.Fatalf("Dropped() = %d, want 2", got)
	}
	var got []uint64
	for _, ev := range drain(&q) {
		got = append(got, ev.Timestamp)
	}
	if diff := cmp.Diff([]uint64{3, 4, 5}, got); diff != "" {
		t.Fatalf("kept timestamps mismatch (-want +got):\n%s", diff)
	}
}

func TestQueueClearKeepsDropCount(t *testing.T) {
	q := NewQueue(1)
	q.Push(Motion(1, 1, 0, 1))
	q.Push(Motion(2, 2, 0, 2))
	q.Clear()
	if q.Len() != 0 || q.Dropped() != 1 || q.Cap() != 1 {
		t.Fatalf("after Clear: len=%d dropped=%d cap=%d", q.Len(), q.Dropped(), q.Cap())
	}
	q.Push(Motion(3, 3, 0, 3))
	if ev, _ := q.Pop(); ev.X != 3 {
		t.Fatalf("Pop() after Clear = %+v", ev)
	}
}

func TestZeroQueueDrops(t *testing.T) {
	var q Queue
	if q.Push(Key(true, 1, 0, 0)) {
		t.Fatalf("Push on zero queue reported success")
	}
	if q.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1", q.Dropped())
	}
}

func TestKindClass(t *testing.T) {
	tests := []struct {
		kind Kind
		want Class
	}{
		{KeyPress, Keyboard},
		{KeyRelease, Keyboard},
		{PointerMotion, Pointer},
		{PointerButtonPress, Pointer},
		{PointerButtonRelease, Pointer},
		{PointerEnter, Pointer},
		{PointerLeave, Pointer},
	}
	for _, tc := range tests {
		if got := tc.kind.Class(); got != tc.want {
			t.Errorf("%v.Class() = %v, want %v", tc.kind, got, tc.want)
		}
	}
	if Kind(7).Valid() {
		t.Errorf("Kind(7).Valid() = true")
	}
}
