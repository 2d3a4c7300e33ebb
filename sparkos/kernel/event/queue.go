package event

// DefaultDepth is the capacity of a task event queue.
const DefaultDepth = 64

// Queue is a bounded FIFO of events owned by one task. When the queue is full
// the oldest event is discarded to make room, so a task that stops draining
// sees the most recent input once it resumes.
//
// Queue is not safe for concurrent use; it lives inside the task state and is
// protected by the task lock. The ring is allocated once by NewQueue and
// Push never allocates, so it may run with interrupts off.
type Queue struct {
	buf     []Event
	head    int // next pop
	n       int
	dropped uint64
}

// NewQueue returns an empty queue holding at most depth events.
func NewQueue(depth int) Queue {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return Queue{buf: make([]Event, depth)}
}

// Push appends ev. It reports false if an older event had to be dropped.
func (q *Queue) Push(ev Event) bool {
	if len(q.buf) == 0 {
		q.dropped++
		return false
	}
	ok := true
	if q.n == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.n--
		q.dropped++
		ok = false
	}
	q.buf[(q.head+q.n)%len(q.buf)] = ev
	q.n++
	return ok
}

// Pop removes and returns the oldest event.
func (q *Queue) Pop() (Event, bool) {
	if q.n == 0 {
		return Event{}, false
	}
	ev := q.buf[q.head]
	q.buf[q.head] = Event{}
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return ev, true
}

// Peek returns the oldest event without removing it.
func (q *Queue) Peek() (Event, bool) {
	if q.n == 0 {
		return Event{}, false
	}
	return q.buf[q.head], true
}

// Len returns the number of queued events.
func (q *Queue) Len() int { return q.n }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return len(q.buf) }

// Dropped returns how many events were discarded because the queue was full.
func (q *Queue) Dropped() uint64 { return q.dropped }

// Clear discards all queued events. The drop counter is kept.
func (q *Queue) Clear() {
	clear(q.buf)
	q.head, q.n = 0, 0
}
