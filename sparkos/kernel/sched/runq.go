package sched

// runq is a fixed-capacity FIFO of ready tasks. A task is on at most one
// runq at a time, so a capacity of MaxTasks never overflows.
type runq struct {
	buf  []*entry
	head int
	n    int
}

func newRunq(capacity int) runq {
	return runq{buf: make([]*entry, capacity)}
}

func (q *runq) push(e *entry) {
	if q.n == len(q.buf) {
		panic("sched: run queue overflow")
	}
	q.buf[(q.head+q.n)%len(q.buf)] = e
	q.n++
}

func (q *runq) pop() *entry {
	if q.n == 0 {
		return nil
	}
	e := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return e
}

func (q *runq) len() int { return q.n }
