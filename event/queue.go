package event

// Queue is a strict FIFO. Events pushed while the queue is being drained
// land behind everything already queued.
type Queue struct {
	items []Event
	head  int
}

func (q *Queue) Push(e Event) {
	q.items = append(q.items, e)
}

// Pop removes the oldest event. ok is false when the queue is empty.
func (q *Queue) Pop() (e Event, ok bool) {
	if q.head >= len(q.items) {
		return Event{}, false
	}
	e = q.items[q.head]
	q.items[q.head] = Event{}
	q.head++
	if q.head == len(q.items) {
		q.Reset()
	}
	return e, true
}

func (q *Queue) Len() int { return len(q.items) - q.head }

// Reset drops everything queued and keeps the backing array.
func (q *Queue) Reset() {
	q.items = q.items[:0]
	q.head = 0
}
