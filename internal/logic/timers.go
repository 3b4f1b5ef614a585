package logic

import (
	"container/heap"
	"time"
)

// deadline is the next instant a channel's classifier has work to do.
type deadline struct {
	at    time.Duration
	ch    Channel
	index int
}

// deadlineHeap orders deadlines by instant, then channel.
type deadlineHeap []*deadline

func (h deadlineHeap) Len() int { return len(h) }

func (h deadlineHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].ch < h[j].ch
}

func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deadlineHeap) Push(x any) {
	d := x.(*deadline)
	d.index = len(*h)
	*h = append(*h, d)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	old[n-1] = nil
	d.index = -1
	*h = old[:n-1]
	return d
}

// timerQueue holds at most one deadline per channel.
type timerQueue struct {
	h    deadlineHeap
	byCh map[Channel]*deadline
}

func newTimerQueue() *timerQueue {
	return &timerQueue{byCh: make(map[Channel]*deadline)}
}

// set schedules, moves or (when ok is false) cancels the deadline of ch.
func (q *timerQueue) set(ch Channel, at time.Duration, ok bool) {
	d, exists := q.byCh[ch]
	switch {
	case !ok && exists:
		heap.Remove(&q.h, d.index)
		delete(q.byCh, ch)
	case ok && exists:
		d.at = at
		heap.Fix(&q.h, d.index)
	case ok:
		d = &deadline{at: at, ch: ch}
		heap.Push(&q.h, d)
		q.byCh[ch] = d
	}
}

// peek returns the earliest deadline.
func (q *timerQueue) peek() (Channel, time.Duration, bool) {
	if len(q.h) == 0 {
		return 0, 0, false
	}
	return q.h[0].ch, q.h[0].at, true
}
