package dag

import (
	"container/heap"

	"github.com/gyaneshwarpardhi/dispatch/internal/engine"
)

// entry is a queued data value or a queued callable firing, ordered by
// (dist, seq). seq is assigned at push time, so completion order of
// asynchronous work never changes the visiting order.
type entry struct {
	dist float64
	seq  int
	id   string

	// data entries
	data  bool
	value any
	from  string
	wild  bool

	// callable entries
	args   []any
	future *engine.Future
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist < h[j].dist
	}
	return h[i].seq < h[j].seq
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)   { *h = append(*h, x.(*entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

type queue struct {
	h   entryHeap
	seq int
}

func (q *queue) push(e *entry) {
	e.seq = q.seq
	q.seq++
	heap.Push(&q.h, e)
}

func (q *queue) pop() *entry { return heap.Pop(&q.h).(*entry) }

func (q *queue) peek() *entry { return q.h[0] }

func (q *queue) len() int { return q.h.Len() }
