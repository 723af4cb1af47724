package engine

import (
	"container/heap"

	"github.com/bawdyanarchist/minesim/internal/simtypes"
)

// eventHeap is the container/heap backing store, ordered by simtypes.Less.
type eventHeap []simtypes.Event

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return simtypes.Less(h[i], h[j]) }
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(simtypes.Event)) }
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// queue wraps the heap with a monotonic Seq assigned at push time — the
// total-order tie-break spec 9 requires because container/heap does not
// guarantee stability among equal keys — and periodic backing-array
// compaction (spec 4.1 step 4, spec 5).
type queue struct {
	h   eventHeap
	seq uint64
}

func newQueue() *queue { return &queue{} }

// push inserts e, rejecting anything scheduled before already-popped time is
// the caller's responsibility (spec 3 invariant); push itself just assigns
// the tie-break sequence.
func (q *queue) push(e simtypes.Event) {
	e.Seq = q.seq
	q.seq++
	heap.Push(&q.h, e)
}

func (q *queue) pop() (simtypes.Event, bool) {
	if len(q.h) == 0 {
		return simtypes.Event{}, false
	}
	return heap.Pop(&q.h).(simtypes.Event), true
}

func (q *queue) peek() (simtypes.Event, bool) {
	if len(q.h) == 0 {
		return simtypes.Event{}, false
	}
	return q.h[0], true
}

func (q *queue) len() int { return len(q.h) }

// compact rebuilds the backing array once physical capacity exceeds 3x the
// logical length (spec 5: "bound memory").
func (q *queue) compact() {
	if cap(q.h) > 3*len(q.h) {
		fresh := make(eventHeap, len(q.h))
		copy(fresh, q.h)
		q.h = fresh
	}
}
