package cvec

import "container/heap"

// pqItem pairs a node table slot with its score against the active query.
type pqItem struct {
	slot  uint32
	score float32
}

// pqDirection selects heap ordering. [Score] is defined so that a larger
// value always means "more similar" across all three metrics; the layer
// search in hnsw.go pairs a pqMaxFirst frontier (pop the best unexpanded
// candidate) with a pqMinFirst result set (root is the worst currently
// kept candidate, evicted first when the set overflows its width).
type pqDirection int

const (
	// pqMinFirst pops the lowest score first.
	pqMinFirst pqDirection = iota
	// pqMaxFirst pops the highest score first.
	pqMaxFirst
)

// pqueue is a bounded binary heap of (slot, score) pairs ordered by dir.
// A zero capacity means unbounded. It implements container/heap.Interface
// via Len/Less/Swap/Push/Pop; callers use TryPush/PushBounded/PopItem/
// Peek/Len.
type pqueue struct {
	dir      pqDirection
	items    []pqItem
	capacity int
}

// newPQueue creates a heap with the given direction and capacity. A
// capacity of 0 means unbounded.
func newPQueue(dir pqDirection, capacity int) *pqueue {
	return &pqueue{dir: dir, capacity: capacity}
}

func (q *pqueue) Len() int { return len(q.items) }

func (q *pqueue) Less(i, j int) bool {
	if q.dir == pqMinFirst {
		return q.items[i].score < q.items[j].score
	}
	return q.items[i].score > q.items[j].score
}

func (q *pqueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *pqueue) Push(x any) { q.items = append(q.items, x.(pqItem)) }

func (q *pqueue) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	q.items = old[:n-1]
	return it
}

// TryPush pushes (slot, score) and reports whether it fit. A bounded
// queue that is already at capacity fails with ErrInvalidArgs rather than
// growing, matching the fixed-capacity contract of the source heap.
func (q *pqueue) TryPush(slot uint32, score float32) error {
	if q.capacity > 0 && len(q.items) >= q.capacity {
		return ErrInvalidArgs
	}
	heap.Push(q, pqItem{slot: slot, score: score})
	return nil
}

// PopItem removes and returns the queue's root item. ok is false if the queue
// was empty.
func (q *pqueue) PopItem() (item pqItem, ok bool) {
	if len(q.items) == 0 {
		return pqItem{}, false
	}
	return heap.Pop(q).(pqItem), true
}

// Peek returns the root item without removing it.
func (q *pqueue) Peek() (item pqItem, ok bool) {
	if len(q.items) == 0 {
		return pqItem{}, false
	}
	return q.items[0], true
}

// PushBounded pushes unconditionally via container/heap, then trims the
// queue down to maxLen by discarding the root if it overflows. Used for
// the HNSW result set, whose root is always the worst kept candidate
// under pqMinFirst ordering.
func (q *pqueue) PushBounded(slot uint32, score float32, maxLen int) {
	heap.Push(q, pqItem{slot: slot, score: score})
	if maxLen > 0 && len(q.items) > maxLen {
		heap.Pop(q)
	}
}

// Slots returns the slot indices currently held, in heap (not sorted)
// order.
func (q *pqueue) Slots() []uint32 {
	out := make([]uint32, len(q.items))
	for i, it := range q.items {
		out[i] = it.slot
	}
	return out
}
