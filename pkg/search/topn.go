package search

import (
	"container/heap"
	"slices"
)

// candidate is a scored embedding identified by its global metadata index
type candidate struct {
	index    uint32
	distance float32
}

// worse reports whether a ranks after b: larger distance, then larger index
func worse(a, b candidate) bool {
	if a.distance != b.distance {
		return a.distance > b.distance
	}
	return a.index > b.index
}

// candidateQueue is a max-heap with the worst kept candidate on top
type candidateQueue []candidate

func (q candidateQueue) Len() int           { return len(q) }
func (q candidateQueue) Less(i, j int) bool { return worse(q[i], q[j]) }
func (q candidateQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *candidateQueue) Push(x any) {
	*q = append(*q, x.(candidate))
}

func (q *candidateQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// topN keeps the limit best candidates seen so far
type topN struct {
	limit int
	queue candidateQueue
}

func newTopN(limit int) *topN {
	return &topN{limit: limit, queue: make(candidateQueue, 0, limit)}
}

func (t *topN) push(c candidate) {
	if t.limit <= 0 {
		return
	}
	if len(t.queue) < t.limit {
		heap.Push(&t.queue, c)
		return
	}
	if worse(t.queue[0], c) {
		t.queue[0] = c
		heap.Fix(&t.queue, 0)
	}
}

// sorted returns the kept candidates, best first
func (t *topN) sorted() []candidate {
	out := slices.Clone(t.queue)
	slices.SortFunc(out, func(a, b candidate) int {
		switch {
		case worse(b, a):
			return -1
		case worse(a, b):
			return 1
		default:
			return 0
		}
	})
	return out
}
