// Package queue provides the goroutine-safe queues used to hand messages
// between producers and the connection tasks.
package queue

import (
	"container/heap"
	"sync"
)

// Entry is an item stored in a PriorityQueue together with its ordering key.
type Entry[T any] struct {
	Value    T
	Priority int
	seq      uint64
}

// PriorityQueue is a goroutine-safe priority queue.
//
// Entries with a lower Priority are dequeued first, entries with the same
// Priority are dequeued in arrival order.
type PriorityQueue[T any] struct {
	mu      sync.Mutex
	entries entryHeap[T]
	nextSeq uint64
}

// NewPriorityQueue creates an empty PriorityQueue.
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{}
}

// Push adds value with the given priority.
func (q *PriorityQueue[T]) Push(value T, priority int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	heap.Push(&q.entries, Entry[T]{Value: value, Priority: priority, seq: q.nextSeq})
	q.nextSeq++
}

// TryPop removes and returns the head entry. It never blocks; ok is false
// when the queue is empty.
func (q *PriorityQueue[T]) TryPop() (Entry[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return Entry[T]{}, false
	}

	return heap.Pop(&q.entries).(Entry[T]), true
}

// Restore puts back an entry previously returned by TryPop. The entry keeps
// its original position relative to entries pushed after it.
func (q *PriorityQueue[T]) Restore(e Entry[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()

	heap.Push(&q.entries, e)
}

// RemoveFunc removes every entry whose value matches pred and returns the
// number of removed entries.
func (q *PriorityQueue[T]) RemoveFunc(pred func(T) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.entries[:0]
	removed := 0
	for _, e := range q.entries {
		if pred(e.Value) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	// clear the tail so removed values can be collected
	clear(q.entries[len(kept):])
	q.entries = kept
	heap.Init(&q.entries)

	return removed
}

// Len returns the number of queued entries.
func (q *PriorityQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.entries)
}

// entryHeap implements heap.Interface ordered by (Priority, seq).
type entryHeap[T any] []Entry[T]

func (h entryHeap[T]) Len() int { return len(h) }

func (h entryHeap[T]) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap[T]) Push(x any) {
	*h = append(*h, x.(Entry[T]))
}

func (h *entryHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	var zero Entry[T]
	old[n-1] = zero
	*h = old[:n-1]

	return item
}
