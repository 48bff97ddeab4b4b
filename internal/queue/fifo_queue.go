package queue

import (
	"context"
	"slices"
	"sync"
)

// FIFOQueue is a goroutine-safe unbounded first-in first-out queue with a
// blocking Pop.
type FIFOQueue[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
}

// NewFIFOQueue creates an empty FIFOQueue with room for prealloc items before growing.
func NewFIFOQueue[T any](prealloc int) *FIFOQueue[T] {
	return &FIFOQueue[T]{
		items:  make([]T, 0, prealloc),
		notify: make(chan struct{}, 1),
	}
}

// Push adds an item to the tail of the queue and wakes a blocked Pop.
func (q *FIFOQueue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.signal()
}

// TryPop removes and returns the item at the head of the queue without blocking.
func (q *FIFOQueue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.popLocked()
}

// Pop removes and returns the item at the head of the queue, blocking until
// an item is available or ctx is done.
func (q *FIFOQueue[T]) Pop(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		item, ok := q.popLocked()
		remaining := len(q.items)
		q.mu.Unlock()

		if ok {
			// pass the wake-up on when other items are still queued
			if remaining > 0 {
				q.signal()
			}
			return item, nil
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.notify:
		}
	}
}

// Reset drops every queued item.
func (q *FIFOQueue[T]) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	clear(q.items)
	q.items = q.items[:0]
}

// RemoveFunc removes every item matched by pred, keeping the order of the
// others, and returns the number of removed items.
func (q *FIFOQueue[T]) RemoveFunc(pred func(T) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = slices.DeleteFunc(q.items, pred)

	return n - len(q.items)
}

// IsEmpty returns true if the queue is empty, false otherwise.
func (q *FIFOQueue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the number of items in the queue.
func (q *FIFOQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

func (q *FIFOQueue[T]) popLocked() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]

	return item, true
}

func (q *FIFOQueue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
