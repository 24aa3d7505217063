// Package queue holds the pending work of a single consumer goroutine.
package queue

import "sync"

// Queue is a FIFO safe for many producers and one consumer.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends items in order.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	q.items = append(q.items, items...)
	q.mu.Unlock()
}

// Prepend returns a batch to the head of the queue ahead of anything pushed since it was drained.
func (q *Queue[T]) Prepend(items ...T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(append(make([]T, 0, len(items)+len(q.items)), items...), q.items...)
}

// Drain takes every queued item, oldest first.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Update calls fn on each queued item in place while holding the lock.
func (q *Queue[T]) Update(fn func(*T)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		fn(&q.items[i])
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
