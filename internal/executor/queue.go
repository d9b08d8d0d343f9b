package executor

import (
	"context"
	"sync"
	"time"
)

const defaultQueueCap = 16

// Queue is an unbounded FIFO safe for any number of producers and consumers.
// Push never blocks beyond lock acquisition. Pop waits a bounded duration so
// consumers can periodically look at their stop signal.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T

	// ready holds at most one wakeup token for a waiting consumer
	ready chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0, defaultQueueCap),
		ready: make(chan struct{}, 1),
	}
}

// Push appends an item and wakes one waiting consumer.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.signal()
}

// TryPop returns the head of the queue without waiting.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 && cap(q.items) > 4*defaultQueueCap {
		q.items = make([]T, 0, defaultQueueCap)
	}

	// Pass the wakeup on while items remain, another consumer may be waiting.
	if len(q.items) > 0 {
		q.signal()
	}
	return item, true
}

// Pop waits up to timeout for an item. It returns false when the timeout
// elapses or ctx is cancelled with the queue still empty.
func (q *Queue[T]) Pop(ctx context.Context, timeout time.Duration) (T, bool) {
	if item, ok := q.TryPop(); ok {
		return item, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.ready:
			if item, ok := q.TryPop(); ok {
				return item, true
			}
		case <-timer.C:
			return q.TryPop()
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
