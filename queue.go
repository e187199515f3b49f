package asyncqueue

import (
	"context"
	"sync"

	"github.com/gammazero/deque"
)

// Queue is an unbounded thread-safe FIFO queue that decouples any number of
// producers from any number of consumers. Enqueue never blocks; Dequeue
// suspends the calling goroutine until an item is available, the supplied
// context is cancelled, or the queue is closed.
//
// Item delivery is FIFO across the whole queue, not partitioned per consumer.
type Queue[T any] struct {
	// items and closed are protected by mu.
	mu     sync.Mutex
	items  deque.Deque[T]
	closed bool

	avail     chan struct{} // coalescing wake signal for waiting consumers
	done      chan struct{} // closed by Close, releases every waiter
	closeOnce sync.Once
}

// NewQueue creates a new empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		avail: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Enqueue appends item to the back of the queue and wakes a waiting consumer
// if there is one. It never blocks and is safe from any number of concurrent
// callers. Enqueue on a closed queue is a no-op.
func (q *Queue[T]) Enqueue(item T) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items.PushBack(item)
	q.mu.Unlock()
	q.signal()
}

// EnqueueBatch appends all items under a single critical section, so their
// relative order is preserved and they become visible to consumers together.
func (q *Queue[T]) EnqueueBatch(items ...T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	for _, item := range items {
		q.items.PushBack(item)
	}
	q.mu.Unlock()
	q.signal()
}

// Dequeue removes and returns the item at the front of the queue, suspending
// the caller while the queue is empty.
//
// It returns (item, true, nil) on success, (zero, false, nil) once the queue
// has been closed, and (zero, false, ctx.Err()) if ctx is cancelled while
// waiting. Cancellation affects only this caller; other waiters keep waiting.
//
// A woken consumer that finds the queue empty again (another consumer claimed
// the item first) simply goes back to waiting.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, bool, error) {
	var zero T
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return zero, false, nil
		}
		if q.items.Len() > 0 {
			item := q.items.PopFront()
			if q.items.Len() > 0 {
				// More items remain; pass the wakeup on so a coalesced
				// signal still reaches every waiter it was meant for.
				q.signal()
			}
			q.mu.Unlock()
			return item, true, nil
		}
		q.mu.Unlock()

		select {
		case <-q.avail:
		case <-q.done:
		case <-ctx.Done():
			return zero, false, ctx.Err()
		}
	}
}

// TryDequeue removes and returns the front item without blocking. It returns
// (zero, false) if the queue is empty or closed.
func (q *Queue[T]) TryDequeue() (T, bool) {
	var zero T
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.items.Len() == 0 {
		return zero, false
	}
	return q.items.PopFront(), true
}

// Len returns a best-effort snapshot of the queue length. The value may be
// stale by the time the caller observes it; callers needing accuracy must
// synchronize externally.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close shuts the queue down: buffered items are discarded and every current
// and future Dequeue call returns (zero, false, nil) instead of blocking.
// Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.items.Clear()
	q.mu.Unlock()
	q.closeOnce.Do(func() { close(q.done) })
}

// signal wakes one waiting consumer. The channel has capacity 1 so repeated
// signals coalesce; consumers re-signal while items remain (see Dequeue).
func (q *Queue[T]) signal() {
	select {
	case q.avail <- struct{}{}:
	default:
	}
}
