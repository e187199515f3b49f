package asyncqueue

import (
	"context"
	"log"
	"sync"
)

// HandlerFunc processes one sealed batch of items. It may block or perform
// its own asynchronous work; the DoubleBufferTask guarantees it is never
// invoked concurrently with itself. A non-nil error is reported through
// Wait and Err rather than swallowed.
type HandlerFunc[T any] func(batch []T) error

// DoubleBufferTask accumulates items from any number of producers and feeds
// them to a handler in batches, using two buffers that swap roles: producers
// append to the write buffer while the other buffer is in flight to the
// handler. The swap is a pointer exchange under a mutex, so producers are
// blocked only for the duration of an append, never for the duration of a
// handler invocation.
//
// Batches are handled strictly one at a time, in the order they were sealed.
// Every item passed to Add lands in exactly one batch. The shutdown protocol
// is cooperative: call Finish once no more items will be added, then Wait
// for the final drain.
type DoubleBufferTask[T any] struct {
	handler HandlerFunc[T]
	cap     int

	// All further fields are protected by mu.
	mu        sync.Mutex
	write     []T // buffer currently accepting Add calls
	inflight  int // size of the batch currently at the handler
	finished  bool
	completed bool
	err       error

	wake chan struct{} // coalescing signal: new data or Finish
	done chan struct{} // closed once everything has been handled
}

// TaskOption configures a DoubleBufferTask.
type TaskOption[T any] func(*DoubleBufferTask[T])

// WithBatchCapacity pre-sizes both buffers to hold n items before growing.
func WithBatchCapacity[T any](n int) TaskOption[T] {
	return func(t *DoubleBufferTask[T]) {
		t.cap = n
	}
}

// NewDoubleBufferTask creates a task that hands batches of added items to
// handler. The consumer loop starts immediately.
func NewDoubleBufferTask[T any](handler HandlerFunc[T], opts ...TaskOption[T]) *DoubleBufferTask[T] {
	if handler == nil {
		panic("asyncqueue: NewDoubleBufferTask requires a handler")
	}
	t := &DoubleBufferTask[T]{
		handler: handler,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.write = make([]T, 0, t.cap)
	go t.run(make([]T, 0, t.cap))
	return t
}

// Add appends item to the current write buffer and signals the consumer
// loop. It returns quickly regardless of how long the handler takes.
//
// Calling Add after the task has fully completed (Wait returned or Done
// fired) is a contract violation and panics; serialize the last Add with
// Wait if producers can outlive the drain.
func (t *DoubleBufferTask[T]) Add(item T) {
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		panic("asyncqueue: Add called after the task completed")
	}
	t.write = append(t.write, item)
	t.mu.Unlock()
	t.signal()
}

// AddBatch appends all items under a single critical section, preserving
// their relative order within the batch buffer. Same contract as Add.
func (t *DoubleBufferTask[T]) AddBatch(items ...T) {
	if len(items) == 0 {
		return
	}
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		panic("asyncqueue: AddBatch called after the task completed")
	}
	t.write = append(t.write, items...)
	t.mu.Unlock()
	t.signal()
}

// Finish declares that no further Add calls are expected and wakes the
// consumer loop for the final drain. It does not block, and repeated calls
// are no-ops. Items added after Finish but before completion are still
// drained.
func (t *DoubleBufferTask[T]) Finish() {
	t.mu.Lock()
	t.finished = true
	t.mu.Unlock()
	t.signal()
}

// Wait blocks until every added item has been handled and returns the first
// handler error, if any. It completes only after Finish has been called;
// with zero items ever added it completes immediately with no handler
// invocation.
func (t *DoubleBufferTask[T]) Wait() error {
	<-t.done
	return t.Err()
}

// WaitContext is Wait with an upper bound: it returns ctx.Err() if ctx is
// cancelled before the task completes.
func (t *DoubleBufferTask[T]) WaitContext(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel that is closed once the task has fully completed.
// Useful for composing with other channels in a select.
func (t *DoubleBufferTask[T]) Done() <-chan struct{} {
	return t.done
}

// Err returns the first error any handler invocation reported, or nil.
func (t *DoubleBufferTask[T]) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Pending returns a best-effort count of items buffered or currently being
// handled. The value may be stale by the time the caller observes it.
func (t *DoubleBufferTask[T]) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.write) + t.inflight
}

// run is the consumer loop. idle is the spare buffer; it trades places with
// the write buffer on every swap. Only this goroutine touches idle, so the
// mutex covers nothing but the swap and the append in Add.
func (t *DoubleBufferTask[T]) run(idle []T) {
	for {
		t.mu.Lock()
		for len(t.write) == 0 && !t.finished {
			t.mu.Unlock()
			<-t.wake
			t.mu.Lock()
		}
		if len(t.write) == 0 {
			// Finished and both buffers drained: fire completion.
			t.completed = true
			t.mu.Unlock()
			close(t.done)
			return
		}
		batch := t.write
		t.write = idle
		t.inflight = len(batch)
		t.mu.Unlock()

		if err := t.handler(batch); err != nil {
			t.mu.Lock()
			if t.err == nil {
				t.err = err
			} else {
				log.Printf("asyncqueue: batch handler failed again after a recorded error: %v", err)
			}
			t.mu.Unlock()
		}
		t.mu.Lock()
		t.inflight = 0
		t.mu.Unlock()
		idle = batch[:0]
	}
}

func (t *DoubleBufferTask[T]) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}
