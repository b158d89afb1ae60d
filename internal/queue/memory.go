package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue implements Queue as an unbounded in-memory FIFO.
// Enqueue appends under a mutex and returns; it never blocks on a
// full buffer because there is no buffer limit. A wakeup channel
// nudges the waiting consumer.
type MemoryQueue struct {
	mu     sync.Mutex
	items  []interface{}
	wakeup chan struct{}
	closed bool
	config *Config
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(config *Config) *MemoryQueue {
	if config == nil {
		config = DefaultConfig("memory")
	}

	return &MemoryQueue{
		wakeup: make(chan struct{}, 1),
		config: config,
	}
}

// Enqueue adds an item to the queue
func (q *MemoryQueue) Enqueue(ctx context.Context, item interface{}) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Dequeue retrieves up to maxItems from the queue, blocking until at
// least one item is available or the context is cancelled.
func (q *MemoryQueue) Dequeue(ctx context.Context, maxItems int) ([]interface{}, error) {
	for {
		items, closed := q.pop(maxItems)
		if len(items) > 0 {
			return items, nil
		}
		if closed {
			return nil, ErrQueueClosed
		}

		select {
		case <-q.wakeup:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// DequeueWithTimeout retrieves up to maxItems, waiting at most timeout
// for the first one. An empty slice means the timeout elapsed.
func (q *MemoryQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]interface{}, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		items, closed := q.pop(maxItems)
		if len(items) > 0 {
			return items, nil
		}
		if closed {
			return nil, ErrQueueClosed
		}

		select {
		case <-q.wakeup:
		case <-timer.C:
			return []interface{}{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Length returns the current queue length
func (q *MemoryQueue) Length(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, ErrQueueClosed
	}

	return len(q.items), nil
}

// Close shuts down the queue. Items still queued at close are
// discarded; the worker drains before closing.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()

	q.signal()
	return nil
}

// pop removes up to maxItems from the head. The second return reports
// whether the queue is closed.
func (q *MemoryQueue) pop(maxItems int) ([]interface{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, q.closed
	}

	n := maxItems
	if n <= 0 || n > len(q.items) {
		n = len(q.items)
	}

	items := make([]interface{}, n)
	copy(items, q.items[:n])
	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	}

	return items, q.closed
}

// signal wakes a waiting consumer without blocking the producer.
func (q *MemoryQueue) signal() {
	select {
	case q.wakeup <- struct{}{}:
	default:
	}
}
