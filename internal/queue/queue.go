// Package queue provides the submission queue between producers and
// the persistence worker, with two backends:
//
// 1. Memory Queue (in-memory, unbounded):
//   - Enqueue never blocks and never fails while the queue is open
//   - No persistence, queued records are lost on restart
//   - Zero external dependencies; the default
//
// 2. Redis Queue (Redis List-based):
//   - Persistent across restarts
//   - Enqueue pays a network round trip and can fail; the monitor
//     logs and drops on enqueue failure
//
// Any number of producers may enqueue concurrently; a single worker
// dequeues. FIFO order is preserved by both backends.
package queue

import (
	"context"
	"time"
)

// Queue defines the interface for record queuing
type Queue interface {
	// Enqueue adds an item to the queue
	Enqueue(ctx context.Context, item interface{}) error

	// Dequeue retrieves items from the queue (up to maxItems)
	// Blocks until at least one item is available or context is cancelled
	Dequeue(ctx context.Context, maxItems int) ([]interface{}, error)

	// DequeueWithTimeout retrieves items with a timeout
	// Returns items if available before timeout, empty slice otherwise
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]interface{}, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue
	Close() error
}

// Config holds queue configuration
type Config struct {
	// QueueName is the name/key for the queue
	QueueName string

	// RedisAddr is the Redis server address (Redis backend only)
	RedisAddr string

	// RedisPassword is the Redis password (Redis backend only)
	RedisPassword string

	// RedisDB is the Redis database number (Redis backend only)
	RedisDB int
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		QueueName: queueName,
		RedisAddr: "localhost:6379",
	}
}
