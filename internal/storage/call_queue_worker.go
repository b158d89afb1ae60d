package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"apimonitor/internal/config"
	"apimonitor/internal/queue"
	"apimonitor/internal/utils"
	"apimonitor/models"
)

// WorkerState is the lifecycle state of the persistence worker
type WorkerState int32

const (
	StateRunning WorkerState = iota
	StateDraining
	StateStopped
)

func (s WorkerState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Resolver derives surrogate keys for a record. ResolveRecord must not
// fail; unresolvable fields come back nil.
type Resolver interface {
	Prime(ctx context.Context)
	ResolveRecord(ctx context.Context, call *models.APICall) *models.ResolvedKeys
}

// Inserter persists one resolved record.
type Inserter interface {
	Insert(ctx context.Context, call *models.APICall, keys *models.ResolvedKeys) error
}

// CallQueueWorker drains the submission queue on a single goroutine,
// resolving and inserting one record at a time. Every per-record
// failure is logged and swallowed: one bad record never halts the
// worker, and nothing propagates back to producers.
type CallQueueWorker struct {
	queue    queue.Queue
	resolver Resolver
	inserter Inserter
	cfg      config.WorkerConfig
	logger   *utils.Logger

	state       atomic.Int32
	stopChan    chan struct{}
	stoppedChan chan struct{}

	processed atomic.Uint64
	dropped   atomic.Uint64
}

// NewCallQueueWorker creates a worker over the given queue and
// pipeline stages.
func NewCallQueueWorker(q queue.Queue, resolver Resolver, inserter Inserter, cfg config.WorkerConfig) *CallQueueWorker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 1 * time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}

	return &CallQueueWorker{
		queue:       q,
		resolver:    resolver,
		inserter:    inserter,
		cfg:         cfg,
		logger:      utils.NewLogger("call-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *CallQueueWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop requests drain-then-stop and joins the worker with a bounded
// timeout. All records queued before the call are processed; a join
// that outlives the timeout is logged and abandoned, not fatal.
func (w *CallQueueWorker) Stop(ctx context.Context) error {
	if w.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		close(w.stopChan)
	}

	select {
	case <-w.stoppedChan:
	case <-time.After(w.cfg.DrainTimeout):
		w.logger.Warn("Worker join timed out, abandoning", "timeout", w.cfg.DrainTimeout)
	case <-ctx.Done():
		w.logger.Warn("Worker join cancelled", "error", ctx.Err())
	}

	w.state.Store(int32(StateStopped))
	return nil
}

// State returns the current worker state
func (w *CallQueueWorker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Processed returns how many records were persisted
func (w *CallQueueWorker) Processed() uint64 {
	return w.processed.Load()
}

// Dropped returns how many records failed to persist and were dropped
func (w *CallQueueWorker) Dropped() uint64 {
	return w.dropped.Load()
}

// run is the main worker loop
func (w *CallQueueWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	w.resolver.Prime(ctx)

	for {
		select {
		case <-w.stopChan:
			w.drain(ctx)
			w.logger.Info("Worker stopped",
				"processed", w.processed.Load(), "dropped", w.dropped.Load())
			return
		case <-ctx.Done():
			w.logger.Info("Worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

// processBatch waits up to the poll interval for queued records and
// hands each one to the pipeline in submission order.
func (w *CallQueueWorker) processBatch(ctx context.Context) {
	items, err := w.queue.DequeueWithTimeout(ctx, w.cfg.BatchSize, w.cfg.PollInterval)
	if err != nil {
		if ctx.Err() != nil || err == queue.ErrQueueClosed {
			return
		}
		w.logger.Error("Failed to dequeue records", "error", err)
		time.Sleep(1 * time.Second) // Back off on error
		return
	}

	for _, item := range items {
		w.processItem(ctx, item)
	}
}

// drain empties the queue before the worker exits, so every record
// submitted before shutdown gets its insert attempt.
func (w *CallQueueWorker) drain(ctx context.Context) {
	for {
		items, err := w.queue.DequeueWithTimeout(ctx, w.cfg.BatchSize, 50*time.Millisecond)
		if err != nil || len(items) == 0 {
			return
		}
		for _, item := range items {
			w.processItem(ctx, item)
		}
	}
}

// processItem resolves and inserts a single record. Panics and errors
// are contained here; the loop continues regardless.
func (w *CallQueueWorker) processItem(ctx context.Context, item interface{}) {
	defer func() {
		if rec := recover(); rec != nil {
			w.dropped.Add(1)
			w.logger.Error("Panic while processing record", "panic", rec)
		}
	}()

	var call models.APICall
	if err := w.unmarshalItem(item, &call); err != nil {
		w.dropped.Add(1)
		w.logger.Error("Failed to decode queued record", "error", err)
		return
	}

	keys := w.resolver.ResolveRecord(ctx, &call)

	if err := w.inserter.Insert(ctx, &call, keys); err != nil {
		w.dropped.Add(1)
		w.logger.Error("Failed to insert record, dropping",
			"endpoint", call.Endpoint, "request_id", call.RequestID, "error", err)
		return
	}

	w.processed.Add(1)
}

// unmarshalItem converts a queue item into an APICall. The memory
// queue hands records through as-is; the Redis queue hands back JSON.
func (w *CallQueueWorker) unmarshalItem(item interface{}, call *models.APICall) error {
	switch v := item.(type) {
	case *models.APICall:
		*call = *v
		return nil
	case models.APICall:
		*call = v
		return nil
	case []byte:
		return json.Unmarshal(v, call)
	case json.RawMessage:
		return json.Unmarshal(v, call)
	default:
		return fmt.Errorf("unsupported queue item type %T", item)
	}
}

// QueueLength returns the current submission queue length
func (w *CallQueueWorker) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}
