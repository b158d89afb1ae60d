package archive

import (
	"context"
	"sync"
	"time"

	"apimonitor/internal/config"
	"apimonitor/internal/utils"
)

// S3Archive buffers payload records in memory and flushes them to S3
// in batches, either when the batch fills or on a timer. Enqueue is a
// non-blocking channel send; when the buffer is full the record is
// dropped with a log line, never a stall.
type S3Archive struct {
	writer *S3Writer
	cfg    config.ArchiveConfig
	logger *utils.Logger

	recCh  chan *PayloadRecord
	doneCh chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewS3Archive creates the archive and starts its flush goroutine.
func NewS3Archive(ctx context.Context, cfg config.ArchiveConfig) (*S3Archive, error) {
	writer, err := NewS3Writer(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix, cfg.NodeName)
	if err != nil {
		return nil, err
	}

	a := &S3Archive{
		writer: writer,
		cfg:    cfg,
		logger: utils.NewLogger("s3-archive"),
		recCh:  make(chan *PayloadRecord, cfg.BufferSize),
		doneCh: make(chan struct{}),
	}

	a.wg.Add(1)
	go a.run()

	return a, nil
}

// Enqueue buffers one payload record. Full buffer drops the record.
func (a *S3Archive) Enqueue(rec *PayloadRecord) error {
	select {
	case a.recCh <- rec:
	default:
		a.logger.Warn("Archive buffer full, dropping payload",
			"endpoint", rec.Endpoint, "request_id", rec.RequestID)
	}
	return nil
}

// Shutdown flushes what is buffered and stops the flush goroutine.
func (a *S3Archive) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	close(a.doneCh)

	waitCh := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run collects records and flushes by size and by time.
func (a *S3Archive) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()

	var pending []*PayloadRecord

	flush := func() {
		if len(pending) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := a.writer.WriteBatch(ctx, pending); err != nil {
			a.logger.Error("Failed to flush payload batch, dropping",
				"count", len(pending), "error", err)
		}
		cancel()
		pending = nil
	}

	for {
		select {
		case rec := <-a.recCh:
			pending = append(pending, rec)
			if len(pending) >= a.cfg.FlushSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-a.doneCh:
			// Drain remaining records, then flush once.
			for {
				select {
				case rec := <-a.recCh:
					pending = append(pending, rec)
				default:
					flush()
					return
				}
			}
		}
	}
}
