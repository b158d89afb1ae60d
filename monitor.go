// Package apimonitor is a non-blocking telemetry sink for outbound
// API calls. Call-sites record request and response events; a single
// background worker resolves categorical fields to surrogate keys and
// persists each event to PostgreSQL. Producers are never blocked on
// the database and never see a persistence error.
package apimonitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"apimonitor/internal/archive"
	"apimonitor/internal/config"
	"apimonitor/internal/queue"
	"apimonitor/internal/storage"
	"apimonitor/internal/utils"
	"apimonitor/models"
)

// Monitor owns the database pool, the submission queue, the
// persistence worker, and the optional payload archive. Construct one
// per process with New and hand the reference to callers; Default
// keeps the lazy process-wide instance for drop-in use.
type Monitor struct {
	cfg     *config.Config
	db      *storage.DB
	queue   queue.Queue
	worker  *storage.CallQueueWorker
	archive archive.Archive
	logger  *utils.Logger

	shutdownOnce sync.Once
	shutdownErr  error
}

// Config re-exports the monitor configuration for explicit
// construction.
type Config = config.Config

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	return config.Load()
}

// DefaultConfig returns a configuration with defaults applied and the
// given database URL.
func DefaultConfig(databaseURL string) *Config {
	return config.Default(databaseURL)
}

// New constructs a monitor from the given configuration and starts
// its worker.
func New(cfg *Config) (*Monitor, error) {
	db, err := storage.NewDB(cfg.Database, cfg.Lookup)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var q queue.Queue
	backend := "memory"
	if cfg.Queue.UseRedis {
		q, err = queue.NewRedisQueue(&queue.Config{
			QueueName:     cfg.Queue.Name,
			RedisAddr:     cfg.Queue.RedisAddr,
			RedisPassword: cfg.Queue.RedisPassword,
			RedisDB:       cfg.Queue.RedisDB,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to open redis queue: %w", err)
		}
		backend = "redis"
	} else {
		q = queue.NewMemoryQueue(queue.DefaultConfig(cfg.Queue.Name))
	}

	var arc archive.Archive = archive.NewNoopArchive()
	if cfg.Archive.Enabled {
		arc, err = archive.NewS3Archive(context.Background(), cfg.Archive)
		if err != nil {
			q.Close()
			db.Close()
			return nil, fmt.Errorf("failed to start payload archive: %w", err)
		}
	}

	resolver := storage.NewLookupRepository(db)
	inserter := storage.NewCallRepository(db)
	worker := storage.NewCallQueueWorker(q, resolver, inserter, cfg.Worker)

	m := &Monitor{
		cfg:     cfg,
		db:      db,
		queue:   q,
		worker:  worker,
		archive: arc,
		logger:  utils.NewLogger("api-monitor"),
	}

	worker.Start(context.Background())
	m.logger.Info("API call monitor started", "queue", backend)

	return m, nil
}

var (
	defaultOnce    sync.Once
	defaultMonitor *Monitor
	defaultErr     error
)

// Default returns the process-wide monitor, constructing it from
// environment configuration on first use. First-use construction is
// atomic; every caller observes the same instance or the same error.
func Default() (*Monitor, error) {
	defaultOnce.Do(func() {
		var cfg *Config
		cfg, defaultErr = config.Load()
		if defaultErr != nil {
			return
		}
		defaultMonitor, defaultErr = New(cfg)
	})
	return defaultMonitor, defaultErr
}

// Submit enqueues one record, fire-and-forget. It stamps the creation
// time and request id when absent, returns as soon as the record is
// queued, and never surfaces a persistence error to the caller.
func (m *Monitor) Submit(call *models.APICall) {
	if call == nil {
		return
	}

	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now()
	}
	if call.RequestID == uuid.Nil {
		call.RequestID = uuid.New()
	}

	if err := m.queue.Enqueue(context.Background(), call); err != nil {
		m.logger.Error("Failed to enqueue record, dropping",
			"endpoint", call.Endpoint, "error", err)
	}
}

// Shutdown drains the queue, stops the worker, flushes the archive,
// and closes the database pool. Idempotent; bounded by the configured
// drain timeout plus ctx.
func (m *Monitor) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.logger.Info("Shutting down")

		m.shutdownErr = m.worker.Stop(ctx)
		m.queue.Close()

		if err := m.archive.Shutdown(ctx); err != nil {
			m.logger.Error("Failed to shut down payload archive", "error", err)
		}
		if err := m.db.Close(); err != nil {
			m.logger.Error("Failed to close database", "error", err)
		}

		m.logger.Info("Shutdown complete")
	})
	return m.shutdownErr
}

// Stats is a point-in-time snapshot of the monitor's internals.
type Stats struct {
	WorkerState string
	QueueLength int
	Processed   uint64
	Dropped     uint64
	DB          storage.DBStats
}

// Stats reports queue depth, worker counters, and pool statistics.
func (m *Monitor) Stats(ctx context.Context) Stats {
	length, err := m.queue.Length(ctx)
	if err != nil {
		length = -1
	}

	return Stats{
		WorkerState: m.worker.State().String(),
		QueueLength: length,
		Processed:   m.worker.Processed(),
		Dropped:     m.worker.Dropped(),
		DB:          m.db.GetStats(),
	}
}

// Calls returns a repository for reading back persisted calls.
func (m *Monitor) Calls() *storage.CallRepository {
	return storage.NewCallRepository(m.db)
}

// archivePayload forwards one untruncated payload to the archive.
func (m *Monitor) archivePayload(call *models.APICall, kind, payload string) {
	if payload == "" {
		return
	}
	_ = m.archive.Enqueue(&archive.PayloadRecord{
		Timestamp: time.Now(),
		RequestID: call.RequestID.String(),
		Endpoint:  call.Endpoint,
		Kind:      kind,
		Payload:   payload,
		Size:      len(payload),
	})
}
