package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the API call monitor.
type Config struct {
	Database DatabaseConfig
	Queue    QueueConfig
	Worker   WorkerConfig
	Lookup   LookupCacheConfig
	Archive  ArchiveConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// QueueConfig selects and tunes the submission queue backend.
// The in-memory queue is the default; the Redis backend keeps queued
// records across restarts at the cost of a network hop on submit.
type QueueConfig struct {
	Name          string
	UseRedis      bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// WorkerConfig tunes the background persistence worker.
type WorkerConfig struct {
	// BatchSize is how many queued records one dequeue may hand over.
	// Records are still inserted one transaction each.
	BatchSize int

	// PollInterval bounds how long the worker waits on an empty queue
	// before re-checking for a stop signal.
	PollInterval time.Duration

	// DrainTimeout bounds how long Shutdown waits for the worker to
	// finish draining before giving up on the join.
	DrainTimeout time.Duration
}

// LookupCacheConfig tunes the per-table lookup key caches.
type LookupCacheConfig struct {
	Size int
	TTL  time.Duration
}

// ArchiveConfig holds configuration for the optional S3 payload archive
type ArchiveConfig struct {
	Enabled       bool
	BufferSize    int
	FlushSize     int
	FlushInterval time.Duration
	S3Bucket      string
	S3Region      string
	S3Prefix      string
	NodeName      string
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

// Load reads configuration from environment variables, once, at
// monitor construction.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Queue: QueueConfig{
			Name:          getEnvString("QUEUE_NAME", "api-calls"),
			UseRedis:      getEnvBool("QUEUE_USE_REDIS", false),
			RedisAddr:     getEnvString("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnvString("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
		},
		Worker: WorkerConfig{
			BatchSize:    getEnvInt("WORKER_BATCH_SIZE", 100),
			PollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 1*time.Second),
			DrainTimeout: getEnvDuration("WORKER_DRAIN_TIMEOUT", 5*time.Second),
		},
		Lookup: LookupCacheConfig{
			Size: getEnvInt("LOOKUP_CACHE_SIZE", 256),
			TTL:  getEnvDuration("LOOKUP_CACHE_TTL", 15*time.Minute),
		},
		Archive: ArchiveConfig{
			Enabled:       getEnvBool("ARCHIVE_ENABLED", false),
			BufferSize:    getEnvInt("ARCHIVE_BUFFER_SIZE", 1000),
			FlushSize:     getEnvInt("ARCHIVE_FLUSH_SIZE", 100),
			FlushInterval: getEnvDuration("ARCHIVE_FLUSH_INTERVAL", 1*time.Minute),
			S3Bucket:      getEnvString("ARCHIVE_S3_BUCKET", ""),
			S3Region:      getEnvString("ARCHIVE_S3_REGION", "us-east-1"),
			S3Prefix:      getEnvString("ARCHIVE_S3_PREFIX", "api-calls/"),
			NodeName:      getEnvString("ARCHIVE_NODE_NAME", defaultNodeName()),
		},
	}

	if cfg.Archive.Enabled && cfg.Archive.S3Bucket == "" {
		return nil, fmt.Errorf("ARCHIVE_S3_BUCKET is required when ARCHIVE_ENABLED is set")
	}

	return cfg, nil
}

// Default returns a configuration with all defaults applied and the
// given database URL. Useful for explicit construction in tests and
// embedding applications that do not use environment configuration.
func Default(databaseURL string) *Config {
	cfg := &Config{
		Database: DatabaseConfig{
			URL:             databaseURL,
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 1 * time.Minute,
		},
		Queue: QueueConfig{
			Name: "api-calls",
		},
		Worker: WorkerConfig{
			BatchSize:    100,
			PollInterval: 1 * time.Second,
			DrainTimeout: 5 * time.Second,
		},
		Lookup: LookupCacheConfig{
			Size: 256,
			TTL:  15 * time.Minute,
		},
		Archive: ArchiveConfig{
			BufferSize:    1000,
			FlushSize:     100,
			FlushInterval: 1 * time.Minute,
			S3Region:      "us-east-1",
			S3Prefix:      "api-calls/",
			NodeName:      defaultNodeName(),
		},
	}
	return cfg
}

func defaultNodeName() string {
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "api-monitor"
}
