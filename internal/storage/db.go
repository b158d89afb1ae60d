package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"apimonitor/internal/config"
)

// DB wraps the database connection pool and the per-table lookup key
// caches shared by the resolver.
type DB struct {
	conn *sqlx.DB

	methodCache      *LRUCache
	errorSourceCache *LRUCache
	environmentCache *LRUCache
	fileTypeCache    *LRUCache
}

// NewDB opens a connection pool from the configured URL and sizes the
// lookup caches.
func NewDB(dbCfg config.DatabaseConfig, lookupCfg config.LookupCacheConfig) (*DB, error) {
	conn, err := sqlx.Connect("postgres", dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetMaxOpenConns(dbCfg.MaxOpenConns)
	conn.SetMaxIdleConns(dbCfg.MaxIdleConns)
	conn.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(dbCfg.ConnMaxIdleTime)

	return &DB{
		conn:             conn,
		methodCache:      NewLRUCache(lookupCfg.Size, lookupCfg.TTL),
		errorSourceCache: NewLRUCache(lookupCfg.Size, lookupCfg.TTL),
		environmentCache: NewLRUCache(lookupCfg.Size, lookupCfg.TTL),
		fileTypeCache:    NewLRUCache(lookupCfg.Size, lookupCfg.TTL),
	}, nil
}

// Close closes the database connection and clears the lookup caches
func (db *DB) Close() error {
	db.methodCache.Clear()
	db.errorSourceCache.Clear()
	db.environmentCache.Clear()
	db.fileTypeCache.Clear()
	return db.conn.Close()
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Health returns the health status of the database
func (db *DB) Health(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := db.conn.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}

	return nil
}

// DBStats reports pool and cache statistics
type DBStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration

	MethodCacheStats      CacheStats
	ErrorSourceCacheStats CacheStats
	EnvironmentCacheStats CacheStats
	FileTypeCacheStats    CacheStats
}

// GetStats returns current database and cache statistics
func (db *DB) GetStats() DBStats {
	stats := db.conn.Stats()

	return DBStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,

		MethodCacheStats:      db.methodCache.GetStats(),
		ErrorSourceCacheStats: db.errorSourceCache.GetStats(),
		EnvironmentCacheStats: db.environmentCache.GetStats(),
		FileTypeCacheStats:    db.fileTypeCache.GetStats(),
	}
}

// Conn returns the underlying sqlx connection
// Use this for custom queries not covered by repositories
func (db *DB) Conn() *sqlx.DB {
	return db.conn
}
