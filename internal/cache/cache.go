// Package cache provides a keyed byte cache for web search results.
// Supports both local (file) and Redis backends for multi-instance deployments.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache defines the interface for result cache storage.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves the value stored under key.
	// Returns nil, false, nil on a miss or when the entry has expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key string, value []byte) error

	// Close releases any resources held by the cache.
	Close() error
}

// Backend types
const (
	TypeLocal = "local"
	TypeRedis = "redis"
	TypeNone  = "none"
)

// DefaultTTL is the lifetime of a cached entry when none is configured.
const DefaultTTL = 6 * time.Hour

// Config selects and configures a cache backend.
type Config struct {
	Type  string
	TTL   time.Duration
	Local LocalConfig
	Redis RedisConfig
}

// New builds the cache backend named by cfg.Type.
// An empty type or "none" disables caching and returns nil, nil.
func New(cfg Config) (Cache, error) {
	switch cfg.Type {
	case "", TypeNone:
		return nil, nil
	case TypeLocal:
		if cfg.Local.TTL == 0 {
			cfg.Local.TTL = cfg.TTL
		}
		return NewLocalCache(cfg.Local)
	case TypeRedis:
		if cfg.Redis.TTL == 0 {
			cfg.Redis.TTL = cfg.TTL
		}
		return NewRedisCache(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown cache type: %q", cfg.Type)
	}
}
