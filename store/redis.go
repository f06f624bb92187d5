package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
	"github.com/geetanjaliapp/geetanjali-sub001/pkg/logging"
)

// RedisBriefCache implements consult.BriefCache on Redis. Every cache
// failure degrades to a miss; a consultation never fails because of Redis.
type RedisBriefCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string        // Redis server address (e.g., "localhost:6379")
	Password string        // Redis password (if any)
	DB       int           // Redis database number
	Prefix   string        // Key prefix for namespacing
	TTL      time.Duration // Time-to-live for cached briefs (0 means no expiration)
}

// DefaultRedisConfig returns default Redis configuration
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "geetanjali:brief:",
		TTL:    24 * time.Hour,
	}
}

// NewRedisBriefCache creates a Redis-backed brief cache.
func NewRedisBriefCache(config *RedisConfig) *RedisBriefCache {
	if config == nil {
		config = DefaultRedisConfig()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisBriefCache{
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
		logger: logging.WithComponent("briefcache"),
	}
}

// Get loads a cached brief for a case, reporting a miss on any failure.
func (c *RedisBriefCache) Get(ctx context.Context, caseID string) (*consult.Brief, bool) {
	data, err := c.client.Get(ctx, c.prefix+caseID).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("brief cache get failed", "case_id", caseID, "error", err)
		}
		return nil, false
	}
	var brief consult.Brief
	if err := json.Unmarshal(data, &brief); err != nil {
		c.logger.Warn("brief cache decode failed", "case_id", caseID, "error", err)
		return nil, false
	}
	return &brief, true
}

// Set stores a brief for a case.
func (c *RedisBriefCache) Set(ctx context.Context, caseID string, brief *consult.Brief) error {
	data, err := json.Marshal(brief)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+caseID, data, c.ttl).Err()
}

// Close releases the Redis connection.
func (c *RedisBriefCache) Close() error {
	return c.client.Close()
}

// NopBriefCache is a BriefCache that never hits; used when Redis is not
// configured.
type NopBriefCache struct{}

func (NopBriefCache) Get(context.Context, string) (*consult.Brief, bool) { return nil, false }
func (NopBriefCache) Set(context.Context, string, *consult.Brief) error  { return nil }
