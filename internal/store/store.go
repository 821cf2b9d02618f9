package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"zeb-assist-backend/internal/types"
)

// Store keeps per-session conversation history for clients that do
// not resend it themselves.
type Store interface {
	Append(ctx context.Context, sessionID string, msgs ...types.Message) error
	History(ctx context.Context, sessionID string) ([]types.Message, error)
	Close() error
}

// Type selects the history driver.
type Type string

const (
	TypeMemory Type = "memory"
	TypeRedis  Type = "redis"
)

// Option configures optional driver settings.
type Option func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
	redisTTL    time.Duration
}

func WithRedisClient(client *redis.Client) Option {
	return func(c *storeConfig) { c.redisClient = client }
}

func WithRedisTTL(ttl time.Duration) Option {
	return func(c *storeConfig) { c.redisTTL = ttl }
}

// New creates a history store for the given driver type. The redis
// driver requires WithRedisClient.
func New(storeType Type, maxMessages int, opts ...Option) (Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	switch storeType {
	case TypeMemory:
		return newMemoryStore(maxMessages), nil
	case TypeRedis:
		if cfg.redisClient == nil {
			return nil, fmt.Errorf("redis history store requires a client")
		}
		ttl := cfg.redisTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		return &redisStore{client: cfg.redisClient, maxMessages: maxMessages, ttl: ttl}, nil
	default:
		return nil, fmt.Errorf("unknown history store type %q", storeType)
	}
}
