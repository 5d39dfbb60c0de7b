package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis connection used by the quote cache.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration. An empty URL disables the cache.
type Config struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	QuoteTTL time.Duration `yaml:"quote_ttl"`
	Prefix   string        `yaml:"prefix"`
}

// NewClient connects to Redis and verifies the connection within 5s.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// NewClientFromRedis wraps an existing go-redis client.
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Ping reports whether the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
