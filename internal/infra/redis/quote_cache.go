package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/quoting/metrics"
)

const defaultPrefix = "swapquote"

// QuoteKey identifies a cacheable quote invocation. BlockNumber zero means
// the invocation was not pinned and tracks the chain head.
type QuoteKey struct {
	ChainID     domain.ChainID   `json:"chain_id"`
	TradeType   domain.TradeType `json:"trade_type"`
	Routes      []domain.Route   `json:"routes"`
	Amounts     []*big.Int       `json:"amounts"`
	BlockNumber uint64           `json:"block_number"`
}

// Hash returns a stable digest of the key.
func (k QuoteKey) Hash() (string, error) {
	data, err := json.Marshal(k)
	if err != nil {
		return "", fmt.Errorf("marshal quote key: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// QuoteCache stores quote results for a short TTL.
type QuoteCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewQuoteCache creates a cache on top of client.
func NewQuoteCache(client *Client, cfg Config) *QuoteCache {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &QuoteCache{rdb: client.rdb, ttl: cfg.QuoteTTL, prefix: prefix}
}

func (c *QuoteCache) key(k QuoteKey) (string, error) {
	h, err := k.Hash()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:quote:%d:%s", c.prefix, k.ChainID, h), nil
}

// Get returns the cached result for k. A miss is (nil, false, nil).
func (c *QuoteCache) Get(ctx context.Context, k QuoteKey) (*domain.QuoteResult, bool, error) {
	key, err := c.key(k)
	if err != nil {
		return nil, false, err
	}

	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.QuoteCacheLookups.WithLabelValues(k.ChainID.String(), "miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.QuoteCacheLookups.WithLabelValues(k.ChainID.String(), "error").Inc()
		return nil, false, fmt.Errorf("get failed: %w", err)
	}

	var result domain.QuoteResult
	if err := json.Unmarshal(data, &result); err != nil {
		metrics.QuoteCacheLookups.WithLabelValues(k.ChainID.String(), "error").Inc()
		return nil, false, fmt.Errorf("failed to unmarshal cached quote: %w", err)
	}
	metrics.QuoteCacheLookups.WithLabelValues(k.ChainID.String(), "hit").Inc()
	return &result, true, nil
}

// Set stores result under k.
func (c *QuoteCache) Set(ctx context.Context, k QuoteKey, result *domain.QuoteResult) error {
	key, err := c.key(k)
	if err != nil {
		return err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// Invalidate removes every cached quote for chainID.
func (c *QuoteCache) Invalidate(ctx context.Context, chainID domain.ChainID) (int, error) {
	pattern := fmt.Sprintf("%s:quote:%d:*", c.prefix, chainID)
	var removed int
	iter := c.rdb.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("del failed: %w", err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan failed: %w", err)
	}
	return removed, nil
}
