package vision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "vision:describe:"

// resultCache is the subset of the redis client the analyzer cache needs.
type resultCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedAnalyzer memoizes descriptions by image digest so resubmitting the
// same photo does not trigger another model call. Redis errors degrade to a
// direct call.
type CachedAnalyzer struct {
	next   Analyzer
	client resultCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedAnalyzer wraps an analyzer with a redis-backed result cache. A
// nil client or zero TTL disables caching.
func NewCachedAnalyzer(next Analyzer, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedAnalyzer {
	cached := &CachedAnalyzer{next: next, ttl: ttl, logger: logger}
	if client != nil {
		cached.client = client
	}
	return cached
}

// Describe serves from cache when possible, otherwise delegates and stores
// the result.
func (c *CachedAnalyzer) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	if c.client == nil || c.ttl <= 0 {
		return c.next.Describe(ctx, image, mimeType)
	}

	digest := sha256.Sum256(image)
	key := cacheKeyPrefix + hex.EncodeToString(digest[:])

	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		return cached, nil
	} else if err != redis.Nil {
		c.logger.Debug("vision cache read failed", zap.Error(err))
	}

	description, err := c.next.Describe(ctx, image, mimeType)
	if err != nil {
		return "", err
	}

	if err := c.client.Set(ctx, key, description, c.ttl).Err(); err != nil {
		c.logger.Debug("vision cache write failed", zap.Error(err))
	}
	return description, nil
}
