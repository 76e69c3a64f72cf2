package search

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cached memoises search results in redis. Sequential missions frequently
// replay the same queries (plans repeat variants, escalation re-runs them);
// caching keeps that cheap without touching the orchestration core.
type Cached struct {
	inner  Client
	rdb    *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewCached wraps inner with a redis cache. A nil redis client disables
// caching and returns the inner client unchanged.
func NewCached(inner Client, rdb *redis.Client, ttl time.Duration) Client {
	if rdb == nil {
		return inner
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cached{
		inner:  inner,
		rdb:    rdb,
		ttl:    ttl,
		logger: log.New(log.Writer(), "[SEARCH-CACHE] ", log.LstdFlags),
	}
}

func (c *Cached) Search(ctx context.Context, query string) string {
	key := cacheKey("search", query)
	if hit, err := c.rdb.Get(ctx, key).Result(); err == nil && hit != "" {
		return hit
	}
	res := c.inner.Search(ctx, query)
	c.store(ctx, key, res)
	return res
}

func (c *Cached) SearchPrices(ctx context.Context, product string, year int) string {
	key := cacheKey("prices", fmt.Sprintf("%s:%d", product, year))
	if hit, err := c.rdb.Get(ctx, key).Result(); err == nil && hit != "" {
		return hit
	}
	res := c.inner.SearchPrices(ctx, product, year)
	c.store(ctx, key, res)
	return res
}

// store skips error-ish results so a transient failure is not pinned for the
// full TTL.
func (c *Cached) store(ctx context.Context, key, res string) {
	if strings.HasPrefix(res, "Search error:") || strings.HasPrefix(res, "Error:") {
		return
	}
	if err := c.rdb.Set(ctx, key, res, c.ttl).Err(); err != nil {
		c.logger.Printf("cache set failed: %v", err)
	}
}

func cacheKey(prefix, payload string) string {
	sum := sha1.Sum([]byte(payload))
	return "mia:" + prefix + ":" + hex.EncodeToString(sum[:])
}
