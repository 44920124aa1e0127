// Package cache provides an optional, TTL-bound Redis cache for the
// grouper's tokenized keyword sets (spec.md §6's "Optional Redis for
// keyword cache"). Its absence or failure must never fail the calling
// operation: every lookup degrades to "not cached" instead of propagating
// an error, matching the graceful-degradation contract the original
// mapper's Redis cache enforced around every Redis call.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is used when New is given ttl <= 0.
const DefaultTTL = 24 * time.Hour

// KeywordCache wraps a Redis client with the grouper's get/set keyword
// contract. A nil *KeywordCache is valid and behaves as "always miss,
// writes are no-ops", so callers never need to branch on whether REDIS_URL
// was configured.
type KeywordCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New dials addr (a redis:// URL) and pings it once, so a misconfigured
// REDIS_URL fails fast at startup instead of silently missing on every
// lookup later. Every operation after a successful New degrades gracefully
// instead of failing its caller.
func New(addr string, ttl time.Duration) (*KeywordCache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	opt, err := redis.ParseURL(addr)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &KeywordCache{client: client, ttl: ttl}, nil
}

// GetKeywords returns (keywords, true) on a cache hit. A miss, a connection
// failure, or a corrupt payload all report (nil, false) — the grouper
// always has a correct fallback (tokenizing the text itself), so a cache
// problem only costs CPU, never correctness.
func (c *KeywordCache) GetKeywords(ctx context.Context, key string) ([]string, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("cache: get %s: %v", key, err)
		}
		return nil, false
	}
	var keywords []string
	if err := json.Unmarshal(raw, &keywords); err != nil {
		log.Printf("cache: decode %s: %v", key, err)
		return nil, false
	}
	return keywords, true
}

// SetKeywords stores keywords under key with the cache's configured TTL.
// Failures are logged, never returned: a write is best-effort housekeeping,
// not part of the grouper's correctness contract.
func (c *KeywordCache) SetKeywords(ctx context.Context, key string, keywords []string) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(keywords)
	if err != nil {
		log.Printf("cache: encode %s: %v", key, err)
		return
	}
	if err := c.client.SetEx(ctx, cacheKey(key), raw, c.ttl).Err(); err != nil {
		log.Printf("cache: set %s: %v", key, err)
	}
}

// Close releases the underlying connection pool. Safe to call on a nil
// receiver.
func (c *KeywordCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func cacheKey(key string) string {
	return "governance-indexer:keywords:" + key
}
