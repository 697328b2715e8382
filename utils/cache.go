package utils

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 5 * time.Minute

// Cache is a best-effort JSON cache over Redis. A nil *Cache, or one without
// a client, misses on every read and ignores writes.
type Cache struct {
	rc  *redis.Client
	ttl time.Duration
}

// NewCache wraps rc. A ttl <= 0 uses five minutes.
func NewCache(rc *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{rc: rc, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.rc != nil
}

// GetJSON decodes the cached value at key into v and reports whether it was found.
func (c *Cache) GetJSON(ctx context.Context, key string, v interface{}) bool {
	if !c.enabled() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			Sugar.Debugf("cache get failed key=%s err=%v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		Sugar.Warnf("cache entry undecodable key=%s err=%v", key, err)
		return false
	}
	return true
}

// SetJSON stores v at key with the cache TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}) {
	if !c.enabled() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.rc.Set(ctx, key, b, c.ttl).Err(); err != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
func (c *Cache) InvalidateByPrefix(ctx context.Context, prefix string) {
	if !c.enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // bounded rounds
		keys, next, err := c.rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			Sugar.Warnf("cache invalidate failed prefix=%s err=%v", prefix, err)
			return
		}
		if len(keys) > 0 {
			pipe := c.rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
