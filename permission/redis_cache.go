package permission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type cachedEntry struct {
	Snapshot   Snapshot `json:"s"`
	CapturedAt int64    `json:"t"`
}

// RedisCache shares permission entries across processes. Each entry is a
// JSON document at <prefix>:<userID>.
type RedisCache struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisCache creates a RedisCache. An empty prefix defaults to "hp".
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "hp"
	}
	return &RedisCache{redis: client, prefix: prefix}
}

func (c *RedisCache) key(userID string) string {
	return c.prefix + ":" + userID
}

func (c *RedisCache) Get(ctx context.Context, userID string) (Entry, bool, error) {
	data, err := c.redis.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	var ce cachedEntry
	if err := json.Unmarshal(data, &ce); err != nil {
		// corrupt entries read as absent so the checker recomputes
		return Entry{}, false, nil
	}
	snap := ce.Snapshot
	if snap.RoleAccess == nil {
		snap.RoleAccess = make(map[string]RoleAccess)
	}
	if snap.ShopAccess == nil {
		snap.ShopAccess = make(map[string]ShopAccess)
	}
	return Entry{Snapshot: snap, CapturedAt: time.UnixMilli(ce.CapturedAt)}, true, nil
}

// Set writes the entry with SET PX ttl. ttl <= 0 stores it without expiry.
func (c *RedisCache) Set(ctx context.Context, userID string, entry Entry, ttl time.Duration) error {
	data, err := json.Marshal(cachedEntry{Snapshot: entry.Snapshot, CapturedAt: entry.CapturedAt.UnixMilli()})
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.redis.Set(ctx, c.key(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func (c *RedisCache) Clear(ctx context.Context, userID string) error {
	if err := c.redis.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
