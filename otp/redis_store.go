package otp

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const consumeScript = `
if redis.call("HGET", KEYS[1], "code") == ARGV[1] then
  redis.call("DEL", KEYS[1])
  return 1
end
return 0
`

var consumeLua = redis.NewScript(consumeScript)

// RedisStore keeps each record as a hash at <prefix>:<userID>:<type> that
// expires together with the code.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a RedisStore. An empty prefix defaults to "ho".
// A nil now uses time.Now.
func NewRedisStore(client redis.UniversalClient, prefix string, now func() time.Time) *RedisStore {
	if prefix == "" {
		prefix = "ho"
	}
	if now == nil {
		now = time.Now
	}
	return &RedisStore{redis: client, prefix: prefix, now: now}
}

func (s *RedisStore) key(userID string, t Type) string {
	return s.prefix + ":" + userID + ":" + string(t)
}

func (s *RedisStore) FindByUserType(ctx context.Context, userID string, t Type) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(userID, t)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	rec := &Record{
		ID:     fields["id"],
		UserID: userID,
		Code:   fields["code"],
		Type:   t,
	}
	rec.ExpiresAt = parseMillis(fields["expires_at"])
	rec.CreatedAt = parseMillis(fields["created_at"])
	rec.UpdatedAt = parseMillis(fields["updated_at"])
	return rec, nil
}

func parseMillis(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func (s *RedisStore) FindByCode(ctx context.Context, userID, code string, t Type) (*Record, error) {
	rec, err := s.FindByUserType(ctx, userID, t)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Save writes rec over whatever the (user, type) slot held.
func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	key := s.key(rec.UserID, rec.Type)
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"id", rec.ID,
			"code", rec.Code,
			"expires_at", millis(rec.ExpiresAt),
			"created_at", millis(rec.CreatedAt),
			"updated_at", millis(rec.UpdatedAt),
		)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, rec *Record) (bool, error) {
	n, err := consumeLua.Run(ctx, s.redis, []string{s.key(rec.UserID, rec.Type)}, rec.Code).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n == 1, nil
}
