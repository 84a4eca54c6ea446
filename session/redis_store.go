package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const insertSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SADD", KEYS[2], ARGV[3])
if redis.call("PTTL", KEYS[2]) < tonumber(ARGV[2]) then
  redis.call("PEXPIRE", KEYS[2], ARGV[2])
end
return 1
`

// The user index lives as long as its longest-lived record.
const indexSessionScript = `
redis.call("SADD", KEYS[1], ARGV[1])
if redis.call("PTTL", KEYS[1]) < tonumber(ARGV[2]) then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 1
`

var (
	insertSessionLua = redis.NewScript(insertSessionScript)
	indexSessionLua  = redis.NewScript(indexSessionScript)
)

// minRecordTTL keeps Redis from rejecting a zero or negative PX when the
// session is created right at its expiry boundary.
const minRecordTTL = time.Millisecond

type sessionRecord struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	ExpiresAt      int64  `json:"expires_at"`
	UserAgent      string `json:"user_agent,omitempty"`
	IPAddress      string `json:"ip,omitempty"`
	ImpersonatedBy string `json:"impersonated_by,omitempty"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

func toRecord(s *Session) sessionRecord {
	return sessionRecord{
		ID:             s.ID,
		UserID:         s.UserID,
		ExpiresAt:      s.ExpiresAt.UnixMilli(),
		UserAgent:      s.UserAgent,
		IPAddress:      s.IPAddress,
		ImpersonatedBy: s.ImpersonatedBy,
		CreatedAt:      s.CreatedAt.UnixMilli(),
		UpdatedAt:      s.UpdatedAt.UnixMilli(),
	}
}

func (r sessionRecord) session(tokenHash string) *Session {
	return &Session{
		ID:             r.ID,
		TokenHash:      tokenHash,
		UserID:         r.UserID,
		ExpiresAt:      time.UnixMilli(r.ExpiresAt),
		UserAgent:      r.UserAgent,
		IPAddress:      r.IPAddress,
		ImpersonatedBy: r.ImpersonatedBy,
		CreatedAt:      time.UnixMilli(r.CreatedAt),
		UpdatedAt:      time.UnixMilli(r.UpdatedAt),
	}
}

// RedisStore keeps one JSON record per encoded token at <prefix>:<tokenHash>
// and a per-user index set at <prefix>u:<userID>. Records carry a Redis TTL
// matching their expiry so abandoned sessions disappear without a sweeper.
// The index set expires with its longest-lived record and drops members
// whose record is gone whenever it is listed.
// User records are resolved through a [UserLookup].
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	users  UserLookup
	now    func() time.Time
}

// RedisStoreOption configures a [RedisStore].
type RedisStoreOption func(*RedisStore)

// WithStoreClock overrides the clock used to derive record TTLs.
func WithStoreClock(now func() time.Time) RedisStoreOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRedisStore creates a [RedisStore]. An empty prefix defaults to "hs".
func NewRedisStore(client redis.UniversalClient, prefix string, users UserLookup, opts ...RedisStoreOption) *RedisStore {
	if prefix == "" {
		prefix = "hs"
	}
	s := &RedisStore{redis: client, prefix: prefix, users: users, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + ":" + tokenHash
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + "u:" + userID
}

func (s *RedisStore) ttlUntil(expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(s.now())
	if ttl < minRecordTTL {
		return minRecordTTL
	}
	return ttl
}

// Insert stores sess. A record already present under the same token hash is
// left untouched and [ErrDuplicateToken] is returned.
//
//	Performance: 1 Lua round trip (EXISTS + SET + SADD + PEXPIRE).
func (s *RedisStore) Insert(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(toRecord(sess))
	if err != nil {
		return err
	}

	created, err := insertSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sess.TokenHash), s.userKey(sess.UserID)},
		data,
		s.ttlUntil(sess.ExpiresAt).Milliseconds(),
		sess.TokenHash,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if created == 0 {
		return ErrDuplicateToken
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, tokenHash string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: corrupt session record: %v", ErrStoreUnavailable, err)
	}
	return rec.session(tokenHash), nil
}

// FindWithUser loads the session and its owning user. A user that no longer
// exists is reported as a nil *User.
//
//	Performance: 1 Redis GET plus one UserLookup call.
func (s *RedisStore) FindWithUser(ctx context.Context, tokenHash string) (*Session, *User, error) {
	sess, err := s.load(ctx, tokenHash)
	if err != nil {
		return nil, nil, err
	}
	if s.users == nil {
		return sess, nil, nil
	}

	u, err := s.users.UserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return sess, nil, nil
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return sess, u, nil
}

// UpdateExpiry moves the session expiry and its Redis TTL, stretching the
// user index when needed. Concurrent renewals are last-write-wins.
func (s *RedisStore) UpdateExpiry(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	sess, err := s.load(ctx, tokenHash)
	if err != nil {
		return err
	}
	sess.ExpiresAt = expiresAt
	sess.UpdatedAt = s.now()

	data, err := json.Marshal(toRecord(sess))
	if err != nil {
		return err
	}

	ttl := s.ttlUntil(expiresAt)
	err = s.redis.SetArgs(ctx, s.key(tokenHash), data, redis.SetArgs{
		Mode: "XX",
		TTL:  ttl,
	}).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	err = indexSessionLua.Run(ctx, s.redis, []string{s.userKey(sess.UserID)}, tokenHash, ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteByToken removes the session and its index entry. Deleting a missing
// session is not an error.
func (s *RedisStore) DeleteByToken(ctx context.Context, tokenHash string) error {
	sess, err := s.load(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(tokenHash))
		pipe.SRem(ctx, s.userKey(sess.UserID), tokenHash)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteByUser removes every indexed session of userID.
//
// The index is read before the delete transaction, so a session inserted in
// between survives until its own expiry or the next call.
func (s *RedisStore) DeleteByUser(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)

	hashes, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, s.key(h))
	}
	keys = append(keys, userKey)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ActiveTokenHashes returns the indexed token hashes for userID. Members
// whose record already expired are removed from the index and not returned.
//
//	Performance: SMEMBERS plus one pipelined EXISTS per member.
func (s *RedisStore) ActiveTokenHashes(ctx context.Context, userID string) ([]string, error) {
	userKey := s.userKey(userID)
	hashes, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(hashes) == 0 {
		return []string{}, nil
	}

	checks := make([]*redis.IntCmd, len(hashes))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, h := range hashes {
			checks[i] = pipe.Exists(ctx, s.key(h))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	live := make([]string, 0, len(hashes))
	var stale []any
	for i, h := range hashes {
		if checks[i].Val() == 1 {
			live = append(live, h)
			continue
		}
		stale = append(stale, h)
	}
	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, userKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return live, nil
}
