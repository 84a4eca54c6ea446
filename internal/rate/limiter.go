package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Policy describes one fixed-window budget. Keys are Prefix + identifier.
type Policy struct {
	Prefix      string
	MaxAttempts int
	Window      time.Duration
}

// Limiter enforces fixed-window attempt budgets using Redis counters.
type Limiter struct {
	redis redis.UniversalClient
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Limiter {
	return &Limiter{redis: redisClient}
}

// Check reports [ErrRateLimited] once id has used up the policy budget.
// It does not count an attempt.
func (l *Limiter) Check(ctx context.Context, p Policy, id string) error {
	count, err := l.Attempts(ctx, p, id)
	if err != nil {
		return err
	}
	if count >= p.MaxAttempts {
		return ErrRateLimited
	}
	return nil
}

// Increment records an attempt for id and reports [ErrRateLimited] when the
// budget is now exceeded.
func (l *Limiter) Increment(ctx context.Context, p Policy, id string) error {
	count, err := l.incrementWithTTL(ctx, p.Prefix+id, p.Window)
	if err != nil {
		return err
	}
	if count > int64(p.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counters of ids. Called after a successful attempt.
func (l *Limiter) Reset(ctx context.Context, p Policy, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, p.Prefix+id)
	}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current counter for id. Missing keys return zero.
func (l *Limiter) Attempts(ctx context.Context, p Policy, id string) (int, error) {
	count, err := l.redis.Get(ctx, p.Prefix+id).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

// Guard binds a Limiter to one policy.
type Guard struct {
	limiter *Limiter
	policy  Policy
}

// Guard returns a [Guard] for p.
func (l *Limiter) Guard(p Policy) *Guard {
	return &Guard{limiter: l, policy: p}
}

// Allow reports [ErrRateLimited] when id is out of budget.
func (g *Guard) Allow(ctx context.Context, id string) error {
	return g.limiter.Check(ctx, g.policy, id)
}

// Fail counts a failed attempt for id.
func (g *Guard) Fail(ctx context.Context, id string) error {
	return g.limiter.Increment(ctx, g.policy, id)
}

// Reset clears id's counter.
func (g *Guard) Reset(ctx context.Context, id string) error {
	return g.limiter.Reset(ctx, g.policy, id)
}
