package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*miniredis.Miniredis, *Limiter) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, New(rdb)
}

func TestFixedWindow(t *testing.T) {
	mr, l := newTestLimiter(t)
	ctx := context.Background()
	p := Policy{Prefix: "hov:", MaxAttempts: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		if err := l.Check(ctx, p, "u1:auth"); err != nil {
			t.Fatalf("attempt %d blocked early: %v", i, err)
		}
		if err := l.Increment(ctx, p, "u1:auth"); err != nil {
			t.Fatalf("increment %d failed: %v", i, err)
		}
	}
	if err := l.Check(ctx, p, "u1:auth"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Increment(ctx, p, "u1:auth"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on increment, got %v", err)
	}
	if ttl := mr.TTL("hov:u1:auth"); ttl != time.Minute {
		t.Fatalf("window ttl must be set on first hit only, got %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.Check(ctx, p, "u1:auth"); err != nil {
		t.Fatalf("window must reset, got %v", err)
	}
}

func TestGuardReset(t *testing.T) {
	_, l := newTestLimiter(t)
	ctx := context.Background()
	g := l.Guard(Policy{Prefix: "hsl:", MaxAttempts: 1, Window: time.Minute})

	if err := g.Fail(ctx, "alice"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	if err := g.Allow(ctx, "alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := g.Reset(ctx, "alice"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := g.Allow(ctx, "alice"); err != nil {
		t.Fatalf("expected reset budget, got %v", err)
	}
	if n, err := l.Attempts(ctx, Policy{Prefix: "hsl:"}, "alice"); err != nil || n != 0 {
		t.Fatalf("expected zero attempts, got %d (%v)", n, err)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	mr, l := newTestLimiter(t)
	mr.Close()
	err := l.Check(context.Background(), Policy{Prefix: "x:", MaxAttempts: 1, Window: time.Second}, "id")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
