package permission

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryCacheRetention(t *testing.T) {
	clock := newTestClock()
	c := NewMemoryCache(clock.Now)
	ctx := context.Background()

	if err := c.Set(ctx, "u1", Entry{Snapshot: sellerSnapshot(), CapturedAt: clock.Now()}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "u1"); !ok {
		t.Fatal("expected entry")
	}

	clock.Advance(time.Minute)
	if _, ok, _ := c.Get(ctx, "u1"); ok {
		t.Fatal("entry past retention must read as absent")
	}
	if c.Len() != 0 {
		t.Fatal("expired entry must be dropped")
	}
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()

	snap := sellerSnapshot()
	if err := c.Set(ctx, "u1", Entry{Snapshot: snap, CapturedAt: time.Now()}, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	snap.RoleAccess["biz-c"].Actions[0] = "mutated"

	e, ok, err := c.Get(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if e.Snapshot.RoleAccess["biz-c"].Actions[0] != "product:read" {
		t.Fatal("cache must not share slices with the caller")
	}

	e.Snapshot.ShopAccess["new"] = ShopAccess{}
	again, _, _ := c.Get(ctx, "u1")
	if _, ok := again.Snapshot.ShopAccess["new"]; ok {
		t.Fatal("mutating a returned entry must not affect the cache")
	}

	if err := c.Clear(ctx, "u1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "u1"); ok {
		t.Fatal("cleared entry must be absent")
	}
}

func TestRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := NewRedisCache(rdb, "hp")
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "u1"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	captured := time.UnixMilli(time.Now().UnixMilli())
	if err := c.Set(ctx, "u1", Entry{Snapshot: sellerSnapshot(), CapturedAt: captured}, 2*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if ttl := mr.TTL("hp:u1"); ttl != 2*time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	e, ok, err := c.Get(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if !e.CapturedAt.Equal(captured) {
		t.Fatalf("captured at mismatch: %v vs %v", e.CapturedAt, captured)
	}
	if !e.Snapshot.ShopAccess["shop-1"].Owned || !e.Snapshot.RoleAccess["biz-c"].HasAction("product:read") {
		t.Fatalf("snapshot did not round trip: %+v", e.Snapshot)
	}

	mr.FastForward(3 * time.Minute)
	if _, ok, _ := c.Get(ctx, "u1"); ok {
		t.Fatal("entry must expire with its retention")
	}

	if err := mr.Set("hp:u2", "{not json"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, ok, err := c.Get(ctx, "u2"); ok || err != nil {
		t.Fatalf("corrupt entry must read as a miss, got ok=%v err=%v", ok, err)
	}
}

func TestCheckerOverRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	res := &countingResolver{inner: staticResolver{snap: sellerSnapshot()}}
	c := NewChecker(NewRedisCache(rdb, ""), res)
	ctx := context.Background()

	if err := c.Init(ctx, "user-u"); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := c.Init(ctx, "user-u"); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if res.calls.Load() != 1 {
		t.Fatalf("expected one resolution, got %d", res.calls.Load())
	}
	if !c.Can(ctx, subject("shop-2"), ActionRead, ResourceProduct) {
		t.Fatal("expected grant from redis-backed cache")
	}

	mr.Close()
	if c.Can(ctx, subject("shop-1"), ActionRead, ResourceProduct) {
		t.Fatal("unreadable cache must deny")
	}
	if !c.HasRestriction(ctx, subject("shop-1"), RestrictReadOnly) {
		t.Fatal("unreadable cache must restrict")
	}
}
