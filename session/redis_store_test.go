package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T, users UserLookup) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, NewRedisStore(rdb, "hs", users)
}

func sampleSession(tokenHash, userID string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        "01J0000000000000000000000" + tokenHash[:1],
		TokenHash: tokenHash,
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		UserAgent: "test-agent",
		IPAddress: "192.0.2.7",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRedisStoreInsertAndFind(t *testing.T) {
	mr, store := newRedisStore(t, NewUserMap(alice))
	ctx := context.Background()

	sess := sampleSession("aaaa", alice.ID, 30*time.Minute)
	if err := store.Insert(ctx, sess); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if ttl := mr.TTL("hs:aaaa"); ttl <= 29*time.Minute || ttl > 30*time.Minute {
		t.Fatalf("unexpected record ttl %v", ttl)
	}
	if ok, _ := mr.SIsMember("hsu:"+alice.ID, "aaaa"); !ok {
		t.Fatal("expected token hash in user index")
	}

	got, u, err := store.FindWithUser(ctx, "aaaa")
	if err != nil {
		t.Fatalf("FindWithUser failed: %v", err)
	}
	if got.ID != sess.ID || got.UserAgent != "test-agent" || got.IPAddress != "192.0.2.7" {
		t.Fatalf("unexpected session %+v", got)
	}
	if got.ExpiresAt.UnixMilli() != sess.ExpiresAt.UnixMilli() {
		t.Fatalf("expiry mismatch: %v vs %v", got.ExpiresAt, sess.ExpiresAt)
	}
	if u == nil || u.ID != alice.ID {
		t.Fatalf("expected joined user, got %+v", u)
	}
}

func TestRedisStoreDuplicate(t *testing.T) {
	_, store := newRedisStore(t, NewUserMap(alice))
	ctx := context.Background()

	if err := store.Insert(ctx, sampleSession("bbbb", alice.ID, time.Minute)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, sampleSession("bbbb", alice.ID, time.Minute)); !errors.Is(err, ErrDuplicateToken) {
		t.Fatalf("expected ErrDuplicateToken, got %v", err)
	}
}

func TestRedisStoreMissingUser(t *testing.T) {
	users := NewUserMap(alice)
	_, store := newRedisStore(t, users)
	ctx := context.Background()

	if err := store.Insert(ctx, sampleSession("cccc", alice.ID, time.Minute)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	users.Remove(alice.ID)

	sess, u, err := store.FindWithUser(ctx, "cccc")
	if err != nil {
		t.Fatalf("FindWithUser failed: %v", err)
	}
	if sess == nil || u != nil {
		t.Fatalf("expected session without user, got %+v / %+v", sess, u)
	}
}

func TestRedisStoreExpiresRecord(t *testing.T) {
	mr, store := newRedisStore(t, NewUserMap(alice))
	ctx := context.Background()

	if err := store.Insert(ctx, sampleSession("dddd", alice.ID, time.Minute)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, _, err := store.FindWithUser(ctx, "dddd"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestRedisStoreUpdateExpiry(t *testing.T) {
	mr, store := newRedisStore(t, NewUserMap(alice))
	ctx := context.Background()

	if err := store.Insert(ctx, sampleSession("eeee", alice.ID, time.Minute)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	next := time.Now().Add(time.Hour)
	if err := store.UpdateExpiry(ctx, "eeee", next); err != nil {
		t.Fatalf("UpdateExpiry failed: %v", err)
	}
	if ttl := mr.TTL("hs:eeee"); ttl <= 59*time.Minute {
		t.Fatalf("expected extended ttl, got %v", ttl)
	}

	got, _, err := store.FindWithUser(ctx, "eeee")
	if err != nil {
		t.Fatalf("FindWithUser failed: %v", err)
	}
	if got.ExpiresAt.UnixMilli() != next.UnixMilli() {
		t.Fatalf("expiry not persisted: %v", got.ExpiresAt)
	}

	if err := store.UpdateExpiry(ctx, "missing", next); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStoreDeletes(t *testing.T) {
	mr, store := newRedisStore(t, NewUserMap(alice))
	ctx := context.Background()

	for _, h := range []string{"f1", "f2", "f3"} {
		if err := store.Insert(ctx, sampleSession(h, alice.ID, time.Minute)); err != nil {
			t.Fatalf("Insert %s failed: %v", h, err)
		}
	}

	if err := store.DeleteByToken(ctx, "f1"); err != nil {
		t.Fatalf("DeleteByToken failed: %v", err)
	}
	if mr.Exists("hs:f1") {
		t.Fatal("record f1 still present")
	}
	if ok, _ := mr.SIsMember("hsu:"+alice.ID, "f1"); ok {
		t.Fatal("f1 still indexed")
	}
	if err := store.DeleteByToken(ctx, "f1"); err != nil {
		t.Fatalf("deleting a missing session must succeed: %v", err)
	}

	hashes, err := store.ActiveTokenHashes(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ActiveTokenHashes failed: %v", err)
	}
	if len(hashes) != 2 {
		t.Fatalf("expected 2 indexed sessions, got %v", hashes)
	}

	if err := store.DeleteByUser(ctx, alice.ID); err != nil {
		t.Fatalf("DeleteByUser failed: %v", err)
	}
	if mr.Exists("hs:f2") || mr.Exists("hs:f3") || mr.Exists("hsu:"+alice.ID) {
		t.Fatal("expected all user sessions removed")
	}
}

func TestManagerOverRedisStore(t *testing.T) {
	_, store := newRedisStore(t, NewUserMap(alice))
	m, err := NewManager(store, 15*time.Minute)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	ctx := context.Background()

	if _, err := m.Create(ctx, "redis-token", alice.ID, Meta{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	id, err := m.Validate(ctx, "redis-token")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if id.ID != alice.ID {
		t.Fatalf("unexpected identity %+v", id)
	}
	if err := m.Invalidate(ctx, "redis-token"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, err := m.Validate(ctx, "redis-token"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
}

func TestRedisStoreUserIndexLifetime(t *testing.T) {
	mr, store := newRedisStore(t, NewUserMap(alice))
	ctx := context.Background()
	index := "hsu:" + alice.ID

	if err := store.Insert(ctx, sampleSession("g1", alice.ID, time.Minute)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if ttl := mr.TTL(index); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("index ttl = %v, want within the first record's lifetime", ttl)
	}
	if err := store.Insert(ctx, sampleSession("g2", alice.ID, 10*time.Minute)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if ttl := mr.TTL(index); ttl <= 9*time.Minute {
		t.Fatalf("index ttl = %v, want stretched to the longest record", ttl)
	}
	if err := store.Insert(ctx, sampleSession("g3", alice.ID, 2*time.Minute)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if ttl := mr.TTL(index); ttl <= 9*time.Minute {
		t.Fatalf("shorter record shrank index ttl to %v", ttl)
	}

	mr.FastForward(3 * time.Minute)
	hashes, err := store.ActiveTokenHashes(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ActiveTokenHashes failed: %v", err)
	}
	if len(hashes) != 1 || hashes[0] != "g2" {
		t.Fatalf("expected only g2 live, got %v", hashes)
	}
	for _, h := range []string{"g1", "g3"} {
		if ok, _ := mr.SIsMember(index, h); ok {
			t.Fatalf("expired %s still indexed", h)
		}
	}

	if err := store.UpdateExpiry(ctx, "g2", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("UpdateExpiry failed: %v", err)
	}
	if ttl := mr.TTL(index); ttl <= 59*time.Minute {
		t.Fatalf("renewal must stretch the index, got %v", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if mr.Exists(index) {
		t.Fatal("index must expire with its last record")
	}
	hashes, err = store.ActiveTokenHashes(ctx, alice.ID)
	if err != nil || len(hashes) != 0 {
		t.Fatalf("expected empty index, got %v (%v)", hashes, err)
	}
}
