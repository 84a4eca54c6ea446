package main

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestConnectRedisAcceptsURLAndAddr(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	for _, raw := range []string{mr.Addr(), "redis://" + mr.Addr() + "/0"} {
		client, err := connectRedis(ctx, raw)
		if err != nil {
			t.Fatalf("connectRedis(%q): %v", raw, err)
		}
		_ = client.Close()
	}
}

func TestConnectRedisFailures(t *testing.T) {
	ctx := context.Background()
	if _, err := connectRedis(ctx, "redis://%zz"); err == nil {
		t.Fatalf("expected parse error")
	}
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := connectRedis(ctx, addr); err == nil {
		t.Fatalf("expected ping error")
	}
}

func TestRunRequiresDatabase(t *testing.T) {
	t.Setenv("HAVEN_ENV", "development")
	t.Setenv("HAVEN_DB_URL", "")
	t.Setenv("DATABASE_URL", "")
	if err := run(context.Background(), "", nil); err == nil {
		t.Fatalf("expected missing database error")
	}
}
