// Command havenauth-loadtest measures session authentication and permission
// checks against Redis, or an embedded miniredis when no address is given.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	havenAuth "github.com/MrEthical07/havenAuth"
	"github.com/MrEthical07/havenAuth/permission"
	"github.com/MrEthical07/havenAuth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	loadBusiness = "biz-load"
	loadShop     = "shop-load"
)

// staticSource puts every user on one shop: even users own it, odd users
// hold a read-only clerk role.
type staticSource struct{}

func (staticSource) OwnedBusinesses(_ context.Context, userID string) ([]permission.Business, error) {
	if userIndex(userID)%2 == 0 {
		return []permission.Business{{ID: loadBusiness, OwnerID: userID}}, nil
	}
	return nil, nil
}

func (staticSource) Assignments(_ context.Context, userID string) ([]permission.Assignment, error) {
	if userIndex(userID)%2 == 0 {
		return nil, nil
	}
	return []permission.Assignment{{
		ID: "as-" + userID, UserID: userID, BusinessID: loadBusiness, RoleID: "clerk",
		Role: &permission.Role{ID: "clerk", Name: "clerk", BusinessID: loadBusiness, Resources: permission.Resources{
			permission.ResourceProduct: {permission.ActionRead},
			permission.ResourceOrder:   {permission.ActionRead},
		}},
		Overrides: &permission.Overrides{ShopIDs: []string{loadShop}},
	}}, nil
}

func (staticSource) ShopsForBusinesses(context.Context, []string) ([]permission.Shop, error) {
	return []permission.Shop{{ID: "s1", PublicID: loadShop, BusinessID: loadBusiness}}, nil
}

func (staticSource) UpsertSnapshot(context.Context, string, permission.Snapshot) error { return nil }

func userID(i int) string { return fmt.Sprintf("user-%d", i) }

func userIndex(id string) int {
	var i int
	_, _ = fmt.Sscanf(id, "user-%d", &i)
	return i
}

func main() {
	var (
		users       = flag.Int("users", 10000, "number of users to sign in")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		cache       = flag.String("cache", havenAuth.CacheMemory, "permission cache backend: memory or redis")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	client, cleanup, err := openRedis(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	engine, err := buildEngine(client, *users, *cache)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	tokens := make([]string, *users)
	fmt.Printf("signing in %d users...\n", *users)
	startSeed := time.Now()
	for i := range tokens {
		res, err := engine.SignIn(ctx, userID(i))
		if err != nil {
			fmt.Fprintf(os.Stderr, "sign in failed: %v\n", err)
			os.Exit(1)
		}
		tokens[i] = res.Token
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := engine.Authenticate(ctx, tokens[r.Intn(len(tokens))])
		return err
	})
	canStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		subj := permission.Subject{UserID: userID(r.Intn(len(tokens))), ActiveShopID: loadShop}
		if err := engine.Checker().Init(ctx, subj.UserID); err != nil {
			return err
		}
		engine.Can(ctx, subj, permission.ActionRead, permission.ResourceProduct)
		return nil
	})

	fmt.Println("---- results ----")
	printStats("authenticate", authStats)
	printStats("init+can", canStats)
	snap := engine.MetricsSnapshot()
	fmt.Printf("counters: %v\n", snap.Counters)
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func buildEngine(client redis.UniversalClient, users int, cache string) (*havenAuth.Engine, error) {
	cfg := havenAuth.DevelopmentConfig()
	cfg.Session.Store = havenAuth.StoreRedis
	cfg.Session.TTL = time.Hour
	cfg.OTP.Store = havenAuth.StoreRedis
	cfg.Permission.Cache = cache
	cfg.Passkey.RPID = ""
	cfg.Metrics.EnableLatencyHistograms = true

	seeded := make([]session.User, users)
	for i := range seeded {
		seeded[i] = session.User{
			ID:           userID(i),
			Email:        userID(i) + "@load.test",
			Roles:        []string{permission.RoleSeller},
			ActiveShopID: loadShop,
		}
	}

	return havenAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithUserLookup(session.NewUserMap(seeded...)).
		WithPermissionSource(staticSource{}).
		Build()
}

// runPhase spreads ops calls of fn over concurrency workers and records the
// latency of each call.
func runPhase(ops, concurrency int, fn func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			local := make([]time.Duration, 0, ops/concurrency+1)
			for atomic.AddInt64(&cursor, 1) <= int64(ops) {
				t0 := time.Now()
				if err := fn(r); err != nil {
					atomic.AddInt64(&failures, 1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
