package havenAuth

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/havenAuth/internal/security"
	"github.com/MrEthical07/havenAuth/otp"
	"github.com/MrEthical07/havenAuth/password"
	"github.com/MrEthical07/havenAuth/permission"
	"github.com/MrEthical07/havenAuth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "correct horse battery"
	testShop     = "shop-pub-1"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeSource struct {
	mu          sync.Mutex
	owned       map[string][]permission.Business
	assignments map[string][]permission.Assignment
	shops       map[string][]permission.Shop
	upserts     int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		owned:       map[string][]permission.Business{},
		assignments: map[string][]permission.Assignment{},
		shops:       map[string][]permission.Shop{},
	}
}

func (s *fakeSource) OwnedBusinesses(_ context.Context, userID string) ([]permission.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owned[userID], nil
}

func (s *fakeSource) Assignments(_ context.Context, userID string) ([]permission.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignments[userID], nil
}

func (s *fakeSource) ShopsForBusinesses(_ context.Context, businessIDs []string) ([]permission.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []permission.Shop
	for _, id := range businessIDs {
		out = append(out, s.shops[id]...)
	}
	return out, nil
}

func (s *fakeSource) UpsertSnapshot(context.Context, string, permission.Snapshot) error {
	s.mu.Lock()
	s.upserts++
	s.mu.Unlock()
	return nil
}

type fakeCredentials struct {
	byEmail map[string][2]string
}

func (f fakeCredentials) PasswordHash(_ context.Context, email string) (string, string, error) {
	rec, ok := f.byEmail[email]
	if !ok {
		return "", "", session.ErrUserNotFound
	}
	return rec[0], rec[1], nil
}

type testEnv struct {
	engine *Engine
	mr     *miniredis.Miniredis
	clock  *testClock
	source *fakeSource
	users  *session.UserMap
	sink   *ChannelSink
}

func testConfig() Config {
	cfg := DevelopmentConfig()
	cfg.Session.Store = StoreRedis
	cfg.OTP.Store = StoreRedis
	cfg.Passkey.RPID = ""
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.MaxAttempts = 3
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func testHash(t *testing.T, plaintext string) string {
	t.Helper()
	h, err := password.New(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	encoded, err := h.Hash(plaintext)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return encoded
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	return newTestEnvWith(t, mutate, nil)
}

func newTestEnvWith(t *testing.T, mutate func(*Config), extend func(*Builder)) *testEnv {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	env := &testEnv{
		mr:     mr,
		clock:  newTestClock(),
		source: newFakeSource(),
		users: session.NewUserMap(
			session.User{ID: "u1", Email: testEmail, Username: "ada", Roles: []string{permission.RoleSeller}, ActiveShopID: testShop},
			session.User{ID: "u2", Email: "bob@example.com", Roles: []string{permission.RoleSeller}, ActiveShopID: testShop},
			session.User{ID: "root", Email: "root@example.com", Roles: []string{permission.RoleAdmin}},
		),
		sink: NewChannelSink(64),
	}
	env.source.owned["u1"] = []permission.Business{{ID: "biz-1", OwnerID: "u1"}}
	env.source.shops["biz-1"] = []permission.Shop{{ID: "shop-1", PublicID: testShop, BusinessID: "biz-1"}}
	env.source.assignments["u2"] = []permission.Assignment{{
		ID: "as-1", UserID: "u2", BusinessID: "biz-1", RoleID: "r1",
		Role: &permission.Role{ID: "r1", Name: "clerk", BusinessID: "biz-1", Resources: permission.Resources{
			permission.ResourceProduct: {permission.ActionRead},
		}},
		Overrides: &permission.Overrides{ShopIDs: []string{testShop}, Restrictions: []string{permission.RestrictNoDelete}},
	}}

	creds := fakeCredentials{byEmail: map[string][2]string{
		testEmail: {"u1", testHash(t, testPassword)},
	}}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithClock(env.clock.Now).
		WithUserLookup(env.users).
		WithPermissionSource(env.source).
		WithCredentialLookup(creds).
		WithAuditSink(env.sink)
	if extend != nil {
		extend(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func (env *testEnv) signIn(t *testing.T, userID string) *SignInResult {
	t.Helper()
	res, err := env.engine.SignIn(context.Background(), userID)
	if err != nil {
		t.Fatalf("SignIn(%s): %v", userID, err)
	}
	return res
}

func (env *testEnv) events(t *testing.T, n int) []AuditEvent {
	t.Helper()
	out := make([]AuditEvent, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case ev := <-env.sink.Events():
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("expected %d audit events, got %d", n, len(out))
		}
	}
	return out
}

func TestBuildRequiresStores(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatalf("expected error without redis and user lookup")
	}

	cfg := testConfig()
	cfg.Session.Store = StorePostgres
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatalf("expected error for postgres sessions without a store")
	}

	b := New().WithConfig(testConfig()).WithSessionStore(nil)
	b.built = true
	if _, err := b.Build(); err == nil {
		t.Fatalf("expected reuse error")
	}
}

func TestSignInWithPasswordThenAuthenticate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := WithUserAgent(WithClientIP(context.Background(), "192.0.2.10"), "test-agent")

	res, err := env.engine.SignInWithPassword(ctx, "  ADA@example.com ", testPassword)
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	if res.Token == "" || res.UserID != "u1" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if want := env.clock.Now().Add(15 * time.Minute); !res.ExpiresAt.Equal(want) {
		t.Fatalf("expiry = %v, want %v", res.ExpiresAt, want)
	}

	id, err := env.engine.Authenticate(ctx, res.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.ID != "u1" || id.Session.ID != res.SessionID || id.ActiveShopID != testShop {
		t.Fatalf("unexpected identity: %+v", id)
	}

	subj := permission.SubjectFromIdentity(id)
	if !env.engine.Can(ctx, subj, permission.ActionDelete, permission.ResourceProduct) {
		t.Fatalf("owner should be allowed everything in owned shop")
	}
	if env.engine.HasRestriction(ctx, subj, permission.RestrictNoDelete) {
		t.Fatalf("owner should carry no restrictions")
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricSignInSuccess] != 1 || snap.Counters[MetricSessionCreated] != 1 {
		t.Fatalf("unexpected counters: %+v", snap.Counters)
	}
	var observed uint64
	for _, n := range snap.Histograms[MetricAuthenticateLatency] {
		observed += n
	}
	if observed != 1 {
		t.Fatalf("expected one latency observation, got %d", observed)
	}

	ev := env.events(t, 1)[0]
	if ev.EventType != auditEventSignInSuccess || ev.UserID != "u1" || ev.IP != "192.0.2.10" {
		t.Fatalf("unexpected audit event: %+v", ev)
	}
	if ev.Metadata["method"] != "password" {
		t.Fatalf("expected password method, got %q", ev.Metadata["method"])
	}
}

func TestSignInWithPasswordGenericFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	cases := []struct {
		name, email, password string
	}{
		{"unknown account", "nobody@example.com", testPassword},
		{"wrong password", testEmail, "not the password"},
		{"empty password", testEmail, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.SignInWithPassword(ctx, tc.email, tc.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}

	for _, ev := range env.events(t, len(cases)) {
		if ev.Error != string(auditErrInvalidCredentials) {
			t.Fatalf("unexpected audit error code %q", ev.Error)
		}
		if ev.Metadata["identifier"] == testEmail {
			t.Fatalf("identifier must be masked")
		}
	}
}

func TestSignInWithPasswordRateLimited(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := env.engine.SignInWithPassword(ctx, testEmail, "wrong password!"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := env.engine.SignInWithPassword(ctx, testEmail, testPassword); !errors.Is(err, ErrSignInRateLimited) {
		t.Fatalf("expected ErrSignInRateLimited, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricSignInRateLimited]; got != 1 {
		t.Fatalf("rate limited counter = %d", got)
	}

	env.mr.FastForward(16 * time.Minute)
	if _, err := env.engine.SignInWithPassword(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("expected success after window, got %v", err)
	}
}

func TestAuthenticateRejectsUnknownToken(t *testing.T) {
	env := newTestEnv(t, nil)

	if _, err := env.engine.Authenticate(context.Background(), "not-a-session"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := env.engine.Authenticate(context.Background(), ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty token, got %v", err)
	}
	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricSessionRejected] != 2 {
		t.Fatalf("rejected counter = %d", snap.Counters[MetricSessionRejected])
	}
	if snap.Counters[MetricSessionEvicted] != 1 {
		t.Fatalf("evicted counter = %d", snap.Counters[MetricSessionEvicted])
	}
}

func TestAuthenticateExpiredSession(t *testing.T) {
	env := newTestEnv(t, nil)
	res := env.signIn(t, "u1")

	env.clock.Advance(15 * time.Minute)
	if _, err := env.engine.Authenticate(context.Background(), res.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthenticateRenewsNearExpiry(t *testing.T) {
	env := newTestEnv(t, nil)
	res := env.signIn(t, "u1")

	env.clock.Advance(14 * time.Minute)
	id, err := env.engine.Authenticate(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if want := env.clock.Now().Add(15 * time.Minute); !id.Session.ExpiresAt.Equal(want) {
		t.Fatalf("expiry = %v, want %v", id.Session.ExpiresAt, want)
	}
}

func TestAuthenticateBackendOutage(t *testing.T) {
	env := newTestEnv(t, nil)
	res := env.signIn(t, "u1")

	env.mr.Close()
	_, err := env.engine.Authenticate(context.Background(), res.Token)
	if !errors.Is(err, ErrSessionBackendUnavailable) {
		t.Fatalf("expected ErrSessionBackendUnavailable, got %v", err)
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Fatalf("outage must not read as a denial")
	}
}

func TestSignOutAndSignOutAll(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	first := env.signIn(t, "u1")
	second := env.signIn(t, "u1")

	if err := env.engine.SignOut(ctx, first.Token); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := env.engine.Authenticate(ctx, first.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("signed-out token still valid: %v", err)
	}
	if err := env.engine.SignOut(ctx, first.Token); err != nil {
		t.Fatalf("second SignOut should be a no-op: %v", err)
	}

	id, err := env.engine.Authenticate(ctx, second.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	third := env.signIn(t, "u1")
	if err := env.engine.SignOutAll(ctx, id); err != nil {
		t.Fatalf("SignOutAll: %v", err)
	}
	for _, tok := range []string{second.Token, third.Token} {
		if _, err := env.engine.Authenticate(ctx, tok); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected all sessions gone, got %v", err)
		}
	}
	if err := env.engine.SignOutAll(ctx, nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for nil identity, got %v", err)
	}
}

func TestImpersonate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	seller, err := env.engine.Authenticate(ctx, env.signIn(t, "u2").Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := env.engine.Impersonate(ctx, seller, "u1"); !errors.Is(err, ErrImpersonationDenied) {
		t.Fatalf("expected ErrImpersonationDenied, got %v", err)
	}

	admin, err := env.engine.Authenticate(ctx, env.signIn(t, "root").Token)
	if err != nil {
		t.Fatalf("Authenticate admin: %v", err)
	}
	res, err := env.engine.Impersonate(ctx, admin, "u1")
	if err != nil {
		t.Fatalf("Impersonate: %v", err)
	}
	id, err := env.engine.Authenticate(ctx, res.Token)
	if err != nil {
		t.Fatalf("Authenticate impersonated: %v", err)
	}
	if id.ID != "u1" || id.Session.ImpersonatedBy != "root" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestAuthorizeAssignedRole(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	id, err := env.engine.Authenticate(ctx, env.signIn(t, "u2").Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := env.engine.Authorize(ctx, id, permission.ActionRead, permission.ResourceProduct); err != nil {
		t.Fatalf("expected read allowed, got %v", err)
	}
	if err := env.engine.Authorize(ctx, id, permission.ActionDelete, permission.ResourceProduct); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if !env.engine.HasRestriction(ctx, permission.SubjectFromIdentity(id), permission.RestrictNoDelete) {
		t.Fatalf("expected no-delete restriction")
	}

	noShop := *id
	noShop.ActiveShopID = ""
	subj := permission.SubjectFromIdentity(&noShop)
	if env.engine.Can(ctx, subj, permission.ActionRead, permission.ResourceProduct) {
		t.Fatalf("missing shop context must deny")
	}
	if !env.engine.HasRestriction(ctx, subj, permission.RestrictCanRefund) {
		t.Fatalf("missing shop context must read as restricted")
	}
	if err := env.engine.Authorize(ctx, nil, permission.ActionRead, permission.ResourceProduct); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestPermissionChecksFailClosed(t *testing.T) {
	ctx := context.Background()
	subj := permission.Subject{UserID: "u1", ActiveShopID: testShop}

	var nilEngine *Engine
	if nilEngine.Can(ctx, subj, permission.ActionRead, permission.ResourceProduct) {
		t.Fatal("nil engine must deny")
	}
	if !nilEngine.HasRestriction(ctx, subj, permission.RestrictNoDelete) {
		t.Fatal("nil engine must report restricted")
	}
	if nilEngine.CanInBusiness(ctx, subj, "biz-1", permission.ActionRead, permission.ResourceProduct) {
		t.Fatal("nil engine must deny business checks")
	}
	if !nilEngine.HasRestrictionInBusiness(ctx, subj, "biz-1", permission.RestrictNoDelete) {
		t.Fatal("nil engine must report business restrictions")
	}

	bare := &Engine{}
	if bare.Can(ctx, subj, permission.ActionRead, permission.ResourceProduct) || !bare.HasRestriction(ctx, subj, permission.RestrictNoDelete) {
		t.Fatal("engine without checker must fail closed")
	}
}

func TestBusinessScopedEngineChecks(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	owner, err := env.engine.Authenticate(ctx, env.signIn(t, "u1").Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	clerk, err := env.engine.Authenticate(ctx, env.signIn(t, "u2").Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	o, c := permission.SubjectFromIdentity(owner), permission.SubjectFromIdentity(clerk)

	if !env.engine.CanInBusiness(ctx, o, "biz-1", permission.ActionUpdate, permission.ResourceStaff) {
		t.Fatal("owner manages staff of owned business")
	}
	if env.engine.HasRestrictionInBusiness(ctx, o, "biz-1", permission.RestrictNoDelete) {
		t.Fatal("owner carries no restrictions in owned business")
	}
	if env.engine.CanInBusiness(ctx, o, "biz-9", permission.ActionRead, permission.ResourceStaff) {
		t.Fatal("owner has no say in a foreign business")
	}
	if !env.engine.HasRestrictionInBusiness(ctx, o, "biz-9", permission.RestrictNoDelete) {
		t.Fatal("foreign business reads as restricted")
	}

	before := env.engine.MetricsSnapshot().Counters[MetricPermissionDenied]
	if env.engine.CanInBusiness(ctx, c, "biz-1", permission.ActionUpdate, permission.ResourceStaff) {
		t.Fatal("clerk must not manage staff")
	}
	if !env.engine.HasRestrictionInBusiness(ctx, c, "biz-1", permission.RestrictNoDelete) {
		t.Fatal("clerk carries no-delete in biz-1")
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricPermissionDenied]; got != before+1 {
		t.Fatalf("denied counter = %d, want %d", got, before+1)
	}
}

func TestRefreshPermissions(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	u2, err := env.engine.Authenticate(ctx, env.signIn(t, "u2").Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := env.engine.RefreshPermissions(ctx, u2, "u1"); !errors.Is(err, permission.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	env.source.mu.Lock()
	env.source.assignments["u2"][0].Role.Resources[permission.ResourceProduct] = []permission.Action{permission.ActionRead, permission.ActionDelete}
	env.source.mu.Unlock()

	if err := env.engine.Authorize(ctx, u2, permission.ActionDelete, permission.ResourceProduct); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("cached snapshot should still deny, got %v", err)
	}
	if err := env.engine.RefreshPermissions(ctx, u2, "u2"); err != nil {
		t.Fatalf("RefreshPermissions: %v", err)
	}
	if err := env.engine.Authorize(ctx, u2, permission.ActionDelete, permission.ResourceProduct); err != nil {
		t.Fatalf("expected refreshed snapshot to allow, got %v", err)
	}
}

func TestOTPThroughEngine(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	code, err := env.engine.IssueOTP(ctx, "u1", otp.TypeAuth)
	if err != nil {
		t.Fatalf("IssueOTP: %v", err)
	}

	res, err := env.engine.ResendOTP(ctx, "u1", otp.TypeAuth)
	if err != nil {
		t.Fatalf("ResendOTP: %v", err)
	}
	if res.Success || res.Message != otp.MsgWait {
		t.Fatalf("expected cooldown, got %+v", res)
	}

	res, err = env.engine.VerifyOTP(ctx, "u1", "zzzzzz", otp.TypeAuth)
	if err != nil || res.Success || res.Message != otp.MsgInvalidCode {
		t.Fatalf("expected invalid code, got %+v, %v", res, err)
	}
	res, err = env.engine.VerifyOTP(ctx, "u1", code, otp.TypeAuth)
	if err != nil || !res.Success || res.Message != otp.MsgVerified {
		t.Fatalf("expected verified, got %+v, %v", res, err)
	}
	res, err = env.engine.VerifyOTP(ctx, "u1", code, otp.TypeAuth)
	if err != nil || res.Success {
		t.Fatalf("code must be single use, got %+v, %v", res, err)
	}

	env.clock.Advance(61 * time.Second)
	res, err = env.engine.ResendOTP(ctx, "u1", otp.TypeAuth)
	if err != nil || !res.Success || res.Code == "" {
		t.Fatalf("expected resend, got %+v, %v", res, err)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricOTPIssued] != 2 || snap.Counters[MetricOTPVerified] != 1 ||
		snap.Counters[MetricOTPFailure] != 2 || snap.Counters[MetricOTPResendThrottled] != 1 {
		t.Fatalf("unexpected otp counters: %+v", snap.Counters)
	}
}

func TestPasskeysDisabledWithoutRelyingParty(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.engine.PasskeyChallenge(context.Background(), "signin", nil); !errors.Is(err, ErrPasskeyDisabled) {
		t.Fatalf("expected ErrPasskeyDisabled, got %v", err)
	}
}

func TestNilEngineIsNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.Authenticate(context.Background(), "tok"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if e.AuditDropped() != 0 {
		t.Fatalf("nil engine should report zero drops")
	}
	e.Close()
}

func TestSecurityReport(t *testing.T) {
	env := newTestEnv(t, nil)
	r := env.engine.SecurityReport()
	if r.ProductionMode || r.SecureCookies {
		t.Fatalf("development engine reported as production: %+v", r)
	}
	if !r.SignInBudgetActive || !r.OTPBudgetActive || r.PasskeysEnabled || !r.AuditEnabled {
		t.Fatalf("unexpected report: %+v", r)
	}
	if r.Argon2.Memory != 8*1024 || r.SessionStore != StoreRedis {
		t.Fatalf("unexpected config echo: %+v", r)
	}
	for _, want := range []string{security.WarnInsecureCookies, security.WarnWeakArgon2} {
		if !slices.Contains(r.Warnings, want) {
			t.Fatalf("warnings %v missing %q", r.Warnings, want)
		}
	}

	var nilEngine *Engine
	if got := nilEngine.SecurityReport(); got.Warnings != nil {
		t.Fatalf("nil engine report = %+v", got)
	}
}
