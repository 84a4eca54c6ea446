package otp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/havenAuth/internal"
	"github.com/MrEthical07/havenAuth/internal/ids"
	"github.com/MrEthical07/havenAuth/internal/rate"
)

const (
	// CodeLength is the length of issued codes.
	CodeLength = 6
	// DefaultExpiry is how long a code stays valid.
	DefaultExpiry = 30 * time.Minute
	// DefaultCooldown is the minimum gap between two issued codes.
	DefaultCooldown = 60 * time.Second
)

// Option configures a [Manager].
type Option func(*Manager)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger used for swallowed cleanup failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// VerifyPolicy is the default budget for failed verifications per (user, type).
var VerifyPolicy = rate.Policy{Prefix: "hov:", MaxAttempts: 5, Window: 15 * time.Minute}

// NewAttemptGuard binds l to p for use with [WithAttemptLimiter].
func NewAttemptGuard(l *rate.Limiter, p rate.Policy) AttemptLimiter {
	return l.Guard(p)
}

// WithAttemptLimiter throttles failed verifications per (user, type).
func WithAttemptLimiter(l AttemptLimiter) Option {
	return func(m *Manager) {
		m.limiter = l
	}
}

// WithExpiry overrides [DefaultExpiry].
func WithExpiry(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.expiry = d
		}
	}
}

// WithCooldown overrides [DefaultCooldown].
func WithCooldown(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.cooldown = d
		}
	}
}

// Manager issues, verifies, and re-issues one-time codes. Delivering the code
// (email, SMS) is the caller's job.
type Manager struct {
	store    Store
	limiter  AttemptLimiter
	now      func() time.Time
	logger   *slog.Logger
	expiry   time.Duration
	cooldown time.Duration
}

// NewManager returns a Manager over store.
func NewManager(store Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("otp store is nil")
	}
	m := &Manager{
		store:    store,
		now:      time.Now,
		logger:   slog.Default(),
		expiry:   DefaultExpiry,
		cooldown: DefaultCooldown,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Create issues a new code for (userID, t), overwriting any live record in
// place. expiry <= 0 uses the configured default.
func (m *Manager) Create(ctx context.Context, userID string, t Type, expiry time.Duration) (string, error) {
	if userID == "" || !t.Valid() {
		return "", errors.New(MsgInvalidParams)
	}
	if expiry <= 0 {
		expiry = m.expiry
	}

	code, err := internal.NewCode(CodeLength, internal.CodeAlphabet)
	if err != nil {
		return "", err
	}

	now := m.now()
	rec, err := m.store.FindByUserType(ctx, userID, t)
	switch {
	case errors.Is(err, ErrNotFound):
		rec = &Record{
			ID:        ids.NewAt(now),
			UserID:    userID,
			Type:      t,
			CreatedAt: now,
		}
	case err != nil:
		return "", err
	}

	rec.Code = code
	rec.ExpiresAt = now.Add(expiry)
	rec.UpdatedAt = now
	if err := m.store.Save(ctx, rec); err != nil {
		return "", err
	}
	return code, nil
}

func limiterKey(userID string, t Type) string {
	return userID + ":" + string(t)
}

// Verify spends code for (userID, t). Wrong, expired, and throttled codes
// all produce the same [MsgInvalidCode] result. The error is non-nil only
// for backend failures.
func (m *Manager) Verify(ctx context.Context, userID, code string, t Type) (Result, error) {
	if userID == "" || code == "" || !t.Valid() {
		return Result{Message: MsgInvalidParams}, nil
	}

	key := limiterKey(userID, t)
	if m.limiter != nil {
		if err := m.limiter.Allow(ctx, key); err != nil {
			m.logger.WarnContext(ctx, "otp verification throttled",
				"module", "otp",
				"operation", "verify",
				"outcome", "throttled",
				"type", string(t),
			)
			return Result{Message: MsgInvalidCode}, nil
		}
	}

	rec, err := m.store.FindByCode(ctx, userID, code, t)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Result{}, err
	}

	if rec == nil || rec.Expired(m.now()) {
		if rec != nil {
			m.evict(ctx, rec)
		}
		m.fail(ctx, key)
		return Result{Message: MsgInvalidCode}, nil
	}

	consumed, err := m.store.Consume(ctx, rec)
	if err != nil {
		return Result{}, err
	}
	if !consumed {
		// spent by a concurrent verify or replaced by a resend
		m.fail(ctx, key)
		return Result{Message: MsgInvalidCode}, nil
	}

	if m.limiter != nil {
		if err := m.limiter.Reset(ctx, key); err != nil {
			m.logger.WarnContext(ctx, "otp limiter reset failed",
				"module", "otp",
				"operation", "verify",
				"outcome", "swallowed",
				"error", err,
			)
		}
	}
	return Result{Success: true, Message: MsgVerified}, nil
}

// evict is the best-effort removal of an expired record found during Verify.
func (m *Manager) evict(ctx context.Context, rec *Record) {
	if _, err := m.store.Consume(ctx, rec); err != nil {
		m.logger.WarnContext(ctx, "otp eviction failed",
			"module", "otp",
			"operation", "evict",
			"outcome", "swallowed",
			"error", err,
		)
	}
}

func (m *Manager) fail(ctx context.Context, key string) {
	if m.limiter == nil {
		return
	}
	if err := m.limiter.Fail(ctx, key); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		m.logger.WarnContext(ctx, "otp limiter update failed",
			"module", "otp",
			"operation", "verify",
			"outcome", "swallowed",
			"error", err,
		)
	}
}

// Resend issues a fresh code for (userID, t). With no existing record it
// behaves like Create. Otherwise it refuses while the record was touched
// less than the cooldown ago.
func (m *Manager) Resend(ctx context.Context, userID string, t Type) (Result, error) {
	if userID == "" || !t.Valid() {
		return Result{Message: MsgInvalidParams}, nil
	}

	rec, err := m.store.FindByUserType(ctx, userID, t)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Result{}, err
	}
	if rec != nil && m.now().Sub(rec.LastTouched()) < m.cooldown {
		return Result{Message: MsgWait}, nil
	}

	code, err := m.Create(ctx, userID, t, m.expiry)
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, Code: code}, nil
}
