package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/havenAuth/internal"
	"github.com/MrEthical07/havenAuth/internal/ids"
)

// renewalDivisor sets the renewal threshold: a session is extended once its
// remaining lifetime is at or below TTL/renewalDivisor.
const renewalDivisor = 10

// EvictReason names why a session row was evicted during validation.
type EvictReason string

const (
	EvictNotFound    EvictReason = "not_found"
	EvictExpired     EvictReason = "expired"
	EvictUserMissing EvictReason = "user_missing"
)

// EvictionHook observes every best-effort eviction attempt. err is the
// store's delete error, already swallowed by the manager.
type EvictionHook func(ctx context.Context, reason EvictReason, err error)

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

// WithLogger sets the logger used for swallowed eviction failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithEvictionHook registers a hook called after every eviction attempt.
func WithEvictionHook(hook EvictionHook) Option {
	return func(m *Manager) {
		m.onEvict = hook
	}
}

// Manager owns the session lifecycle: create, validate with sliding renewal,
// and invalidate. It never sees raw tokens after encoding them.
type Manager struct {
	store   Store
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
	onEvict EvictionHook
}

// NewManager builds a Manager over store with the configured session TTL.
func NewManager(store Store, ttl time.Duration, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session store is nil")
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be > 0")
	}
	m := &Manager{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create persists a new session for userID keyed by the encoded rawToken.
// Token uniqueness is left to the store.
func (m *Manager) Create(ctx context.Context, rawToken, userID string, meta Meta) (*Session, error) {
	if rawToken == "" || userID == "" {
		return nil, errors.New("session token and user id are required")
	}

	now := m.now()
	sess := &Session{
		ID:             ids.NewAt(now),
		TokenHash:      internal.EncodeToken(rawToken),
		UserID:         userID,
		ExpiresAt:      now.Add(m.ttl),
		UserAgent:      meta.UserAgent,
		IPAddress:      meta.IPAddress,
		ImpersonatedBy: meta.ImpersonatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.store.Insert(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Validate resolves rawToken to an [Identity].
//
// It fails closed with [ErrInvalidSession] when the session is unknown,
// expired, or its user is gone, evicting the row on the way out. A session
// with at most a tenth of its TTL left is renewed to now+TTL and the new
// expiry is persisted before the identity is returned. Store failures are
// returned as-is so callers can tell an outage from a denial.
func (m *Manager) Validate(ctx context.Context, rawToken string) (*Identity, error) {
	if rawToken == "" {
		return nil, ErrInvalidSession
	}
	tokenHash := internal.EncodeToken(rawToken)

	sess, user, err := m.store.FindWithUser(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.evict(ctx, tokenHash, EvictNotFound)
			return nil, ErrInvalidSession
		}
		return nil, err
	}

	now := m.now()
	if sess.Expired(now) {
		m.evict(ctx, tokenHash, EvictExpired)
		return nil, ErrInvalidSession
	}
	if user == nil {
		m.evict(ctx, tokenHash, EvictUserMissing)
		return nil, ErrInvalidSession
	}

	if sess.ExpiresAt.Sub(now) <= m.ttl/renewalDivisor {
		next := now.Add(m.ttl)
		if err := m.store.UpdateExpiry(ctx, tokenHash, next); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrInvalidSession
			}
			return nil, err
		}
		sess.ExpiresAt = next
		sess.UpdatedAt = now
	}

	return newIdentity(user, sess), nil
}

// evict is the best-effort cleanup step of Validate. Failures are logged and
// reported to the eviction hook, never to the caller.
func (m *Manager) evict(ctx context.Context, tokenHash string, reason EvictReason) {
	err := m.store.DeleteByToken(ctx, tokenHash)
	if err != nil {
		m.logger.WarnContext(ctx, "session eviction failed",
			"module", "session",
			"operation", "evict",
			"reason", string(reason),
			"outcome", "swallowed",
			"error", err,
		)
	}
	if m.onEvict != nil {
		m.onEvict(ctx, reason, err)
	}
}

// Invalidate deletes the session behind rawToken. Missing sessions are ignored.
func (m *Manager) Invalidate(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	return m.store.DeleteByToken(ctx, internal.EncodeToken(rawToken))
}

// InvalidateAllForUser deletes every session of userID.
func (m *Manager) InvalidateAllForUser(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	return m.store.DeleteByUser(ctx, userID)
}
