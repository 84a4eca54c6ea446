package havenAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/havenAuth/internal/audit"
	"github.com/MrEthical07/havenAuth/internal/rate"
	"github.com/MrEthical07/havenAuth/otp"
	"github.com/MrEthical07/havenAuth/passkey"
	"github.com/MrEthical07/havenAuth/password"
	"github.com/MrEthical07/havenAuth/permission"
	"github.com/MrEthical07/havenAuth/session"
)

// Engine ties sessions, permissions, one-time codes, and passkeys together
// behind one request-facing API. Build it with [New]; it is safe for
// concurrent use once built.
type Engine struct {
	config Config
	logger *slog.Logger
	now    func() time.Time

	sessions *session.Manager
	registry *permission.Registry
	checker  *permission.Checker
	admin    *permission.Admin
	otp      *otp.Manager

	hasher      *password.Hasher
	credentials CredentialLookup
	signInGuard *rate.Guard

	issuer   *passkey.Issuer
	verifier *passkey.Verifier
	passkeys passkey.CredentialStore

	audit   *internalaudit.Dispatcher
	metrics *Metrics
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped is the number of audit events dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedByType breaks AuditDropped down per event type.
func (e *Engine) AuditDroppedByType() map[string]uint64 {
	if e == nil || e.audit == nil {
		return map[string]uint64{}
	}
	return e.audit.DroppedByType()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Checker exposes the permission checker for handlers that need Can or
// HasRestriction directly.
func (e *Engine) Checker() *permission.Checker { return e.checker }

// Admin is nil unless a role store was configured.
func (e *Engine) Admin() *permission.Admin { return e.admin }

func (e *Engine) Registry() *permission.Registry { return e.registry }

// SessionTTL is the configured session lifetime.
func (e *Engine) SessionTTL() time.Duration { return e.sessions.TTL() }

// Authenticate resolves rawToken to an identity and warms the permission
// cache for it.
//
// A missing, expired, or orphaned session yields [ErrUnauthorized]. A store
// outage yields [ErrSessionBackendUnavailable], which callers should not
// treat as a sign-out. A failed permission refresh is logged and does not
// fail authentication; checks then deny until the next refresh succeeds.
func (e *Engine) Authenticate(ctx context.Context, rawToken string) (*session.Identity, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	start := e.now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricAuthenticateLatency, e.now().Sub(start))
		}
	}()

	id, err := e.sessions.Validate(ctx, rawToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidSession) {
			e.metricInc(MetricSessionRejected)
			e.emitAudit(ctx, auditEventSessionRejected, false, "", "", err, nil)
			return nil, ErrUnauthorized
		}
		e.logger.ErrorContext(ctx, "session validation failed",
			"module", "engine",
			"operation", "authenticate",
			"outcome", "backend_error",
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrSessionBackendUnavailable, err)
	}

	if err := e.checker.Init(ctx, id.ID); err != nil {
		e.metricInc(MetricPermissionInitFailure)
		e.logger.WarnContext(ctx, "permission refresh failed",
			"module", "engine",
			"operation", "authenticate",
			"outcome", "degraded",
			"user_id", id.ID,
			"error", err,
		)
	}
	return id, nil
}

// SignOut deletes the session behind rawToken. Unknown tokens are not an
// error.
func (e *Engine) SignOut(ctx context.Context, rawToken string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	if err := e.sessions.Invalidate(ctx, rawToken); err != nil {
		err = fmt.Errorf("%w: %v", ErrSessionInvalidationFailed, err)
		e.emitAudit(ctx, auditEventSignOut, false, "", "", err, nil)
		return err
	}
	e.metricInc(MetricSignOut)
	e.emitAudit(ctx, auditEventSignOut, true, "", "", nil, nil)
	return nil
}

// SignOutAll deletes every session of the identity's user and drops the
// user's cached permissions.
func (e *Engine) SignOutAll(ctx context.Context, id *session.Identity) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	if id == nil {
		return ErrUnauthorized
	}
	if err := e.sessions.InvalidateAllForUser(ctx, id.ID); err != nil {
		err = fmt.Errorf("%w: %v", ErrSessionInvalidationFailed, err)
		e.emitAudit(ctx, auditEventSignOutAll, false, id.ID, id.Session.ID, err, nil)
		return err
	}
	if err := e.checker.ClearCache(ctx, id.ID); err != nil {
		e.logger.WarnContext(ctx, "permission cache clear failed",
			"module", "engine",
			"operation", "signout_all",
			"outcome", "swallowed",
			"user_id", id.ID,
			"error", err,
		)
	}
	e.metricInc(MetricSignOutAll)
	e.emitAudit(ctx, auditEventSignOutAll, true, id.ID, id.Session.ID, nil, nil)
	return nil
}

// onSessionEvicted is the session manager's eviction hook.
func (e *Engine) onSessionEvicted(ctx context.Context, reason session.EvictReason, err error) {
	if err != nil {
		e.metricInc(MetricSessionEvictionFailed)
	} else {
		e.metricInc(MetricSessionEvicted)
	}
	e.emitAudit(ctx, auditEventSessionEvicted, err == nil, "", "", err, func() map[string]string {
		return map[string]string{"reason": string(reason)}
	})
}
