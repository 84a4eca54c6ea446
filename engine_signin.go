package havenAuth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/havenAuth/internal"
	"github.com/MrEthical07/havenAuth/internal/rate"
	"github.com/MrEthical07/havenAuth/permission"
	"github.com/MrEthical07/havenAuth/session"
)

// SignIn establishes a session for userID once the caller has proven who the
// user is by some other means. The raw token in the result is the only copy.
func (e *Engine) SignIn(ctx context.Context, userID string) (*SignInResult, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	return e.establish(ctx, userID, "")
}

func (e *Engine) establish(ctx context.Context, userID, impersonatedBy string) (*SignInResult, error) {
	if userID == "" {
		return nil, ErrInvalidCredentials
	}
	meta := RequestMetaFromContext(ctx)
	meta.ImpersonatedBy = impersonatedBy

	raw, err := internal.NewSessionToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	sess, err := e.sessions.Create(ctx, raw, userID, meta)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
		e.emitAudit(ctx, auditEventSignInFailure, false, userID, "", err, nil)
		return nil, err
	}
	e.metricInc(MetricSessionCreated)
	return &SignInResult{
		Token:     raw,
		SessionID: sess.ID,
		UserID:    userID,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// SignInWithPassword verifies email and plaintext against the configured
// [CredentialLookup] and establishes a session.
//
// Unknown accounts, accounts without a password, and wrong passwords all
// fail with [ErrInvalidCredentials] after the same hashing work. Failures
// count against a per-email budget when Redis is configured.
func (e *Engine) SignInWithPassword(ctx context.Context, email, plaintext string) (*SignInResult, error) {
	if e == nil || e.sessions == nil || e.hasher == nil || e.credentials == nil {
		return nil, ErrEngineNotReady
	}
	email = strings.ToLower(strings.TrimSpace(email))
	masked := MaskEmail(email)

	if e.signInGuard != nil {
		if err := e.signInGuard.Allow(ctx, email); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricSignInRateLimited)
				e.emitAudit(ctx, auditEventSignInRateLimited, false, "", "", ErrSignInRateLimited, func() map[string]string {
					return map[string]string{"identifier": masked}
				})
				return nil, ErrSignInRateLimited
			}
			e.logger.WarnContext(ctx, "sign-in limiter unavailable",
				"module", "engine",
				"operation", "signin_password",
				"outcome", "fail_closed",
				"error", err,
			)
			return nil, ErrSignInRateLimited
		}
	}

	if email == "" || plaintext == "" {
		e.hasher.VerifyDummy(plaintext)
		return nil, e.signInFailed(ctx, "", email, "missing_fields")
	}

	userID, hash, err := e.credentials.PasswordHash(ctx, email)
	if err != nil {
		if errors.Is(err, session.ErrStoreUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrSessionBackendUnavailable, err)
		}
		e.hasher.VerifyDummy(plaintext)
		return nil, e.signInFailed(ctx, "", email, "unknown_account")
	}

	ok, err := e.hasher.Verify(plaintext, hash)
	if err != nil {
		e.logger.ErrorContext(ctx, "stored password hash is malformed",
			"module", "engine",
			"operation", "signin_password",
			"outcome", "rejected",
			"user_id", userID,
			"error", err,
		)
		return nil, e.signInFailed(ctx, userID, email, "malformed_hash")
	}
	if !ok {
		return nil, e.signInFailed(ctx, userID, email, "wrong_password")
	}

	if e.signInGuard != nil {
		if err := e.signInGuard.Reset(ctx, email); err != nil {
			e.logger.WarnContext(ctx, "sign-in limiter reset failed",
				"module", "engine",
				"operation", "signin_password",
				"outcome", "swallowed",
				"error", err,
			)
		}
	}

	res, err := e.establish(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricSignInSuccess)
	e.emitAudit(ctx, auditEventSignInSuccess, true, userID, res.SessionID, nil, func() map[string]string {
		return map[string]string{"method": "password"}
	})
	return res, nil
}

func (e *Engine) signInFailed(ctx context.Context, userID, email, reason string) error {
	if e.signInGuard != nil && email != "" {
		if err := e.signInGuard.Fail(ctx, email); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			e.logger.WarnContext(ctx, "sign-in limiter increment failed",
				"module", "engine",
				"operation", "signin_password",
				"outcome", "swallowed",
				"error", err,
			)
		}
	}
	masked := MaskEmail(email)
	e.metricInc(MetricSignInFailure)
	e.emitAudit(ctx, auditEventSignInFailure, false, userID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"identifier": masked, "reason": reason}
	})
	return ErrInvalidCredentials
}

// Impersonate lets an admin act as targetUserID. The new session records
// the admin in ImpersonatedBy so downstream audit can tell the two apart.
func (e *Engine) Impersonate(ctx context.Context, admin *session.Identity, targetUserID string) (*SignInResult, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	if admin == nil {
		return nil, ErrUnauthorized
	}
	if !permission.SubjectFromIdentity(admin).IsAdmin() || admin.ID == targetUserID {
		e.emitAudit(ctx, auditEventImpersonation, false, admin.ID, admin.Session.ID, ErrImpersonationDenied, func() map[string]string {
			return map[string]string{"target_user_id": targetUserID}
		})
		return nil, ErrImpersonationDenied
	}

	res, err := e.establish(ctx, targetUserID, admin.ID)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricImpersonation)
	e.emitAudit(ctx, auditEventImpersonation, true, admin.ID, res.SessionID, nil, func() map[string]string {
		return map[string]string{"target_user_id": targetUserID}
	})
	return res, nil
}
