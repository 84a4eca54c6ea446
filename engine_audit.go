package havenAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/havenAuth/otp"
	"github.com/MrEthical07/havenAuth/passkey"
	"github.com/MrEthical07/havenAuth/permission"
	"github.com/MrEthical07/havenAuth/session"
)

const (
	auditEventSignInSuccess        = "signin_success"
	auditEventSignInFailure        = "signin_failure"
	auditEventSignInRateLimited    = "signin_rate_limited"
	auditEventImpersonation        = "impersonation_started"
	auditEventSessionRejected      = "session_rejected"
	auditEventSessionEvicted       = "session_evicted"
	auditEventSignOut              = "signout"
	auditEventSignOutAll           = "signout_all"
	auditEventPermissionDenied     = "permission_denied"
	auditEventPermissionRefresh    = "permission_refresh"
	auditEventOTPIssued            = "otp_issued"
	auditEventOTPVerified          = "otp_verified"
	auditEventOTPFailure           = "otp_failure"
	auditEventOTPResend            = "otp_resend"
	auditEventPasskeyChallenge     = "passkey_challenge"
	auditEventPasskeyRegistered    = "passkey_registered"
	auditEventPasskeySignIn        = "passkey_signin"
	auditEventPasskeyFailure       = "passkey_failure"
	auditEventPasskeyCredentialDel = "passkey_deleted"
)

// criticalAuditEvents are queued even when the audit buffer drops on overflow.
var criticalAuditEvents = []string{
	auditEventImpersonation,
	auditEventSignOutAll,
	auditEventSessionEvicted,
	auditEventPasskeyCredentialDel,
}

// AuditErrorCode is the stable, non-sensitive error label written to audit
// events in place of the error text.
type AuditErrorCode string

const (
	auditErrUnauthorized          AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials    AuditErrorCode = "invalid_credentials"
	auditErrRateLimited           AuditErrorCode = "rate_limited"
	auditErrSessionCreationFailed AuditErrorCode = "session_creation_failed"
	auditErrSessionInvalidation   AuditErrorCode = "session_invalidation_failed"
	auditErrPermissionDenied      AuditErrorCode = "permission_denied"
	auditErrForbidden             AuditErrorCode = "forbidden"
	auditErrInvalidCode           AuditErrorCode = "invalid_code"
	auditErrPasskeyRejected       AuditErrorCode = "passkey_rejected"
	auditErrChallengeReplayed     AuditErrorCode = "challenge_replayed"
	auditErrDuplicate             AuditErrorCode = "duplicate"
	auditErrNotFound              AuditErrorCode = "not_found"
	auditErrUnavailable           AuditErrorCode = "backend_unavailable"
	auditErrInternal              AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, session.ErrInvalidSession):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrSignInRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrSessionCreationFailed):
		return auditErrSessionCreationFailed
	case errors.Is(err, ErrSessionInvalidationFailed):
		return auditErrSessionInvalidation
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrImpersonationDenied),
		errors.Is(err, permission.ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, errOTPInvalid):
		return auditErrInvalidCode
	case errors.Is(err, passkey.ErrChallengeReplayed):
		return auditErrChallengeReplayed
	case errors.Is(err, ErrPasskeyRejected),
		errors.Is(err, passkey.ErrVerificationFailed),
		errors.Is(err, passkey.ErrInvalidChallenge):
		return auditErrPasskeyRejected
	case errors.Is(err, passkey.ErrDuplicateCredential),
		errors.Is(err, session.ErrDuplicateToken):
		return auditErrDuplicate
	case errors.Is(err, passkey.ErrCredentialNotFound),
		errors.Is(err, permission.ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrSessionBackendUnavailable),
		errors.Is(err, ErrOTPUnavailable),
		errors.Is(err, session.ErrStoreUnavailable),
		errors.Is(err, otp.ErrStoreUnavailable),
		errors.Is(err, passkey.ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
