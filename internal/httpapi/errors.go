package httpapi

import (
	"errors"
	"net/http"

	havenAuth "github.com/MrEthical07/havenAuth"
	"github.com/MrEthical07/havenAuth/otp"
	"github.com/MrEthical07/havenAuth/passkey"
	"github.com/MrEthical07/havenAuth/permission"
	"github.com/MrEthical07/havenAuth/session"
)

const (
	codeInvalidInput = "INVALID_INPUT"
	codeUnauthorized = "UNAUTHORIZED"
	codeForbidden    = "FORBIDDEN"
	codeNotFound     = "NOT_FOUND"
	codeRateLimited  = "RATE_LIMITED"
	codeUnavailable  = "SERVICE_UNAVAILABLE"
	codeInternal     = "INTERNAL_ERROR"
)

// mapDomainError translates engine errors into a status, a code and a message
// safe to show to clients. Store failures never leak their cause.
func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, havenAuth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"
	case errors.Is(err, havenAuth.ErrSignInRateLimited):
		return http.StatusTooManyRequests, codeRateLimited, "Too many sign-in attempts, please try again later"
	case errors.Is(err, havenAuth.ErrUnauthorized):
		return http.StatusUnauthorized, codeUnauthorized, "Unauthorized"
	case errors.Is(err, havenAuth.ErrPermissionDenied),
		errors.Is(err, havenAuth.ErrImpersonationDenied),
		errors.Is(err, permission.ErrForbidden):
		return http.StatusForbidden, codeForbidden, "Forbidden"
	case errors.Is(err, havenAuth.ErrPasskeyDisabled):
		return http.StatusNotFound, "PASSKEYS_DISABLED", "Passkeys are not enabled"
	case errors.Is(err, havenAuth.ErrPasskeyRejected):
		return http.StatusBadRequest, "PASSKEY_REJECTED", "Passkey verification failed"
	case errors.Is(err, passkey.ErrCredentialNotFound):
		return http.StatusNotFound, codeNotFound, "Passkey not found"
	case errors.Is(err, permission.ErrRoleNotFound):
		return http.StatusNotFound, codeNotFound, "Role not found"
	case errors.Is(err, permission.ErrAssignmentNotFound):
		return http.StatusNotFound, codeNotFound, "Assignment not found"
	case errors.Is(err, permission.ErrNotFound):
		return http.StatusNotFound, codeNotFound, "Not found"
	case errors.Is(err, permission.ErrInvalidRole):
		return http.StatusBadRequest, codeInvalidInput, err.Error()
	case errors.Is(err, havenAuth.ErrSessionBackendUnavailable),
		errors.Is(err, havenAuth.ErrSessionCreationFailed),
		errors.Is(err, havenAuth.ErrSessionInvalidationFailed),
		errors.Is(err, havenAuth.ErrOTPUnavailable),
		errors.Is(err, havenAuth.ErrEngineNotReady),
		errors.Is(err, session.ErrStoreUnavailable),
		errors.Is(err, otp.ErrStoreUnavailable),
		errors.Is(err, passkey.ErrStoreUnavailable),
		errors.Is(err, permission.ErrCacheUnavailable):
		return http.StatusServiceUnavailable, codeUnavailable, "Service temporarily unavailable"
	default:
		return http.StatusInternalServerError, codeInternal, "internal server error"
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, code, message := mapDomainError(err)
	level := h.logger.WarnContext
	if status >= http.StatusInternalServerError {
		level = h.logger.ErrorContext
	}
	level(r.Context(), "request failed",
		"module", "httpapi",
		"operation", operation,
		"outcome", "failure",
		"request_id", requestIDFromContext(r.Context()),
		"status_code", status,
		"error", err,
	)
	writeError(w, status, code, message)
}
