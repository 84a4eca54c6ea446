package havenAuth

import "errors"

var (
	// ErrUnauthorized is returned when a request carries no valid session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials covers unknown accounts and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSignInRateLimited is returned once an email has used its password budget.
	ErrSignInRateLimited = errors.New("sign-in rate limited")
	// ErrSessionCreationFailed wraps store failures while creating a session.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionInvalidationFailed wraps store failures during sign-out.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrSessionBackendUnavailable is returned when the session store cannot
	// answer. It is not a denial.
	ErrSessionBackendUnavailable = errors.New("session backend unavailable")
	// ErrPermissionDenied is returned by Authorize.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrImpersonationDenied is returned when a non-admin tries to impersonate.
	ErrImpersonationDenied = errors.New("impersonation denied")
	// ErrOTPUnavailable wraps OTP store failures.
	ErrOTPUnavailable = errors.New("otp backend unavailable")
	// ErrPasskeyDisabled is returned when no relying party is configured.
	ErrPasskeyDisabled = errors.New("passkeys disabled")
	// ErrPasskeyRejected covers every failed passkey ceremony.
	ErrPasskeyRejected = errors.New("passkey rejected")
	// ErrEngineNotReady is returned by a nil or closed engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrConfigInvalid wraps configuration validation failures.
	ErrConfigInvalid = errors.New("invalid config")
)
