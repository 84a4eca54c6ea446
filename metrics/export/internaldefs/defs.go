package internaldefs

import (
	havenAuth "github.com/MrEthical07/havenAuth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   havenAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   havenAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: havenAuth.MetricSignInSuccess, Name: "havenauth_signin_success_total", Help: "Successful sign-ins by any method."},
	{ID: havenAuth.MetricSignInFailure, Name: "havenauth_signin_failure_total", Help: "Failed password sign-ins."},
	{ID: havenAuth.MetricSignInRateLimited, Name: "havenauth_signin_rate_limited_total", Help: "Password sign-ins refused by the attempt budget."},
	{ID: havenAuth.MetricSessionCreated, Name: "havenauth_session_created_total", Help: "Created sessions."},
	{ID: havenAuth.MetricSessionRejected, Name: "havenauth_session_rejected_total", Help: "Session tokens rejected as unknown, expired, or orphaned."},
	{ID: havenAuth.MetricSessionEvicted, Name: "havenauth_session_evicted_total", Help: "Dead sessions removed during validation."},
	{ID: havenAuth.MetricSessionEvictionFailed, Name: "havenauth_session_eviction_failed_total", Help: "Best-effort session evictions that failed."},
	{ID: havenAuth.MetricSignOut, Name: "havenauth_signout_total", Help: "Single-session sign-outs."},
	{ID: havenAuth.MetricSignOutAll, Name: "havenauth_signout_all_total", Help: "Sign-outs of every session of a user."},
	{ID: havenAuth.MetricImpersonation, Name: "havenauth_impersonation_total", Help: "Sessions started by an admin on behalf of a user."},
	{ID: havenAuth.MetricPermissionDenied, Name: "havenauth_permission_denied_total", Help: "Permission checks that denied access."},
	{ID: havenAuth.MetricPermissionRefresh, Name: "havenauth_permission_refresh_total", Help: "Explicit permission snapshot rebuilds."},
	{ID: havenAuth.MetricPermissionInitFailure, Name: "havenauth_permission_init_failure_total", Help: "Permission cache warm-ups that failed during authentication."},
	{ID: havenAuth.MetricOTPIssued, Name: "havenauth_otp_issued_total", Help: "One-time codes issued."},
	{ID: havenAuth.MetricOTPVerified, Name: "havenauth_otp_verified_total", Help: "One-time codes verified."},
	{ID: havenAuth.MetricOTPFailure, Name: "havenauth_otp_failure_total", Help: "Failed one-time code verifications."},
	{ID: havenAuth.MetricOTPResendThrottled, Name: "havenauth_otp_resend_throttled_total", Help: "Resends refused during the cooldown."},
	{ID: havenAuth.MetricPasskeyChallengeIssued, Name: "havenauth_passkey_challenge_issued_total", Help: "Passkey challenges issued."},
	{ID: havenAuth.MetricPasskeyRegistered, Name: "havenauth_passkey_registered_total", Help: "Passkeys enrolled."},
	{ID: havenAuth.MetricPasskeySignIn, Name: "havenauth_passkey_signin_total", Help: "Successful passkey sign-ins."},
	{ID: havenAuth.MetricPasskeyFailure, Name: "havenauth_passkey_failure_total", Help: "Rejected passkey ceremonies."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: havenAuth.MetricAuthenticateLatency, Name: "havenauth_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// flatten buckets into separate instruments.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const (
	AuditDroppedName = "havenauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
