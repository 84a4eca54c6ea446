package havenAuth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/havenAuth/otp"
)

// errOTPInvalid labels failed verifications in audit events only.
var errOTPInvalid = errors.New("invalid one-time code")

// IssueOTP creates a code of type t for userID with the configured expiry.
// Delivering the code is the caller's job.
func (e *Engine) IssueOTP(ctx context.Context, userID string, t otp.Type) (string, error) {
	if e == nil || e.otp == nil {
		return "", ErrEngineNotReady
	}
	code, err := e.otp.Create(ctx, userID, t, 0)
	if err != nil {
		if userID == "" || !t.Valid() {
			return "", err
		}
		err = fmt.Errorf("%w: %v", ErrOTPUnavailable, err)
		e.emitAudit(ctx, auditEventOTPIssued, false, userID, "", err, otpMeta(t))
		return "", err
	}
	e.metricInc(MetricOTPIssued)
	e.emitAudit(ctx, auditEventOTPIssued, true, userID, "", nil, otpMeta(t))
	return code, nil
}

// VerifyOTP spends code. Every failure reads as [otp.MsgInvalidCode] or
// [otp.MsgInvalidParams]; the error is reserved for backend outages.
func (e *Engine) VerifyOTP(ctx context.Context, userID, code string, t otp.Type) (otp.Result, error) {
	if e == nil || e.otp == nil {
		return otp.Result{}, ErrEngineNotReady
	}
	res, err := e.otp.Verify(ctx, userID, code, t)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrOTPUnavailable, err)
		e.emitAudit(ctx, auditEventOTPVerified, false, userID, "", err, otpMeta(t))
		return otp.Result{}, err
	}
	if !res.Success {
		e.metricInc(MetricOTPFailure)
		e.emitAudit(ctx, auditEventOTPFailure, false, userID, "", errOTPInvalid, otpMeta(t))
		return res, nil
	}
	e.metricInc(MetricOTPVerified)
	e.emitAudit(ctx, auditEventOTPVerified, true, userID, "", nil, otpMeta(t))
	return res, nil
}

// ResendOTP re-issues a code unless the previous one is younger than the
// cooldown. The new code is in Result.Code.
func (e *Engine) ResendOTP(ctx context.Context, userID string, t otp.Type) (otp.Result, error) {
	if e == nil || e.otp == nil {
		return otp.Result{}, ErrEngineNotReady
	}
	res, err := e.otp.Resend(ctx, userID, t)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrOTPUnavailable, err)
		e.emitAudit(ctx, auditEventOTPResend, false, userID, "", err, otpMeta(t))
		return otp.Result{}, err
	}
	if res.Message == otp.MsgWait {
		e.metricInc(MetricOTPResendThrottled)
	}
	if res.Success {
		e.metricInc(MetricOTPIssued)
	}
	e.emitAudit(ctx, auditEventOTPResend, res.Success, userID, "", nil, otpMeta(t))
	return res, nil
}

func otpMeta(t otp.Type) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"type": string(t)}
	}
}
