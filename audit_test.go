package havenAuth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/havenAuth/otp"
	"github.com/MrEthical07/havenAuth/passkey"
	"github.com/MrEthical07/havenAuth/permission"
	"github.com/MrEthical07/havenAuth/session"
)

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EventType: auditEventSignOut,
		UserID:    "u1",
		Success:   true,
	})
	sink.Emit(context.Background(), AuditEvent{EventType: auditEventOTPFailure, Error: string(auditErrInvalidCode)})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var first AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first.EventType != auditEventSignOut || first.UserID != "u1" || !first.Success {
		t.Fatalf("unexpected event: %+v", first)
	}
	if !strings.Contains(lines[1], `"error":"invalid_code"`) {
		t.Fatalf("expected error code in %q", lines[1])
	}

	var nilSink *JSONWriterSink
	nilSink.Emit(context.Background(), AuditEvent{})
}

func TestAuditErrorCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrUnauthorized, auditErrUnauthorized},
		{session.ErrInvalidSession, auditErrUnauthorized},
		{ErrInvalidCredentials, auditErrInvalidCredentials},
		{ErrSignInRateLimited, auditErrRateLimited},
		{fmt.Errorf("%w: boom", ErrSessionCreationFailed), auditErrSessionCreationFailed},
		{ErrPermissionDenied, auditErrPermissionDenied},
		{permission.ErrForbidden, auditErrForbidden},
		{ErrImpersonationDenied, auditErrForbidden},
		{errOTPInvalid, auditErrInvalidCode},
		{passkey.ErrChallengeReplayed, auditErrChallengeReplayed},
		{fmt.Errorf("%w: bad origin", passkey.ErrVerificationFailed), auditErrPasskeyRejected},
		{passkey.ErrDuplicateCredential, auditErrDuplicate},
		{passkey.ErrCredentialNotFound, auditErrNotFound},
		{fmt.Errorf("%w: dial tcp", otp.ErrStoreUnavailable), auditErrUnavailable},
		{fmt.Errorf("%w: dial tcp", ErrSessionBackendUnavailable), auditErrUnavailable},
		{errors.New("something else"), auditErrInternal},
	}
	for _, tt := range tests {
		if got := auditErrorCode(tt.err); got != tt.want {
			t.Errorf("auditErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestEmitAuditCarriesRequestIP(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := WithClientIP(context.Background(), "198.51.100.7")

	env.engine.emitAudit(ctx, auditEventSignOut, false, "u1", "s1", ErrSessionInvalidationFailed, func() map[string]string {
		return map[string]string{"k": "v"}
	})

	ev := env.events(t, 1)[0]
	if ev.IP != "198.51.100.7" || ev.SessionID != "s1" || ev.Metadata["k"] != "v" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Error != string(auditErrSessionInvalidation) {
		t.Fatalf("unexpected error code %q", ev.Error)
	}
	if !ev.Timestamp.Equal(env.clock.Now()) {
		t.Fatalf("timestamp should come from the engine clock")
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Audit.Enabled = false })

	if _, err := env.engine.SignIn(context.Background(), "u1"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	env.engine.emitAudit(context.Background(), auditEventSignOut, true, "u1", "", nil, nil)

	select {
	case ev := <-env.sink.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	if env.engine.AuditDropped() != 0 {
		t.Fatalf("disabled audit must not count drops")
	}
}
