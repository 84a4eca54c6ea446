package havenAuth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/havenAuth/passkey"
	"github.com/MrEthical07/havenAuth/session"
)

func (e *Engine) passkeysReady() error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.issuer == nil || e.verifier == nil {
		return ErrPasskeyDisabled
	}
	return nil
}

// PasskeyChallenge issues a challenge and its ticket. Registration
// challenges are bound to the signed-in identity; sign-in challenges take a
// nil identity.
func (e *Engine) PasskeyChallenge(ctx context.Context, purpose passkey.Purpose, id *session.Identity) (*passkey.Challenge, error) {
	if err := e.passkeysReady(); err != nil {
		return nil, err
	}
	userID := ""
	if purpose == passkey.PurposeRegister {
		if id == nil {
			return nil, ErrUnauthorized
		}
		userID = id.ID
	}
	ch, err := e.issuer.Issue(ctx, purpose, userID)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricPasskeyChallengeIssued)
	e.emitAudit(ctx, auditEventPasskeyChallenge, true, userID, "", nil, func() map[string]string {
		return map[string]string{"purpose": string(purpose)}
	})
	return ch, nil
}

// PasskeyRegistrationOptions issues a registration challenge and wraps it in
// creation options that exclude the identity's existing passkeys.
func (e *Engine) PasskeyRegistrationOptions(ctx context.Context, id *session.Identity) (passkey.CreationOptions, string, error) {
	ch, err := e.PasskeyChallenge(ctx, passkey.PurposeRegister, id)
	if err != nil {
		return passkey.CreationOptions{}, "", err
	}
	creds, err := e.passkeys.CredentialsForUser(ctx, id.ID)
	if err != nil {
		return passkey.CreationOptions{}, "", err
	}
	existing := make([]passkey.CredentialDescriptor, 0, len(creds))
	for i := range creds {
		d, err := creds[i].Descriptor()
		if err != nil {
			continue
		}
		existing = append(existing, d)
	}
	rp := passkey.RelyingParty{ID: e.config.Passkey.RPID, Name: e.config.Passkey.RPName}
	user := passkey.User{Username: id.Username, Email: id.Email}
	return passkey.NewCreationOptions(rp, ch.Bytes, user, []byte(id.ID), existing), ch.Ticket, nil
}

// PasskeySignInOptions issues a sign-in challenge wrapped in request options.
func (e *Engine) PasskeySignInOptions(ctx context.Context) (passkey.RequestOptions, string, error) {
	ch, err := e.PasskeyChallenge(ctx, passkey.PurposeSignIn, nil)
	if err != nil {
		return passkey.RequestOptions{}, "", err
	}
	return passkey.NewRequestOptions(e.config.Passkey.RPID, ch.Bytes), ch.Ticket, nil
}

// RegisterPasskey verifies a registration ceremony for id and stores the
// credential.
func (e *Engine) RegisterPasskey(ctx context.Context, id *session.Identity, name string, res passkey.RegistrationResult) (*passkey.Credential, error) {
	if err := e.passkeysReady(); err != nil {
		return nil, err
	}
	if id == nil {
		return nil, ErrUnauthorized
	}
	cred, err := e.verifier.FinishRegistration(ctx, id.ID, name, res)
	if err != nil {
		err = e.passkeyFailed(ctx, id.ID, "register", err)
		return nil, err
	}
	e.metricInc(MetricPasskeyRegistered)
	e.emitAudit(ctx, auditEventPasskeyRegistered, true, id.ID, id.Session.ID, nil, func() map[string]string {
		return map[string]string{"credential_id": cred.CredentialID, "device_type": cred.DeviceType}
	})
	return cred, nil
}

// SignInWithPasskey verifies an assertion and establishes a session for the
// credential's owner.
func (e *Engine) SignInWithPasskey(ctx context.Context, res passkey.AssertionResult) (*SignInResult, error) {
	if err := e.passkeysReady(); err != nil {
		return nil, err
	}
	cred, err := e.verifier.FinishSignIn(ctx, res)
	if err != nil {
		return nil, e.passkeyFailed(ctx, "", "signin", err)
	}
	out, err := e.establish(ctx, cred.UserID, "")
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricPasskeySignIn)
	e.metricInc(MetricSignInSuccess)
	e.emitAudit(ctx, auditEventSignInSuccess, true, cred.UserID, out.SessionID, nil, func() map[string]string {
		return map[string]string{"method": "passkey", "credential_id": cred.CredentialID}
	})
	return out, nil
}

// Passkeys lists the passkeys of id.
func (e *Engine) Passkeys(ctx context.Context, id *session.Identity) ([]passkey.Credential, error) {
	if err := e.passkeysReady(); err != nil {
		return nil, err
	}
	if id == nil {
		return nil, ErrUnauthorized
	}
	return e.passkeys.CredentialsForUser(ctx, id.ID)
}

// DeletePasskey removes one of id's passkeys.
func (e *Engine) DeletePasskey(ctx context.Context, id *session.Identity, credentialID string) error {
	if err := e.passkeysReady(); err != nil {
		return err
	}
	if id == nil {
		return ErrUnauthorized
	}
	err := e.passkeys.DeleteCredential(ctx, id.ID, credentialID)
	e.emitAudit(ctx, auditEventPasskeyCredentialDel, err == nil, id.ID, id.Session.ID, err, func() map[string]string {
		return map[string]string{"credential_id": credentialID}
	})
	return err
}

// passkeyFailed maps ceremony failures to ErrPasskeyRejected. Store outages
// pass through so callers can answer 503 instead of 400.
func (e *Engine) passkeyFailed(ctx context.Context, userID, operation string, err error) error {
	e.metricInc(MetricPasskeyFailure)
	e.emitAudit(ctx, auditEventPasskeyFailure, false, userID, "", err, func() map[string]string {
		return map[string]string{"operation": operation}
	})
	if errors.Is(err, passkey.ErrStoreUnavailable) {
		return err
	}
	if errors.Is(err, passkey.ErrDuplicateCredential) {
		return fmt.Errorf("%w: %v", ErrPasskeyRejected, passkey.ErrDuplicateCredential)
	}
	return ErrPasskeyRejected
}
