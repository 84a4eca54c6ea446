package passkey

import (
	"context"
	"errors"
	"strings"
)

const (
	msgCreateFailed     = "Failed to create public key"
	msgUnexpected       = "Unexpected response type"
	msgAuthFailed       = "Failed to authenticate with passkey"
	defaultDeviceType   = "unknown"
	publicKeyCredential = "public-key"
)

// ErrCancelled is returned by authenticators when the user aborts.
var ErrCancelled = errors.New("The operation either timed out or was not allowed")

// AttestationResponse is the authenticator output of a registration.
type AttestationResponse struct {
	AttestationObject []byte
	ClientDataJSON    []byte
	Transports        []string
}

// AssertionResponse is the authenticator output of a sign-in.
type AssertionResponse struct {
	AuthenticatorData []byte
	ClientDataJSON    []byte
	Signature         []byte
	UserHandle        []byte
}

// PublicKeyCredential is what an [Authenticator] returns. Response holds an
// *AttestationResponse or an *AssertionResponse.
type PublicKeyCredential struct {
	RawID                   []byte
	AuthenticatorAttachment string
	Response                any
}

// Authenticator performs the platform public-key ceremony.
type Authenticator interface {
	Create(ctx context.Context, opts CreationOptions) (*PublicKeyCredential, error)
	Get(ctx context.Context, opts RequestOptions) (*PublicKeyCredential, error)
}

// RegistrationResult is the transport form of a registration.
type RegistrationResult struct {
	AttestationObject string `json:"attestationObject,omitempty"`
	ClientDataJSON    string `json:"clientDataJSON,omitempty"`
	DeviceType        string `json:"device_type,omitempty"`
	Transports        string `json:"transports,omitempty"`
	Ticket            string `json:"ticket,omitempty"`
	Error             string `json:"error,omitempty"`
}

// AssertionResult is the transport form of a sign-in.
type AssertionResult struct {
	AuthenticatorData string `json:"authenticatorData,omitempty"`
	ClientDataJSON    string `json:"clientDataJSON,omitempty"`
	CredentialID      string `json:"credentialId,omitempty"`
	Signature         string `json:"signature,omitempty"`
	Ticket            string `json:"ticket,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Flow drives registration and sign-in ceremonies on the client side.
type Flow struct {
	challenges    ChallengeSource
	authenticator Authenticator
	rp            RelyingParty
}

// NewFlow returns a Flow. rp.Name defaults to [DefaultRPName].
func NewFlow(challenges ChallengeSource, authenticator Authenticator, rp RelyingParty) (*Flow, error) {
	if challenges == nil {
		return nil, errors.New("challenge source is nil")
	}
	if authenticator == nil {
		return nil, errors.New("authenticator is nil")
	}
	if rp.Name == "" {
		rp.Name = DefaultRPName
	}
	return &Flow{challenges: challenges, authenticator: authenticator, rp: rp}, nil
}

// Register enrolls a new credential for user. It never returns an error:
// failures are reported in the result's Error field.
func (f *Flow) Register(ctx context.Context, user User, credentialUserID []byte, existing []CredentialDescriptor) RegistrationResult {
	ch, err := f.challenges.Fetch(ctx, PurposeRegister)
	if err != nil {
		return RegistrationResult{Error: failureMessage(err)}
	}

	opts := NewCreationOptions(f.rp, ch.Bytes, user, credentialUserID, existing)
	cred, err := f.authenticator.Create(ctx, opts)
	if err != nil {
		return RegistrationResult{Error: failureMessage(err)}
	}
	if cred == nil {
		return RegistrationResult{Error: msgCreateFailed}
	}
	resp, ok := cred.Response.(*AttestationResponse)
	if !ok || resp == nil {
		return RegistrationResult{Error: msgUnexpected}
	}

	device := cred.AuthenticatorAttachment
	if device == "" {
		device = defaultDeviceType
	}
	return RegistrationResult{
		AttestationObject: Encode(resp.AttestationObject),
		ClientDataJSON:    Encode(resp.ClientDataJSON),
		DeviceType:        device,
		Transports:        strings.Join(resp.Transports, ","),
		Ticket:            ch.Ticket,
	}
}

// SignIn asserts a discoverable credential. Like Register it reports
// failures in the result.
func (f *Flow) SignIn(ctx context.Context) AssertionResult {
	ch, err := f.challenges.Fetch(ctx, PurposeSignIn)
	if err != nil {
		return AssertionResult{Error: failureMessage(err)}
	}

	cred, err := f.authenticator.Get(ctx, NewRequestOptions(f.rp.ID, ch.Bytes))
	if err != nil {
		return AssertionResult{Error: failureMessage(err)}
	}
	if cred == nil {
		return AssertionResult{Error: msgAuthFailed}
	}
	resp, ok := cred.Response.(*AssertionResponse)
	if !ok || resp == nil {
		return AssertionResult{Error: msgUnexpected}
	}

	return AssertionResult{
		AuthenticatorData: Encode(resp.AuthenticatorData),
		ClientDataJSON:    Encode(resp.ClientDataJSON),
		CredentialID:      Encode(cred.RawID),
		Signature:         Encode(resp.Signature),
		Ticket:            ch.Ticket,
	}
}

func failureMessage(err error) string {
	if err == nil || strings.TrimSpace(err.Error()) == "" {
		return msgAuthFailed
	}
	return err.Error()
}
