package passkey

import (
	"context"
	"testing"
)

type staticSource struct {
	ch  *Challenge
	err error
}

func (s staticSource) Fetch(context.Context, Purpose) (*Challenge, error) {
	return s.ch, s.err
}

type scriptedAuthenticator struct {
	cred    *PublicKeyCredential
	err     error
	created CreationOptions
	got     RequestOptions
}

func (a *scriptedAuthenticator) Create(_ context.Context, opts CreationOptions) (*PublicKeyCredential, error) {
	a.created = opts
	return a.cred, a.err
}

func (a *scriptedAuthenticator) Get(_ context.Context, opts RequestOptions) (*PublicKeyCredential, error) {
	a.got = opts
	return a.cred, a.err
}

func TestCreationOptionsDefaults(t *testing.T) {
	opts := NewCreationOptions(RelyingParty{ID: "7haven.test"}, []byte("c"), User{}, []byte("uid"), nil)
	if opts.RP.Name != DefaultRPName {
		t.Fatalf("expected rp name %q, got %q", DefaultRPName, opts.RP.Name)
	}
	if opts.User.DisplayName != "Default" || opts.User.Name != "user@example.com" {
		t.Fatalf("unexpected user defaults: %+v", opts.User)
	}
	if len(opts.PubKeyCredParams) != 2 || opts.PubKeyCredParams[0].Alg != -7 || opts.PubKeyCredParams[1].Alg != -257 {
		t.Fatalf("unexpected algorithms: %+v", opts.PubKeyCredParams)
	}
	sel := opts.AuthenticatorSelection
	if sel.UserVerification != "required" || sel.ResidentKey != "required" || !sel.RequireResidentKey {
		t.Fatalf("unexpected selection: %+v", sel)
	}
	if opts.Attestation != "none" || opts.ExcludeCredentials == nil {
		t.Fatalf("unexpected attestation/exclude: %+v", opts)
	}

	named := NewCreationOptions(RelyingParty{}, nil, User{Username: "ana", Email: "ana@shop.test"}, nil, nil)
	if named.User.DisplayName != "ana" || named.User.Name != "ana@shop.test" {
		t.Fatalf("unexpected user: %+v", named.User)
	}

	req := NewRequestOptions("7haven.test", []byte("c"))
	if req.UserVerification != "required" || req.Timeout != 60000 {
		t.Fatalf("unexpected request options: %+v", req)
	}
}

func TestFlowRegisterEncodesResult(t *testing.T) {
	auth := &scriptedAuthenticator{cred: &PublicKeyCredential{
		RawID: []byte{1, 2, 3},
		Response: &AttestationResponse{
			AttestationObject: []byte{0xa1},
			ClientDataJSON:    []byte(`{"type":"webauthn.create"}`),
			Transports:        []string{"internal", "hybrid"},
		},
	}}
	f, err := NewFlow(staticSource{ch: &Challenge{Bytes: []byte("challenge"), Ticket: "t1"}}, auth, RelyingParty{ID: "7haven.test"})
	if err != nil {
		t.Fatalf("new flow: %v", err)
	}

	res := f.Register(context.Background(), User{Username: "ana"}, []byte("uid"), nil)
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.AttestationObject != "oQ==" {
		t.Fatalf("expected standard base64, got %q", res.AttestationObject)
	}
	if res.DeviceType != "unknown" || res.Transports != "internal,hybrid" || res.Ticket != "t1" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if string(auth.created.Challenge) != "challenge" || auth.created.RP.Name != DefaultRPName {
		t.Fatalf("authenticator got wrong options: %+v", auth.created)
	}
}

func TestFlowFailuresBecomeResults(t *testing.T) {
	ch := &Challenge{Bytes: []byte("challenge"), Ticket: "t1"}

	limited := staticSource{err: &RateLimitError{Message: "slow down"}}
	f, _ := NewFlow(limited, &scriptedAuthenticator{}, RelyingParty{})
	if res := f.SignIn(context.Background()); res.Error != "slow down" {
		t.Fatalf("expected rate limit message, got %+v", res)
	}

	f, _ = NewFlow(staticSource{ch: ch}, &scriptedAuthenticator{err: ErrCancelled}, RelyingParty{})
	if res := f.SignIn(context.Background()); res.Error != ErrCancelled.Error() {
		t.Fatalf("expected cancellation message, got %+v", res)
	}

	wrongType := &scriptedAuthenticator{cred: &PublicKeyCredential{Response: &AssertionResponse{}}}
	f, _ = NewFlow(staticSource{ch: ch}, wrongType, RelyingParty{})
	if res := f.Register(context.Background(), User{}, nil, nil); res.Error != "Unexpected response type" {
		t.Fatalf("expected unexpected response type, got %+v", res)
	}

	f, _ = NewFlow(staticSource{ch: ch}, &scriptedAuthenticator{}, RelyingParty{})
	if res := f.Register(context.Background(), User{}, nil, nil); res.Error != "Failed to create public key" {
		t.Fatalf("expected create failure, got %+v", res)
	}
	if res := f.SignIn(context.Background()); res.Error != "Failed to authenticate with passkey" {
		t.Fatalf("expected auth failure, got %+v", res)
	}
}

func TestFlowSignInEncodesAssertion(t *testing.T) {
	auth := &scriptedAuthenticator{cred: &PublicKeyCredential{
		RawID: []byte{0xff, 0xee},
		Response: &AssertionResponse{
			AuthenticatorData: []byte{1},
			ClientDataJSON:    []byte{2},
			Signature:         []byte{3},
		},
	}}
	f, _ := NewFlow(staticSource{ch: &Challenge{Bytes: []byte("challenge"), Ticket: "t2"}}, auth, RelyingParty{ID: "7haven.test"})
	res := f.SignIn(context.Background())
	if res.Error != "" || res.CredentialID != "/+4=" || res.Signature != "Aw==" || res.Ticket != "t2" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if auth.got.RPID != "7haven.test" || auth.got.Timeout != 60000 {
		t.Fatalf("unexpected request options: %+v", auth.got)
	}
}
