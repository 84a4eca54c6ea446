package havenAuth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/MrEthical07/havenAuth/passkey"
	"github.com/MrEthical07/havenAuth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

const (
	passkeyRPID   = "7haven.test"
	passkeyOrigin = "https://7haven.test"
)

type memPasskeys struct {
	mu   sync.Mutex
	byID map[string]passkey.Credential
}

func (m *memPasskeys) CreateCredential(_ context.Context, c *passkey.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[c.CredentialID]; ok {
		return passkey.ErrDuplicateCredential
	}
	m.byID[c.CredentialID] = *c
	return nil
}

func (m *memPasskeys) CredentialByID(_ context.Context, id string) (*passkey.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, passkey.ErrCredentialNotFound
	}
	return &c, nil
}

func (m *memPasskeys) CredentialsForUser(_ context.Context, userID string) ([]passkey.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []passkey.Credential
	for _, c := range m.byID {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memPasskeys) UpdateCounter(_ context.Context, id string, counter uint32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok || counter <= c.Counter {
		return false, nil
	}
	c.Counter = counter
	m.byID[id] = c
	return true, nil
}

func (m *memPasskeys) DeleteCredential(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok || c.UserID != userID {
		return passkey.ErrCredentialNotFound
	}
	delete(m.byID, id)
	return nil
}

type softAuthenticator struct {
	key    *ecdsa.PrivateKey
	credID []byte
}

func newSoftAuthenticator(t *testing.T) *softAuthenticator {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &softAuthenticator{key: key, credID: []byte("engine-credential-01")}
}

func (a *softAuthenticator) authData(flags byte, counter uint32, attested bool, t *testing.T) []byte {
	h := sha256.Sum256([]byte(passkeyRPID))
	b := append([]byte{}, h[:]...)
	b = append(b, flags)
	b = binary.BigEndian.AppendUint32(b, counter)
	if attested {
		x := a.key.PublicKey.X.FillBytes(make([]byte, 32))
		y := a.key.PublicKey.Y.FillBytes(make([]byte, 32))
		cose, err := cbor.Marshal(map[int]any{1: 2, 3: -7, -1: 1, -2: x, -3: y})
		if err != nil {
			t.Fatalf("marshal cose key: %v", err)
		}
		b = append(b, make([]byte, 16)...)
		b = binary.BigEndian.AppendUint16(b, uint16(len(a.credID)))
		b = append(b, a.credID...)
		b = append(b, cose...)
	}
	return b
}

func clientData(t *testing.T, typ string, challenge []byte) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]string{
		"type":      typ,
		"challenge": base64.RawURLEncoding.EncodeToString(challenge),
		"origin":    passkeyOrigin,
	})
	if err != nil {
		t.Fatalf("marshal client data: %v", err)
	}
	return raw
}

func (a *softAuthenticator) register(t *testing.T, challenge []byte, ticket string) passkey.RegistrationResult {
	t.Helper()
	att, err := cbor.Marshal(map[string]any{
		"fmt":      "none",
		"attStmt":  map[string]any{},
		"authData": a.authData(0x01|0x04|0x40, 0, true, t),
	})
	if err != nil {
		t.Fatalf("marshal attestation: %v", err)
	}
	return passkey.RegistrationResult{
		AttestationObject: passkey.Encode(att),
		ClientDataJSON:    passkey.Encode(clientData(t, "webauthn.create", challenge)),
		DeviceType:        "platform",
		Transports:        "internal",
		Ticket:            ticket,
	}
}

func (a *softAuthenticator) assert(t *testing.T, challenge []byte, ticket string, counter uint32) passkey.AssertionResult {
	t.Helper()
	ad := a.authData(0x01|0x04, counter, false, t)
	cd := clientData(t, "webauthn.get", challenge)
	cdHash := sha256.Sum256(cd)
	digest := sha256.Sum256(append(append([]byte{}, ad...), cdHash[:]...))
	sig, err := ecdsa.SignASN1(rand.Reader, a.key, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return passkey.AssertionResult{
		AuthenticatorData: passkey.Encode(ad),
		ClientDataJSON:    passkey.Encode(cd),
		CredentialID:      passkey.Encode(a.credID),
		Signature:         passkey.Encode(sig),
		Ticket:            ticket,
	}
}

func newPasskeyEnv(t *testing.T) (*testEnv, *memPasskeys) {
	t.Helper()
	store := &memPasskeys{byID: map[string]passkey.Credential{}}
	env := newTestEnvWith(t, func(c *Config) {
		c.Passkey.RPID = passkeyRPID
		c.Passkey.Origins = []string{passkeyOrigin}
		c.Passkey.TicketSecret = []byte("0123456789abcdef0123456789abcdef")
	}, func(b *Builder) {
		b.WithPasskeyStore(store)
	})
	return env, store
}

func TestPasskeyRegistrationAndSignIn(t *testing.T) {
	env, store := newPasskeyEnv(t)
	ctx := context.Background()
	auth := newSoftAuthenticator(t)

	id, err := env.engine.Authenticate(ctx, env.signIn(t, "u1").Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	opts, ticket, err := env.engine.PasskeyRegistrationOptions(ctx, id)
	if err != nil {
		t.Fatalf("PasskeyRegistrationOptions: %v", err)
	}
	if opts.RP.ID != passkeyRPID || len(opts.ExcludeCredentials) != 0 {
		t.Fatalf("unexpected creation options: %+v", opts)
	}

	cred, err := env.engine.RegisterPasskey(ctx, id, "Laptop", auth.register(t, opts.Challenge, ticket))
	if err != nil {
		t.Fatalf("RegisterPasskey: %v", err)
	}
	if cred.UserID != "u1" || cred.Name != "Laptop" {
		t.Fatalf("unexpected credential: %+v", cred)
	}

	opts, ticket, err = env.engine.PasskeyRegistrationOptions(ctx, id)
	if err != nil {
		t.Fatalf("PasskeyRegistrationOptions: %v", err)
	}
	if len(opts.ExcludeCredentials) != 1 {
		t.Fatalf("expected existing passkey excluded, got %d", len(opts.ExcludeCredentials))
	}
	if _, err := env.engine.RegisterPasskey(ctx, id, "", auth.register(t, opts.Challenge, ticket)); !errors.Is(err, ErrPasskeyRejected) {
		t.Fatalf("expected duplicate to be rejected, got %v", err)
	}

	reqOpts, ticket, err := env.engine.PasskeySignInOptions(ctx)
	if err != nil {
		t.Fatalf("PasskeySignInOptions: %v", err)
	}
	assertion := auth.assert(t, reqOpts.Challenge, ticket, 1)
	res, err := env.engine.SignInWithPasskey(ctx, assertion)
	if err != nil {
		t.Fatalf("SignInWithPasskey: %v", err)
	}
	if res.UserID != "u1" || res.Token == "" {
		t.Fatalf("unexpected sign-in result: %+v", res)
	}

	if _, err := env.engine.SignInWithPasskey(ctx, assertion); !errors.Is(err, ErrPasskeyRejected) {
		t.Fatalf("replayed ticket must be rejected, got %v", err)
	}

	list, err := env.engine.Passkeys(ctx, id)
	if err != nil || len(list) != 1 {
		t.Fatalf("Passkeys: %v, %d", err, len(list))
	}
	if err := env.engine.DeletePasskey(ctx, id, cred.CredentialID); err != nil {
		t.Fatalf("DeletePasskey: %v", err)
	}
	if len(store.byID) != 0 {
		t.Fatalf("expected credential removed")
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricPasskeyRegistered] != 1 || snap.Counters[MetricPasskeySignIn] != 1 || snap.Counters[MetricPasskeyFailure] != 2 {
		t.Fatalf("unexpected passkey counters: %+v", snap.Counters)
	}
}

func TestPasskeyRegistrationRequiresIdentity(t *testing.T) {
	env, _ := newPasskeyEnv(t)
	if _, err := env.engine.PasskeyChallenge(context.Background(), passkey.PurposeRegister, nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	ch, err := env.engine.PasskeyChallenge(context.Background(), passkey.PurposeSignIn, nil)
	if err != nil {
		t.Fatalf("PasskeyChallenge: %v", err)
	}
	if len(ch.Bytes) != 32 || ch.Ticket == "" {
		t.Fatalf("unexpected challenge: %d bytes, ticket %q", len(ch.Bytes), ch.Ticket)
	}
}

func TestPasskeyBuildRequiresStore(t *testing.T) {
	cfg := testConfig()
	cfg.Passkey.RPID = passkeyRPID
	cfg.Passkey.Origins = []string{passkeyOrigin}
	cfg.Passkey.TicketSecret = []byte("0123456789abcdef0123456789abcdef")

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	_, err = New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserLookup(session.NewUserMap()).
		WithPermissionSource(newFakeSource()).
		Build()
	if err == nil {
		t.Fatalf("expected error without passkey store")
	}
}
