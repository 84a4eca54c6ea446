package passkey

import (
	"context"
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/MrEthical07/havenAuth/internal/ids"
	"github.com/fxamacker/cbor/v2"
)

// ErrVerificationFailed is returned for every rejected ceremony result.
// The wrapped detail is for logs only.
var ErrVerificationFailed = errors.New(msgAuthFailed)

const (
	flagUserPresent  = 0x01
	flagUserVerified = 0x04
	flagAttested     = 0x40

	minAuthDataLen = 37

	coseKty    = 1
	coseAlg    = 3
	coseCrv    = -1
	coseX      = -2
	coseY      = -3
	coseRSAN   = -1
	coseRSAE   = -2
	ktyEC2     = 2
	ktyRSA     = 3
	crvP256    = 1
	minRSABits = 2048
)

type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

type attestationObject struct {
	Fmt      string          `cbor:"fmt"`
	AttStmt  cbor.RawMessage `cbor:"attStmt"`
	AuthData []byte          `cbor:"authData"`
}

type authenticatorData struct {
	RPIDHash     []byte
	Flags        byte
	Counter      uint32
	CredentialID []byte
	PublicKey    []byte
}

// VerifierOption configures a [Verifier].
type VerifierOption func(*Verifier)

// WithVerifierClock overrides the wall clock.
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithVerifierLogger sets the logger used for rejection details.
func WithVerifierLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// Verifier checks ceremony results against issued challenges and stored
// credentials. Attestation statements are not verified: credentials are
// requested with attestation "none".
type Verifier struct {
	rpID    string
	origins map[string]struct{}
	issuer  *Issuer
	store   CredentialStore
	now     func() time.Time
	logger  *slog.Logger
}

// NewVerifier returns a Verifier for rpID accepting clientData from origins.
func NewVerifier(rpID string, origins []string, issuer *Issuer, store CredentialStore, opts ...VerifierOption) (*Verifier, error) {
	if rpID == "" {
		return nil, errors.New("relying party id is empty")
	}
	if len(origins) == 0 {
		return nil, errors.New("at least one origin is required")
	}
	if issuer == nil || store == nil {
		return nil, errors.New("issuer and credential store are required")
	}
	v := &Verifier{
		rpID:    rpID,
		origins: make(map[string]struct{}, len(origins)),
		issuer:  issuer,
		store:   store,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, o := range origins {
		v.origins[o] = struct{}{}
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func (v *Verifier) reject(ctx context.Context, operation, reason string) error {
	v.logger.WarnContext(ctx, "passkey ceremony rejected",
		"module", "passkey",
		"operation", operation,
		"outcome", "rejected",
		"reason", reason,
	)
	return fmt.Errorf("%w: %s", ErrVerificationFailed, reason)
}

// checkClientData decodes clientDataJSON, validates type and origin, and
// spends the ticket against the embedded challenge.
func (v *Verifier) checkClientData(ctx context.Context, raw []byte, wantType, ticket string, purpose Purpose) (string, error) {
	var cd clientData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return "", errors.New("malformed client data")
	}
	if cd.Type != wantType {
		return "", fmt.Errorf("client data type %q", cd.Type)
	}
	if _, ok := v.origins[cd.Origin]; !ok {
		return "", fmt.Errorf("origin %q not allowed", cd.Origin)
	}
	challenge, err := Decode(cd.Challenge)
	if err != nil || len(challenge) == 0 {
		return "", errors.New("malformed challenge")
	}
	claims, err := v.issuer.Consume(ctx, ticket, purpose, challenge)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// FinishRegistration verifies res for userID and stores the new credential.
func (v *Verifier) FinishRegistration(ctx context.Context, userID, name string, res RegistrationResult) (*Credential, error) {
	const op = "register"
	if userID == "" || res.Ticket == "" {
		return nil, v.reject(ctx, op, "missing user or ticket")
	}
	clientJSON, err := Decode(res.ClientDataJSON)
	if err != nil {
		return nil, v.reject(ctx, op, "client data encoding")
	}
	attRaw, err := Decode(res.AttestationObject)
	if err != nil {
		return nil, v.reject(ctx, op, "attestation encoding")
	}

	boundUser, err := v.checkClientData(ctx, clientJSON, "webauthn.create", res.Ticket, PurposeRegister)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		return nil, v.reject(ctx, op, err.Error())
	}
	if boundUser != userID {
		return nil, v.reject(ctx, op, "ticket issued to another user")
	}

	var att attestationObject
	if err := cbor.Unmarshal(attRaw, &att); err != nil {
		return nil, v.reject(ctx, op, "malformed attestation object")
	}
	ad, err := parseAuthenticatorData(att.AuthData)
	if err != nil {
		return nil, v.reject(ctx, op, err.Error())
	}
	if err := v.checkAuthData(ad); err != nil {
		return nil, v.reject(ctx, op, err.Error())
	}
	if len(ad.CredentialID) == 0 || len(ad.PublicKey) == 0 {
		return nil, v.reject(ctx, op, "no attested credential")
	}
	_, alg, err := parsePublicKey(ad.PublicKey)
	if err != nil {
		return nil, v.reject(ctx, op, err.Error())
	}

	now := v.now()
	cred := &Credential{
		ID:           ids.NewAt(now),
		CredentialID: Encode(ad.CredentialID),
		Name:         name,
		PublicKey:    Encode(ad.PublicKey),
		UserID:       userID,
		Counter:      ad.Counter,
		DeviceType:   res.DeviceType,
		Algorithm:    alg,
		Transports:   res.Transports,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	cred.Name = cred.DisplayName()
	if cred.DeviceType == "" {
		cred.DeviceType = defaultDeviceType
	}
	if err := v.store.CreateCredential(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// FinishSignIn verifies an assertion and advances the credential counter.
// The returned credential identifies the user to sign in.
func (v *Verifier) FinishSignIn(ctx context.Context, res AssertionResult) (*Credential, error) {
	const op = "signin"
	if res.Ticket == "" || res.CredentialID == "" {
		return nil, v.reject(ctx, op, "missing ticket or credential")
	}
	clientJSON, err1 := Decode(res.ClientDataJSON)
	authRaw, err2 := Decode(res.AuthenticatorData)
	sig, err3 := Decode(res.Signature)
	credID, err4 := Decode(res.CredentialID)
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return nil, v.reject(ctx, op, "field encoding")
	}

	if _, err := v.checkClientData(ctx, clientJSON, "webauthn.get", res.Ticket, PurposeSignIn); err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		return nil, v.reject(ctx, op, err.Error())
	}

	cred, err := v.store.CredentialByID(ctx, Encode(credID))
	if errors.Is(err, ErrCredentialNotFound) {
		return nil, v.reject(ctx, op, "unknown credential")
	}
	if err != nil {
		return nil, err
	}

	ad, err := parseAuthenticatorData(authRaw)
	if err != nil {
		return nil, v.reject(ctx, op, err.Error())
	}
	if err := v.checkAuthData(ad); err != nil {
		return nil, v.reject(ctx, op, err.Error())
	}

	coseRaw, err := Decode(cred.PublicKey)
	if err != nil {
		return nil, v.reject(ctx, op, "stored key encoding")
	}
	pub, _, err := parsePublicKey(coseRaw)
	if err != nil {
		return nil, v.reject(ctx, op, err.Error())
	}
	clientHash := sha256.Sum256(clientJSON)
	signed := make([]byte, 0, len(authRaw)+len(clientHash))
	signed = append(signed, authRaw...)
	signed = append(signed, clientHash[:]...)
	if err := verifySignature(pub, signed, sig); err != nil {
		return nil, v.reject(ctx, op, err.Error())
	}

	if ad.Counter != 0 || cred.Counter != 0 {
		if ad.Counter <= cred.Counter {
			return nil, v.reject(ctx, op, "signature counter did not increase")
		}
		updated, err := v.store.UpdateCounter(ctx, cred.CredentialID, ad.Counter)
		if err != nil {
			return nil, err
		}
		if !updated {
			return nil, v.reject(ctx, op, "signature counter raced")
		}
		cred.Counter = ad.Counter
		cred.UpdatedAt = v.now()
	}
	return cred, nil
}

func (v *Verifier) checkAuthData(ad *authenticatorData) error {
	want := sha256.Sum256([]byte(v.rpID))
	if subtle.ConstantTimeCompare(ad.RPIDHash, want[:]) != 1 {
		return errors.New("relying party mismatch")
	}
	if ad.Flags&flagUserPresent == 0 {
		return errors.New("user not present")
	}
	if ad.Flags&flagUserVerified == 0 {
		return errors.New("user not verified")
	}
	return nil
}

func parseAuthenticatorData(b []byte) (*authenticatorData, error) {
	if len(b) < minAuthDataLen {
		return nil, errors.New("authenticator data too short")
	}
	ad := &authenticatorData{
		RPIDHash: b[:32],
		Flags:    b[32],
		Counter:  binary.BigEndian.Uint32(b[33:37]),
	}
	if ad.Flags&flagAttested == 0 {
		return ad, nil
	}

	rest := b[minAuthDataLen:]
	// aaguid(16) || credIdLen(2) || credId || COSE key
	if len(rest) < 18 {
		return nil, errors.New("attested credential data too short")
	}
	idLen := int(binary.BigEndian.Uint16(rest[16:18]))
	rest = rest[18:]
	if idLen == 0 || len(rest) < idLen {
		return nil, errors.New("credential id truncated")
	}
	ad.CredentialID = rest[:idLen]

	var key cbor.RawMessage
	if _, err := cbor.UnmarshalFirst(rest[idLen:], &key); err != nil {
		return nil, errors.New("malformed credential public key")
	}
	ad.PublicKey = []byte(key)
	return ad, nil
}

// parsePublicKey decodes a COSE key into an ECDSA P-256 or RSA public key.
func parsePublicKey(raw []byte) (crypto.PublicKey, int, error) {
	var m map[int]cbor.RawMessage
	if err := cbor.Unmarshal(raw, &m); err != nil {
		return nil, 0, errors.New("malformed COSE key")
	}
	var kty, alg int
	if err := decodeLabel(m, coseKty, &kty); err != nil {
		return nil, 0, err
	}
	if err := decodeLabel(m, coseAlg, &alg); err != nil {
		return nil, 0, err
	}

	switch {
	case kty == ktyEC2 && alg == AlgES256:
		var crv int
		var x, y []byte
		if err := errors.Join(decodeLabel(m, coseCrv, &crv), decodeLabel(m, coseX, &x), decodeLabel(m, coseY, &y)); err != nil {
			return nil, 0, err
		}
		if crv != crvP256 || len(x) != 32 || len(y) != 32 {
			return nil, 0, errors.New("unsupported EC2 key")
		}
		point := make([]byte, 0, 65)
		point = append(point, 0x04)
		point = append(point, x...)
		point = append(point, y...)
		if _, err := ecdh.P256().NewPublicKey(point); err != nil {
			return nil, 0, errors.New("EC2 point not on curve")
		}
		return &ecdsa.PublicKey{Curve: elliptic.P256(), X: new(big.Int).SetBytes(x), Y: new(big.Int).SetBytes(y)}, alg, nil

	case kty == ktyRSA && alg == AlgRS256:
		var n, e []byte
		if err := errors.Join(decodeLabel(m, coseRSAN, &n), decodeLabel(m, coseRSAE, &e)); err != nil {
			return nil, 0, err
		}
		if len(e) == 0 || len(e) > 4 {
			return nil, 0, errors.New("unsupported RSA exponent")
		}
		pub := &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(new(big.Int).SetBytes(e).Int64())}
		if pub.N.BitLen() < minRSABits {
			return nil, 0, errors.New("RSA key too small")
		}
		return pub, alg, nil
	}
	return nil, 0, fmt.Errorf("unsupported key type %d alg %d", kty, alg)
}

func decodeLabel(m map[int]cbor.RawMessage, label int, dst any) error {
	raw, ok := m[label]
	if !ok {
		return fmt.Errorf("COSE label %d missing", label)
	}
	if err := cbor.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("COSE label %d malformed", label)
	}
	return nil
}

func verifySignature(pub crypto.PublicKey, signed, sig []byte) error {
	digest := sha256.Sum256(signed)
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(k, digest[:], sig) {
			return errors.New("bad signature")
		}
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(k, crypto.SHA256, digest[:], sig); err != nil {
			return errors.New("bad signature")
		}
	default:
		return errors.New("unsupported key")
	}
	return nil
}
