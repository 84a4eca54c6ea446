package passkey

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrCredentialNotFound is returned when no credential matches.
	ErrCredentialNotFound = errors.New("passkey not found")
	// ErrDuplicateCredential is returned when a credential id is already enrolled.
	ErrDuplicateCredential = errors.New("passkey already registered")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("passkey store unavailable")
)

const defaultCredentialName = "Default"

// Credential is an enrolled passkey. CredentialID and PublicKey are standard
// base64; PublicKey holds the COSE key exactly as the authenticator sent it.
type Credential struct {
	ID           string
	CredentialID string
	Name         string
	PublicKey    string
	UserID       string
	Counter      uint32
	DeviceType   string
	Algorithm    int
	Transports   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName is Name, or "Default" when unset.
func (c *Credential) DisplayName() string {
	if strings.TrimSpace(c.Name) == "" {
		return defaultCredentialName
	}
	return c.Name
}

// Descriptor returns c in the form used by excludeCredentials.
func (c *Credential) Descriptor() (CredentialDescriptor, error) {
	id, err := Decode(c.CredentialID)
	if err != nil {
		return CredentialDescriptor{}, err
	}
	d := CredentialDescriptor{Type: publicKeyCredential, ID: id}
	if c.Transports != "" {
		d.Transports = strings.Split(c.Transports, ",")
	}
	return d, nil
}

// CredentialStore persists passkeys.
//
// UpdateCounter stores counter only if it is greater than the stored value
// and reports whether it did.
type CredentialStore interface {
	CreateCredential(ctx context.Context, c *Credential) error
	CredentialByID(ctx context.Context, credentialID string) (*Credential, error)
	CredentialsForUser(ctx context.Context, userID string) ([]Credential, error)
	UpdateCounter(ctx context.Context, credentialID string, counter uint32) (bool, error)
	DeleteCredential(ctx context.Context, userID, credentialID string) error
}
