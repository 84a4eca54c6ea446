package havenAuth

import (
	"context"
	"time"
)

// CredentialLookup resolves a password credential by email. Implementations
// return an error for unknown users and users without a password; the
// engine reports all of them as [ErrInvalidCredentials] unless the error
// wraps session.ErrStoreUnavailable.
type CredentialLookup interface {
	PasswordHash(ctx context.Context, email string) (userID, hash string, err error)
}

// SignInResult is returned by every sign-in path. Token is the raw session
// token; it is shown to the client once and never stored.
type SignInResult struct {
	Token     string
	SessionID string
	UserID    string
	ExpiresAt time.Time
}
