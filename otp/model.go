package otp

import (
	"errors"
	"time"
)

// Type separates the flows a code can be issued for.
type Type string

const (
	TypeJoin  Type = "join"
	TypeAuth  Type = "auth"
	TypeReset Type = "reset"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeJoin, TypeAuth, TypeReset:
		return true
	}
	return false
}

// ParseType converts s to a [Type].
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", errors.New("unknown otp type: " + s)
	}
	return t, nil
}

// Record is the persisted code of one (user, type) pair.
type Record struct {
	ID        string
	UserID    string
	Code      string
	Type      Type
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the record is past its expiry at now.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// LastTouched is the update time, or the creation time if never updated.
func (r *Record) LastTouched() time.Time {
	if r.UpdatedAt.IsZero() {
		return r.CreatedAt
	}
	return r.UpdatedAt
}

// Result is the outcome of Verify and Resend. Code is only set by a
// successful Resend and must not be sent back to the client.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"-"`
}

const (
	MsgInvalidParams = "Invalid request params"
	MsgInvalidCode   = "Invalid verification code"
	MsgVerified      = "Verified"
	MsgWait          = "Please wait before requesting another code"
)
