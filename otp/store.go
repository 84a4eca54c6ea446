package otp

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("otp not found")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("otp store unavailable")
)

// Store persists at most one [Record] per (user, type).
//
// Consume deletes rec only if the stored code still equals rec.Code and
// reports whether it did, so a code can be spent once even under concurrent
// verifications.
type Store interface {
	FindByUserType(ctx context.Context, userID string, t Type) (*Record, error)
	FindByCode(ctx context.Context, userID, code string, t Type) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Consume(ctx context.Context, rec *Record) (bool, error)
}

// AttemptLimiter throttles failed verifications per key.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) error
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}
