package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned by a Store when no session matches the token hash.
	ErrNotFound = errors.New("session not found")
	// ErrUserNotFound is returned by a UserLookup when the user record is gone.
	ErrUserNotFound = errors.New("session user not found")
	// ErrDuplicateToken is returned when a session with the same token hash exists.
	ErrDuplicateToken = errors.New("session token already exists")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrInvalidSession is the generic validation failure: unknown, expired, or orphaned.
	ErrInvalidSession = errors.New("invalid session")
)

// Store persists sessions keyed by encoded token.
//
// FindWithUser fetches the session and its owning user in one lookup. A
// missing user is reported as a nil *User with a nil error so the caller can
// fail closed and evict the orphaned row.
type Store interface {
	Insert(ctx context.Context, sess *Session) error
	FindWithUser(ctx context.Context, tokenHash string) (*Session, *User, error)
	UpdateExpiry(ctx context.Context, tokenHash string, expiresAt time.Time) error
	DeleteByToken(ctx context.Context, tokenHash string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// UserLookup resolves user records for stores that cannot join them.
type UserLookup interface {
	UserByID(ctx context.Context, userID string) (*User, error)
}

// UserMap is a concurrency-safe in-memory UserLookup.
type UserMap struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewUserMap(users ...User) *UserMap {
	m := &UserMap{users: make(map[string]User, len(users))}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *UserMap) Put(u User) {
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
}

func (m *UserMap) Remove(userID string) {
	m.mu.Lock()
	delete(m.users, userID)
	m.mu.Unlock()
}

func (m *UserMap) UserByID(_ context.Context, userID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.Roles = append([]string(nil), u.Roles...)
	return &u, nil
}
