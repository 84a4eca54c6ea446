package permission

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCacheUnavailable wraps cache backend failures.
var ErrCacheUnavailable = errors.New("permission cache unavailable")

// Cache stores one [Entry] per user id. It is pure storage: freshness is
// decided by the caller from [Entry.CapturedAt], and ttl on Set only bounds
// how long the backend keeps the entry around.
type Cache interface {
	Get(ctx context.Context, userID string) (Entry, bool, error)
	Set(ctx context.Context, userID string, entry Entry, ttl time.Duration) error
	Clear(ctx context.Context, userID string) error
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryCache is a process-wide in-memory [Cache]. Entries past their
// retention are dropped lazily on Get.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache returns an empty MemoryCache. A nil now uses time.Now.
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{entries: make(map[string]memoryEntry), now: now}
}

func (c *MemoryCache) Get(_ context.Context, userID string) (Entry, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}

	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// re-check: a concurrent Set may have replaced it
		if cur, ok := c.entries[userID]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, userID)
		}
		c.mu.Unlock()
		return Entry{}, false, nil
	}

	return Entry{Snapshot: e.entry.Snapshot.Clone(), CapturedAt: e.entry.CapturedAt}, true, nil
}

// Set replaces the entry for userID. ttl <= 0 keeps it until cleared.
func (c *MemoryCache) Set(_ context.Context, userID string, entry Entry, ttl time.Duration) error {
	e := memoryEntry{entry: Entry{Snapshot: entry.Snapshot.Clone(), CapturedAt: entry.CapturedAt}}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[userID] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Clear(_ context.Context, userID string) error {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
