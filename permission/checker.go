package permission

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/havenAuth/session"
)

// DefaultTTL is how long a cached snapshot counts as fresh.
const DefaultTTL = 60 * time.Second

// retentionFactor sizes the cache retention relative to the freshness TTL, so
// a stale entry is still readable between a request's Init and its checks.
const retentionFactor = 2

// Subject is the identity an authorization question is asked for. It is
// passed explicitly to every check.
type Subject struct {
	UserID       string
	Roles        []string
	ActiveShopID string
}

// SubjectFromIdentity builds a Subject from a validated session identity.
func SubjectFromIdentity(id *session.Identity) Subject {
	if id == nil {
		return Subject{}
	}
	return Subject{
		UserID:       id.ID,
		Roles:        append([]string(nil), id.Roles...),
		ActiveShopID: id.ActiveShopID,
	}
}

// IsAdmin reports whether the subject carries the platform admin role.
func (s Subject) IsAdmin() bool {
	for _, r := range s.Roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

// SnapshotResolver computes a fresh snapshot for a user.
type SnapshotResolver interface {
	Resolve(ctx context.Context, userID string) (Snapshot, error)
}

// CheckerOption configures a [Checker].
type CheckerOption func(*Checker)

// WithCheckerClock overrides the wall clock.
func WithCheckerClock(now func() time.Time) CheckerOption {
	return func(c *Checker) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCheckerLogger sets the logger for cache failures.
func WithCheckerLogger(logger *slog.Logger) CheckerOption {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTTL overrides [DefaultTTL].
func WithTTL(ttl time.Duration) CheckerOption {
	return func(c *Checker) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// Checker answers ABAC questions from the cached snapshot of the subject.
// It holds no per-user state of its own.
//
// Entry lifecycle per user: absent, fresh after Init, stale once older than
// the TTL (the next Init recomputes), absent again after ClearCache.
type Checker struct {
	cache    Cache
	resolver SnapshotResolver
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewChecker returns a Checker reading from cache and refreshing through resolver.
func NewChecker(cache Cache, resolver SnapshotResolver, opts ...CheckerOption) *Checker {
	c := &Checker{
		cache:    cache,
		resolver: resolver,
		ttl:      DefaultTTL,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the freshness window.
func (c *Checker) TTL() time.Duration {
	return c.ttl
}

func (c *Checker) entry(ctx context.Context, userID string) (Entry, bool) {
	e, ok, err := c.cache.Get(ctx, userID)
	if err != nil {
		c.logger.WarnContext(ctx, "permission cache read failed",
			"module", "permission",
			"operation", "cache_get",
			"outcome", "miss",
			"error", err,
		)
		return Entry{}, false
	}
	return e, ok
}

// Init makes sure userID has a fresh cache entry, resolving one if the entry
// is missing or older than the TTL. Racing Inits may both resolve; the last
// write wins.
func (c *Checker) Init(ctx context.Context, userID string) error {
	if e, ok := c.entry(ctx, userID); ok && e.Age(c.now()) < c.ttl {
		return nil
	}

	snap, err := c.resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	return c.cache.Set(ctx, userID, Entry{Snapshot: snap, CapturedAt: c.now()}, c.ttl*retentionFactor)
}

// ClearCache drops the entry for userID. Call it whenever assignments,
// overrides, or ownership change.
func (c *Checker) ClearCache(ctx context.Context, userID string) error {
	return c.cache.Clear(ctx, userID)
}

type scope struct {
	snapshot Snapshot
	shop     ShopAccess
}

// scope resolves the subject's active shop against its cached snapshot. It
// fails when the subject has no user, no active shop, or no cache entry.
func (c *Checker) scope(ctx context.Context, subj Subject) (scope, bool) {
	if subj.UserID == "" || subj.ActiveShopID == "" {
		return scope{}, false
	}
	e, ok := c.entry(ctx, subj.UserID)
	if !ok {
		return scope{}, false
	}
	return scope{snapshot: e.Snapshot, shop: e.Snapshot.ShopAccess[subj.ActiveShopID]}, true
}

// Can reports whether subj may perform action on resource in its active shop.
// Admins always may; without context the answer is no; owners of the active
// shop always may; otherwise the role for the shop's business must list
// "resource:action".
func (c *Checker) Can(ctx context.Context, subj Subject, action Action, resource Resource) bool {
	if subj.IsAdmin() {
		return true
	}
	sc, ok := c.scope(ctx, subj)
	if !ok {
		return false
	}
	if sc.shop.Owned {
		return true
	}
	role, ok := sc.snapshot.RoleAccess[sc.shop.BusinessID]
	if !ok {
		return false
	}
	return role.HasAction(Grant(resource, action))
}

// HasRestriction reports whether tag restricts subj in its active shop.
//
// Missing context means restricted, and so does a business with no role
// entry. Admins and owners are never restricted once context exists. This
// leans the opposite way from Can on purpose and must stay that way.
func (c *Checker) HasRestriction(ctx context.Context, subj Subject, tag string) bool {
	sc, ok := c.scope(ctx, subj)
	if !ok {
		return true
	}
	if subj.IsAdmin() || sc.shop.Owned {
		return false
	}
	role, ok := sc.snapshot.RoleAccess[sc.shop.BusinessID]
	if !ok {
		return true
	}
	return role.HasRestriction(tag)
}

// businessScope returns the subject's snapshot and its role in businessID.
// It fails when the subject has no user, no business is named, or nothing
// is cached.
func (c *Checker) businessScope(ctx context.Context, subj Subject, businessID string) (Snapshot, bool) {
	if subj.UserID == "" || businessID == "" {
		return Snapshot{}, false
	}
	e, ok := c.entry(ctx, subj.UserID)
	if !ok {
		return Snapshot{}, false
	}
	return e.Snapshot, true
}

// CanInBusiness is Can evaluated against businessID rather than the active
// shop. Owners of businessID always may; otherwise the role held in
// businessID itself must list "resource:action".
func (c *Checker) CanInBusiness(ctx context.Context, subj Subject, businessID string, action Action, resource Resource) bool {
	if subj.IsAdmin() {
		return true
	}
	snap, ok := c.businessScope(ctx, subj, businessID)
	if !ok {
		return false
	}
	if snap.Owns(businessID) {
		return true
	}
	role, ok := snap.RoleAccess[businessID]
	if !ok {
		return false
	}
	return role.HasAction(Grant(resource, action))
}

// HasRestrictionInBusiness is HasRestriction evaluated against businessID.
// It keeps the same fail-restrictive default.
func (c *Checker) HasRestrictionInBusiness(ctx context.Context, subj Subject, businessID, tag string) bool {
	snap, ok := c.businessScope(ctx, subj, businessID)
	if !ok {
		return true
	}
	if subj.IsAdmin() || snap.Owns(businessID) {
		return false
	}
	role, ok := snap.RoleAccess[businessID]
	if !ok {
		return true
	}
	return role.HasRestriction(tag)
}

// Restrictions returns the restriction tags that apply to subj in its active
// shop. Owners and subjects without context get none.
func (c *Checker) Restrictions(ctx context.Context, subj Subject) []string {
	sc, ok := c.scope(ctx, subj)
	if !ok || sc.shop.BusinessID == "" || sc.shop.Owned {
		return []string{}
	}
	role, ok := sc.snapshot.RoleAccess[sc.shop.BusinessID]
	if !ok || role.Restrictions == nil {
		return []string{}
	}
	return role.Restrictions
}

// BusinessIDs returns the distinct businesses userID can reach, from cache only.
func (c *Checker) BusinessIDs(ctx context.Context, userID string) []string {
	e, ok := c.entry(ctx, userID)
	if !ok {
		return []string{}
	}
	return e.Snapshot.BusinessIDs()
}

// ShopIDs returns every shop userID can reach, from cache only.
func (c *Checker) ShopIDs(ctx context.Context, userID string) []string {
	e, ok := c.entry(ctx, userID)
	if !ok {
		return []string{}
	}
	return e.Snapshot.ShopIDs()
}
