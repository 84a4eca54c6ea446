package permission

import (
	"sort"
	"time"
)

// RoleAccess is the resolved grant of one role assignment within a business.
type RoleAccess struct {
	BusinessID   string   `json:"businessId"`
	Shops        []string `json:"shops"`
	Actions      []string `json:"actions"`
	Role         string   `json:"role"`
	Restrictions []string `json:"restrictions"`
}

// HasAction reports whether grant ("resource:action") is listed.
func (r RoleAccess) HasAction(grant string) bool {
	for _, a := range r.Actions {
		if a == grant {
			return true
		}
	}
	return false
}

// HasRestriction reports whether tag is listed.
func (r RoleAccess) HasRestriction(tag string) bool {
	for _, t := range r.Restrictions {
		if t == tag {
			return true
		}
	}
	return false
}

// ShopAccess records which business a shop belongs to and whether the user
// owns that business.
type ShopAccess struct {
	BusinessID string `json:"businessId"`
	Owned      bool   `json:"owned"`
}

// Snapshot is a user's precomputed permission state. It is replaced whole,
// never patched. OwnedBusinesses also covers businesses without shops.
type Snapshot struct {
	RoleAccess      map[string]RoleAccess `json:"roleAccess"`
	ShopAccess      map[string]ShopAccess `json:"shopAccess"`
	OwnedBusinesses []string              `json:"ownedBusinesses,omitempty"`
}

// NewSnapshot returns an empty snapshot with allocated maps.
func NewSnapshot() Snapshot {
	return Snapshot{
		RoleAccess: make(map[string]RoleAccess),
		ShopAccess: make(map[string]ShopAccess),
	}
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		RoleAccess: make(map[string]RoleAccess, len(s.RoleAccess)),
		ShopAccess: make(map[string]ShopAccess, len(s.ShopAccess)),
	}
	for k, v := range s.RoleAccess {
		v.Shops = append([]string(nil), v.Shops...)
		v.Actions = append([]string(nil), v.Actions...)
		v.Restrictions = append([]string(nil), v.Restrictions...)
		out.RoleAccess[k] = v
	}
	for k, v := range s.ShopAccess {
		out.ShopAccess[k] = v
	}
	if s.OwnedBusinesses != nil {
		out.OwnedBusinesses = append([]string(nil), s.OwnedBusinesses...)
	}
	return out
}

// Owns reports whether the user owns businessID.
func (s Snapshot) Owns(businessID string) bool {
	if businessID == "" {
		return false
	}
	for _, id := range s.OwnedBusinesses {
		if id == businessID {
			return true
		}
	}
	for _, rel := range s.ShopAccess {
		if rel.Owned && rel.BusinessID == businessID {
			return true
		}
	}
	return false
}

// BusinessIDs returns the distinct business ids referenced by ShopAccess, sorted.
func (s Snapshot) BusinessIDs() []string {
	seen := make(map[string]struct{}, len(s.ShopAccess))
	out := make([]string, 0, len(s.ShopAccess))
	for _, rel := range s.ShopAccess {
		if _, ok := seen[rel.BusinessID]; ok {
			continue
		}
		seen[rel.BusinessID] = struct{}{}
		out = append(out, rel.BusinessID)
	}
	sort.Strings(out)
	return out
}

// ShopIDs returns every shop id in ShopAccess, sorted.
func (s Snapshot) ShopIDs() []string {
	out := make([]string, 0, len(s.ShopAccess))
	for id := range s.ShopAccess {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Entry is a cached snapshot stamped with the time it was computed.
type Entry struct {
	Snapshot   Snapshot  `json:"snapshot"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Age returns how old the entry is at now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CapturedAt)
}
