package session

import "time"

// Session is a persisted sign-in. Only the encoded token is stored; the raw
// token lives in the client cookie.
type Session struct {
	ID             string
	TokenHash      string
	UserID         string
	ExpiresAt      time.Time
	UserAgent      string
	IPAddress      string
	ImpersonatedBy string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Expired reports whether the session is logically dead at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// User is the slice of the user record a session validation needs.
type User struct {
	ID           string
	Email        string
	Username     string
	Name         string
	Avatar       string
	Roles        []string
	ActiveShopID string
}

// Meta carries request metadata captured at session creation.
type Meta struct {
	UserAgent      string
	IPAddress      string
	ImpersonatedBy string
}

// Summary is the session part of an [Identity], for display and audit only.
type Summary struct {
	ID             string    `json:"id"`
	ExpiresAt      time.Time `json:"expiresAt"`
	ImpersonatedBy string    `json:"impersonatedBy,omitempty"`
}

// Identity is the authenticated user produced by [Manager.Validate]. It is
// threaded explicitly to every authorization call downstream.
type Identity struct {
	ID           string   `json:"id"`
	Username     string   `json:"username,omitempty"`
	Roles        []string `json:"roles"`
	Email        string   `json:"email"`
	Avatar       string   `json:"avatar,omitempty"`
	Name         string   `json:"name,omitempty"`
	ActiveShopID string   `json:"activeShopId,omitempty"`
	Session      Summary  `json:"session"`
}

// HasRole reports whether the identity carries role.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func newIdentity(u *User, s *Session) *Identity {
	roles := make([]string, len(u.Roles))
	copy(roles, u.Roles)
	return &Identity{
		ID:           u.ID,
		Username:     u.Username,
		Roles:        roles,
		Email:        u.Email,
		Avatar:       u.Avatar,
		Name:         u.Name,
		ActiveShopID: u.ActiveShopID,
		Session: Summary{
			ID:             s.ID,
			ExpiresAt:      s.ExpiresAt,
			ImpersonatedBy: s.ImpersonatedBy,
		},
	}
}
