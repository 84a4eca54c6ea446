package permission

import "time"

// Role is a business-scoped role definition.
type Role struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	BusinessID string    `json:"businessId"`
	Resources  Resources `json:"resources"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Overrides narrow an assignment to specific shops and restriction tags.
type Overrides struct {
	ShopIDs      []string `json:"shopIds"`
	Restrictions []string `json:"restrictions,omitempty"`
}

// Assignment binds a user to a role within a business. Role is populated by
// [Source.Assignments] and is nil when the role row no longer exists.
type Assignment struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	BusinessID string     `json:"businessId"`
	RoleID     string     `json:"roleId"`
	Role       *Role      `json:"role,omitempty"`
	Overrides  *Overrides `json:"overrides,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Business is the ownership record consulted by the resolver.
type Business struct {
	ID      string
	OwnerID string
}

// Shop belongs to a business. PublicID is the id the rest of the platform
// (and the active shop selection) uses.
type Shop struct {
	ID         string
	PublicID   string
	BusinessID string
}
