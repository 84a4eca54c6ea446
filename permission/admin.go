package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by a RoleStore for missing rows.
	ErrNotFound = errors.New("permission record not found")
	// ErrRoleNotFound is returned when a role is missing or belongs to another business.
	ErrRoleNotFound = errors.New("Role not found")
	// ErrAssignmentNotFound is returned when no assignment binds the user to the business.
	ErrAssignmentNotFound = errors.New("Assignment not found")
	// ErrForbidden is returned when the caller may not act on the target user.
	ErrForbidden = errors.New("Unauthorized")
	// ErrInvalidRole is returned for role definitions that fail validation.
	ErrInvalidRole = errors.New("invalid role definition")
)

const (
	minRoleNameLen = 2
	maxRoleNameLen = 50
)

// RoleStore persists roles and assignments.
type RoleStore interface {
	CreateRole(ctx context.Context, role *Role) error
	Role(ctx context.Context, roleID string) (*Role, error)
	SaveRole(ctx context.Context, role *Role) error
	RolesForBusiness(ctx context.Context, businessID string) ([]Role, error)

	CreateAssignment(ctx context.Context, a *Assignment) error
	AssignmentFor(ctx context.Context, businessID, userID string) (*Assignment, error)
	SaveAssignment(ctx context.Context, a *Assignment) error
	DeleteAssignment(ctx context.Context, assignmentID string) error
	AssignmentsForBusiness(ctx context.Context, businessID string) ([]Assignment, error)
}

// RoleUpdate carries the optional fields of [Admin.UpdateRole].
type RoleUpdate struct {
	Name      string
	Resources Resources
}

// AssignmentUpdate carries the optional fields of [Admin.UpdateAssignment].
type AssignmentUpdate struct {
	RoleID    string
	Overrides *Overrides
}

// Admin manages roles and assignments. Every mutation clears the cache of the
// users it affects so the next Init recomputes their snapshot.
type Admin struct {
	store    RoleStore
	registry *Registry
	checker  *Checker
	now      func() time.Time
	logger   *slog.Logger
}

// NewAdmin wires an Admin. A nil registry uses [DefaultRegistry].
func NewAdmin(store RoleStore, registry *Registry, checker *Checker, logger *slog.Logger) *Admin {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Admin{
		store:    store,
		registry: registry,
		checker:  checker,
		now:      time.Now,
		logger:   logger,
	}
}

func (a *Admin) validateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < minRoleNameLen {
		return fmt.Errorf("%w: Role name must be at least 2 characters", ErrInvalidRole)
	}
	if n > maxRoleNameLen {
		return fmt.Errorf("%w: Role name must be at most 50 characters", ErrInvalidRole)
	}
	return nil
}

func (a *Admin) validateOverrides(o *Overrides) error {
	if o == nil {
		return nil
	}
	if err := a.registry.ValidateRestrictions(o.Restrictions); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRole, err)
	}
	return nil
}

func (a *Admin) clear(ctx context.Context, userIDs ...string) {
	for _, id := range userIDs {
		if err := a.checker.ClearCache(ctx, id); err != nil {
			a.logger.WarnContext(ctx, "permission cache clear failed",
				"module", "permission",
				"operation", "clear_cache",
				"outcome", "swallowed",
				"user_id", id,
				"error", err,
			)
		}
	}
}

// CreateRole defines a role within businessID.
func (a *Admin) CreateRole(ctx context.Context, businessID, name string, resources Resources) (*Role, error) {
	if businessID == "" {
		return nil, fmt.Errorf("%w: business id is required", ErrInvalidRole)
	}
	if err := a.validateName(name); err != nil {
		return nil, err
	}
	if err := a.registry.ValidateResources(resources); err != nil {
		return nil, errors.Join(ErrInvalidRole, err)
	}

	now := a.now()
	role := &Role{
		ID:         uuid.NewString(),
		Name:       name,
		BusinessID: businessID,
		Resources:  resources,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.store.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// AssignRole binds userID to roleID within businessID.
func (a *Admin) AssignRole(ctx context.Context, businessID, userID, roleID string, overrides *Overrides) (*Assignment, error) {
	if businessID == "" || userID == "" || roleID == "" {
		return nil, fmt.Errorf("%w: business, user and role ids are required", ErrInvalidRole)
	}
	if err := a.validateOverrides(overrides); err != nil {
		return nil, err
	}
	if err := a.roleInBusiness(ctx, businessID, roleID); err != nil {
		return nil, err
	}

	now := a.now()
	asg := &Assignment{
		ID:         uuid.NewString(),
		UserID:     userID,
		BusinessID: businessID,
		RoleID:     roleID,
		Overrides:  overrides,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.store.CreateAssignment(ctx, asg); err != nil {
		return nil, err
	}
	a.clear(ctx, userID)
	return asg, nil
}

// UpdateRole renames a role or replaces its resources. The role must belong
// to businessID. Every user assigned the role loses their cache entry.
func (a *Admin) UpdateRole(ctx context.Context, businessID, roleID string, upd RoleUpdate) (*Role, error) {
	role, err := a.store.Role(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	if role.BusinessID != businessID {
		return nil, ErrRoleNotFound
	}

	if upd.Name != "" {
		if err := a.validateName(upd.Name); err != nil {
			return nil, err
		}
		role.Name = upd.Name
	}
	if upd.Resources != nil {
		if err := a.registry.ValidateResources(upd.Resources); err != nil {
			return nil, errors.Join(ErrInvalidRole, err)
		}
		role.Resources = upd.Resources
	}
	role.UpdatedAt = a.now()

	if err := a.store.SaveRole(ctx, role); err != nil {
		return nil, err
	}

	assignments, err := a.store.AssignmentsForBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	for _, asg := range assignments {
		if asg.RoleID == roleID {
			a.clear(ctx, asg.UserID)
		}
	}
	return role, nil
}

// UpdateAssignment changes the role or overrides of userID within businessID.
func (a *Admin) UpdateAssignment(ctx context.Context, businessID, userID string, upd AssignmentUpdate) (*Assignment, error) {
	asg, err := a.store.AssignmentFor(ctx, businessID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	if upd.RoleID != "" {
		if err := a.roleInBusiness(ctx, businessID, upd.RoleID); err != nil {
			return nil, err
		}
		asg.RoleID = upd.RoleID
	}
	if upd.Overrides != nil {
		if err := a.validateOverrides(upd.Overrides); err != nil {
			return nil, err
		}
		asg.Overrides = upd.Overrides
	}
	asg.UpdatedAt = a.now()

	if err := a.store.SaveAssignment(ctx, asg); err != nil {
		return nil, err
	}
	a.clear(ctx, userID)
	return asg, nil
}

// roleInBusiness reports ErrRoleNotFound unless roleID exists within
// businessID.
func (a *Admin) roleInBusiness(ctx context.Context, businessID, roleID string) error {
	role, err := a.store.Role(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrRoleNotFound
		}
		return err
	}
	if role.BusinessID != businessID {
		return ErrRoleNotFound
	}
	return nil
}

// RemoveAssignment deletes the assignment of userID within businessID, if any.
func (a *Admin) RemoveAssignment(ctx context.Context, businessID, userID string) error {
	asg, err := a.store.AssignmentFor(ctx, businessID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if err := a.store.DeleteAssignment(ctx, asg.ID); err != nil {
		return err
	}
	a.clear(ctx, userID)
	return nil
}

// Roles lists the roles of businessID.
func (a *Admin) Roles(ctx context.Context, businessID string) ([]Role, error) {
	return a.store.RolesForBusiness(ctx, businessID)
}

// Assignments lists the assignments of businessID.
func (a *Admin) Assignments(ctx context.Context, businessID string) ([]Assignment, error) {
	return a.store.AssignmentsForBusiness(ctx, businessID)
}

// RefreshUser drops the cached snapshot of userID and resolves a new one,
// which also persists it. Only the user themselves or an admin may ask.
func (a *Admin) RefreshUser(ctx context.Context, caller Subject, userID string) error {
	if caller.UserID != userID && !caller.IsAdmin() {
		return ErrForbidden
	}
	if err := a.checker.ClearCache(ctx, userID); err != nil {
		return err
	}
	return a.checker.Init(ctx, userID)
}
