package permission

import (
	"errors"
	"sort"
	"sync"
)

// Action is an operation on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Resource is a guarded entity type.
type Resource string

const (
	ResourceShop         Resource = "shop"
	ResourceProduct      Resource = "product"
	ResourceOrder        Resource = "order"
	ResourceCustomer     Resource = "customer"
	ResourceBusiness     Resource = "business"
	ResourceStaff        Resource = "staff"
	ResourceSubscription Resource = "subscription"
)

// Restriction tags narrow what an assignment may do on top of its actions.
const (
	RestrictReadOnly            = "read-only"
	RestrictNoDelete            = "no-delete"
	RestrictViewOwn             = "view-own"
	RestrictCanRefund           = "can-refund"
	RestrictCanProcessReturns   = "can-process-returns"
	RestrictCanVoidTransaction  = "can-void-transaction"
	RestrictCanAdjustInventory  = "can-adjust-inventory"
	RestrictCanApproveDiscounts = "can-approve-discounts"
)

// Platform roles carried on the user record.
const (
	RolePendingSeller = "pending_seller"
	RoleSeller        = "seller"
	RoleAdmin         = "admin"
)

// Grant returns the "resource:action" string stored in [RoleAccess.Actions].
func Grant(resource Resource, action Action) string {
	return string(resource) + ":" + string(action)
}

// Resources is a role definition: allowed actions per resource.
type Resources map[Resource][]Action

// Grants flattens r into "resource:action" strings, resources sorted by name
// and actions in their declared order.
func (r Resources) Grants() []string {
	names := make([]string, 0, len(r))
	for res := range r {
		names = append(names, string(res))
	}
	sort.Strings(names)

	out := make([]string, 0, len(r)*4)
	for _, name := range names {
		for _, action := range r[Resource(name)] {
			out = append(out, Grant(Resource(name), action))
		}
	}
	return out
}

// Registry holds the resource, action, and restriction vocabulary that role
// definitions and assignment overrides are validated against.
//
// Registries are configured at startup and then frozen.
type Registry struct {
	mu           sync.RWMutex
	resources    map[Resource]map[Action]struct{}
	restrictions map[string]struct{}
	frozen       bool
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{
		resources:    make(map[Resource]map[Action]struct{}),
		restrictions: make(map[string]struct{}),
	}
}

// DefaultRegistry returns a frozen registry with the commerce vocabulary:
// every resource accepts create, read, update, and delete.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	crud := []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
	for _, res := range []Resource{
		ResourceShop, ResourceProduct, ResourceOrder, ResourceCustomer,
		ResourceBusiness, ResourceStaff, ResourceSubscription,
	} {
		_ = r.RegisterResource(res, crud...)
	}
	for _, tag := range []string{
		RestrictReadOnly, RestrictNoDelete, RestrictViewOwn, RestrictCanRefund,
		RestrictCanProcessReturns, RestrictCanVoidTransaction,
		RestrictCanAdjustInventory, RestrictCanApproveDiscounts,
	} {
		_ = r.RegisterRestriction(tag)
	}
	r.Freeze()
	return r
}

// RegisterResource declares resource with its allowed actions.
func (r *Registry) RegisterResource(resource Resource, actions ...Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.New("registry frozen")
	}
	if resource == "" {
		return errors.New("resource name cannot be empty")
	}
	if _, exists := r.resources[resource]; exists {
		return errors.New("resource already registered")
	}
	if len(actions) == 0 {
		return errors.New("resource needs at least one action")
	}

	set := make(map[Action]struct{}, len(actions))
	for _, a := range actions {
		if a == "" {
			return errors.New("action name cannot be empty")
		}
		set[a] = struct{}{}
	}
	r.resources[resource] = set
	return nil
}

// RegisterRestriction declares a restriction tag.
func (r *Registry) RegisterRestriction(tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.New("registry frozen")
	}
	if tag == "" {
		return errors.New("restriction tag cannot be empty")
	}
	if _, exists := r.restrictions[tag]; exists {
		return errors.New("restriction already registered")
	}
	r.restrictions[tag] = struct{}{}
	return nil
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered resources.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.resources)
}

// ValidateResources checks every resource and action of a role definition.
func (r *Registry) ValidateResources(res Resources) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for resource, actions := range res {
		allowed, ok := r.resources[resource]
		if !ok {
			return errors.New("unknown resource: " + string(resource))
		}
		for _, a := range actions {
			if _, ok := allowed[a]; !ok {
				return errors.New("unknown action " + string(a) + " for resource " + string(resource))
			}
		}
	}
	return nil
}

// ValidateRestrictions checks that every tag is registered.
func (r *Registry) ValidateRestrictions(tags []string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tag := range tags {
		if _, ok := r.restrictions[tag]; !ok {
			return errors.New("unknown restriction: " + tag)
		}
	}
	return nil
}
