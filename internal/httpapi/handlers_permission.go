package httpapi

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/havenAuth/middleware"
	"github.com/MrEthical07/havenAuth/permission"
	"github.com/go-chi/chi/v5"
)

type permissionSummary struct {
	BusinessIDs  []string `json:"businessIds"`
	ShopIDs      []string `json:"shopIds"`
	ActiveShopID string   `json:"activeShopId,omitempty"`
	Restrictions []string `json:"restrictions"`
}

type refreshRequest struct {
	UserID string `json:"userId,omitempty"`
}

type roleRequest struct {
	Name      string               `json:"name"`
	Resources permission.Resources `json:"resources"`
}

type assignmentRequest struct {
	RoleID    string                `json:"roleId"`
	Overrides *permission.Overrides `json:"overrides,omitempty"`
}

func (h *Handler) permissionSummary(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	checker := h.engine.Checker()
	writeSuccess(w, http.StatusOK, permissionSummary{
		BusinessIDs:  checker.BusinessIDs(r.Context(), id.ID),
		ShopIDs:      checker.ShopIDs(r.Context(), id.ID),
		ActiveShopID: id.ActiveShopID,
		Restrictions: checker.Restrictions(r.Context(), permission.SubjectFromIdentity(id)),
	})
}

// checkPermission answers GET /check?action=..&resource=.. for the active
// shop, and ?restriction=.. for a restriction tag.
func (h *Handler) checkPermission(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	subj := permission.SubjectFromIdentity(id)
	q := r.URL.Query()

	if tag := q.Get("restriction"); tag != "" {
		writeSuccess(w, http.StatusOK, map[string]bool{"restricted": h.engine.HasRestriction(r.Context(), subj, tag)})
		return
	}
	action, resource := q.Get("action"), q.Get("resource")
	if action == "" || resource == "" {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "action and resource are required")
		return
	}
	allowed := h.engine.Can(r.Context(), subj, permission.Action(action), permission.Resource(resource))
	writeSuccess(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

// refreshPermissions rebuilds the caller's snapshot, or another user's when
// the caller is an admin.
func (h *Handler) refreshPermissions(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
			return
		}
	}
	target := req.UserID
	if target == "" {
		target = id.ID
	}
	if err := h.engine.RefreshPermissions(r.Context(), id, target); err != nil {
		h.writeDomainError(w, r, "permission_refresh", err)
		return
	}
	writeMessage(w, http.StatusOK, "Permissions refreshed")
}

// businessAdmin returns the role admin and the business in the path.
// Access to that business is enforced by the route's business-scoped guard.
func (h *Handler) businessAdmin(w http.ResponseWriter, r *http.Request) (*permission.Admin, string, bool) {
	admin := h.engine.Admin()
	if admin == nil {
		writeError(w, http.StatusNotImplemented, "ROLES_DISABLED", "Role management is not configured")
		return nil, "", false
	}
	return admin, businessParam(r), true
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	admin, businessID, ok := h.businessAdmin(w, r)
	if !ok {
		return
	}
	roles, err := admin.Roles(r.Context(), businessID)
	if err != nil {
		h.writeDomainError(w, r, "role_list", err)
		return
	}
	writeSuccess(w, http.StatusOK, roles)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	admin, businessID, ok := h.businessAdmin(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	role, err := admin.CreateRole(r.Context(), businessID, req.Name, req.Resources)
	if err != nil {
		h.writeDomainError(w, r, "role_create", err)
		return
	}
	writeSuccess(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	admin, businessID, ok := h.businessAdmin(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	role, err := admin.UpdateRole(r.Context(), businessID, chi.URLParam(r, "roleID"), permission.RoleUpdate{
		Name:      req.Name,
		Resources: req.Resources,
	})
	if err != nil {
		h.writeDomainError(w, r, "role_update", err)
		return
	}
	writeSuccess(w, http.StatusOK, role)
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	admin, businessID, ok := h.businessAdmin(w, r)
	if !ok {
		return
	}
	assignments, err := admin.Assignments(r.Context(), businessID)
	if err != nil {
		h.writeDomainError(w, r, "assignment_list", err)
		return
	}
	writeSuccess(w, http.StatusOK, assignments)
}

// assignRole creates the assignment, or updates it when the user already
// has one in this business.
func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	admin, businessID, ok := h.businessAdmin(w, r)
	if !ok {
		return
	}
	var req assignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	userID := chi.URLParam(r, "userID")
	a, err := admin.UpdateAssignment(r.Context(), businessID, userID, permission.AssignmentUpdate{
		RoleID:    req.RoleID,
		Overrides: req.Overrides,
	})
	status := http.StatusOK
	if errors.Is(err, permission.ErrAssignmentNotFound) {
		a, err = admin.AssignRole(r.Context(), businessID, userID, req.RoleID, req.Overrides)
		status = http.StatusCreated
	}
	if err != nil {
		h.writeDomainError(w, r, "assignment_save", err)
		return
	}
	writeSuccess(w, status, a)
}

func (h *Handler) removeAssignment(w http.ResponseWriter, r *http.Request) {
	admin, businessID, ok := h.businessAdmin(w, r)
	if !ok {
		return
	}
	if err := admin.RemoveAssignment(r.Context(), businessID, chi.URLParam(r, "userID")); err != nil {
		h.writeDomainError(w, r, "assignment_remove", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
