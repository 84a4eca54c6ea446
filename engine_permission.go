package havenAuth

import (
	"context"

	"github.com/MrEthical07/havenAuth/permission"
	"github.com/MrEthical07/havenAuth/session"
)

// Can reports whether subj may perform action on resource in its active
// shop. Denials are counted.
func (e *Engine) Can(ctx context.Context, subj permission.Subject, action permission.Action, resource permission.Resource) bool {
	if e == nil || e.checker == nil {
		return false
	}
	if e.checker.Can(ctx, subj, action, resource) {
		return true
	}
	e.metricInc(MetricPermissionDenied)
	return false
}

// HasRestriction reports whether subj carries tag in its active shop. An
// engine without a checker reports every tag as restricting.
func (e *Engine) HasRestriction(ctx context.Context, subj permission.Subject, tag string) bool {
	if e == nil || e.checker == nil {
		return true
	}
	return e.checker.HasRestriction(ctx, subj, tag)
}

// CanInBusiness is Can scoped to businessID instead of the active shop.
// Business administration routes use it.
func (e *Engine) CanInBusiness(ctx context.Context, subj permission.Subject, businessID string, action permission.Action, resource permission.Resource) bool {
	if e == nil || e.checker == nil {
		return false
	}
	if e.checker.CanInBusiness(ctx, subj, businessID, action, resource) {
		return true
	}
	e.metricInc(MetricPermissionDenied)
	return false
}

// HasRestrictionInBusiness is HasRestriction scoped to businessID.
func (e *Engine) HasRestrictionInBusiness(ctx context.Context, subj permission.Subject, businessID, tag string) bool {
	if e == nil || e.checker == nil {
		return true
	}
	return e.checker.HasRestrictionInBusiness(ctx, subj, businessID, tag)
}

// Authorize is Can for callers that prefer an error. It returns
// [ErrUnauthorized] without an identity and [ErrPermissionDenied] on denial.
func (e *Engine) Authorize(ctx context.Context, id *session.Identity, action permission.Action, resource permission.Resource) error {
	if id == nil {
		return ErrUnauthorized
	}
	if e.Can(ctx, permission.SubjectFromIdentity(id), action, resource) {
		return nil
	}
	e.emitAudit(ctx, auditEventPermissionDenied, false, id.ID, id.Session.ID, ErrPermissionDenied, func() map[string]string {
		return map[string]string{
			"action":   string(action),
			"resource": string(resource),
			"shop_id":  id.ActiveShopID,
		}
	})
	return ErrPermissionDenied
}

// RefreshPermissions rebuilds the snapshot of userID. The caller must be the
// user or an admin.
func (e *Engine) RefreshPermissions(ctx context.Context, caller *session.Identity, userID string) error {
	if e == nil || e.checker == nil {
		return ErrEngineNotReady
	}
	if caller == nil {
		return ErrUnauthorized
	}
	subj := permission.SubjectFromIdentity(caller)
	if subj.UserID != userID && !subj.IsAdmin() {
		e.emitAudit(ctx, auditEventPermissionRefresh, false, caller.ID, caller.Session.ID, permission.ErrForbidden, func() map[string]string {
			return map[string]string{"target_user_id": userID}
		})
		return permission.ErrForbidden
	}

	if err := e.checker.ClearCache(ctx, userID); err != nil {
		return err
	}
	if err := e.checker.Init(ctx, userID); err != nil {
		e.emitAudit(ctx, auditEventPermissionRefresh, false, caller.ID, caller.Session.ID, err, func() map[string]string {
			return map[string]string{"target_user_id": userID}
		})
		return err
	}
	e.metricInc(MetricPermissionRefresh)
	e.emitAudit(ctx, auditEventPermissionRefresh, true, caller.ID, caller.Session.ID, nil, func() map[string]string {
		return map[string]string{"target_user_id": userID}
	})
	return nil
}
