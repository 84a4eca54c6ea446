package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/havenAuth/permission"
)

// Authorizer answers permission questions for an explicit subject.
type Authorizer interface {
	Can(ctx context.Context, subj permission.Subject, action permission.Action, resource permission.Resource) bool
	HasRestriction(ctx context.Context, subj permission.Subject, tag string) bool
}

// RequirePermission allows the request only when the identity may perform
// action on resource in its active shop. It must run after [SessionGuard].
func RequirePermission(az Authorizer, action permission.Action, resource permission.Resource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			if az == nil || !az.Can(r.Context(), permission.SubjectFromIdentity(id), action, resource) {
				writeMessage(w, http.StatusForbidden, msgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DenyRestricted rejects identities carrying tag in their active shop.
func DenyRestricted(az Authorizer, tag string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			if az == nil || az.HasRestriction(r.Context(), permission.SubjectFromIdentity(id), tag) {
				writeMessage(w, http.StatusForbidden, msgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BusinessAuthorizer answers permission questions scoped to one business.
type BusinessAuthorizer interface {
	CanInBusiness(ctx context.Context, subj permission.Subject, businessID string, action permission.Action, resource permission.Resource) bool
	HasRestrictionInBusiness(ctx context.Context, subj permission.Subject, businessID, tag string) bool
}

// BusinessFunc extracts the target business id from a request, usually a
// path parameter.
type BusinessFunc func(r *http.Request) string

// RequireBusinessPermission allows the request only when the identity may
// perform action on resource in the business named by the request. Access
// in the active shop is not consulted.
func RequireBusinessPermission(az BusinessAuthorizer, business BusinessFunc, action permission.Action, resource permission.Resource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			if az == nil || business == nil ||
				!az.CanInBusiness(r.Context(), permission.SubjectFromIdentity(id), business(r), action, resource) {
				writeMessage(w, http.StatusForbidden, msgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DenyRestrictedInBusiness rejects identities carrying tag in the business
// named by the request.
func DenyRestrictedInBusiness(az BusinessAuthorizer, business BusinessFunc, tag string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			if az == nil || business == nil ||
				az.HasRestrictionInBusiness(r.Context(), permission.SubjectFromIdentity(id), business(r), tag) {
				writeMessage(w, http.StatusForbidden, msgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole allows only identities carrying role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			if !id.HasRole(role) {
				writeMessage(w, http.StatusForbidden, msgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
