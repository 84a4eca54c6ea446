package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	havenAuth "github.com/MrEthical07/havenAuth"
	"github.com/MrEthical07/havenAuth/session"
)

// Authenticator turns a raw session token into an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*session.Identity, error)
}

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by [SessionGuard].
func IdentityFromContext(ctx context.Context) (*session.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*session.Identity)
	return id, ok && id != nil
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id *session.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// SessionGuard rejects requests without a valid session with 401. A session
// backend outage is answered with 503 so clients do not drop their cookie.
func SessionGuard(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			token, ok := sessionToken(r)
			if !ok {
				writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			id, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, havenAuth.ErrSessionBackendUnavailable) {
					writeMessage(w, http.StatusServiceUnavailable, msgUnavailable)
					return
				}
				writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// OptionalSession attaches the identity when the request carries a valid
// session and passes the request through untouched otherwise.
func OptionalSession(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := sessionToken(r); ok && auth != nil {
				if id, err := auth.Authenticate(r.Context(), token); err == nil {
					r = r.WithContext(WithIdentity(r.Context(), id))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestMeta records the socket peer address and user agent in the request
// context so new sessions capture them. Behind a proxy use
// [ProxyTrust.RequestMeta].
func RequestMeta(next http.Handler) http.Handler {
	return (*ProxyTrust)(nil).RequestMeta(next)
}

// SessionToken returns the raw session token of r, if any.
func SessionToken(r *http.Request) (string, bool) {
	return sessionToken(r)
}

// sessionToken prefers the session cookie and falls back to a bearer token.
func sessionToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
