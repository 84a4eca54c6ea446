// Package middleware exposes net/http adapters that put the session and
// permission layers in front of handlers.
//
// # Guards
//
//   - [SessionGuard] resolves the session cookie (or bearer token) to an
//     identity and stores it in the request context.
//   - [RequirePermission] and [DenyRestricted] run permission checks
//     against that identity in its active shop.
//   - [RequireBusinessPermission] and [DenyRestrictedInBusiness] run them
//     against a business taken from the request, such as a path parameter.
//   - [RateLimit] throttles requests per client address.
//   - [RequestMeta] records the client address and user agent for session
//     creation.
//   - [ProxyTrust] decides when X-Forwarded-For names the client; both of
//     the above have ProxyTrust methods.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into calls on an [Authenticator]
// and an [Authorizer]. It holds no session or permission state itself.
//
// # What this package must NOT do
//
//   - Read or write session storage directly.
//   - Decide permissions beyond passing the identity to the Authorizer.
//   - Log raw session tokens.
package middleware
