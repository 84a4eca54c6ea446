// Package havenAuth is the authentication and authorization engine of a
// multi-tenant commerce backend: opaque server-side sessions, business and
// shop scoped permissions, one-time codes, and passkeys.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Request flow
//
// A raw session token (cookie or bearer) goes to [Engine.Authenticate],
// which validates the session, slides its expiry, and warms the permission
// snapshot of the user. Handlers then ask [Engine.Can] or
// [Engine.HasRestriction] with the identity passed explicitly as a
// permission.Subject.
//
// # Architecture boundaries
//
// havenAuth is the public surface. It exposes [Engine], [Builder], [Config],
// and value types. Stores are plugged in through the session, permission,
// otp, and passkey interfaces; the Postgres implementations live in
// internal/postgres and are wired by cmd/havenauthd.
//
// # What this package must NOT do
//
//   - Import database drivers or internal/postgres.
//   - Log raw session tokens, one-time codes, or unmasked emails.
//   - Import any sub-package that re-imports havenAuth (no import cycles).
package havenAuth
