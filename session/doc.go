// Package session manages server-side sessions addressed by an opaque raw
// token that only ever reaches storage in encoded form.
//
// # Lifecycle
//
// [Manager.Create] stores a session with expiry now+TTL. [Manager.Validate]
// looks the session and its user up in one store call, fails closed on an
// unknown, expired, or orphaned session (evicting the row best-effort), and
// slides the expiry forward once a tenth or less of the TTL remains.
//
// # Architecture boundaries
//
// This package owns the [Store] contract, the Redis implementation, and the
// [Identity] value handed to authorization code. The Postgres implementation
// lives in internal/postgres.
//
// # What this package must NOT do
//
//   - Import havenAuth, permission, or otp (no upward imports).
//   - Make authorization decisions.
//   - Persist or log raw tokens.
package session
