// Package postgres is the relational persistence layer: a gorm connection
// pool, embedded schema migrations, and repositories that implement the
// session, permission, otp, and passkey store interfaces.
//
// # Architecture boundaries
//
// Repositories translate between row models and the domain types of the
// packages they serve. Backend failures are wrapped with the owning
// package's unavailable sentinel; missing rows map to its not-found error.
//
// # What this package must NOT do
//
//   - Make authorization or expiry decisions.
//   - Cache rows between calls.
//   - Log token hashes or one-time codes.
package postgres
