// Package jwt signs and verifies the short-lived tickets that bind a passkey
// challenge to the ceremony it was issued for.
//
// # Architecture boundaries
//
// A ticket proves that this server issued a challenge, for which purpose, and
// (for registration) for which user. It does not prove the challenge is
// unspent: single use is enforced by the caller's ledger.
//
// # What this package must NOT do
//
//   - Issue or verify session credentials. Sessions are opaque tokens.
//   - Read any request state.
package jwt
