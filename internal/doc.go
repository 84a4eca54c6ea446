// Package internal contains helper utilities that are intentionally private to havenAuth:
// token generation and encoding, one-time code generation, and passkey challenge bytes.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - ids: ULID generation for persisted rows
//   - rate: Redis-backed fixed-window attempt limiter
//   - postgres: gorm repositories and embedded migrations
//   - httpapi: chi router exposing session, OTP, passkey and permission endpoints
//   - security: startup posture report
//
// # What this package must NOT do
//
//   - Export types that appear in the public havenAuth API.
//   - Persist or log raw tokens; only [EncodeToken] output is ever stored.
package internal
