// Package rate provides Redis-backed fixed-window attempt limiters for
// credential checks.
//
// # Window semantics
//
// Fixed-window counters: INCR + EXPIRE on the first hit. Key prefixes in use:
//   - hov: OTP verification per user and type
//   - hsl: password sign-in per identifier
//   - hsli: password sign-in per IP
//
// # What this package must NOT do
//
//   - Decide what an identifier is (callers build it).
//   - Be imported outside the havenAuth module.
package rate
