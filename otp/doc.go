// Package otp issues and verifies short-lived one-time codes for the join,
// auth, and reset flows.
//
// Codes are 6 characters from 0-9a-z and live 30 minutes. A (user, type)
// pair holds at most one code; issuing again overwrites it. Verification is
// single-use and reports every failure with the same message. Re-issuing is
// refused for 60 seconds after the last issue.
//
// # What this package must NOT do
//
//   - Deliver codes (email or SMS belong to the caller).
//   - Log codes.
package otp
