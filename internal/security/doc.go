// Package security summarizes the security posture of a configured engine.
//
// The report is derived from configuration only; it never touches a store.
// Callers log it at startup and alert on its warnings.
package security
