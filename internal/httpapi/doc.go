// Package httpapi serves the havenAuth engine over HTTP with chi.
//
// Routes mirror the storefront client: password and passkey sign-in under
// /api/auth, one-time codes, and the permission endpoints. Session tokens
// travel in the haven_auth cookie, with a bearer header accepted as well.
package httpapi
