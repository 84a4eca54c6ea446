// Package passkey runs WebAuthn ceremonies for havenAuth.
//
// The client half ([ChallengeClient], [Flow]) fetches a server challenge,
// builds ceremony options, drives an [Authenticator], and reduces the
// outcome to a transport-ready result whose binary fields are standard
// base64 text. Every failure becomes a result carrying an error message.
//
// The server half ([Issuer], [Verifier]) hands out challenges bound to
// signed single-use tickets and verifies attestations and assertions
// against stored [Credential] records.
//
// # What this package must NOT do
//
//   - Create sessions. A verified assertion yields a credential; the caller
//     signs the user in.
//   - Persist raw challenges. Only their sha256 travels in tickets.
package passkey
