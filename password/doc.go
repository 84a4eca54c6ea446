// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.NeedsRehash] reports hashes produced with weaker parameters so
// sign-in can upgrade them in place.
//
// # What this package must NOT do
//
//   - Store or look up passwords.
//   - Import any other havenAuth package.
//   - Log plaintext or hashes.
package password
