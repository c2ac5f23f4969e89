// Package password hashes and verifies account passwords and holds the
// strength policy applied to new passwords.
//
// # Output format
//
// Argon2id hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports digests produced with weaker parameters so a
// caller can re-hash on the next successful login. [Chain] accepts legacy
// bcrypt digests while hashing everything new with Argon2id.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other tokenauth package.
//   - Log plaintext passwords.
package password
