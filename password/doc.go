// Package password hashes and verifies secrets with Argon2id.
//
// Digests use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The same hasher is used for account passwords and for email verification
// codes. It applies no length policy of its own. [Argon2.NeedsUpgrade] reports
// digests produced with weaker parameters so callers can rehash after a
// successful verification.
package password
