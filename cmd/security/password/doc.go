// Package password hashes and verifies account passwords.
//
// Hashes use Argon2id in the PHC string format
// ($argon2id$v=19$m=..,t=..,p=..$salt$key). Stored hashes are treated as
// untrusted input: Verify refuses parameters far above the configured cost.
package password
