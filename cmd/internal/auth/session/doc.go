// Package session implements the login session lifecycle.
//
// Access tokens are short-lived HS256 JWTs verified statelessly. Refresh
// tokens are HS256 JWTs signed with a separate secret; the server keeps only
// a salted hash of each one in the sessions table. A refresh rotates the
// stored hash in place, so a session keeps its id for its whole life.
package session
