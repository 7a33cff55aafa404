// Package token hashes refresh tokens for server-side storage.
//
// Stored hashes are bcrypt(prehash(token)). The prehash is HMAC-SHA256 with a
// server key when one is configured, SHA-256 otherwise. Prehashing keeps the
// whole JWT significant: bcrypt alone only reads the first 72 bytes, and
// refresh JWTs share their header and leading claims.
package token
