// Package hash provides hashing and verification of secrets.
//
// Passwords go through a slow hasher (Bcrypt or Argon2id) selected by the
// algorithm tag stored with the digest. Random tokens and one-time codes go
// through HMACSHA256, whose output doubles as a storage key.
package hash
