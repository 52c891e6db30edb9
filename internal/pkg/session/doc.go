// Package session issues, validates and revokes server-held login sessions.
//
// Clients only ever see an opaque random token. The store keeps
// HMAC(token) as its key, so a leaked store does not leak usable tokens.
package session
