// Package session provides Redis-backed session persistence and compact
// binary session encoding for authentication hot paths.
//
// # Binary encoding
//
// Sessions are stored as a compact binary blob: a version byte, two
// length-prefixed strings (principal ID, fingerprint), then a fixed 56-byte
// tail holding the refresh hash and three timestamps. The rotation script
// addresses the tail relative to the blob end, so new variable-length
// fields must always be inserted before it.
//
// # Refresh rotation
//
// [Store.RotateRefreshHash] runs a server-side compare-and-swap: under
// concurrent refresh attempts with the same token exactly one caller
// observes [RotateOK]; every other caller observes [RotateReuse] and the
// session is destroyed. Reuse of an already-rotated token is therefore
// indistinguishable from theft and treated as such.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model.
// It does NOT interpret JWT tokens, evaluate permissions, or enforce
// authentication policy. Those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import authkit, jwt, or permission (no upward imports).
//   - Perform application-level authorization decisions.
//   - Store plaintext secrets in [Session] fields.
package session
