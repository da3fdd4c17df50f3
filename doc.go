// Package authkit provides a session-security engine with JWT access tokens,
// rotating opaque refresh tokens, Redis-backed session and lockout state, and
// bitmask-based permission snapshots.
//
// The package is designed for concurrent server workloads: Engine methods are safe
// to call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authkit is the public surface. It exposes [Engine], [Builder], [Config], and value
// types (LoginResult, AccessIdentity, SessionList, MetricsSnapshot, etc.). Internal
// coordination — session encoding, lockout counters, challenge storage, audit
// dispatch — lives in sub-packages and internal/ and is never exported directly.
//
// Credential storage is the host application's: it implements [PrincipalProvider]
// and keeps the records wherever it wants. authkit owns every policy decision made
// over those records.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Import any sub-package that re-imports authkit (no import cycles).
//
// # Performance contract
//
// ValidateAccess is the hot path. It verifies the signature and decodes the mask
// snapshot without any store round-trip. Login, Refresh, and session operations
// are allowed a small constant number of Redis round-trips per call.
package authkit
