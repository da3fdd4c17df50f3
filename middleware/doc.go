// Package middleware exposes HTTP middleware adapters for access-token
// authentication and permission enforcement built on top of authkit.Engine
// validation.
//
// # Guards
//
//   - [RequireAuth] — verifies the bearer token and injects the identity.
//   - [RequirePermission] — RequireAuth plus a named permission check
//     against the token's mask snapshot.
//
// Each guard reads the Authorization header, calls Engine.ValidateAccess,
// and injects the verified identity into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// the Engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from the Engine.
package middleware
