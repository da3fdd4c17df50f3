// Package limiters provides the Redis-backed [Lockout] limiter that counts
// failed credential attempts and locks a principal after the configured
// threshold.
//
// The limiter is nil-safe: calling any method on a nil receiver is a no-op.
//
// # Architecture boundaries
//
// The limiter owns its Redis key namespace and counting semantics. The
// consequences of a trip (which operations are refused, whether errors fail
// closed) are decided by the Engine.
//
// # What this package must NOT do
//
//   - Import authkit or any sibling package.
//   - Verify credentials or touch sessions.
package limiters
