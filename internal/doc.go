// Package internal contains helper utilities that are intentionally private to
// authkit, including secure random generation and token codecs.
//
// # Sub-packages
//
//   - limiters — the Redis-backed lockout limiter for failed credential attempts
//
// # What this package must NOT do
//
//   - Export types that appear in the public authkit API.
//   - Be imported by any package outside the authkit module.
package internal
