// Package permission provides the fixed-width permission [Mask], a permission
// registry, and role composition helpers used by authkit authorization checks.
//
// # Evaluation model
//
// A principal's effective permissions are computed once at token issuance:
//
//	effective = (role | overrides.Grant) &^ overrides.Deny
//
// Deny always wins. The effective mask is embedded in the access token, so
// authorization checks after issuance are pure bit tests with no I/O.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. It provides the
// codec (Encode/DecodeMask) used to snapshot masks into JWT claims.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authkit, jwt, or session.
//   - Re-evaluate permissions after token issuance.
package permission
