// Package jwt manages access-token issuance and verification using configured
// signing keys and strict validation semantics suitable for low-latency
// authentication paths. Tokens carry a permission snapshot taken at issuance;
// verification is a pure signature and claims check with no I/O.
package jwt
