package session

// Session is the server-side state backing one refresh lineage. The
// RefreshHash is the SHA-256 of the current refresh secret; the plaintext
// secret exists only inside the opaque token held by the client.
//
// Session instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Session struct {
	SessionID   string
	PrincipalID string
	Fingerprint string

	RefreshHash [32]byte

	CreatedAt    int64
	LastActivity int64
	ExpiresAt    int64
}
