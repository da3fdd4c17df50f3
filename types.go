package authkit

import (
	"context"
	"time"

	"github.com/scriptdeck/authkit/permission"
)

// AccountStatus is the lifecycle state of a principal record.
type AccountStatus uint8

const (
	// StatusActive permits authentication.
	StatusActive AccountStatus = iota
	// StatusDisabled refuses authentication but keeps the record; principals
	// referenced by sessions are soft-disabled, never hard-deleted.
	StatusDisabled
)

// MFAState describes a principal's TOTP enrollment.
type MFAState uint8

const (
	// MFADisabled means no second factor is configured.
	MFADisabled MFAState = iota
	// MFAPendingSetup means a secret was generated but never confirmed.
	// Pending secrets are not trusted at login.
	MFAPendingSetup
	// MFAEnabled means enrollment was confirmed and login requires a code.
	MFAEnabled
)

// PrincipalRecord is the credential-store view of one principal.
// PasswordHash is empty for purely federated identities.
//
// PrincipalRecord instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PrincipalRecord struct {
	PrincipalID  string
	Identifier   string
	PasswordHash string
	Status       AccountStatus
	Role         string
	Overrides    permission.Overrides

	AccountVersion int64

	CreatedAt   time.Time
	LastLoginAt time.Time
}

// TOTPRecord holds a principal's TOTP enrollment data.
type TOTPRecord struct {
	Secret          []byte
	State           MFAState
	LastUsedCounter int64
}

// BackupCodeRecord is a stored recovery code: hash only, with a consumed
// flag. Consuming a code is irreversible.
type BackupCodeRecord struct {
	Hash     [32]byte
	Consumed bool
}

// PrincipalProvider is the credential-store interface the host application
// implements. Pure data access: every policy decision (lockout, status
// consequences, MFA requirements) lives in the Engine.
//
// Implementations must be safe for concurrent use. ConsumeBackupCode must
// be an atomic conditional update: mark consumed only if not already
// consumed, reporting whether this call did the marking.
type PrincipalProvider interface {
	GetPrincipalByIdentifier(ctx context.Context, identifier string) (*PrincipalRecord, error)
	GetPrincipalByID(ctx context.Context, principalID string) (*PrincipalRecord, error)
	GetPrincipalByFederation(ctx context.Context, provider, subject string) (*PrincipalRecord, error)
	CreatePrincipal(ctx context.Context, record *PrincipalRecord) error
	UpdatePasswordHash(ctx context.Context, principalID, passwordHash string) error
	SetStatus(ctx context.Context, principalID string, status AccountStatus) error
	TouchLastLogin(ctx context.Context, principalID string, at time.Time) error

	GetTOTPRecord(ctx context.Context, principalID string) (*TOTPRecord, error)
	SavePendingTOTPSecret(ctx context.Context, principalID string, secret []byte) error
	ActivateTOTP(ctx context.Context, principalID string) error
	ClearTOTP(ctx context.Context, principalID string) error
	UpdateTOTPLastUsedCounter(ctx context.Context, principalID string, counter int64) error

	ReplaceBackupCodes(ctx context.Context, principalID string, codes []BackupCodeRecord) error
	ConsumeBackupCode(ctx context.Context, principalID string, hash [32]byte) (bool, error)
}

// FederatedIdentity is the result of exchanging an OAuth authorization code
// with an external provider.
type FederatedIdentity struct {
	Provider string
	Subject  string
	Email    string
}

// IdentityBroker is the narrow seam to external OAuth providers. Retry and
// backoff against the provider are the broker's concern, not the Engine's.
type IdentityBroker interface {
	ExchangeCode(ctx context.Context, provider, code string) (*FederatedIdentity, error)
}

// TokenPair is one issued access/refresh pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is the outcome of a login attempt that did not error.
// Exactly one of the two shapes is populated: completed (tokens, session)
// or challenge (MFARequired with the token to present to ConfirmLoginMFA).
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	SessionID    string

	MFARequired    bool
	ChallengeToken string
}

// AccessIdentity is the verified content of an access token: the identity
// and the permission snapshot taken at issuance.
type AccessIdentity struct {
	PrincipalID    string
	SessionID      string
	Role           string
	Mask           permission.Mask
	RoleVersion    int64
	AccountVersion int64
	ExpiresAt      time.Time
}

// SessionInfo is one entry in a principal's active-session listing.
type SessionInfo struct {
	SessionID    string
	Fingerprint  string
	IssuedAt     time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
}

// SessionList is the result of a session enumeration. Stale marks a
// fallback served from the last successful read because the registry was
// unreachable; stale data is acceptable for this non-security view.
type SessionList struct {
	Sessions []SessionInfo
	Stale    bool
}

// TOTPSetup is returned by BeginTOTPSetup: the base32 secret for manual
// entry and the otpauth:// URI for QR rendering.
type TOTPSetup struct {
	SecretBase32 string
	ProvisionURI string
}

func statusToError(status AccountStatus) error {
	switch status {
	case StatusActive:
		return nil
	case StatusDisabled:
		return ErrAccountDisabled
	default:
		return ErrAccountDisabled
	}
}
