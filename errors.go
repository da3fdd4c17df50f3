package authkit

import "errors"

var (
	// ErrEngineNotReady is returned when a flow is invoked before Build wired all dependencies.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidCredentials covers wrong password AND unknown principal; the two are indistinguishable to prevent enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while a lockout episode is active. Lockout-backend faults also surface as this error (fail closed).
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDisabled is returned for soft-disabled principals.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountExists is returned when registration collides with an existing identifier.
	ErrAccountExists = errors.New("account already exists")
	// ErrPrincipalNotFound is returned by management operations that take an explicit principal ID.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrPasswordPolicy is returned when a new password fails policy validation.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when a password change presents the current password as the new one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrMFARequired signals that password verification succeeded and a second factor is pending.
	ErrMFARequired = errors.New("mfa required")
	// ErrMFAInvalid is returned when neither a time code nor a backup code verifies.
	ErrMFAInvalid = errors.New("invalid mfa code")
	// ErrMFAChallengeInvalid is returned for unknown or expired login challenges.
	ErrMFAChallengeInvalid = errors.New("mfa challenge invalid or expired")
	// ErrMFAAttemptsExceeded is returned when a login challenge burns through its attempt cap.
	ErrMFAAttemptsExceeded = errors.New("mfa attempts exceeded")
	// ErrMFAUnavailable is returned when the challenge backend is unreachable.
	ErrMFAUnavailable = errors.New("mfa backend unavailable")
	// ErrTOTPFeatureDisabled is returned when TOTP flows are invoked with the feature off.
	ErrTOTPFeatureDisabled = errors.New("totp feature disabled")
	// ErrTOTPNotEnrolled is returned when a TOTP operation needs an enrolled (or pending) secret and none exists.
	ErrTOTPNotEnrolled = errors.New("totp not enrolled")
	// ErrTOTPAlreadyEnrolled is returned when setup is requested for a principal with active TOTP.
	ErrTOTPAlreadyEnrolled = errors.New("totp already enrolled")
	// ErrTOTPInvalid is returned when a time code fails verification during enrollment or disable.
	ErrTOTPInvalid = errors.New("invalid totp code")
	// ErrTOTPUnavailable is returned when the credential store fails during a TOTP operation.
	ErrTOTPUnavailable = errors.New("totp backend unavailable")
	// ErrBackupCodesUnavailable is returned when the credential store fails during backup code operations.
	ErrBackupCodesUnavailable = errors.New("backup code backend unavailable")
	// ErrRefreshInvalid covers malformed, unknown, and expired refresh tokens.
	ErrRefreshInvalid = errors.New("refresh token invalid or expired")
	// ErrRefreshReused signals replay of an already-rotated refresh token. The owning session has been revoked.
	ErrRefreshReused = errors.New("refresh token reuse detected, session revoked")
	// ErrSessionNotFound is returned by targeted revocation when the session does not exist or belongs to another principal.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionLimitExceeded is returned when a login would exceed the per-principal session cap.
	ErrSessionLimitExceeded = errors.New("session limit exceeded")
	// ErrSessionCreationFailed wraps store faults during session registration.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionInvalidationFailed wraps store faults during bulk revocation.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrTokenInvalid covers signature, issuer, audience, and structural access-token failures.
	ErrTokenInvalid = errors.New("access token invalid")
	// ErrTokenExpired is returned for structurally valid but expired access tokens.
	ErrTokenExpired = errors.New("access token expired")
	// ErrPermissionDenied is returned by authorization checks against the token's permission snapshot.
	ErrPermissionDenied = errors.New("insufficient permission")
	// ErrUnknownPermission is returned when an authorization check names an unregistered permission.
	ErrUnknownPermission = errors.New("unknown permission")
	// ErrIdentityCodeInvalid is returned when the identity broker rejects an exchange code.
	ErrIdentityCodeInvalid = errors.New("identity code invalid")
	// ErrIdentityUnlinked is returned when a federated identity maps to no known principal.
	ErrIdentityUnlinked = errors.New("federated identity not linked")
	// ErrStoreUnavailable wraps credential-store faults on paths that fail closed.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)
