package authkit

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLockoutTriggered     = "lockout_triggered"
	auditEventLockoutBlocked       = "lockout_blocked"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventRefreshReuseDetected = "refresh_reuse_detected"
	auditEventMFARequired          = "mfa_required"
	auditEventMFASuccess           = "mfa_success"
	auditEventMFAFailure           = "mfa_failure"
	auditEventMFAAttemptsExceeded  = "mfa_attempts_exceeded"
	auditEventTOTPSetupRequested   = "totp_setup_requested"
	auditEventTOTPEnabled          = "totp_enabled"
	auditEventTOTPDisabled         = "totp_disabled"
	auditEventBackupCodesGenerated = "backup_codes_generated"
	auditEventBackupCodeUsed       = "backup_code_used"
	auditEventPasswordChanged      = "password_changed"
	auditEventPasswordChangeFailed = "password_change_failed"
	auditEventAccountCreated       = "account_created"
	auditEventAccountDisabled      = "account_disabled"
	auditEventSessionRevoked       = "session_revoked"
	auditEventSessionsRevokedAll   = "sessions_revoked_all"
	auditEventFederatedLogin       = "federated_login"
)

// AuditErrorCode is the normalized error tag carried in audit events.
// Raw store errors never appear in events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrRefreshInvalid     AuditErrorCode = "refresh_invalid"
	auditErrRefreshReuse       AuditErrorCode = "refresh_reuse"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrSessionLimit       AuditErrorCode = "session_limit_exceeded"
	auditErrMFARequired        AuditErrorCode = "mfa_required"
	auditErrMFAInvalid         AuditErrorCode = "mfa_invalid"
	auditErrMFAExceeded        AuditErrorCode = "mfa_attempts_exceeded"
	auditErrTOTPInvalid        AuditErrorCode = "totp_invalid"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrPermissionDenied   AuditErrorCode = "permission_denied"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrIdentityUnlinked   AuditErrorCode = "identity_unlinked"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	principalID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:   time.Now(),
		EventType:   eventType,
		PrincipalID: principalID,
		SessionID:   sessionID,
		IP:          clientIPFromContext(ctx),
		Success:     success,
	}
	if err != nil {
		event.Error = string(auditErrorCode(err))
	}
	if metadataBuilder != nil {
		event.Metadata = metadataBuilder()
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrRefreshReused):
		return auditErrRefreshReuse
	case errors.Is(err, ErrRefreshInvalid):
		return auditErrRefreshInvalid
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrTokenExpired):
		return auditErrInvalidToken
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrSessionLimitExceeded):
		return auditErrSessionLimit
	case errors.Is(err, ErrMFARequired):
		return auditErrMFARequired
	case errors.Is(err, ErrMFAInvalid), errors.Is(err, ErrMFAChallengeInvalid):
		return auditErrMFAInvalid
	case errors.Is(err, ErrMFAAttemptsExceeded):
		return auditErrMFAExceeded
	case errors.Is(err, ErrTOTPInvalid), errors.Is(err, ErrTOTPNotEnrolled),
		errors.Is(err, ErrTOTPAlreadyEnrolled):
		return auditErrTOTPInvalid
	case errors.Is(err, ErrPasswordPolicy), errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrUnknownPermission):
		return auditErrPermissionDenied
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrIdentityUnlinked), errors.Is(err, ErrIdentityCodeInvalid):
		return auditErrIdentityUnlinked
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrMFAUnavailable),
		errors.Is(err, ErrTOTPUnavailable),
		errors.Is(err, ErrBackupCodesUnavailable),
		errors.Is(err, ErrSessionCreationFailed),
		errors.Is(err, ErrSessionInvalidationFailed):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
