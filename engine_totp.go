package authkit

import (
	"context"
	"time"
)

/*
====================================
TOTP ENROLLMENT
====================================
*/

// BeginTOTPSetup describes the begintotpsetup operation and its observable behavior.
//
// BeginTOTPSetup may return an error when input validation, dependency calls, or security checks fail.
// BeginTOTPSetup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) BeginTOTPSetup(ctx context.Context, principalID string) (*TOTPSetup, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.config.TOTP.Enabled {
		return nil, ErrTOTPFeatureDisabled
	}

	record, err := e.provider.GetPrincipalByID(ctx, principalID)
	if err != nil || record == nil {
		return nil, ErrPrincipalNotFound
	}
	if err := statusToError(record.Status); err != nil {
		return nil, err
	}

	existing, err := e.provider.GetTOTPRecord(ctx, principalID)
	if err != nil {
		return nil, ErrTOTPUnavailable
	}
	if existing != nil && existing.State == MFAEnabled {
		return nil, ErrTOTPAlreadyEnrolled
	}

	// A repeated setup request overwrites any pending secret. Pending
	// secrets carry no authority until confirmed.
	secret, secretBase32, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, ErrTOTPUnavailable
	}

	if err := e.provider.SavePendingTOTPSecret(ctx, principalID, secret); err != nil {
		return nil, ErrTOTPUnavailable
	}

	e.emitAudit(ctx, auditEventTOTPSetupRequested, true, principalID, "", nil, nil)

	return &TOTPSetup{
		SecretBase32: secretBase32,
		ProvisionURI: e.totp.ProvisionURI(secretBase32, record.Identifier),
	}, nil
}

// ConfirmTOTPSetup describes the confirmtotpsetup operation and its observable behavior.
//
// ConfirmTOTPSetup may return an error when input validation, dependency calls, or security checks fail.
// ConfirmTOTPSetup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ConfirmTOTPSetup(ctx context.Context, principalID, code string) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.config.TOTP.Enabled {
		return nil, ErrTOTPFeatureDisabled
	}

	record, err := e.provider.GetTOTPRecord(ctx, principalID)
	if err != nil {
		return nil, ErrTOTPUnavailable
	}
	if record == nil || record.State != MFAPendingSetup {
		return nil, ErrTOTPNotEnrolled
	}

	ok, counter, err := e.totp.VerifyCode(record.Secret, code, time.Now())
	if err != nil {
		return nil, ErrTOTPUnavailable
	}
	if !ok {
		e.emitAudit(ctx, auditEventMFAFailure, false, principalID, "", ErrTOTPInvalid, nil)
		return nil, ErrTOTPInvalid
	}

	if err := e.provider.ActivateTOTP(ctx, principalID); err != nil {
		return nil, ErrTOTPUnavailable
	}
	_ = e.provider.UpdateTOTPLastUsedCounter(ctx, principalID, counter)

	// Recovery codes exist only alongside an active second factor. The
	// plaintext codes leave this function once and are never retrievable.
	codes, err := e.replaceBackupCodes(ctx, principalID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricTOTPEnabled)
	e.emitAudit(ctx, auditEventTOTPEnabled, true, principalID, "", nil, nil)

	return codes, nil
}

// DisableTOTP describes the disabletotp operation and its observable behavior.
//
// DisableTOTP requires fresh proof: either the current password or a valid
// second-factor code. A stolen access token alone cannot strip MFA.
func (e *Engine) DisableTOTP(ctx context.Context, principalID, currentPassword, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	record, err := e.provider.GetPrincipalByID(ctx, principalID)
	if err != nil || record == nil {
		return ErrPrincipalNotFound
	}
	if err := statusToError(record.Status); err != nil {
		return err
	}

	totpRecord, err := e.provider.GetTOTPRecord(ctx, principalID)
	if err != nil {
		return ErrTOTPUnavailable
	}
	if totpRecord == nil || totpRecord.State == MFADisabled {
		return ErrTOTPNotEnrolled
	}

	proven := false
	if currentPassword != "" && record.PasswordHash != "" {
		if ok, err := e.hasher.Verify(currentPassword, record.PasswordHash); err == nil && ok {
			proven = true
		}
	}
	if !proven && code != "" && totpRecord.State == MFAEnabled {
		matched, _, err := e.verifySecondFactor(ctx, principalID, code)
		if err == nil && matched {
			proven = true
		}
	}
	if !proven {
		e.emitAudit(ctx, auditEventMFAFailure, false, principalID, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if err := e.provider.ClearTOTP(ctx, principalID); err != nil {
		return ErrTOTPUnavailable
	}
	// Orphaned recovery codes die with the factor they recover.
	if err := e.provider.ReplaceBackupCodes(ctx, principalID, nil); err != nil {
		return ErrBackupCodesUnavailable
	}

	e.metricInc(MetricTOTPDisabled)
	e.emitAudit(ctx, auditEventTOTPDisabled, true, principalID, "", nil, nil)

	return nil
}
