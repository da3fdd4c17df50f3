package authkit

import (
	"context"
	"errors"
	"time"

	"github.com/scriptdeck/authkit/internal"
)

// beginLoginChallenge parks a password-verified login behind a short-lived
// MFA challenge. No session or token exists until the second factor lands.
func (e *Engine) beginLoginChallenge(ctx context.Context, record *PrincipalRecord) (*LoginResult, error) {
	token, err := internal.NewChallengeToken()
	if err != nil {
		return nil, ErrMFAUnavailable
	}

	challenge := &mfaLoginChallenge{
		PrincipalID: record.PrincipalID,
		Fingerprint: e.requestFingerprint(ctx),
		ExpiresAt:   time.Now().Add(e.config.TOTP.ChallengeTTL).Unix(),
	}

	if err := e.mfaStore.Save(ctx, token, challenge, e.config.TOTP.ChallengeTTL); err != nil {
		return nil, ErrMFAUnavailable
	}

	e.metricInc(MetricMFALoginRequired)
	e.emitAudit(ctx, auditEventMFARequired, true, record.PrincipalID, "", nil, nil)

	return &LoginResult{
		MFARequired:    true,
		ChallengeToken: token,
	}, nil
}

// ConfirmLoginMFA describes the confirmloginmfa operation and its observable behavior.
//
// ConfirmLoginMFA may return an error when input validation, dependency calls, or security checks fail.
// ConfirmLoginMFA does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ConfirmLoginMFA(ctx context.Context, challengeToken, code string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	challenge, err := e.mfaStore.Get(ctx, challengeToken)
	if err != nil {
		switch {
		case errors.Is(err, errMFALoginChallengeNotFound), errors.Is(err, errMFALoginChallengeExpired):
			return nil, ErrMFAChallengeInvalid
		default:
			return nil, ErrMFAUnavailable
		}
	}

	// A challenge is bound to the transport fingerprint it was issued
	// under; a different client cannot complete it.
	if challenge.Fingerprint != "" && challenge.Fingerprint != e.requestFingerprint(ctx) {
		e.metricInc(MetricMFALoginFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, challenge.PrincipalID, "", ErrMFAChallengeInvalid, nil)
		return nil, ErrMFAChallengeInvalid
	}

	record, err := e.provider.GetPrincipalByID(ctx, challenge.PrincipalID)
	if err != nil || record == nil {
		return nil, ErrMFAChallengeInvalid
	}
	if err := statusToError(record.Status); err != nil {
		_, _ = e.mfaStore.Delete(ctx, challengeToken)
		return nil, err
	}

	locked, _, err := e.lockout.Check(ctx, record.PrincipalID)
	if err != nil || locked {
		return nil, ErrAccountLocked
	}

	matched, usedBackup, err := e.verifySecondFactor(ctx, record.PrincipalID, code)
	if err != nil {
		return nil, err
	}

	if !matched {
		return nil, e.failLoginMFA(ctx, challengeToken, record.PrincipalID)
	}

	// The delete is the consumption point: whichever caller removes the
	// challenge mints the session. A concurrent confirm that also passed
	// verification loses the delete and is turned away.
	deleted, err := e.mfaStore.Delete(ctx, challengeToken)
	if err != nil {
		return nil, ErrMFAUnavailable
	}
	if !deleted {
		return nil, ErrMFAChallengeInvalid
	}

	result, err := e.issueSessionTokens(ctx, record)
	if err != nil {
		e.metricInc(MetricMFALoginFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, record.PrincipalID, "", err, nil)
		return nil, err
	}

	if usedBackup {
		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, auditEventBackupCodeUsed, true, record.PrincipalID, result.SessionID, nil, nil)
	}

	e.metricInc(MetricMFALoginSuccess)
	e.emitAudit(ctx, auditEventMFASuccess, true, record.PrincipalID, result.SessionID, nil, nil)

	return result, nil
}

// verifySecondFactor tries the code as a TOTP first and falls back to the
// recovery codes. Returns whether it matched and whether a backup code was
// burned for it.
func (e *Engine) verifySecondFactor(ctx context.Context, principalID, code string) (bool, bool, error) {
	totpRecord, err := e.provider.GetTOTPRecord(ctx, principalID)
	if err != nil {
		return false, false, ErrTOTPUnavailable
	}
	if totpRecord == nil || totpRecord.State != MFAEnabled {
		return false, false, ErrTOTPNotEnrolled
	}

	ok, counter, err := e.totp.VerifyCode(totpRecord.Secret, code, time.Now())
	if err != nil {
		return false, false, ErrTOTPUnavailable
	}
	if ok {
		if e.config.TOTP.EnforceReplayProtection && counter <= totpRecord.LastUsedCounter {
			// Correct code, already spent time step. Treat as a miss.
			return false, false, nil
		}
		if err := e.provider.UpdateTOTPLastUsedCounter(ctx, principalID, counter); err != nil {
			return false, false, ErrTOTPUnavailable
		}
		return true, false, nil
	}

	consumed, err := e.provider.ConsumeBackupCode(ctx, principalID, internal.HashBackupCode(code))
	if err != nil {
		return false, false, ErrBackupCodesUnavailable
	}
	return consumed, consumed, nil
}

// failLoginMFA charges a wrong code to both the challenge attempt counter
// and the principal lockout counter.
func (e *Engine) failLoginMFA(ctx context.Context, challengeToken, principalID string) error {
	e.metricInc(MetricMFALoginFailure)

	_, lockedNow, lockErr := e.lockout.RecordFailure(ctx, principalID)
	if lockErr == nil && lockedNow {
		e.metricInc(MetricLockoutTriggered)
		e.emitAudit(ctx, auditEventLockoutTriggered, false, principalID, "", ErrAccountLocked, nil)
	}

	exceeded, err := e.mfaStore.RecordFailure(ctx, challengeToken, e.config.TOTP.MaxChallengeAttempts)
	if err != nil {
		if errors.Is(err, errMFALoginChallengeNotFound) || errors.Is(err, errMFALoginChallengeExpired) {
			return ErrMFAChallengeInvalid
		}
		return ErrMFAUnavailable
	}
	if exceeded {
		e.metricInc(MetricMFAAttemptsExceeded)
		e.emitAudit(ctx, auditEventMFAAttemptsExceeded, false, principalID, "", ErrMFAAttemptsExceeded, nil)
		return ErrMFAAttemptsExceeded
	}

	e.emitAudit(ctx, auditEventMFAFailure, false, principalID, "", ErrMFAInvalid, nil)
	return ErrMFAInvalid
}
