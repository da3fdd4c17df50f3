package authkit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

/*
====================================
ACCOUNT LIFECYCLE
====================================
*/

// CreateAccount describes the createaccount operation and its observable behavior.
//
// CreateAccount may return an error when input validation, dependency calls, or security checks fail.
// CreateAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CreateAccount(ctx context.Context, identifier, pass, role string) (*PrincipalRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	if len(pass) < e.config.Password.MinLength {
		return nil, ErrPasswordPolicy
	}
	if _, ok := e.roles.MaskFor(role); !ok {
		return nil, ErrUnknownPermission
	}

	if existing, err := e.provider.GetPrincipalByIdentifier(ctx, identifier); err == nil && existing != nil {
		return nil, ErrAccountExists
	}

	hash, err := e.hasher.Hash(pass)
	if err != nil {
		return nil, ErrStoreUnavailable
	}

	record := &PrincipalRecord{
		PrincipalID:  uuid.NewString(),
		Identifier:   identifier,
		PasswordHash: hash,
		Status:       StatusActive,
		Role:         role,
		CreatedAt:    time.Now(),
	}

	if err := e.provider.CreatePrincipal(ctx, record); err != nil {
		return nil, ErrStoreUnavailable
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreated, true, record.PrincipalID, "", nil, func() map[string]string {
		return map[string]string{"role": role}
	})

	return record, nil
}

// DisableAccount describes the disableaccount operation and its observable behavior.
//
// DisableAccount soft-disables the record and kills every live session.
// Outstanding access tokens still validate until they expire; that window
// is bounded by the access TTL.
func (e *Engine) DisableAccount(ctx context.Context, principalID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	record, err := e.provider.GetPrincipalByID(ctx, principalID)
	if err != nil || record == nil {
		return ErrPrincipalNotFound
	}

	if err := e.provider.SetStatus(ctx, principalID, StatusDisabled); err != nil {
		return ErrStoreUnavailable
	}

	if _, err := e.sessions.DeleteAllForPrincipal(ctx, principalID); err != nil {
		return ErrSessionInvalidationFailed
	}

	e.metricInc(MetricAccountDisabled)
	e.emitAudit(ctx, auditEventAccountDisabled, true, principalID, "", nil, nil)

	return nil
}
