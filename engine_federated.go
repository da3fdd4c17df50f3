package authkit

import (
	"context"
)

/*
====================================
FEDERATED LOGIN
====================================
*/

// LoginWithIdentity describes the loginwithidentity operation and its observable behavior.
//
// LoginWithIdentity exchanges an OAuth authorization code through the
// configured broker and signs in the pre-linked principal. Unlinked
// identities are rejected; linking is the host application's flow.
func (e *Engine) LoginWithIdentity(ctx context.Context, providerName, code string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.broker == nil {
		return nil, ErrEngineNotReady
	}

	identity, err := e.broker.ExchangeCode(ctx, providerName, code)
	if err != nil || identity == nil {
		e.metricInc(MetricFederatedLoginFailure)
		e.emitAudit(ctx, auditEventFederatedLogin, false, "", "", ErrIdentityCodeInvalid, func() map[string]string {
			return map[string]string{"provider": providerName}
		})
		return nil, ErrIdentityCodeInvalid
	}

	record, err := e.provider.GetPrincipalByFederation(ctx, identity.Provider, identity.Subject)
	if err != nil || record == nil {
		e.metricInc(MetricFederatedLoginFailure)
		e.emitAudit(ctx, auditEventFederatedLogin, false, "", "", ErrIdentityUnlinked, func() map[string]string {
			return map[string]string{"provider": identity.Provider}
		})
		return nil, ErrIdentityUnlinked
	}

	if err := statusToError(record.Status); err != nil {
		e.metricInc(MetricFederatedLoginFailure)
		e.emitAudit(ctx, auditEventFederatedLogin, false, record.PrincipalID, "", err, nil)
		return nil, err
	}

	// The external provider replaced the password factor, not the second
	// factor. An enrolled authenticator still gates the session.
	if e.config.TOTP.Enabled {
		totpRecord, err := e.provider.GetTOTPRecord(ctx, record.PrincipalID)
		if err != nil {
			e.metricInc(MetricFederatedLoginFailure)
			return nil, ErrMFAUnavailable
		}
		if totpRecord != nil && totpRecord.State == MFAEnabled {
			return e.beginLoginChallenge(ctx, record)
		}
	}

	result, err := e.issueSessionTokens(ctx, record)
	if err != nil {
		e.metricInc(MetricFederatedLoginFailure)
		e.emitAudit(ctx, auditEventFederatedLogin, false, record.PrincipalID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricFederatedLoginSuccess)
	e.emitAudit(ctx, auditEventFederatedLogin, true, record.PrincipalID, result.SessionID, nil, func() map[string]string {
		return map[string]string{"provider": identity.Provider}
	})

	return result, nil
}
