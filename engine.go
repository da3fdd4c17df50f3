package authkit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/scriptdeck/authkit/internal"
	"github.com/scriptdeck/authkit/internal/limiters"
	"github.com/scriptdeck/authkit/jwt"
	"github.com/scriptdeck/authkit/password"
	"github.com/scriptdeck/authkit/permission"
	"github.com/scriptdeck/authkit/session"
)

// Engine defines a public type used by authkit APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config     Config
	registry   *permission.Registry
	roles      *permission.RoleManager
	sessions   *session.Store
	lockout    *limiters.Lockout
	mfaStore   *mfaLoginChallengeStore
	audit      *auditDispatcher
	metrics    *Metrics
	hasher     *password.Hasher
	totp       *totpManager
	jwtManager *jwt.Manager
	provider   PrincipalProvider
	broker     IdentityBroker

	// sessionListCache holds the last successful listing per principal so
	// Sessions can serve a stale view while the registry is unreachable.
	sessionListCache sync.Map
}

func (e *Engine) ready() error {
	if e == nil || e.provider == nil || e.sessions == nil || e.jwtManager == nil {
		return ErrEngineNotReady
	}
	return nil
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// requestFingerprint prefers an explicit fingerprint from the context and
// falls back to hashing the transport hints.
func (e *Engine) requestFingerprint(ctx context.Context) string {
	if fp := fingerprintFromContext(ctx); fp != "" {
		return fp
	}
	ip := clientIPFromContext(ctx)
	ua := userAgentFromContext(ctx)
	if ip == "" && ua == "" {
		return ""
	}
	return internal.HashFingerprint(ip, ua)
}

/*
====================================
LOGIN
====================================
*/

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, identifier, pass string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	record, err := e.provider.GetPrincipalByIdentifier(ctx, identifier)
	if err != nil || record == nil {
		// Unknown identifiers fail with the same error as a wrong
		// password so login cannot be used as an enumeration oracle.
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	if err := statusToError(record.Status); err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, record.PrincipalID, "", err, nil)
		return nil, err
	}

	locked, until, err := e.lockout.Check(ctx, record.PrincipalID)
	if err != nil {
		// Lockout state unknown: fail closed.
		e.metricInc(MetricLockoutBlocked)
		e.emitAudit(ctx, auditEventLockoutBlocked, false, record.PrincipalID, "", ErrAccountLocked, nil)
		return nil, ErrAccountLocked
	}
	if locked {
		e.metricInc(MetricLockoutBlocked)
		e.emitAudit(ctx, auditEventLockoutBlocked, false, record.PrincipalID, "", ErrAccountLocked, func() map[string]string {
			return map[string]string{"locked_until": until.UTC().Format(time.RFC3339)}
		})
		return nil, ErrAccountLocked
	}

	ok := false
	if record.PasswordHash != "" {
		ok, err = e.hasher.Verify(pass, record.PasswordHash)
		if err != nil {
			ok = false
		}
	}
	if !ok {
		return nil, e.failLogin(ctx, record.PrincipalID)
	}

	if e.config.Password.UpgradeOnLogin {
		if needs, err := e.hasher.NeedsRehash(record.PasswordHash); err == nil && needs {
			if upgraded, err := e.hasher.Hash(pass); err == nil {
				_ = e.provider.UpdatePasswordHash(ctx, record.PrincipalID, upgraded)
			}
		}
	}

	if e.config.TOTP.Enabled {
		totpRecord, err := e.provider.GetTOTPRecord(ctx, record.PrincipalID)
		if err != nil {
			// MFA state unknown: refuse rather than skip the factor.
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, record.PrincipalID, "", ErrMFAUnavailable, nil)
			return nil, ErrMFAUnavailable
		}
		if totpRecord != nil && totpRecord.State == MFAEnabled {
			return e.beginLoginChallenge(ctx, record)
		}
	}

	result, err := e.issueSessionTokens(ctx, record)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, record.PrincipalID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, record.PrincipalID, result.SessionID, nil, nil)
	return result, nil
}

// failLogin records a failed credential attempt against the lockout
// counter and reports whether this attempt tripped the lock.
func (e *Engine) failLogin(ctx context.Context, principalID string) error {
	e.metricInc(MetricLoginFailure)

	count, lockedNow, err := e.lockout.RecordFailure(ctx, principalID)
	if err == nil && lockedNow {
		e.metricInc(MetricLockoutTriggered)
		e.emitAudit(ctx, auditEventLockoutTriggered, false, principalID, "", ErrAccountLocked, func() map[string]string {
			return map[string]string{"failures": itoa(count)}
		})
	}

	e.emitAudit(ctx, auditEventLoginFailure, false, principalID, "", ErrInvalidCredentials, nil)
	return ErrInvalidCredentials
}

// issueSessionTokens creates the server-side session and the token pair
// for a fully verified principal. Reaching this point means every required
// factor passed, so the lockout counter is cleared here and nowhere else.
func (e *Engine) issueSessionTokens(ctx context.Context, record *PrincipalRecord) (*LoginResult, error) {
	if limit := e.config.Session.MaxPerPrincipal; limit > 0 {
		active, err := e.sessions.ActiveSessionCount(ctx, record.PrincipalID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
		}
		if active >= limit {
			return nil, ErrSessionLimitExceeded
		}
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	now := time.Now()
	sess := &session.Session{
		SessionID:    sid.String(),
		PrincipalID:  record.PrincipalID,
		Fingerprint:  e.requestFingerprint(ctx),
		RefreshHash:  internal.HashRefreshSecret(secret),
		CreatedAt:    now.Unix(),
		LastActivity: now.Unix(),
		ExpiresAt:    now.Add(e.config.JWT.RefreshTTL).Unix(),
	}

	if err := e.sessions.Save(ctx, sess, e.config.JWT.RefreshTTL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	accessToken, err := e.createAccessToken(record, sess.SessionID)
	if err != nil {
		_ = e.sessions.Delete(ctx, sess.SessionID)
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	refreshToken, err := internal.EncodeRefreshToken(sess.SessionID, secret)
	if err != nil {
		_ = e.sessions.Delete(ctx, sess.SessionID)
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	// Full-factor success: only now does the brute-force counter reset.
	_ = e.lockout.Reset(ctx, record.PrincipalID)
	_ = e.provider.TouchLastLogin(ctx, record.PrincipalID, now)

	e.metricInc(MetricSessionCreated)

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    sess.SessionID,
	}, nil
}

// createAccessToken snapshots the effective permission mask and version
// counters into a signed access token.
func (e *Engine) createAccessToken(record *PrincipalRecord, sessionID string) (string, error) {
	roleMask, _ := e.roles.MaskFor(record.Role)
	effective := permission.Effective(roleMask, record.Overrides)

	return e.jwtManager.CreateAccess(jwt.IssueParams{
		PrincipalID:    record.PrincipalID,
		SessionID:      sessionID,
		Role:           record.Role,
		Mask:           effective.Encode(),
		RoleVersion:    e.roles.Version(),
		AccountVersion: record.AccountVersion,
	})
}

/*
====================================
REFRESH
====================================
*/

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	sessionID, secret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	}

	nextSecret, err := internal.NewRefreshSecret()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	status, err := e.sessions.RotateRefreshHash(
		ctx,
		sessionID,
		internal.HashRefreshSecret(secret),
		internal.HashRefreshSecret(nextSecret),
	)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch status {
	case session.RotateOK:
	case session.RotateReuse:
		// A stale secret against a live session is the replay signature.
		// The store already destroyed the session lineage.
		e.metricInc(MetricRefreshReuseDetected)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, "", sessionID, ErrRefreshReused, nil)
		return nil, ErrRefreshReused
	default:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	}

	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}

	record, err := e.provider.GetPrincipalByID(ctx, sess.PrincipalID)
	if err != nil || record == nil {
		_ = e.sessions.Delete(ctx, sessionID)
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}
	if err := statusToError(record.Status); err != nil {
		_ = e.sessions.Delete(ctx, sessionID)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, record.PrincipalID, sessionID, err, nil)
		return nil, err
	}

	accessToken, err := e.createAccessToken(record, sessionID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	newRefreshToken, err := internal.EncodeRefreshToken(sessionID, nextSecret)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, record.PrincipalID, sessionID, nil, nil)

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
	}, nil
}

/*
====================================
VALIDATE / AUTHORIZE
====================================
*/

// ValidateAccess describes the validateaccess operation and its observable behavior.
//
// ValidateAccess may return an error when input validation, dependency calls, or security checks fail.
// ValidateAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*AccessIdentity, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	mask, err := permission.DecodeMask(claims.Mask)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		return nil, ErrTokenInvalid
	}

	identity := &AccessIdentity{
		PrincipalID:    claims.PID,
		SessionID:      claims.SID,
		Role:           claims.Role,
		Mask:           mask,
		RoleVersion:    claims.RoleVersion,
		AccountVersion: claims.AccountVersion,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}

	e.metricInc(MetricValidateSuccess)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	return identity, nil
}

// Authorize describes the authorize operation and its observable behavior.
//
// Authorize may return an error when input validation, dependency calls, or security checks fail.
// Authorize does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Authorize(ctx context.Context, accessToken, permissionName string) (*AccessIdentity, error) {
	identity, err := e.ValidateAccess(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if err := e.AuthorizeIdentity(identity, permissionName); err != nil {
		return nil, err
	}

	return identity, nil
}

// AuthorizeIdentity checks an already verified identity against a named
// permission using only the snapshot mask. No store access.
func (e *Engine) AuthorizeIdentity(identity *AccessIdentity, permissionName string) error {
	if e == nil || e.registry == nil {
		return ErrEngineNotReady
	}
	if identity == nil {
		return ErrTokenInvalid
	}

	bit, ok := e.registry.Bit(permissionName)
	if !ok {
		return ErrUnknownPermission
	}

	if rootBit, reserved := e.registry.RootBit(); reserved && identity.Mask.Has(rootBit) {
		return nil
	}

	if !identity.Mask.Has(bit) {
		e.metricInc(MetricAuthorizeDenied)
		return ErrPermissionDenied
	}

	return nil
}

/*
====================================
PASSWORD CHANGE
====================================
*/

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// ChangePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ChangePassword(ctx context.Context, principalID, oldPassword, newPassword string) error {
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

	locked, _, err := e.lockout.Check(ctx, principalID)
	if err != nil || locked {
		return ErrAccountLocked
	}

	ok := false
	if record.PasswordHash != "" {
		ok, err = e.hasher.Verify(oldPassword, record.PasswordHash)
		if err != nil {
			ok = false
		}
	}
	if !ok {
		e.metricInc(MetricPasswordChangeFailure)
		_, lockedNow, lockErr := e.lockout.RecordFailure(ctx, principalID)
		if lockErr == nil && lockedNow {
			e.metricInc(MetricLockoutTriggered)
			e.emitAudit(ctx, auditEventLockoutTriggered, false, principalID, "", ErrAccountLocked, nil)
		}
		e.emitAudit(ctx, auditEventPasswordChangeFailed, false, principalID, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if len(newPassword) < e.config.Password.MinLength {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailed, false, principalID, "", ErrPasswordPolicy, nil)
		return ErrPasswordPolicy
	}
	if same, err := e.hasher.Verify(newPassword, record.PasswordHash); err == nil && same {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailed, false, principalID, "", ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.provider.UpdatePasswordHash(ctx, principalID, newHash); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Credential change invalidates every outstanding refresh lineage.
	revoked, err := e.sessions.DeleteAllForPrincipal(ctx, principalID)
	if err != nil {
		return ErrSessionInvalidationFailed
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChanged, true, principalID, "", nil, func() map[string]string {
		return map[string]string{"sessions_revoked": itoa(revoked)}
	})

	return nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
