package authkit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

func isSessionMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// sessionListRetryDelay is the pause before the single re-read of the
// session index when the first read fails.
const sessionListRetryDelay = 50 * time.Millisecond

/*
====================================
SESSION INTROSPECTION / REVOCATION
====================================
*/

// Sessions describes the sessions operation and its observable behavior.
//
// Sessions is a non-security view: when the registry is unreachable it
// serves the last successful listing marked Stale instead of failing. Token
// validation and revocation never use this path.
func (e *Engine) Sessions(ctx context.Context, principalID string) (*SessionList, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	infos, err := e.listSessions(ctx, principalID)
	if err != nil {
		if cached, ok := e.sessionListCache.Load(principalID); ok {
			stale := cached.([]SessionInfo)
			out := make([]SessionInfo, len(stale))
			copy(out, stale)
			return &SessionList{Sessions: out, Stale: true}, nil
		}
		return nil, ErrStoreUnavailable
	}

	snapshot := make([]SessionInfo, len(infos))
	copy(snapshot, infos)
	e.sessionListCache.Store(principalID, snapshot)

	return &SessionList{Sessions: infos}, nil
}

func (e *Engine) listSessions(ctx context.Context, principalID string) ([]SessionInfo, error) {
	ids, err := e.sessions.ActiveSessionIDs(ctx, principalID)
	if err != nil {
		// One retry after a short backoff for a transient read failure.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sessionListRetryDelay):
		}
		ids, err = e.sessions.ActiveSessionIDs(ctx, principalID)
		if err != nil {
			return nil, err
		}
	}

	sessions, err := e.sessions.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, SessionInfo{
			SessionID:    sess.SessionID,
			Fingerprint:  sess.Fingerprint,
			IssuedAt:     time.Unix(sess.CreatedAt, 0),
			LastActivity: time.Unix(sess.LastActivity, 0),
			ExpiresAt:    time.Unix(sess.ExpiresAt, 0),
		})
	}
	return infos, nil
}

// RevokeSession describes the revokesession operation and its observable behavior.
//
// RevokeSession is idempotent: revoking an already-dead session succeeds.
func (e *Engine) RevokeSession(ctx context.Context, principalID, sessionID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	// Scope the revocation: a principal can only kill its own sessions.
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if isSessionMiss(err) {
			return nil
		}
		return ErrSessionInvalidationFailed
	}
	if principalID != "" && sess.PrincipalID != principalID {
		return ErrSessionNotFound
	}

	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return ErrSessionInvalidationFailed
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, true, sess.PrincipalID, sessionID, nil, nil)

	return nil
}

// RevokeAllSessions describes the revokeallsessions operation and its observable behavior.
//
// RevokeAllSessions may return an error when input validation, dependency calls, or security checks fail.
// RevokeAllSessions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RevokeAllSessions(ctx context.Context, principalID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}

	revoked, err := e.sessions.DeleteAllForPrincipal(ctx, principalID)
	if err != nil {
		return 0, ErrSessionInvalidationFailed
	}

	e.metricInc(MetricSessionsRevokedAll)
	e.emitAudit(ctx, auditEventSessionsRevokedAll, true, principalID, "", nil, func() map[string]string {
		return map[string]string{"sessions_revoked": itoa(revoked)}
	})

	return revoked, nil
}
