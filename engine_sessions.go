package authcore

import (
	"context"
	"errors"

	"github.com/caseworks/authcore/session"
)

// Sessions lists the account's live sessions, most recently used first.
// Intended for "where am I logged in" views and admin session review.
func (e *Engine) Sessions(ctx context.Context, accountID string) ([]SessionInfo, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	sessions, err := e.sessions.List(ctx, accountID)
	if err != nil {
		return nil, storeErr(err)
	}

	infos := make([]SessionInfo, len(sessions))
	for i, s := range sessions {
		infos[i] = SessionInfo{
			ID:         s.ID,
			AccountID:  s.AccountID,
			Role:       s.Role,
			CreatedAt:  s.CreatedAt,
			LastUsedAt: s.LastUsedAt,
			ExpiresAt:  s.ExpiresAt,
			IP:         s.IP,
			UserAgent:  s.UserAgent,
		}
	}
	return infos, nil
}

// RevokeSession revokes one session by id. Idempotent. revokedBy records
// who acted, for the audit trail.
func (e *Engine) RevokeSession(ctx context.Context, accountID, sessionID, revokedBy string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.sessions.Delete(ctx, accountID, sessionID); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, AuditSessionRevoked, accountID, "", map[string]string{
		"session_id": sessionID,
		"revoked_by": revokedBy,
	})
	return nil
}

// GetSession loads one session's review view.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (SessionInfo, error) {
	if e == nil {
		return SessionInfo{}, ErrEngineNotReady
	}
	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return SessionInfo{}, ErrSessionNotFound
		}
		return SessionInfo{}, storeErr(err)
	}
	return SessionInfo{
		ID:         s.ID,
		AccountID:  s.AccountID,
		Role:       s.Role,
		CreatedAt:  s.CreatedAt,
		LastUsedAt: s.LastUsedAt,
		ExpiresAt:  s.ExpiresAt,
		IP:         s.IP,
		UserAgent:  s.UserAgent,
	}, nil
}
