package authcore

import (
	"context"
	"errors"
	"strconv"
)

// Logout revokes the session the refresh token belongs to. Idempotent: a
// token whose session is already gone still returns nil. A token that fails
// verification outright returns ErrRefreshInvalid, since it names no
// session to revoke.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return ErrRefreshInvalid
	}

	if err := e.sessions.Delete(ctx, claims.Subject, claims.SessionID); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, AuditLogout, claims.Subject, "", map[string]string{
		"session_id": claims.SessionID,
	})
	return nil
}

// LogoutAll revokes every session of the account and bumps its token
// version, so outstanding access tokens die at their next authorization
// check instead of living out their TTL.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	account, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return err
		}
		return storeErr(err)
	}

	removed, err := e.sessions.DeleteAll(ctx, account.ID)
	if err != nil {
		return storeErr(err)
	}
	if _, err := e.accounts.BumpTokenVersion(ctx, account.ID); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, AuditLogoutAll, account.ID, account.Email, map[string]string{
		"sessions_revoked": strconv.Itoa(removed),
	})
	return nil
}
