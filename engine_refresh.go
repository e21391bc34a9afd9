package authcore

import (
	"context"
	"errors"

	"github.com/caseworks/authcore/internal"
	"github.com/caseworks/authcore/session"
)

// Refresh rotates a refresh token: it verifies the presented token, swaps
// the session's stored fingerprint for the new one in a single atomic step,
// and returns a fresh access/refresh pair.
//
// Presenting a token that was already rotated out is treated as theft
// evidence: the whole session is revoked and ErrRefreshReuse is returned,
// so neither the thief nor the legitimate holder keeps access. Of two
// racing refreshes with the same valid token exactly one wins; the loser
// observes reuse.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if refreshToken == "" {
		return nil, ErrRefreshInvalid
	}

	claims, err := e.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}

	account, err := e.accounts.GetByID(ctx, claims.Subject)
	if errors.Is(err, ErrAccountNotFound) {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}
	if err != nil {
		return nil, storeErr(err)
	}
	if claims.TokenVersion != account.TokenVersion {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrTokenVersionStale
	}
	if err := statusGate(account); err != nil {
		return nil, err
	}

	// Mint the replacement pair first so the rotation can commit the new
	// fingerprint atomically against the old one.
	pair, err := e.issueTokens(account, claims.SessionID)
	if err != nil {
		return nil, err
	}

	oldFP := internal.FingerprintHex(refreshToken)
	newFP := internal.FingerprintHex(pair.RefreshToken)
	if e.config.DisableRefreshRotation {
		// The presented token stays current; the CAS still runs against the
		// stored fingerprint and slides the session expiry forward.
		pair.RefreshToken = refreshToken
		pair.RefreshExpiresAt = claims.ExpiresAt.Time
		newFP = oldFP
	}
	err = e.sessions.Rotate(ctx, account.ID, claims.SessionID, oldFP, newFP)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrFingerprintMismatch):
		// Reuse of a rotated-out token. Kill the session entirely.
		if derr := e.sessions.Delete(ctx, account.ID, claims.SessionID); derr != nil {
			return nil, storeErr(derr)
		}
		e.metricInc(MetricRefreshReuse)
		e.emitAudit(ctx, AuditRefreshReuse, account.ID, account.Email, map[string]string{
			"session_id": claims.SessionID,
		})
		return nil, ErrRefreshReuse
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	case errors.Is(err, session.ErrSessionCorrupt):
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	default:
		return nil, storeErr(err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, AuditRefreshSuccess, account.ID, account.Email, map[string]string{
		"session_id": claims.SessionID,
	})
	return &pair, nil
}
