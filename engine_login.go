package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/caseworks/authcore/internal"
	"github.com/caseworks/authcore/session"
)

// Login authenticates an email/secret pair and opens a new session.
//
// Failure modes are deliberately collapsed: an unknown email and a wrong
// secret both return ErrInvalidCredentials after the same code path, and a
// locked account returns *LockedError before the secret is ever examined,
// so an active lock must fully elapse regardless of what is typed.
func (e *Engine) Login(ctx context.Context, email, secret string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	email = normalizeEmail(email)
	if email == "" || secret == "" {
		return nil, fmt.Errorf("%w: email and secret are required", ErrInvalidInput)
	}

	account, err := e.accounts.GetByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		// Unknown accounts burn a hash anyway so timing does not separate
		// "no such user" from "wrong secret".
		e.hasher.Verify(secret, decoyHash)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLoginFailure, "", email, map[string]string{"reason": "unknown_account"})
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, storeErr(err)
	}

	lockState, err := e.lockouts.Status(ctx, account.ID)
	if err != nil {
		return nil, storeErr(err)
	}
	if lockState.Locked {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, AuditLoginLocked, account.ID, account.Email, nil)
		return nil, &LockedError{Remaining: lockState.Remaining}
	}

	ok, err := e.hasher.Verify(secret, account.SecretHash)
	if err != nil {
		return nil, storeErr(err)
	}
	if !ok {
		state, ferr := e.lockouts.RecordFailure(ctx, account.ID)
		if ferr != nil {
			return nil, storeErr(ferr)
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLoginFailure, account.ID, account.Email, map[string]string{
			"failures": strconv.Itoa(state.Failures),
		})
		if state.Locked {
			e.metricInc(MetricLockoutTriggered)
			e.emitAudit(ctx, AuditLockoutTriggered, account.ID, account.Email, map[string]string{
				"cycle":    strconv.Itoa(state.Cycles),
				"duration": state.Remaining.String(),
			})
		}
		// The attempt that trips the lock still reads as bad credentials;
		// the lock becomes observable on the next attempt.
		return nil, ErrInvalidCredentials
	}

	if err := statusGate(account); err != nil {
		return nil, err
	}

	if err := e.lockouts.RecordSuccess(ctx, account.ID); err != nil {
		return nil, storeErr(err)
	}

	if e.config.RehashOnLogin {
		e.maybeRehash(ctx, &account, secret)
	}

	sessionID, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}
	pair, err := e.issueTokens(account, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	evicted, err := e.sessions.Create(ctx, session.Session{
		ID:                 sessionID,
		AccountID:          account.ID,
		Role:               account.Role.String(),
		TokenVersion:       account.TokenVersion,
		RefreshFingerprint: internal.FingerprintHex(pair.RefreshToken),
		CreatedAt:          now,
		LastUsedAt:         now,
		ExpiresAt:          pair.RefreshExpiresAt,
		IP:                 ClientIPFromContext(ctx),
		UserAgent:          UserAgentFromContext(ctx),
	})
	if err != nil {
		return nil, storeErr(err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditLoginSuccess, account.ID, account.Email, map[string]string{
		"session_id": sessionID,
	})
	for _, sid := range evicted {
		e.metricInc(MetricSessionEvicted)
		e.emitAudit(ctx, AuditSessionEvicted, account.ID, account.Email, map[string]string{
			"session_id": sid,
		})
	}

	return &LoginResult{TokenPair: pair, Account: account, EvictedSessions: evicted}, nil
}

// maybeRehash upgrades the stored hash to current parameters. Best effort:
// a failure here never fails the login.
func (e *Engine) maybeRehash(ctx context.Context, account *Account, secret string) {
	stale, err := e.hasher.NeedsRehash(account.SecretHash)
	if err != nil || !stale {
		return
	}
	newHash, err := e.hasher.Hash(secret)
	if err != nil {
		return
	}
	if err := e.accounts.UpdateSecret(ctx, account.ID, newHash, account.SecretHistory); err != nil {
		return
	}
	account.SecretHash = newHash
}

// decoyHash is a throwaway Argon2id hash verified against unknown accounts
// to equalize login timing. The plaintext is not retained anywhere.
const decoyHash = "$argon2id$v=19$m=65536,t=2,p=2$AAAAAAAAAAAAAAAAAAAAAA$vZ7Zb8Am2stEdBlbY0BDWUROHYw3vsUWsCJvVB8XWTY"
