package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ChangeSecret replaces the account's credential. The caller proves
// possession of the current secret; the new one must pass policy and must
// not match the current secret or any retained previous one.
//
// Every other session of the account is revoked so a credential change cuts
// off anyone holding a stolen refresh token. keepSessionID names the
// caller's own session, which survives; pass "" to revoke everything. The
// token version is left alone, so the caller's access token stays valid.
func (e *Engine) ChangeSecret(ctx context.Context, accountID, currentSecret, newSecret, keepSessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if accountID == "" || currentSecret == "" {
		return fmt.Errorf("%w: account id and current secret are required", ErrInvalidInput)
	}

	account, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return err
		}
		return storeErr(err)
	}

	ok, err := e.hasher.Verify(currentSecret, account.SecretHash)
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if err := e.checkSecretPolicy(newSecret, account.Email); err != nil {
		return err
	}
	if err := e.checkSecretReuse(newSecret, account); err != nil {
		return err
	}

	newHash, err := e.hasher.Hash(newSecret)
	if err != nil {
		return err
	}

	history := account.SecretHistory
	if e.config.SecretHistoryLimit > 0 {
		history = append([]string{account.SecretHash}, history...)
		if len(history) > e.config.SecretHistoryLimit {
			history = history[:e.config.SecretHistoryLimit]
		}
	}
	if err := e.accounts.UpdateSecret(ctx, account.ID, newHash, history); err != nil {
		return storeErr(err)
	}

	revoked, err := e.revokeOtherSessions(ctx, account.ID, keepSessionID)
	if err != nil {
		return err
	}

	e.metricInc(MetricSecretChanged)
	e.emitAudit(ctx, AuditSecretChanged, account.ID, account.Email, map[string]string{
		"sessions_revoked": strconv.Itoa(revoked),
	})
	return nil
}

func (e *Engine) revokeOtherSessions(ctx context.Context, accountID, keepSessionID string) (int, error) {
	sessions, err := e.sessions.List(ctx, accountID)
	if err != nil {
		return 0, storeErr(err)
	}
	revoked := 0
	for _, s := range sessions {
		if s.ID == keepSessionID {
			continue
		}
		if err := e.sessions.Delete(ctx, accountID, s.ID); err != nil {
			return revoked, storeErr(err)
		}
		revoked++
	}
	return revoked, nil
}

// checkSecretPolicy enforces the new-secret rules that do not depend on
// history: length and triviality.
func (e *Engine) checkSecretPolicy(secret, email string) error {
	if len(secret) < e.config.MinSecretLength {
		return fmt.Errorf("%w: at least %d characters required", ErrSecretPolicy, e.config.MinSecretLength)
	}
	lower := strings.ToLower(secret)
	if lower == strings.ToLower(email) {
		return fmt.Errorf("%w: secret must not equal the email address", ErrSecretPolicy)
	}
	if local, _, found := strings.Cut(email, "@"); found && len(local) >= 4 && strings.Contains(lower, strings.ToLower(local)) {
		return fmt.Errorf("%w: secret must not contain the email address", ErrSecretPolicy)
	}
	return nil
}

// checkSecretReuse verifies the candidate against the current hash and the
// retained history.
func (e *Engine) checkSecretReuse(secret string, account Account) error {
	if e.config.SecretHistoryLimit == 0 {
		return nil
	}
	hashes := append([]string{account.SecretHash}, account.SecretHistory...)
	for _, h := range hashes {
		match, err := e.hasher.Verify(secret, h)
		if err != nil {
			// A malformed historical hash should not block a change.
			continue
		}
		if match {
			return ErrSecretReuse
		}
	}
	return nil
}
