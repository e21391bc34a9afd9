package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/caseworks/authcore/lockout"
)

// SetAccountStatus moves an account between lifecycle states. Deactivation
// also revokes every session and bumps the token version, so a disabled
// account loses access immediately rather than at token expiry.
func (e *Engine) SetAccountStatus(ctx context.Context, accountID string, status Status, changedBy string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if !status.Valid() {
		return fmt.Errorf("%w: invalid status %q", ErrInvalidInput, status)
	}

	account, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return err
		}
		return storeErr(err)
	}
	if account.Status == status {
		return nil
	}

	if err := e.accounts.UpdateStatus(ctx, account.ID, status); err != nil {
		return storeErr(err)
	}

	if status == StatusDeactivated {
		if _, err := e.sessions.DeleteAll(ctx, account.ID); err != nil {
			return storeErr(err)
		}
		if _, err := e.accounts.BumpTokenVersion(ctx, account.ID); err != nil {
			return storeErr(err)
		}
	}

	e.emitAudit(ctx, AuditAccountStatusSet, account.ID, account.Email, map[string]string{
		"from":       string(account.Status),
		"to":         string(status),
		"changed_by": changedBy,
	})
	return nil
}

// LockoutStatus reports the account's current lockout state, for admin
// screens.
func (e *Engine) LockoutStatus(ctx context.Context, accountID string) (lockout.Status, error) {
	if e == nil {
		return lockout.Status{}, ErrEngineNotReady
	}
	state, err := e.lockouts.Status(ctx, accountID)
	if err != nil {
		return lockout.Status{}, storeErr(err)
	}
	return state, nil
}

// UnlockAccount lifts an active lockout ahead of schedule. The doubling
// history is kept, so an account that immediately re-offends escalates
// instead of starting over.
func (e *Engine) UnlockAccount(ctx context.Context, accountID, unlockedBy string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.lockouts.Unlock(ctx, accountID); err != nil {
		return storeErr(err)
	}
	e.emitAudit(ctx, AuditAccountUnlocked, accountID, "", map[string]string{
		"unlocked_by": unlockedBy,
	})
	return nil
}
