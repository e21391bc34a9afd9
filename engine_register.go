package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caseworks/authcore/invite"
	"github.com/caseworks/authcore/rbac"
)

// IssuedInvite is returned by IssueInvite. Secret is the only copy of the
// plaintext invitation secret; deliver it out of band and discard it.
type IssuedInvite struct {
	ID        string
	Secret    string
	Email     string
	Role      rbac.Role
	ExpiresAt time.Time
}

// IssueInvite creates an invitation binding an email address to a role.
// issuedBy records the issuing admin's account id for the audit trail; the
// transport layer is expected to have already authorized the caller for
// rbac.PermInviteIssue.
func (e *Engine) IssueInvite(ctx context.Context, email string, role rbac.Role, issuedBy string) (*IssuedInvite, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: invalid role", ErrInvalidInput)
	}

	// Refuse an invitation for an email that already has an account, so the
	// invite flow cannot be used to probe for duplicates later.
	if _, err := e.accounts.GetByEmail(ctx, email); err == nil {
		return nil, ErrAccountExists
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, storeErr(err)
	}

	issued, err := e.invites.Issue(ctx, email, role.String(), issuedBy)
	if err != nil {
		return nil, storeErr(err)
	}

	e.metricInc(MetricInviteIssued)
	e.emitAudit(ctx, AuditInviteIssued, issuedBy, "", map[string]string{
		"invite_id": issued.ID,
		"email":     email,
		"role":      role.String(),
	})
	return &IssuedInvite{
		ID:        issued.ID,
		Secret:    issued.Secret,
		Email:     email,
		Role:      role,
		ExpiresAt: issued.ExpiresAt,
	}, nil
}

// RevokeInvite withdraws an outstanding invitation. Idempotent.
func (e *Engine) RevokeInvite(ctx context.Context, inviteID, revokedBy string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.invites.Revoke(ctx, inviteID); err != nil {
		return storeErr(err)
	}
	e.emitAudit(ctx, AuditInviteRevoked, revokedBy, "", map[string]string{
		"invite_id": inviteID,
	})
	return nil
}

// Register redeems an invitation and creates the account. The invitation is
// consumed first and burns whether or not the rest succeeds; a failed
// registration needs a fresh invite. The new account starts active with the
// invited role and token version zero.
func (e *Engine) Register(ctx context.Context, inviteID, inviteSecret, email, secret string) (*Account, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	email = normalizeEmail(email)
	if email == "" || inviteID == "" || inviteSecret == "" {
		return nil, fmt.Errorf("%w: invite id, invite secret, and email are required", ErrInvalidInput)
	}
	if err := e.checkSecretPolicy(secret, email); err != nil {
		return nil, err
	}

	rec, err := e.invites.Consume(ctx, inviteID, inviteSecret, email)
	if errors.Is(err, invite.ErrInvalid) {
		return nil, ErrInviteInvalid
	}
	if err != nil {
		return nil, storeErr(err)
	}

	role, err := rbac.ParseRole(rec.Role)
	if err != nil {
		return nil, ErrInviteInvalid
	}

	hash, err := e.hasher.Hash(secret)
	if err != nil {
		return nil, err
	}

	account := Account{
		ID:           uuid.NewString(),
		Email:        email,
		Role:         role,
		SecretHash:   hash,
		Status:       StatusActive,
		TokenVersion: 0,
		CreatedAt:    time.Now(),
	}
	if err := e.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil, err
		}
		return nil, storeErr(err)
	}

	e.metricInc(MetricAccountRegistered)
	e.emitAudit(ctx, AuditAccountRegistered, account.ID, account.Email, map[string]string{
		"role":      role.String(),
		"invite_id": inviteID,
	})
	return &account, nil
}
