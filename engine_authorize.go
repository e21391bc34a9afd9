package authcore

import (
	"context"
	"errors"
	"strings"

	"github.com/caseworks/authcore/rbac"
)

// Authorize is the per-request gate: it authenticates the access token,
// checks the live account state, and evaluates the Access requirement.
//
// Check order is fixed so callers get stable error classes: token validity,
// token version, account status, lockout, then permissions. An ownership
// match on Access.ResourceOwner lets the owner through a failed permission
// check; admin-level actors pass ownership gates for any resource.
func (e *Engine) Authorize(ctx context.Context, accessToken string, access Access) (Identity, error) {
	if e == nil {
		return Identity{}, ErrEngineNotReady
	}
	if strings.TrimSpace(accessToken) == "" {
		e.metricInc(MetricAuthorizeUnauthenticated)
		return Identity{}, ErrUnauthenticated
	}

	claims, err := e.tokens.VerifyAccess(accessToken)
	if err != nil {
		e.metricInc(MetricAuthorizeUnauthenticated)
		return Identity{}, ErrUnauthenticated
	}

	account, err := e.accounts.GetByID(ctx, claims.Subject)
	if errors.Is(err, ErrAccountNotFound) {
		e.metricInc(MetricAuthorizeUnauthenticated)
		return Identity{}, ErrUnauthenticated
	}
	if err != nil {
		return Identity{}, storeErr(err)
	}

	if claims.TokenVersion != account.TokenVersion {
		e.metricInc(MetricAuthorizeUnauthenticated)
		return Identity{}, ErrTokenVersionStale
	}
	if err := statusGate(account); err != nil {
		return Identity{}, err
	}

	lockState, err := e.lockouts.Status(ctx, account.ID)
	if err != nil {
		return Identity{}, storeErr(err)
	}
	if lockState.Locked {
		return Identity{}, &LockedError{Remaining: lockState.Remaining}
	}

	identity := Identity{
		AccountID:    account.ID,
		Email:        account.Email,
		Role:         account.Role,
		Level:        rbac.LevelOf(account.Role),
		Permissions:  rbac.PermissionsFor(account.Role),
		TokenVersion: claims.TokenVersion,
	}

	if e.accessAllowed(identity, access) {
		e.metricInc(MetricAuthorizeAllowed)
		return identity, nil
	}

	e.metricInc(MetricAuthorizeDenied)
	e.emitAudit(ctx, AuditPermissionDenied, account.ID, account.Email, map[string]string{
		"min_role": access.MinRole.String(),
	})
	return Identity{}, ErrPermissionDenied
}

func (e *Engine) accessAllowed(identity Identity, access Access) bool {
	permsOK := rbac.HasAny(identity.Role, access.AnyOf) &&
		rbac.HasAll(identity.Role, access.AllOf)
	roleOK := access.MinRole == 0 || rbac.IsAtLeast(identity.Role, access.MinRole)

	if permsOK && roleOK {
		return true
	}

	if access.ResourceOwner != "" {
		if access.ResourceOwner == identity.AccountID {
			return true
		}
		if rbac.IsAtLeast(identity.Role, rbac.RoleAdmin) {
			return true
		}
	}
	return false
}
