package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/caseworks/authcore/invite"
	"github.com/caseworks/authcore/lockout"
	"github.com/caseworks/authcore/password"
	"github.com/caseworks/authcore/session"
	"github.com/caseworks/authcore/token"
)

// Engine is the authentication and authorization facade. Construct one with
// [NewBuilder]; it is immutable and safe for concurrent use afterwards.
type Engine struct {
	config   Config
	hasher   *password.Hasher
	tokens   *token.Manager
	lockouts *lockout.Tracker
	sessions *session.Store
	invites  *invite.Store
	accounts AccountStore
	audit    *auditDispatcher
	metrics  *Metrics
}

// Close stops background work (the audit dispatcher). The engine must not
// be used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Metrics exposes the engine's counters, for exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsSnapshot copies all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events overflowed the dispatch queue.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, typ AuditEventType, accountID, email string, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	e.audit.Dispatch(AuditEvent{
		Type:      typ,
		AccountID: accountID,
		Email:     email,
		IP:        ClientIPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		Metadata:  metadata,
	})
}

// normalizeEmail is the canonical form used for lookups and invitations.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// storeErr maps infrastructure failures onto ErrStoreUnavailable while
// passing domain sentinels through untouched.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrInviteInvalid):
		return err
	case errors.Is(err, session.ErrRedisUnavailable),
		errors.Is(err, lockout.ErrTrackerUnavailable),
		errors.Is(err, invite.ErrStoreUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// issueTokens mints the access/refresh pair for an account and session.
func (e *Engine) issueTokens(account Account, sessionID string) (TokenPair, error) {
	access, accessExp, err := e.tokens.IssueAccess(account.ID, account.Role.String(), account.TokenVersion)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := e.tokens.IssueRefresh(account.ID, sessionID, account.TokenVersion)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		SessionID:        sessionID,
	}, nil
}

// statusGate maps a non-active account status to its sentinel.
func statusGate(account Account) error {
	switch account.Status {
	case StatusActive:
		return nil
	case StatusPending:
		return ErrAccountPendingVerification
	case StatusDeactivated:
		return ErrAccountDeactivated
	default:
		return ErrAccountInactive
	}
}
