package authcore

import (
	"context"
	"time"

	"github.com/caseworks/authcore/rbac"
)

// Status is an account's lifecycle state.
type Status string

const (
	// StatusActive accounts can authenticate and act.
	StatusActive Status = "active"
	// StatusPending accounts registered but have not completed verification.
	StatusPending Status = "pending"
	// StatusDeactivated accounts are administratively disabled.
	StatusDeactivated Status = "deactivated"
)

// Valid reports whether s is a defined status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPending, StatusDeactivated:
		return true
	}
	return false
}

// Account is the engine's view of one principal, loaded through the
// caller-supplied AccountStore. The engine never persists accounts itself.
type Account struct {
	ID    string
	Email string
	Role  rbac.Role
	// SecretHash is the current PHC-encoded credential hash.
	SecretHash string
	// SecretHistory holds previous hashes, newest first, bounded by
	// Config.SecretHistoryLimit. Used to refuse recent-secret reuse.
	SecretHistory []string
	Status        Status
	// TokenVersion is the global invalidation counter. Tokens carrying an
	// older version are rejected everywhere.
	TokenVersion uint64
	CreatedAt    time.Time
}

// AccountStore is the persistence port the host application implements. All
// methods must be safe for concurrent use. Lookups that find nothing return
// ErrAccountNotFound (or an error matching it with errors.Is).
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (Account, error)
	GetByID(ctx context.Context, id string) (Account, error)
	// Create inserts a new account. A duplicate email returns
	// ErrAccountExists.
	Create(ctx context.Context, account Account) error
	// UpdateSecret replaces the credential hash and the bounded history
	// together.
	UpdateSecret(ctx context.Context, id, newHash string, history []string) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	// BumpTokenVersion atomically increments the invalidation counter and
	// returns the new value.
	BumpTokenVersion(ctx context.Context, id string) (uint64, error)
}

// Identity is the authenticated principal attached to a request after
// Authorize succeeds.
type Identity struct {
	AccountID   string
	Email       string
	Role        rbac.Role
	Level       int
	Permissions []string
	// TokenVersion is the version carried by the presented token.
	TokenVersion uint64
}

// HasPermission reports whether the identity's role grants perm.
func (id Identity) HasPermission(perm string) bool {
	return rbac.Has(id.Role, perm)
}

// TokenPair is the result of login and refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	SessionID        string
}

// LoginResult carries the token pair plus login-time side information.
type LoginResult struct {
	TokenPair
	Account Account
	// EvictedSessions lists session ids displaced by the per-account cap.
	EvictedSessions []string
}

// Access is a declarative authorization requirement checked by Authorize.
// Zero-value Access requires only a valid authenticated identity.
type Access struct {
	// AnyOf is satisfied by holding at least one listed permission.
	AnyOf []string
	// AllOf requires every listed permission.
	AllOf []string
	// MinRole requires the actor to sit at or above this role.
	MinRole rbac.Role
	// ResourceOwner, when set, lets the owning account through even if the
	// permission checks fail. Admin-level actors also pass ownership gates.
	ResourceOwner string
}

// SessionInfo is the review-facing view of a live session. No token
// material is exposed.
type SessionInfo struct {
	ID         string
	AccountID  string
	Role       string
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
	IP         string
	UserAgent  string
}
