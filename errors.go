package authcore

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors, grouped by how the caller should react. Authentication
// failures are deliberately uniform ("invalid credentials") so responses do
// not reveal whether an email is registered.
var (
	// ErrInvalidInput marks malformed caller input (validation class).
	ErrInvalidInput = errors.New("invalid input")
	// ErrSecretPolicy is returned when a new secret fails the policy checks.
	ErrSecretPolicy = errors.New("secret policy violation")
	// ErrSecretReuse is returned when a new secret matches a recent one.
	ErrSecretReuse = errors.New("secret was used recently")

	// ErrInvalidCredentials covers unknown account and wrong secret alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned by Authorize for missing or bad tokens.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrTokenInvalid marks a token that failed signature/expiry/claim checks.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenVersionStale marks a token issued before a global invalidation.
	ErrTokenVersionStale = errors.New("token version stale")
	// ErrRefreshInvalid marks a refresh token that failed verification.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse marks presentation of an already-rotated refresh token.
	ErrRefreshReuse = errors.New("refresh token reuse detected")

	// ErrAccountLocked is the lockout class; see LockedError for the
	// remaining duration.
	ErrAccountLocked = errors.New("account locked")

	// ErrAccountInactive is the shared class for non-active accounts.
	ErrAccountInactive = errors.New("account inactive")
	// ErrAccountDeactivated wraps ErrAccountInactive for deactivated accounts.
	ErrAccountDeactivated = fmt.Errorf("%w: deactivated", ErrAccountInactive)
	// ErrAccountPendingVerification wraps ErrAccountInactive for accounts
	// that have not completed verification.
	ErrAccountPendingVerification = fmt.Errorf("%w: pending verification", ErrAccountInactive)

	// ErrPermissionDenied is returned for an authenticated identity without
	// sufficient rights. Unlike authentication failures it may be specific.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAccountNotFound is returned by account-management operations that
	// name an account explicitly (never by Login).
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned by Register for a duplicate email.
	ErrAccountExists = errors.New("account already exists")

	// ErrInviteInvalid covers unknown, expired, revoked, and already-consumed
	// invitations.
	ErrInviteInvalid = errors.New("invitation invalid")

	// ErrSessionNotFound is returned when a session id resolves to nothing.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStoreUnavailable marks backend (Redis or account store) failure.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrEngineNotReady is returned when the engine is missing dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// LockedError reports an active lockout together with the time left until
// it elapses, so clients can show a countdown. It matches ErrAccountLocked
// under errors.Is.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked for %s", e.Remaining.Round(time.Second))
}

func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}
