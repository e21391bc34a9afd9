package authcore

import (
	"context"
	"errors"
	"testing"

	"github.com/caseworks/authcore/rbac"
)

func TestChangeSecret(t *testing.T) {
	env := newTestEngine(t, nil)
	env.seedAccount(t, "acct-1", "alice@example.org", "original-secret-1", rbac.RoleStaff)
	ctx := context.Background()

	err := env.engine.ChangeSecret(ctx, "acct-1", "original-secret-1", "brand-new-secret-2", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.engine.Login(ctx, "alice@example.org", "original-secret-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Error("old secret still logs in")
	}
	if _, err := env.engine.Login(ctx, "alice@example.org", "brand-new-secret-2"); err != nil {
		t.Errorf("new secret rejected: %v", err)
	}
	if env.store.updateSecretCalls != 1 {
		t.Errorf("updateSecretCalls = %d", env.store.updateSecretCalls)
	}
}

func TestChangeSecretWrongCurrent(t *testing.T) {
	env := newTestEngine(t, nil)
	env.seedAccount(t, "acct-1", "alice@example.org", "original-secret-1", rbac.RoleStaff)

	err := env.engine.ChangeSecret(context.Background(), "acct-1", "not-the-secret", "brand-new-secret-2", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
	if env.store.updateSecretCalls != 0 {
		t.Error("secret updated despite failed proof of possession")
	}
}

func TestChangeSecretPolicy(t *testing.T) {
	env := newTestEngine(t, nil)
	env.seedAccount(t, "acct-1", "alice@example.org", "original-secret-1", rbac.RoleStaff)
	ctx := context.Background()

	if err := env.engine.ChangeSecret(ctx, "acct-1", "original-secret-1", "short", ""); !errors.Is(err, ErrSecretPolicy) {
		t.Errorf("short secret err = %v", err)
	}
	if err := env.engine.ChangeSecret(ctx, "acct-1", "original-secret-1", "alice@example.org", ""); !errors.Is(err, ErrSecretPolicy) {
		t.Errorf("email-as-secret err = %v", err)
	}
}

func TestChangeSecretReuseRejected(t *testing.T) {
	env := newTestEngine(t, nil)
	env.seedAccount(t, "acct-1", "alice@example.org", "original-secret-1", rbac.RoleStaff)
	ctx := context.Background()

	// Same as current.
	err := env.engine.ChangeSecret(ctx, "acct-1", "original-secret-1", "original-secret-1", "")
	if !errors.Is(err, ErrSecretReuse) {
		t.Errorf("same-as-current err = %v", err)
	}

	// Walk through two changes, then try to reuse the first secret; the
	// history limit is 3 so it is still retained.
	if err := env.engine.ChangeSecret(ctx, "acct-1", "original-secret-1", "second-secret-22", ""); err != nil {
		t.Fatal(err)
	}
	if err := env.engine.ChangeSecret(ctx, "acct-1", "second-secret-22", "third-secret-333", ""); err != nil {
		t.Fatal(err)
	}
	err = env.engine.ChangeSecret(ctx, "acct-1", "third-secret-333", "original-secret-1", "")
	if !errors.Is(err, ErrSecretReuse) {
		t.Errorf("historical reuse err = %v", err)
	}
}

func TestChangeSecretHistoryIsBounded(t *testing.T) {
	env := newTestEngine(t, func(cfg *Config) {
		cfg.SecretHistoryLimit = 2
	})
	env.seedAccount(t, "acct-1", "alice@example.org", "secret-number-0", rbac.RoleStaff)
	ctx := context.Background()

	secrets := []string{"secret-number-1", "secret-number-2", "secret-number-3"}
	current := "secret-number-0"
	for _, next := range secrets {
		if err := env.engine.ChangeSecret(ctx, "acct-1", current, next, ""); err != nil {
			t.Fatal(err)
		}
		current = next
	}

	if got := len(env.store.get("acct-1").SecretHistory); got != 2 {
		t.Errorf("history length = %d, want 2", got)
	}

	// secret-number-0 fell off the history and is usable again.
	if err := env.engine.ChangeSecret(ctx, "acct-1", current, "secret-number-0", ""); err != nil {
		t.Errorf("rotated-out secret rejected: %v", err)
	}
}

func TestChangeSecretRevokesOtherSessions(t *testing.T) {
	env := newTestEngine(t, nil)
	env.seedAccount(t, "acct-1", "alice@example.org", "original-secret-1", rbac.RoleStaff)
	ctx := context.Background()

	keep, err := env.engine.Login(ctx, "alice@example.org", "original-secret-1")
	if err != nil {
		t.Fatal(err)
	}
	stolen, err := env.engine.Login(ctx, "alice@example.org", "original-secret-1")
	if err != nil {
		t.Fatal(err)
	}

	if err := env.engine.ChangeSecret(ctx, "acct-1", "original-secret-1", "brand-new-secret-2", keep.SessionID); err != nil {
		t.Fatal(err)
	}

	// The caller's session survives; every other one is gone.
	if _, err := env.engine.Refresh(ctx, keep.RefreshToken); err != nil {
		t.Errorf("kept session's refresh failed: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, stolen.RefreshToken); err == nil {
		t.Error("other session's refresh survived the secret change")
	}

	// Token version was not bumped: the caller's access token stays valid.
	if _, err := env.engine.Authorize(ctx, keep.AccessToken, Access{}); err != nil {
		t.Errorf("caller's access token rejected: %v", err)
	}
}
