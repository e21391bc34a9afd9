package authcore

import (
	"context"
	"errors"
	"testing"

	"github.com/caseworks/authcore/rbac"
)

func TestInviteRegisterFlow(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	issued, err := env.engine.IssueInvite(ctx, "newbie@example.org", rbac.RoleStaff, "acct-admin")
	if err != nil {
		t.Fatal(err)
	}
	if issued.Secret == "" || issued.ID == "" {
		t.Fatal("invite missing id or secret")
	}

	account, err := env.engine.Register(ctx, issued.ID, issued.Secret, "newbie@example.org", "a-decent-secret-1")
	if err != nil {
		t.Fatal(err)
	}
	if account.Role != rbac.RoleStaff {
		t.Errorf("role = %v, want staff", account.Role)
	}
	if account.Status != StatusActive {
		t.Errorf("status = %v", account.Status)
	}
	if account.TokenVersion != 0 {
		t.Errorf("token version = %d", account.TokenVersion)
	}

	if _, err := env.engine.Login(ctx, "newbie@example.org", "a-decent-secret-1"); err != nil {
		t.Errorf("registered account cannot log in: %v", err)
	}
}

func TestRegisterConsumesInvite(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	issued, err := env.engine.IssueInvite(ctx, "newbie@example.org", rbac.RoleStaff, "acct-admin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.engine.Register(ctx, issued.ID, issued.Secret, "newbie@example.org", "a-decent-secret-1"); err != nil {
		t.Fatal(err)
	}

	// Second redemption of the same invite fails.
	_, err = env.engine.Register(ctx, issued.ID, issued.Secret, "newbie2@example.org", "a-decent-secret-1")
	if !errors.Is(err, ErrInviteInvalid) {
		t.Errorf("err = %v, want ErrInviteInvalid", err)
	}
}

func TestRegisterWrongInviteSecret(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	issued, err := env.engine.IssueInvite(ctx, "newbie@example.org", rbac.RoleStaff, "acct-admin")
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.engine.Register(ctx, issued.ID, "wrong-invite-secret", "newbie@example.org", "a-decent-secret-1")
	if !errors.Is(err, ErrInviteInvalid) {
		t.Fatalf("err = %v, want ErrInviteInvalid", err)
	}

	// A failed redemption burns the invitation.
	_, err = env.engine.Register(ctx, issued.ID, issued.Secret, "newbie@example.org", "a-decent-secret-1")
	if !errors.Is(err, ErrInviteInvalid) {
		t.Errorf("burned invite err = %v, want ErrInviteInvalid", err)
	}
}

func TestRegisterEmailMustMatchInvite(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	issued, err := env.engine.IssueInvite(ctx, "invited@example.org", rbac.RoleStaff, "acct-admin")
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.engine.Register(ctx, issued.ID, issued.Secret, "someone-else@example.org", "a-decent-secret-1")
	if !errors.Is(err, ErrInviteInvalid) {
		t.Errorf("err = %v, want ErrInviteInvalid", err)
	}
}

func TestRegisterSecretPolicyAppliesBeforeConsumption(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	issued, err := env.engine.IssueInvite(ctx, "newbie@example.org", rbac.RoleStaff, "acct-admin")
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.engine.Register(ctx, issued.ID, issued.Secret, "newbie@example.org", "short")
	if !errors.Is(err, ErrSecretPolicy) {
		t.Fatalf("err = %v, want ErrSecretPolicy", err)
	}

	// Policy failures precede consumption; the invite is still redeemable.
	if _, err := env.engine.Register(ctx, issued.ID, issued.Secret, "newbie@example.org", "a-decent-secret-1"); err != nil {
		t.Errorf("invite was burned by a policy failure: %v", err)
	}
}

func TestIssueInviteForExistingAccount(t *testing.T) {
	env := newTestEngine(t, nil)
	env.seedAccount(t, "acct-1", "alice@example.org", "correct-horse-battery", rbac.RoleStaff)

	_, err := env.engine.IssueInvite(context.Background(), "alice@example.org", rbac.RoleStaff, "acct-admin")
	if !errors.Is(err, ErrAccountExists) {
		t.Errorf("err = %v, want ErrAccountExists", err)
	}
}

func TestRevokeInvite(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	issued, err := env.engine.IssueInvite(ctx, "newbie@example.org", rbac.RoleStaff, "acct-admin")
	if err != nil {
		t.Fatal(err)
	}
	if err := env.engine.RevokeInvite(ctx, issued.ID, "acct-admin"); err != nil {
		t.Fatal(err)
	}

	_, err = env.engine.Register(ctx, issued.ID, issued.Secret, "newbie@example.org", "a-decent-secret-1")
	if !errors.Is(err, ErrInviteInvalid) {
		t.Errorf("revoked invite err = %v, want ErrInviteInvalid", err)
	}
}

func TestIssueInviteValidation(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := env.engine.IssueInvite(ctx, "", rbac.RoleStaff, "acct-admin"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty email err = %v", err)
	}
	if _, err := env.engine.IssueInvite(ctx, "x@example.org", rbac.Role(42), "acct-admin"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad role err = %v", err)
	}
}
