package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		SigningMethod: MethodHS256,
		SigningKey:    []byte("0123456789abcdef0123456789abcdef"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Issuer:        "caseworks-test",
		Audience:      "caseworks-api",
		Leeway:        5 * time.Second,
	}
}

func TestAccessRoundTrip(t *testing.T) {
	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	signed, expiresAt, err := m.IssueAccess("acct-1", "advocate", 7)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(expiresAt) > time.Minute || time.Until(expiresAt) < 50*time.Second {
		t.Errorf("expiry %v not near one minute out", expiresAt)
	}

	claims, err := m.VerifyAccess(signed)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "acct-1" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if claims.Role != "advocate" {
		t.Errorf("role = %q", claims.Role)
	}
	if claims.TokenVersion != 7 {
		t.Errorf("token version = %d", claims.TokenVersion)
	}
	if claims.SessionID != "" {
		t.Errorf("access token carries session id %q", claims.SessionID)
	}
}

func TestRefreshRoundTrip(t *testing.T) {
	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	signed, _, err := m.IssueRefresh("acct-1", "sess-9", 3)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := m.VerifyRefresh(signed)
	if err != nil {
		t.Fatal(err)
	}
	if claims.SessionID != "sess-9" {
		t.Errorf("session id = %q", claims.SessionID)
	}
	if claims.TokenVersion != 3 {
		t.Errorf("token version = %d", claims.TokenVersion)
	}
}

func TestKindConfusionRejected(t *testing.T) {
	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	access, _, err := m.IssueAccess("acct-1", "staff", 1)
	if err != nil {
		t.Fatal(err)
	}
	refresh, _, err := m.IssueRefresh("acct-1", "sess-1", 1)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.VerifyRefresh(access); !errors.Is(err, ErrWrongKind) {
		t.Errorf("access-as-refresh err = %v, want ErrWrongKind", err)
	}
	if _, err := m.VerifyAccess(refresh); !errors.Is(err, ErrWrongKind) {
		t.Errorf("refresh-as-access err = %v, want ErrWrongKind", err)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	signed, _, err := m.IssueAccess("acct-1", "staff", 1)
	if err != nil {
		t.Fatal(err)
	}

	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", signed)
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := m.VerifyAccess(tampered); err == nil {
		t.Error("tampered signature verified")
	}

	other := testConfig()
	other.SigningKey = []byte("fedcba9876543210fedcba9876543210")
	m2, err := NewManager(other)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m2.VerifyAccess(signed); err == nil {
		t.Error("token signed under a different key verified")
	}
}

func TestIssuerAudienceEnforced(t *testing.T) {
	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	signed, _, err := m.IssueAccess("acct-1", "staff", 1)
	if err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.Issuer = "someone-else"
	other, err := NewManager(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.VerifyAccess(signed); err == nil {
		t.Error("token with wrong issuer verified")
	}

	cfg = testConfig()
	cfg.Audience = "other-api"
	other, err = NewManager(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.VerifyAccess(signed); err == nil {
		t.Error("token with wrong audience verified")
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.SigningMethod = MethodEd25519
	cfg.SigningKey = priv
	cfg.VerifyKey = pub

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatal(err)
	}

	signed, _, err := m.IssueAccess("acct-1", "admin", 2)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := m.VerifyAccess(signed)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Role != "admin" || claims.TokenVersion != 2 {
		t.Errorf("claims = %+v", claims)
	}
}

func TestNewManagerValidation(t *testing.T) {
	cfg := testConfig()
	cfg.SigningKey = []byte("too-short")
	if _, err := NewManager(cfg); err == nil {
		t.Error("expected rejection of a short hs256 key")
	}

	cfg = testConfig()
	cfg.RefreshTTL = time.Second
	if _, err := NewManager(cfg); err == nil {
		t.Error("expected rejection of refresh TTL below access TTL")
	}

	cfg = testConfig()
	cfg.Issuer = ""
	if _, err := NewManager(cfg); err == nil {
		t.Error("expected rejection of empty issuer")
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("token-a")
	if a != Fingerprint("token-a") {
		t.Error("fingerprint not deterministic")
	}
	if a == Fingerprint("token-b") {
		t.Error("distinct tokens share a fingerprint")
	}
}
