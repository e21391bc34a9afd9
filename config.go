package authcore

import (
	"errors"
	"time"

	"github.com/caseworks/authcore/lockout"
	"github.com/caseworks/authcore/password"
	"github.com/caseworks/authcore/session"
	"github.com/caseworks/authcore/token"
)

// Config is the engine's complete policy. Treat as immutable after Build.
type Config struct {
	Token    token.Config
	Password password.Params
	Lockout  lockout.Config
	Session  session.Config

	// InviteTTL is how long an issued invitation stays redeemable.
	InviteTTL time.Duration

	// MinSecretLength applies to new secrets at registration and change.
	MinSecretLength int
	// SecretHistoryLimit bounds how many previous hashes are retained and
	// checked against reuse. Zero disables history.
	SecretHistoryLimit int
	// RehashOnLogin upgrades stored hashes to current cost parameters
	// opportunistically, when the plaintext is in hand anyway.
	RehashOnLogin bool
	// DisableRefreshRotation keeps the same refresh token across Refresh
	// calls instead of rotating it. Reuse detection is lost; only set this
	// for clients that cannot store a replacement token reliably.
	DisableRefreshRotation bool

	Audit AuditConfig
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	// BufferSize is the dispatch queue length. Events beyond a full buffer
	// are counted as dropped, never blocked on.
	BufferSize int
}

// DefaultConfig returns a production-ready policy signed with signingKey
// (HS256, 32 bytes minimum).
func DefaultConfig(signingKey []byte) Config {
	return Config{
		Token: token.Config{
			SigningMethod: token.MethodHS256,
			SigningKey:    signingKey,
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
			Issuer:        "caseworks",
			Leeway:        30 * time.Second,
		},
		Password: password.DefaultParams(),
		Lockout:  lockout.DefaultConfig(),
		Session: session.Config{
			TTL:           30 * 24 * time.Hour,
			MaxPerAccount: 10,
		},
		InviteTTL:          7 * 24 * time.Hour,
		MinSecretLength:    10,
		SecretHistoryLimit: 5,
		RehashOnLogin:      true,
		Audit:              AuditConfig{BufferSize: 1024},
	}
}

func validateConfig(cfg Config) error {
	if cfg.MinSecretLength < 8 {
		return errors.New("minimum secret length must be at least 8")
	}
	if cfg.SecretHistoryLimit < 0 {
		return errors.New("secret history limit must not be negative")
	}
	if cfg.InviteTTL < time.Minute {
		return errors.New("invite TTL must be at least one minute")
	}
	if cfg.Audit.BufferSize < 0 {
		return errors.New("audit buffer size must not be negative")
	}
	if cfg.Session.TTL < cfg.Token.RefreshTTL {
		return errors.New("session TTL must cover the refresh token TTL")
	}
	return nil
}
