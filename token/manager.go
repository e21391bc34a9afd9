// Package token issues and verifies the signed bearer tokens used by
// authcore: short-lived access tokens and session-bound refresh tokens.
//
// Both kinds are JWTs (golang-jwt/v5) signed with a server-held key, HS256
// or Ed25519. Every token carries the account's token-version claim; the
// engine compares it against the live account record so a single counter
// bump invalidates everything issued before it.
package token

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the JWS algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with an HMAC-SHA256 shared key.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key.
	MethodEd25519 SigningMethod = "ed25519"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// ErrWrongKind is returned when an access token is presented where a
// refresh token is expected, or vice versa.
var ErrWrongKind = errors.New("wrong token kind")

// Config holds the signing and validation parameters.
type Config struct {
	SigningMethod SigningMethod
	// SigningKey is the HMAC secret or Ed25519 private key (raw or PEM).
	SigningKey []byte
	// VerifyKey is the Ed25519 public key; unused for HS256.
	VerifyKey []byte
	// RefreshSigningKey optionally signs refresh tokens with a distinct
	// key. Empty means SigningKey is used for both kinds.
	RefreshSigningKey []byte
	RefreshVerifyKey  []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	Issuer   string
	Audience string
	// Leeway is the clock-skew tolerance applied to exp/nbf/iat checks.
	Leeway time.Duration
	// MaxFutureIAT bounds how far in the future an iat claim may sit.
	MaxFutureIAT time.Duration
}

// Claims is the claim set for both token kinds. SessionID is populated on
// refresh tokens only.
type Claims struct {
	Kind         string `json:"knd"`
	Role         string `json:"rol,omitempty"`
	SessionID    string `json:"sid,omitempty"`
	TokenVersion uint64 `json:"tv"`
	jwt.RegisteredClaims
}

// Manager issues and verifies tokens. Immutable after construction.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("leeway must be within [0, 2m]")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.SigningKey) < 32 {
			return nil, errors.New("hs256 signing key must be at least 32 bytes")
		}
	case MethodEd25519:
		if _, err := parseEdPrivate(cfg.SigningKey); err != nil {
			return nil, err
		}
		verify := cfg.VerifyKey
		if len(verify) == 0 {
			return nil, errors.New("ed25519 requires a verify key")
		}
		if _, err := parseEdPublic(verify); err != nil {
			return nil, err
		}
		if len(cfg.RefreshSigningKey) > 0 {
			if _, err := parseEdPrivate(cfg.RefreshSigningKey); err != nil {
				return nil, err
			}
			if _, err := parseEdPublic(cfg.RefreshVerifyKey); err != nil {
				return nil, err
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// IssueAccess signs an access token for the account and returns the compact
// token string and its expiry.
func (m *Manager) IssueAccess(accountID, role string, tokenVersion uint64) (string, time.Time, error) {
	return m.issue(kindAccess, accountID, role, "", tokenVersion, m.config.AccessTTL, m.signKey(kindAccess))
}

// IssueRefresh signs a refresh token bound to the session.
func (m *Manager) IssueRefresh(accountID, sessionID string, tokenVersion uint64) (string, time.Time, error) {
	return m.issue(kindRefresh, accountID, "", sessionID, tokenVersion, m.config.RefreshTTL, m.signKey(kindRefresh))
}

func (m *Manager) issue(kind, sub, role, sid string, tv uint64, ttl time.Duration, key any) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		Kind:         kind,
		Role:         role,
		SessionID:    sid,
		TokenVersion: tv,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(m.method(), claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyAccess parses and validates an access token.
func (m *Manager) VerifyAccess(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, kindAccess)
}

// VerifyRefresh parses and validates a refresh token.
func (m *Manager) VerifyRefresh(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, kindRefresh)
}

func (m *Manager) verify(tokenStr, wantKind string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != m.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm %s", t.Method.Alg())
		}
		return m.verifyKey(wantKind)
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Kind != wantKind {
		return nil, ErrWrongKind
	}
	if claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if wantKind == kindRefresh && claims.SessionID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(time.Now().Add(m.config.MaxFutureIAT)) {
		return nil, errors.New("token iat too far in the future")
	}

	return claims, nil
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// Fingerprint returns the SHA-256 of a compact token string. Sessions store
// this fingerprint, never the token itself.
func Fingerprint(tokenStr string) [32]byte {
	return sha256.Sum256([]byte(tokenStr))
}

func (m *Manager) method() jwt.SigningMethod {
	if m.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func (m *Manager) signKey(kind string) any {
	raw := m.config.SigningKey
	if kind == kindRefresh && len(m.config.RefreshSigningKey) > 0 {
		raw = m.config.RefreshSigningKey
	}
	if m.config.SigningMethod == MethodHS256 {
		return raw
	}
	key, _ := parseEdPrivate(raw)
	return key
}

func (m *Manager) verifyKey(kind string) (any, error) {
	if m.config.SigningMethod == MethodHS256 {
		if kind == kindRefresh && len(m.config.RefreshSigningKey) > 0 {
			return m.config.RefreshSigningKey, nil
		}
		return m.config.SigningKey, nil
	}
	raw := m.config.VerifyKey
	if kind == kindRefresh && len(m.config.RefreshVerifyKey) > 0 {
		raw = m.config.RefreshVerifyKey
	}
	return parseEdPublic(raw)
}

func parseEdPrivate(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	if strings.Contains(string(key), "PRIVATE KEY") {
		parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
		if err != nil {
			return nil, errors.New("invalid ed25519 private key")
		}
		edKey, ok := parsed.(ed25519.PrivateKey)
		if !ok {
			return nil, errors.New("invalid ed25519 private key type")
		}
		return edKey, nil
	}
	return nil, errors.New("invalid ed25519 private key")
}

func parseEdPublic(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	if strings.Contains(string(key), "PUBLIC KEY") {
		parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
		if err != nil {
			return nil, errors.New("invalid ed25519 public key")
		}
		edKey, ok := parsed.(ed25519.PublicKey)
		if !ok {
			return nil, errors.New("invalid ed25519 public key type")
		}
		return edKey, nil
	}
	return nil, errors.New("invalid ed25519 public key")
}
