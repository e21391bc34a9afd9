// Package invite manages the invitation records that gate registration.
//
// An invitation is issued by an admin for one email address and one role.
// The record keeps only the SHA-256 fingerprint of the invitation secret;
// the plaintext secret exists once, in the Issue return value, and is
// delivered to the invitee out of band. Consumption is a single GETDEL, so
// two racing registrations cannot both redeem the same invitation.
package invite

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/caseworks/authcore/internal"
)

var (
	// ErrStoreUnavailable indicates the invite backend is unreachable.
	ErrStoreUnavailable = errors.New("invite backend unavailable")
	// ErrInvalid covers unknown, expired, revoked, consumed, and
	// wrong-secret invitations alike.
	ErrInvalid = errors.New("invitation invalid")
)

const keyPrefix = "ainv:"

// Invitation is the stored record. Secret material never appears here.
type Invitation struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Role              string    `json:"role"`
	IssuedBy          string    `json:"issued_by"`
	SecretFingerprint string    `json:"fp"`
	IssuedAt          time.Time `json:"issued_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// Issued is returned by Issue. Secret is the only copy of the plaintext.
type Issued struct {
	ID        string
	Secret    string
	ExpiresAt time.Time
}

// Store persists invitations in Redis with their TTL as the Redis expiry.
type Store struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

// NewStore returns a Store whose invitations live for ttl.
func NewStore(redisClient redis.UniversalClient, ttl time.Duration) (*Store, error) {
	if redisClient == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl < time.Minute {
		return nil, errors.New("invite TTL must be at least one minute")
	}
	return &Store{redis: redisClient, ttl: ttl}, nil
}

func key(id string) string { return keyPrefix + id }

// Issue creates an invitation for email with the given role.
func (s *Store) Issue(ctx context.Context, email, role, issuedBy string) (Issued, error) {
	if email == "" || role == "" {
		return Issued{}, errors.New("email and role are required")
	}

	id, err := internal.NewSessionID()
	if err != nil {
		return Issued{}, err
	}
	secret, err := internal.NewSecret()
	if err != nil {
		return Issued{}, err
	}

	now := time.Now()
	rec := Invitation{
		ID:                id,
		Email:             email,
		Role:              role,
		IssuedBy:          issuedBy,
		SecretFingerprint: internal.FingerprintHex(secret),
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.ttl),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return Issued{}, err
	}

	if err := s.redis.Set(ctx, key(id), raw, s.ttl).Err(); err != nil {
		return Issued{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return Issued{ID: id, Secret: secret, ExpiresAt: rec.ExpiresAt}, nil
}

// Consume redeems the invitation. The record is removed before validation,
// so a failed redemption still burns the invitation; issuing a fresh one is
// the recovery path. Returns ErrInvalid for every unusable invitation
// without distinguishing why.
func (s *Store) Consume(ctx context.Context, id, secret, email string) (Invitation, error) {
	raw, err := s.redis.GetDel(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Invitation{}, ErrInvalid
	}
	if err != nil {
		return Invitation{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var rec Invitation
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Invitation{}, ErrInvalid
	}

	fp := internal.FingerprintHex(secret)
	if subtle.ConstantTimeCompare([]byte(fp), []byte(rec.SecretFingerprint)) != 1 {
		return Invitation{}, ErrInvalid
	}
	if rec.Email != email {
		return Invitation{}, ErrInvalid
	}
	if !time.Now().Before(rec.ExpiresAt) {
		return Invitation{}, ErrInvalid
	}
	return rec, nil
}

// Revoke withdraws an outstanding invitation. Idempotent.
func (s *Store) Revoke(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Get returns an outstanding invitation without consuming it.
func (s *Store) Get(ctx context.Context, id string) (Invitation, error) {
	raw, err := s.redis.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Invitation{}, ErrInvalid
	}
	if err != nil {
		return Invitation{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var rec Invitation
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Invitation{}, ErrInvalid
	}
	return rec, nil
}
