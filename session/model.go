package session

import (
	"encoding/json"
	"time"
)

// Session is one refresh-token lineage for an account. The store never holds
// the refresh token itself, only its SHA-256 fingerprint; presenting a token
// whose fingerprint does not match the stored one is treated as reuse of a
// rotated-out token.
type Session struct {
	ID        string
	AccountID string
	Role      string
	// TokenVersion pins the account's invalidation counter at login time.
	TokenVersion uint64
	// RefreshFingerprint is the hex SHA-256 of the currently valid refresh
	// token. Rotation swaps it atomically.
	RefreshFingerprint string

	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time

	// Client metadata captured at login, for session review screens.
	IP        string
	UserAgent string
}

// blob is the stored JSON form. Field names stay short because the rotation
// script decodes and re-encodes the blob in Lua, and timestamps are unix
// milliseconds so Lua can rewrite them with integer arithmetic.
type blob struct {
	ID          string `json:"id"`
	AccountID   string `json:"act"`
	Role        string `json:"rol"`
	Version     uint64 `json:"tv"`
	Fingerprint string `json:"fp"`
	CreatedMS   int64  `json:"ca"`
	LastUsedMS  int64  `json:"lu"`
	ExpiresMS   int64  `json:"exp"`
	IP          string `json:"ip,omitempty"`
	UserAgent   string `json:"ua,omitempty"`
}

func encodeSession(s Session) ([]byte, error) {
	return json.Marshal(blob{
		ID:          s.ID,
		AccountID:   s.AccountID,
		Role:        s.Role,
		Version:     s.TokenVersion,
		Fingerprint: s.RefreshFingerprint,
		CreatedMS:   s.CreatedAt.UnixMilli(),
		LastUsedMS:  s.LastUsedAt.UnixMilli(),
		ExpiresMS:   s.ExpiresAt.UnixMilli(),
		IP:          s.IP,
		UserAgent:   s.UserAgent,
	})
}

func decodeSession(raw []byte) (Session, error) {
	var b blob
	if err := json.Unmarshal(raw, &b); err != nil {
		return Session{}, err
	}
	if b.ID == "" || b.AccountID == "" || b.Fingerprint == "" {
		return Session{}, ErrSessionCorrupt
	}
	return Session{
		ID:                 b.ID,
		AccountID:          b.AccountID,
		Role:               b.Role,
		TokenVersion:       b.Version,
		RefreshFingerprint: b.Fingerprint,
		CreatedAt:          time.UnixMilli(b.CreatedMS),
		LastUsedAt:         time.UnixMilli(b.LastUsedMS),
		ExpiresAt:          time.UnixMilli(b.ExpiresMS),
		IP:                 b.IP,
		UserAgent:          b.UserAgent,
	}, nil
}
