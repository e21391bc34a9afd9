// Package internal holds small helpers shared across authcore packages.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
)

// NewSessionID returns a 128-bit random identifier, base64url without
// padding (22 characters).
func NewSessionID() (string, error) {
	var buf [16]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}

// NewSecret returns a 256-bit random secret, base64url without padding.
// Used for invitation secrets handed to out-of-band delivery.
func NewSecret() (string, error) {
	var buf [32]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}

// FingerprintHex returns the hex-encoded SHA-256 of s. Stores persist
// fingerprints of secrets and tokens, never the values themselves.
func FingerprintHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
