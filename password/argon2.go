// Package password provides one-way credential hashing for authcore.
//
// Hashes are Argon2id in PHC string format. The cost parameters travel
// inside the hash, so the configured cost can be raised at any time without
// breaking verification of secrets hashed under the old parameters;
// NeedsRehash tells the caller when a stored hash is below current config.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	phcAlgorithm = "argon2id"

	minMemoryKB    uint32 = 8 * 1024
	minIterations  uint32 = 1
	minParallelism uint8  = 1
	minSaltBytes   uint32 = 16
	minKeyBytes    uint32 = 16
	minSecretBytes        = 8
)

// ErrMalformedHash marks a stored hash that cannot be parsed. This is a
// data-integrity fault on the caller's side, not an authentication outcome.
var ErrMalformedHash = errors.New("malformed secret hash")

// Params are the Argon2id cost parameters. Memory is in KiB.
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams are interactive-login costs per the argon2 package guidance.
func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Iterations:  2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher hashes and verifies secrets. It is immutable and safe for
// concurrent use.
type Hasher struct {
	params Params
}

// NewHasher validates the parameters and returns a Hasher.
func NewHasher(p Params) (*Hasher, error) {
	switch {
	case p.Memory < minMemoryKB:
		return nil, errors.New("argon2 memory must be >= 8192 KiB")
	case p.Iterations < minIterations:
		return nil, errors.New("argon2 iterations must be >= 1")
	case p.Parallelism < minParallelism:
		return nil, errors.New("argon2 parallelism must be >= 1")
	case p.SaltLength < minSaltBytes:
		return nil, errors.New("argon2 salt length must be >= 16")
	case p.KeyLength < minKeyBytes:
		return nil, errors.New("argon2 key length must be >= 16")
	}

	return &Hasher{params: p}, nil
}

// Hash derives a salted Argon2id hash of secret and returns it PHC-encoded.
// Secrets shorter than 8 bytes are rejected outright.
func (h *Hasher) Hash(secret string) (string, error) {
	if len(secret) < minSecretBytes {
		return "", errors.New("secret must be at least 8 bytes")
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(secret),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm,
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the hash under the parameters stored in encoded and
// compares in constant time. It returns ErrMalformedHash when encoded is
// not a valid PHC string.
func (h *Hasher) Verify(secret, encoded string) (bool, error) {
	stored, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(secret),
		stored.salt,
		stored.iterations,
		stored.memory,
		stored.parallelism,
		uint32(len(stored.key)),
	)

	return subtle.ConstantTimeCompare(computed, stored.key) == 1, nil
}

// NeedsRehash reports whether the stored hash was produced under weaker
// parameters than the hasher's current configuration.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	stored, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	if stored.memory < h.params.Memory ||
		stored.iterations < h.params.Iterations ||
		stored.parallelism < h.params.Parallelism ||
		uint32(len(stored.key)) != h.params.KeyLength {
		return true, nil
	}
	return false, nil
}

// Params returns the active cost parameters.
func (h *Hasher) Params() Params {
	return h.params
}

type phcFields struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func decodePHC(encoded string) (phcFields, error) {
	var out phcFields

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return out, ErrMalformedHash
	}
	if parts[1] != phcAlgorithm {
		return out, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedHash, parts[1])
	}

	version, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return out, ErrMalformedHash
	}
	v, err := strconv.Atoi(version)
	if err != nil || v != argon2.Version {
		return out, fmt.Errorf("%w: unsupported argon2 version", ErrMalformedHash)
	}

	for _, pair := range strings.Split(parts[3], ",") {
		k, val, found := strings.Cut(pair, "=")
		if !found {
			return out, ErrMalformedHash
		}
		switch k {
		case "m":
			n, err := strconv.ParseUint(val, 10, 32)
			if err != nil {
				return out, ErrMalformedHash
			}
			out.memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(val, 10, 32)
			if err != nil {
				return out, ErrMalformedHash
			}
			out.iterations = uint32(n)
		case "p":
			n, err := strconv.ParseUint(val, 10, 8)
			if err != nil {
				return out, ErrMalformedHash
			}
			out.parallelism = uint8(n)
		default:
			return out, ErrMalformedHash
		}
	}
	if out.memory == 0 || out.iterations == 0 || out.parallelism == 0 {
		return out, ErrMalformedHash
	}

	out.salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(out.salt) < int(minSaltBytes) {
		return out, ErrMalformedHash
	}

	out.key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(out.key) == 0 {
		return out, ErrMalformedHash
	}

	return out, nil
}
