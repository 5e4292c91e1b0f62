package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2Profile fixes the cost parameters of the key derivation.
type Argon2Profile struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

// RFC 9106 recommended profiles. The low-memory profile is the default.
var (
	RFC9106LowMemory  = Argon2Profile{Time: 3, Memory: 64 * 1024, Threads: 4, SaltLen: 16, KeyLen: 32}
	RFC9106HighMemory = Argon2Profile{Time: 1, Memory: 2 * 1024 * 1024, Threads: 4, SaltLen: 16, KeyLen: 32}
)

// PasswordHasher defines the contract for password operations.
// This interface allows us to easily mock hashing in tests or swap algorithms.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hashed, password string) bool
}

// Argon2Hasher implements PasswordHasher using Argon2id. Hashes serialize to
// PHC strings, so stored credentials keep the parameters they were derived
// with and remain verifiable after a profile change.
type Argon2Hasher struct {
	profile Argon2Profile
}

// NewArgon2Hasher creates a hasher with the given cost profile.
func NewArgon2Hasher(profile Argon2Profile) *Argon2Hasher {
	return &Argon2Hasher{profile: profile}
}

// Hash derives a key from the password under a fresh random salt.
func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.profile.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.profile.Time, h.profile.Memory, h.profile.Threads, h.profile.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.profile.Memory, h.profile.Time, h.profile.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify re-derives the key with the parameters embedded in the stored hash
// and compares in constant time. Malformed input verifies as false, never as
// an error: a bad stored hash is an authentication failure.
func (h *Argon2Hasher) Verify(hashed, password string) bool {
	profile, salt, key, err := decodePHC(hashed)
	if err != nil {
		return false
	}

	derived := argon2.IDKey([]byte(password), salt, profile.Time, profile.Memory, profile.Threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, derived) == 1
}

func decodePHC(hashed string) (Argon2Profile, []byte, []byte, error) {
	var profile Argon2Profile

	parts := strings.Split(hashed, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return profile, nil, nil, fmt.Errorf("malformed argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return profile, nil, nil, fmt.Errorf("malformed version: %w", err)
	}
	if version != argon2.Version {
		return profile, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &profile.Memory, &profile.Time, &profile.Threads); err != nil {
		return profile, nil, nil, fmt.Errorf("malformed parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return profile, nil, nil, fmt.Errorf("malformed salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return profile, nil, nil, fmt.Errorf("malformed key: %w", err)
	}

	return profile, salt, key, nil
}
