package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/auth"
)

func TestHashAndVerify(t *testing.T) {
	hasher := auth.NewArgon2Hasher(auth.RFC9106LowMemory)

	hash, err := hasher.Hash("correct horse battery")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=4$"))
	assert.True(t, hasher.Verify(hash, "correct horse battery"))
	assert.False(t, hasher.Verify(hash, "wrong horse battery"))
}

func TestHashIsSalted(t *testing.T) {
	hasher := auth.NewArgon2Hasher(auth.RFC9106LowMemory)

	first, err := hasher.Hash("same password")
	require.NoError(t, err)
	second, err := hasher.Hash("same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Verify(first, "same password"))
	assert.True(t, hasher.Verify(second, "same password"))
}

func TestVerifyUsesEmbeddedParameters(t *testing.T) {
	// A hash derived under one profile stays verifiable by a hasher
	// configured with another.
	old := auth.NewArgon2Hasher(auth.Argon2Profile{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32})
	hash, err := old.Hash("migrating password")
	require.NoError(t, err)

	current := auth.NewArgon2Hasher(auth.RFC9106LowMemory)
	assert.True(t, current.Verify(hash, "migrating password"))
}

func TestVerifyMalformedHashIsFalse(t *testing.T) {
	hasher := auth.NewArgon2Hasher(auth.RFC9106LowMemory)

	for _, malformed := range []string{
		"",
		"not a hash",
		"$argon2id$v=19$m=65536,t=3,p=4$short",
		"$bcrypt$v=19$m=65536,t=3,p=4$c2FsdA$a2V5",
		"$argon2id$v=18$m=65536,t=3,p=4$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=3,p=4$!!!$a2V5",
	} {
		assert.False(t, hasher.Verify(malformed, "whatever"), "hash %q", malformed)
	}
}
