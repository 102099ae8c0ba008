package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	for _, pw := range []string{"secret1", "pässwörd", " spaces ", "x"} {
		hash, err := HashPassword(pw, bcrypt.MinCost)
		require.NoError(t, err)
		assert.NotEqual(t, pw, hash)
		assert.True(t, VerifyPassword(pw, hash), "password %q should verify", pw)
		assert.False(t, VerifyPassword(pw+"!", hash))
	}
}

func TestHashPasswordSalted(t *testing.T) {
	a, err := HashPassword("same", bcrypt.MinCost)
	require.NoError(t, err)
	b, err := HashPassword("same", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashPasswordCostFallback(t *testing.T) {
	hash, err := HashPassword("pw", 1)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, DefaultBcryptCost, cost)
}

func TestVerifyPasswordFailsClosed(t *testing.T) {
	// legacy rows stored the password itself
	assert.False(t, VerifyPassword("secret1", "secret1"))
	assert.False(t, VerifyPassword("secret1", ""))
	assert.False(t, VerifyPassword("", "$2a$04$garbage"))
}
