package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCryptoRandomString(t *testing.T) {
	t.Run("Generate correct length", func(t *testing.T) {
		str, err := CryptoRandomString(32)
		require.NoError(t, err)
		assert.Len(t, str, 32)
	})

	t.Run("Generated tokens are unique", func(t *testing.T) {
		a, err := CryptoRandomString(32)
		require.NoError(t, err)
		b, err := CryptoRandomString(32)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("Hex characters only", func(t *testing.T) {
		str, err := CryptoRandomString(21)
		require.NoError(t, err)
		for _, c := range str {
			assert.True(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f'),
				"character %q is not a hex digit", c)
		}
	})
}

func TestSHA256Hex(t *testing.T) {
	t.Run("Known vector", func(t *testing.T) {
		assert.Equal(t,
			"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
			SHA256Hex("hello"))
	})

	t.Run("Deterministic for session token lookup", func(t *testing.T) {
		token, err := CryptoRandomString(48)
		require.NoError(t, err)
		assert.Equal(t, SHA256Hex(token), SHA256Hex(token))
		assert.Len(t, SHA256Hex(token), 64)
	})
}

func TestDeriveKey(t *testing.T) {
	authKey := DeriveKey("operator-passphrase", "cookie-auth", 64)
	encKey := DeriveKey("operator-passphrase", "cookie-encrypt", 32)

	assert.Len(t, authKey, 64)
	assert.Len(t, encKey, 32)
	assert.Equal(t, authKey, DeriveKey("operator-passphrase", "cookie-auth", 64))
	assert.NotEqual(t, authKey[:32], encKey, "purposes must yield independent keys")
	assert.NotEqual(t, encKey, DeriveKey("other-passphrase", "cookie-encrypt", 32))
}
