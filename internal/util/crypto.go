package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// CryptoRandomBytes generates cryptographically secure random bytes
func CryptoRandomBytes(length int64) ([]byte, error) {
	buf := make([]byte, length)
	_, err := rand.Read(buf)
	return buf, err
}

// CryptoRandomString generates a random hex string for salts and tokens
func CryptoRandomString(length int) (string, error) {
	bytes, err := CryptoRandomBytes(int64((length + 1) / 2))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}

// DeriveKey stretches a configured secret into a fixed-length key via
// PBKDF2. The cookie store needs proper 32/64-byte keys while the
// operator supplies an arbitrary passphrase.
func DeriveKey(secret, purpose string, length int) []byte {
	return pbkdf2.Key([]byte(secret), []byte("openshares:"+purpose), 10000, length, sha256.New)
}

// SHA256Hex returns the SHA-256 hash of s as a lowercase hex string.
// Intended for high-entropy, unguessable values (randomly generated
// session tokens); for such inputs a salt is not required.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
