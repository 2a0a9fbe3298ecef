package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// refreshSecretBytes is the entropy of a generated refresh secret.
const refreshSecretBytes = 32

// HashToken returns the lowercase hex SHA-256 digest of a raw token.
// Only the digest is ever persisted or used as a lookup key.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// TokenHashEqual reports whether raw hashes to storedHash, in constant time.
func TokenHashEqual(raw, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(raw)), []byte(storedHash)) == 1
}

// GenerateRefreshSecret returns a new opaque refresh secret: 32 random bytes,
// base64url without padding.
func GenerateRefreshSecret() (string, error) {
	b := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashPrefix returns a short, log-safe identifier for a raw token.
func HashPrefix(raw string) string {
	return HashToken(raw)[:12]
}
