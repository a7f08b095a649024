package crypto

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateSecureToken creates a cryptographically secure random token,
// hex-encoded to 2*length characters. Used for tenant api_key and
// hmac_secret generation.
func GenerateSecureToken(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic("crypto: failed to read random bytes: " + err.Error())
	}
	return hex.EncodeToString(b)
}
