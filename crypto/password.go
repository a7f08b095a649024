package crypto

import "golang.org/x/crypto/bcrypt"

// CheckPassword compares a bcrypt hash with its possible plaintext equivalent.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateHash creates a bcrypt hash from a password using the library's
// default cost.
func GenerateHash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hashed), err
}
