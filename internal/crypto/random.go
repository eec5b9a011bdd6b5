package crypto

import (
	"crypto/rand"
	"math/big"
)

const GeneratedPasswordLength = 16

// GeneratePassword creates a password for accounts created without one. It only uses characters
// accepted by the credential validation rules.
func GeneratePassword() string {
	return secureRandomString(GeneratedPasswordLength)
}

func secureRandomString(length int) string {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"
	result := make([]byte, length)
	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[n.Int64()]
	}
	return string(result)
}
