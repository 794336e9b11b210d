package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashKey hashes an admin key for storage in configuration.
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckKey validates a presented admin key against the configured hash.
func CheckKey(key, storedHash string) bool {
	key = strings.TrimSpace(key)
	if key == "" || storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(key)) == nil
}
