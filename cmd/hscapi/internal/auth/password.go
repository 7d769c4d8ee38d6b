package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor for stored passwords.
const PasswordCost = 12

// MinPasswordLength is enforced when passwords are set.
const MinPasswordLength = 8

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash. A malformed hash
// is reported as an error rather than a mismatch.
func CheckPassword(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("compare password: %w", err)
	}
}

var (
	decoyOnce sync.Once
	decoyHash string
)

// DecoyHash is a valid hash at PasswordCost that no password matches.
// Comparing against it when a user does not exist keeps login latency the
// same as for a wrong password.
func DecoyHash() string {
	decoyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("decoy password never stored"), PasswordCost)
		if err != nil {
			panic(fmt.Sprintf("generate decoy hash: %v", err))
		}
		decoyHash = string(hash)
	})
	return decoyHash
}
