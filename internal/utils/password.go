package utils

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLen is the shortest password accepted at registration.
// bcrypt only reads the first 72 bytes, so longer inputs are refused
// rather than silently truncated.
const (
	MinPasswordLen = 8
	MaxPasswordLen = 72
)

var ErrWeakPassword = fmt.Errorf("password must have %d to %d characters", MinPasswordLen, MaxPasswordLen)

// CheckPassword enforces the registration length rules.
func CheckPassword(plain string) error {
	if len(plain) < MinPasswordLen || len(plain) > MaxPasswordLen {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword returns the bcrypt hash of plain.  A cost outside bcrypt's
// range falls back to bcrypt.DefaultCost.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches hash.  A malformed hash
// never matches.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
