package auth

import (
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/eris-support/triage-service/pkg/util/errorutil"
)

// Password limits for operator accounts. bcrypt ignores bytes past 72, so
// longer passwords are refused rather than silently truncated.
const (
	MinPasswordLength = 6
	maxPasswordBytes  = 72
)

// ValidatePassword checks an operator password against the length limits.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperrors.NewInvalidInput("password is too short", map[string]any{"min_length": MinPasswordLength})
	}
	if len(password) > maxPasswordBytes {
		return apperrors.NewInvalidInput("password is too long", map[string]any{"max_bytes": maxPasswordBytes})
	}
	return nil
}

// HashPassword hashes a plaintext password. A cost outside bcrypt's range
// falls back to bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
