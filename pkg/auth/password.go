package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 12
	MinPasswordLen    = 8
	MaxPasswordLen    = 72 // bcrypt ignores anything longer
)

// ErrPasswordMismatch is returned when a password does not match its hash
var ErrPasswordMismatch = errors.New("password does not match")

// PasswordValidationError lists the rules a password failed. Error() stays
// generic so the rules are not echoed back to clients.
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	return "invalid password"
}

var commonPasswords = map[string]bool{
	"password":     true,
	"password1":    true,
	"password123":  true,
	"password123!": true,
	"12345678":     true,
	"qwerty123":    true,
	"letmein":      true,
	"welcome1":     true,
	"passw0rd":     true,
	"trustno1":     true,
}

// Hasher hashes and verifies passwords with bcrypt
type Hasher struct {
	cost      int
	dummyHash []byte
}

// NewHasher creates a Hasher. Costs outside bcrypt's range fall back to DefaultBcryptCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("vigil-dummy-password"), cost)
	return &Hasher{cost: cost, dummyHash: dummy}
}

// Hash returns the bcrypt hash of password
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Compare checks password against hashedPassword
func (h *Hasher) Compare(hashedPassword, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

// CompareDummy spends the same time as Compare for callers that have no
// user to compare against, so unknown accounts are not revealed by timing
func (h *Hasher) CompareDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}

// ValidatePassword enforces length, character class and common-password rules
func ValidatePassword(password string) error {
	var failed []string

	if len(password) < MinPasswordLen {
		failed = append(failed, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		failed = append(failed, fmt.Sprintf("must be at most %d bytes", MaxPasswordLen))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !hasUpper || !hasLower {
		failed = append(failed, "must mix upper and lower case")
	}
	if !hasDigit {
		failed = append(failed, "must contain a digit")
	}
	if !hasSpecial {
		failed = append(failed, "must contain a special character")
	}
	if commonPasswords[strings.ToLower(password)] {
		failed = append(failed, "is too common")
	}

	if len(failed) > 0 {
		return &PasswordValidationError{Errors: failed}
	}
	return nil
}
