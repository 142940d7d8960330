// Package security estimates the strength of stored passwords and finds
// passwords reused across one user's vault. Every result is advisory: the
// stores accept any non-empty password.
package security

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MinPasswordLength is the length below which a password is reported weak.
const MinPasswordLength = 8

// PasswordStrength represents the strength level of a password.
type PasswordStrength int

const (
	// PasswordWeak indicates a password shorter than MinPasswordLength.
	PasswordWeak PasswordStrength = iota
	// PasswordFair indicates a minimally acceptable password.
	PasswordFair
	// PasswordGood indicates a good password.
	PasswordGood
	// PasswordStrong indicates a strong password.
	PasswordStrong
)

// String returns a human-readable representation of the password strength.
func (s PasswordStrength) String() string {
	switch s {
	case PasswordWeak:
		return "Weak"
	case PasswordFair:
		return "Fair"
	case PasswordGood:
		return "Good"
	case PasswordStrong:
		return "Strong"
	default:
		return "Unknown"
	}
}

// Points returns the score points for this strength level.
// Weak=0, Fair=8, Good=17, Strong=25.
func (s PasswordStrength) Points() int {
	switch s {
	case PasswordFair:
		return 8
	case PasswordGood:
		return 17
	case PasswordStrong:
		return 25
	default:
		return 0
	}
}

// Strength rates a password by its length in characters. Composition rules
// are not applied (NIST SP 800-63B).
func Strength(password string) PasswordStrength {
	n := utf8.RuneCountInString(normalizeValue(password))

	switch {
	case n >= 20:
		return PasswordStrong
	case n >= 14:
		return PasswordGood
	case n >= MinPasswordLength:
		return PasswordFair
	default:
		return PasswordWeak
	}
}

// Check is the advisory verdict on a single password.
type Check struct {
	Strength PasswordStrength
	Warnings []string
}

// CheckPassword rates password and lists warnings worth showing before it is
// stored. username may be empty.
func CheckPassword(password, username string) Check {
	c := Check{Strength: Strength(password)}
	value := normalizeValue(password)

	if utf8.RuneCountInString(value) < MinPasswordLength {
		c.Warnings = append(c.Warnings, "password is shorter than 8 characters")
	}
	if r, _ := utf8.DecodeRuneInString(value); value != "" && strings.Trim(value, string(r)) == "" {
		c.Warnings = append(c.Warnings, "password repeats a single character")
	}
	if u := normalizeValue(username); u != "" && strings.Contains(strings.ToLower(value), strings.ToLower(u)) {
		c.Warnings = append(c.Warnings, "password contains the username")
	}
	return c
}

// normalizeValue trims surrounding whitespace and applies Unicode NFC so that
// visually identical passwords compare equal.
func normalizeValue(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}
