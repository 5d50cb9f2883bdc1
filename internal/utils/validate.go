package utils

import (
	"regexp"
	"strings"
)

var (
	emailRegex  = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	mobileRegex = regexp.MustCompile(`^[6-9]\d{9}$`)
)

const passwordSymbols = `!@#$%^&*()-_=+[]{};:'",.<>/?\|`

// ValidateEmail reports whether the address is syntactically valid.
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// NormalizeEmail lowercases and trims an email address for case-insensitive
// storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateMobile reports whether the value is a 10-digit local mobile number.
func ValidateMobile(mobile string) bool {
	return mobileRegex.MatchString(mobile)
}

// ValidatePassword enforces the password strength policy: minimum 8
// characters with at least one uppercase letter, one lowercase letter, one
// digit, and one symbol.
func ValidatePassword(password string) bool {
	if len(password) < 8 {
		return false
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, char := range password {
		switch {
		case 'A' <= char && char <= 'Z':
			hasUpper = true
		case 'a' <= char && char <= 'z':
			hasLower = true
		case '0' <= char && char <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, char):
			hasSymbol = true
		}
	}

	return hasUpper && hasLower && hasDigit && hasSymbol
}
