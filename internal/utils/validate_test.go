package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	valid := []string{"Passw0rd!", "Str0ng#Pass", "aB3$efgh"}
	for _, p := range valid {
		assert.True(t, ValidatePassword(p), "password %q should pass", p)
	}

	invalid := map[string]string{
		"Sh0rt!a":     "too short",
		"password1!":  "no uppercase",
		"PASSWORD1!":  "no lowercase",
		"Password!!":  "no digit",
		"Password123": "no symbol",
	}
	for p, reason := range invalid {
		assert.False(t, ValidatePassword(p), "password %q should fail: %s", p, reason)
	}
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("user@example.com"))
	assert.True(t, ValidateEmail("first.last+tag@sub.example.co"))
	assert.False(t, ValidateEmail("not-an-email"))
	assert.False(t, ValidateEmail("user@"))
	assert.False(t, ValidateEmail("@example.com"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail("  User@Example.COM "))
}

func TestValidateMobile(t *testing.T) {
	assert.True(t, ValidateMobile("9876543210"))
	assert.True(t, ValidateMobile("6000000000"))
	assert.False(t, ValidateMobile("1234567890"), "must start with 6-9")
	assert.False(t, ValidateMobile("98765432"), "too short")
	assert.False(t, ValidateMobile("98765432101"), "too long")
	assert.False(t, ValidateMobile("98765abc10"))
}
