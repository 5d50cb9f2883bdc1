package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAdminEmails(t *testing.T) {
	set := parseAdminEmails(" Admin@Example.com , ops@example.com,,")
	assert.Len(t, set, 2)
	assert.Contains(t, set, "admin@example.com")
	assert.Contains(t, set, "ops@example.com")

	assert.Empty(t, parseAdminEmails(""))
}

func TestIsAdminEmail(t *testing.T) {
	cfg := &Config{AdminEmails: parseAdminEmails("admin@example.com")}

	assert.True(t, cfg.IsAdminEmail("admin@example.com"))
	assert.True(t, cfg.IsAdminEmail("ADMIN@example.COM"))
	assert.True(t, cfg.IsAdminEmail("  admin@example.com "))
	assert.False(t, cfg.IsAdminEmail("other@example.com"))
	assert.False(t, cfg.IsAdminEmail(""))
}
