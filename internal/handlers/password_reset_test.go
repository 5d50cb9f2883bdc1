package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/shopstreak/internal/models"
)

func TestForgotPasswordDoesNotLeakAccounts(t *testing.T) {
	app, db, cfg, _ := newTestApp(t)
	createUser(t, db, cfg, "known@example.com", "Sup3r$ecret", models.StageCompleted)

	respUnknown := jsonRequest(t, app, "POST", "/api/auth/forgot-password", map[string]string{
		"email": "unknown@example.com",
	}, "")
	require.Equal(t, 200, respUnknown.StatusCode)
	bodyUnknown := decodeBody(t, respUnknown)

	respKnown := jsonRequest(t, app, "POST", "/api/auth/forgot-password", map[string]string{
		"email": "known@example.com",
	}, "")
	require.Equal(t, 200, respKnown.StatusCode)
	bodyKnown := decodeBody(t, respKnown)

	// Same status and message either way. Only the disabled-mailer debug
	// field differs, and that never ships with SMTP configured.
	assert.Equal(t, bodyUnknown["message"], bodyKnown["message"])
	assert.NotContains(t, bodyUnknown, "debug_code")
	assert.Contains(t, bodyKnown, "debug_code")
}

func TestResetPasswordFlow(t *testing.T) {
	app, db, cfg, _ := newTestApp(t)
	createUser(t, db, cfg, "user@example.com", "Old$ecret1", models.StageCompleted)

	// The old session's refresh token should stop working after the reset.
	resp := jsonRequest(t, app, "POST", "/api/auth/login", map[string]string{
		"email":    "user@example.com",
		"password": "Old$ecret1",
	}, "")
	require.Equal(t, 200, resp.StatusCode)
	oldRefresh := decodeBody(t, resp)["tokens"].(map[string]interface{})["refresh_token"].(string)

	resp = jsonRequest(t, app, "POST", "/api/auth/forgot-password", map[string]string{
		"email": "user@example.com",
	}, "")
	require.Equal(t, 200, resp.StatusCode)
	code := decodeBody(t, resp)["debug_code"].(string)

	resp = jsonRequest(t, app, "POST", "/api/auth/verify-reset-code", map[string]string{
		"email": "user@example.com",
		"code":  code,
	}, "")
	require.Equal(t, 200, resp.StatusCode)
	resetToken := decodeBody(t, resp)["reset_token"].(string)
	require.NotEmpty(t, resetToken)

	resp = jsonRequest(t, app, "POST", "/api/auth/reset-password", map[string]string{
		"reset_token":      resetToken,
		"new_password":     "New$ecret2",
		"confirm_password": "New$ecret2",
	}, "")
	require.Equal(t, 200, resp.StatusCode)

	resp = jsonRequest(t, app, "POST", "/api/auth/login", map[string]string{
		"email":    "user@example.com",
		"password": "Old$ecret1",
	}, "")
	assert.Equal(t, 401, resp.StatusCode)

	resp = jsonRequest(t, app, "POST", "/api/auth/login", map[string]string{
		"email":    "user@example.com",
		"password": "New$ecret2",
	}, "")
	assert.Equal(t, 200, resp.StatusCode)

	resp = jsonRequest(t, app, "POST", "/api/auth/refresh", map[string]string{
		"refresh_token": oldRefresh,
	}, "")
	assert.Equal(t, 401, resp.StatusCode)
}

func TestResetPasswordWeakPasswordRejected(t *testing.T) {
	app, _, _, _ := newTestApp(t)

	resp := jsonRequest(t, app, "POST", "/api/auth/reset-password", map[string]string{
		"reset_token":      "irrelevant",
		"new_password":     "weak",
		"confirm_password": "weak",
	}, "")
	assert.Equal(t, 400, resp.StatusCode)
}
