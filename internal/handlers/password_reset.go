package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/shopstreak/internal/config"
	"github.com/example/shopstreak/internal/models"
	"github.com/example/shopstreak/internal/services"
	"github.com/example/shopstreak/internal/utils"
)

// PasswordResetHandler manages the three-step forgot-password flow.
type PasswordResetHandler struct {
	db     *gorm.DB
	cfg    *config.Config
	otp    *services.OTPService
	mailer *services.Mailer
}

// NewPasswordResetHandler constructs a PasswordResetHandler.
func NewPasswordResetHandler(db *gorm.DB, cfg *config.Config, otp *services.OTPService, mailer *services.Mailer) *PasswordResetHandler {
	return &PasswordResetHandler{db: db, cfg: cfg, otp: otp, mailer: mailer}
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword issues a password-reset code. The response is identical for
// known and unknown emails so account existence is not leaked.
func (h *PasswordResetHandler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	email := utils.NormalizeEmail(req.Email)
	if !utils.ValidateEmail(email) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid email address")
	}

	accepted := fiber.Map{
		"success": true,
		"message": "if the account exists, a reset code has been sent",
	}

	var user models.User
	if err := h.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(accepted)
		}
		return err
	}

	code, err := h.otp.Issue(email, models.OTPPurposePasswordReset)
	if err != nil {
		if errors.Is(err, services.ErrOTPRateLimited) {
			return fiber.NewError(fiber.StatusTooManyRequests, "code requested too soon, wait before retrying")
		}
		return err
	}

	if err := h.mailer.SendOTP(email, models.OTPPurposePasswordReset, code); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "failed to deliver reset code")
	}
	if !h.mailer.Enabled() {
		accepted["debug_code"] = code
	}

	return c.JSON(accepted)
}

type verifyResetCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyResetCode validates the reset OTP and hands back a short-lived reset
// authorization.
func (h *PasswordResetHandler) VerifyResetCode(c *fiber.Ctx) error {
	var req verifyResetCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	email := utils.NormalizeEmail(req.Email)
	if email == "" || req.Code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "email and code are required")
	}

	if err := h.otp.Verify(email, req.Code, models.OTPPurposePasswordReset); err != nil {
		return otpError(err)
	}

	resetToken, err := utils.GenerateResetToken(h.cfg.JWTSecret, email, h.cfg.ResetTokenTTL)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate reset token")
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"verified":    true,
		"reset_token": resetToken,
	})
}

type resetPasswordRequest struct {
	ResetToken      string `json:"reset_token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ResetPassword replaces the stored hash. The new refresh-token slot value is
// cleared so prior sessions cannot rotate.
func (h *PasswordResetHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.ResetToken == "" || req.NewPassword == "" {
		return fiber.NewError(fiber.StatusBadRequest, "reset_token and new_password are required")
	}
	if req.NewPassword != req.ConfirmPassword {
		return fiber.NewError(fiber.StatusBadRequest, "passwords do not match")
	}
	if !utils.ValidatePassword(req.NewPassword) {
		return fiber.NewError(fiber.StatusBadRequest, "password must be at least 8 characters with uppercase, lowercase, digit and symbol")
	}

	email, err := utils.ParseResetToken(h.cfg.JWTSecret, req.ResetToken)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired reset token")
	}

	hash, err := utils.HashPassword(req.NewPassword, h.cfg.BcryptCost)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	result := h.db.Model(&models.User{}).
		Where("email = ?", email).
		Updates(map[string]interface{}{
			"password_hash": hash,
			"refresh_token": "",
			"failed_logins": 0,
			"locked_until":  nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "account not found")
	}

	return c.JSON(fiber.Map{"success": true, "message": "password updated successfully"})
}
