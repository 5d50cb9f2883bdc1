package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/shopstreak/internal/config"
	"github.com/example/shopstreak/internal/models"
	"github.com/example/shopstreak/internal/services"
	"github.com/example/shopstreak/internal/utils"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	db     *gorm.DB
	cfg    *config.Config
	otp    *services.OTPService
	mailer *services.Mailer
	google services.GoogleVerifier
	log    *zap.Logger
	now    func() time.Time
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, otp *services.OTPService, mailer *services.Mailer, google services.GoogleVerifier, log *zap.Logger) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg, otp: otp, mailer: mailer, google: google, log: log, now: time.Now}
}

// WithClock overrides the handler clock. Test hook.
func (h *AuthHandler) WithClock(now func() time.Time) *AuthHandler {
	h.now = now
	return h
}

type signupStartRequest struct {
	Email string `json:"email"`
}

// SignupStart creates a pending identity and issues an email-verification
// code. An already-verified email is rejected so the client routes to login.
func (h *AuthHandler) SignupStart(c *fiber.Ctx) error {
	var req signupStartRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	email := utils.NormalizeEmail(req.Email)
	if !utils.ValidateEmail(email) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid email address")
	}

	var user models.User
	err := h.db.Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		if user.EmailVerified {
			return fiber.NewError(fiber.StatusConflict, "account already exists")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Email:           email,
			AuthProvider:    models.ProviderEmail,
			OnboardingStage: models.StagePending,
			Role:            models.RoleCustomer,
			Status:          models.StatusActive,
		}
		if err := h.db.Create(&user).Error; err != nil {
			return err
		}
	default:
		return err
	}

	code, err := h.otp.Issue(email, models.OTPPurposeEmailVerification)
	if err != nil {
		if errors.Is(err, services.ErrOTPRateLimited) {
			return fiber.NewError(fiber.StatusTooManyRequests, "code requested too soon, wait before retrying")
		}
		return err
	}

	resp := fiber.Map{
		"success": true,
		"message": "verification code sent",
	}

	if err := h.mailer.SendOTP(email, models.OTPPurposeEmailVerification, code); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "failed to deliver verification code")
	}
	if !h.mailer.Enabled() {
		// No delivery path configured; surface the code directly.
		resp["debug_code"] = code
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyEmail validates the signup OTP and advances the onboarding stage.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var req verifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	email := utils.NormalizeEmail(req.Email)
	if email == "" || req.Code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "email and code are required")
	}

	if err := h.otp.Verify(email, req.Code, models.OTPPurposeEmailVerification); err != nil {
		return otpError(err)
	}

	if err := h.db.Model(&models.User{}).
		Where("email = ? AND onboarding_stage = ?", email, models.StagePending).
		Updates(map[string]interface{}{
			"email_verified":   true,
			"onboarding_stage": models.StageEmailVerified,
		}).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "verified": true})
}

type createPasswordRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// CreatePassword sets the first password for an identity that just verified
// its email, and mints the first token pair. Identities past that stage must
// use the OTP-gated reset flow instead.
func (h *AuthHandler) CreatePassword(c *fiber.Ctx) error {
	var req createPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	email := utils.NormalizeEmail(req.Email)
	if req.Password != req.ConfirmPassword {
		return fiber.NewError(fiber.StatusBadRequest, "passwords do not match")
	}
	if !utils.ValidatePassword(req.Password) {
		return fiber.NewError(fiber.StatusBadRequest, "password must be at least 8 characters with uppercase, lowercase, digit and symbol")
	}

	var user models.User
	if err := h.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "account not found")
		}
		return err
	}

	if !user.EmailVerified {
		return fiber.NewError(fiber.StatusForbidden, "email not verified")
	}
	if user.OnboardingStage != models.StageEmailVerified {
		return fiber.NewError(fiber.StatusConflict, "password already set, use password reset")
	}

	hash, err := utils.HashPassword(req.Password, h.cfg.BcryptCost)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	user.PasswordHash = hash
	user.OnboardingStage = models.StageProfileSetup

	pair, err := h.issueTokens(&user)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    userSummary(&user),
		"tokens":  pair,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates an existing user. Five consecutive failures lock the
// account for the configured window; a locked account rejects logins
// regardless of credential correctness.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	email := utils.NormalizeEmail(req.Email)

	var user models.User
	if err := h.db.Preload("Profile").Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return err
	}

	now := h.now()
	if user.Locked(now) {
		return fiber.NewError(fiber.StatusLocked, "account locked, try again later")
	}

	if user.PasswordHash == "" || !utils.CheckPassword(user.PasswordHash, req.Password) {
		user.FailedLogins++
		updates := map[string]interface{}{"failed_logins": user.FailedLogins}
		if user.FailedLogins >= h.cfg.LoginMaxFailures {
			lockedUntil := now.Add(h.cfg.LoginLockWindow)
			updates["locked_until"] = lockedUntil
		}
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			return err
		}
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	user.FailedLogins = 0
	user.LockedUntil = nil

	pair, err := h.issueTokens(&user)
	if err != nil {
		return err
	}

	resp := fiber.Map{
		"success": true,
		"user":    userSummary(&user),
		"tokens":  pair,
	}
	if user.Profile != nil {
		resp["profile"] = user.Profile
	}

	return c.JSON(resp)
}

type googleLoginRequest struct {
	IDToken string `json:"id_token"`
}

// GoogleLogin verifies an external ID token and finds, links, or creates the
// matching identity.
func (h *AuthHandler) GoogleLogin(c *fiber.Ctx) error {
	var req googleLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.IDToken == "" {
		return fiber.NewError(fiber.StatusBadRequest, "id_token is required")
	}

	identity, err := h.google.Verify(req.IDToken)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "google token verification failed")
	}

	email := utils.NormalizeEmail(identity.Email)

	var user models.User
	err = h.db.Preload("Profile").
		Where("google_id = ? OR email = ?", identity.SubjectID, email).
		First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Email:           email,
			AuthProvider:    models.ProviderGoogle,
			GoogleID:        identity.SubjectID,
			OnboardingStage: models.StageProfileSetup,
			EmailVerified:   true,
			Role:            models.RoleCustomer,
			Status:          models.StatusActive,
		}
		if err := h.db.Create(&user).Error; err != nil {
			return err
		}
		h.log.Info("google identity created", zap.String("email", email))
	case err != nil:
		return err
	default:
		if user.GoogleID == "" {
			// Account link: an email identity gains its provider id.
			user.GoogleID = identity.SubjectID
			user.EmailVerified = true
			h.log.Info("google identity linked", zap.String("email", email))
		}
	}

	pair, err := h.issueTokens(&user)
	if err != nil {
		return err
	}

	resp := fiber.Map{
		"success": true,
		"user":    userSummary(&user),
		"tokens":  pair,
	}
	if user.Profile != nil {
		resp["profile"] = user.Profile
	}

	return c.JSON(resp)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a valid refresh token for a new pair. Only the single
// server-side slot is honored, so rotation invalidates any prior token.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	userID, err := utils.ParseRefreshToken(h.cfg.JWTSecret, req.RefreshToken)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid refresh token")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid refresh token")
		}
		return err
	}

	if user.RefreshToken != req.RefreshToken {
		return fiber.NewError(fiber.StatusUnauthorized, "refresh token superseded")
	}

	pair, err := h.issueTokens(&user)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "tokens": pair})
}

// issueTokens mints a pair and persists the refresh token into the identity's
// single slot alongside any pending field changes.
func (h *AuthHandler) issueTokens(user *models.User) (utils.TokenPair, error) {
	pair, err := utils.GenerateTokenPair(h.cfg.JWTSecret, user.ID, user.Email, user.Role, user.OnboardingStage,
		h.cfg.AccessTokenTTL, h.cfg.RefreshTokenTTL)
	if err != nil {
		return utils.TokenPair{}, fiber.NewError(fiber.StatusInternalServerError, "failed to generate tokens")
	}

	user.RefreshToken = pair.RefreshToken
	if err := h.db.Save(user).Error; err != nil {
		return utils.TokenPair{}, err
	}

	return pair, nil
}

func userSummary(user *models.User) fiber.Map {
	return fiber.Map{
		"id":               user.ID,
		"email":            user.Email,
		"auth_provider":    user.AuthProvider,
		"onboarding_stage": user.OnboardingStage,
		"email_verified":   user.EmailVerified,
		"role":             user.Role,
	}
}

// otpError maps OTP service failures onto distinct HTTP errors.
func otpError(err error) error {
	var invalid *services.InvalidCodeError
	switch {
	case errors.Is(err, services.ErrOTPRateLimited):
		return fiber.NewError(fiber.StatusTooManyRequests, "code requested too soon, wait before retrying")
	case errors.Is(err, services.ErrOTPNotFound):
		return fiber.NewError(fiber.StatusNotFound, "code not found or already used")
	case errors.Is(err, services.ErrOTPExpired):
		return fiber.NewError(fiber.StatusBadRequest, "code expired, request a new one")
	case errors.Is(err, services.ErrOTPTooManyAttempts):
		return fiber.NewError(fiber.StatusBadRequest, "too many attempts, request a new code")
	case errors.As(err, &invalid):
		return fiber.NewError(fiber.StatusBadRequest, invalid.Error())
	default:
		return err
	}
}
