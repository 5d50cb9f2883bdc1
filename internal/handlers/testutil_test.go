package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/shopstreak/internal/config"
	"github.com/example/shopstreak/internal/database"
	"github.com/example/shopstreak/internal/middleware"
	"github.com/example/shopstreak/internal/models"
	"github.com/example/shopstreak/internal/services"
	"github.com/example/shopstreak/internal/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:        "handler-test-secret",
		AccessTokenTTL:   time.Hour,
		RefreshTokenTTL:  24 * time.Hour,
		ResetTokenTTL:    15 * time.Minute,
		BcryptCost:       4,
		OTPExpiry:        10 * time.Minute,
		OTPResendAfter:   30 * time.Second,
		OTPMaxAttempts:   3,
		LoginMaxFailures: 5,
		LoginLockWindow:  30 * time.Minute,
		AdminEmails:      map[string]struct{}{"admin@example.com": {}},
	}
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type stubGoogle struct {
	identity *services.GoogleIdentity
}

func (s *stubGoogle) Verify(idToken string) (*services.GoogleIdentity, error) {
	if s.identity == nil {
		return nil, services.ErrInvalidGoogleToken
	}
	return s.identity, nil
}

// newTestApp wires the full route surface against an in-memory database, a
// disabled mailer and a controllable clock.
func newTestApp(t *testing.T) (*fiber.App, *gorm.DB, *config.Config, *fakeClock) {
	t.Helper()

	db := testDB(t)
	cfg := testConfig()
	log := zap.NewNop()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	otpService := services.NewOTPService(db, log, cfg.OTPExpiry, cfg.OTPResendAfter, cfg.OTPMaxAttempts).
		WithClock(clock.Now)
	mailer := services.NewMailer("", "", "", "", "no-reply@test.local", log)
	orderService := services.NewOrderService(db, log, 0)

	authHandler := NewAuthHandler(db, cfg, otpService, mailer, &stubGoogle{}, log).WithClock(clock.Now)
	resetHandler := NewPasswordResetHandler(db, cfg, otpService, mailer)
	profileHandler := NewProfileHandler(db)
	cartHandler := NewCartHandler(db)
	wishlistHandler := NewWishlistHandler(db)
	reviewHandler := NewReviewHandler(db)
	orderHandler := NewOrderHandler(db, orderService)
	adminHandler := NewAdminHandler(db)

	app := fiber.New()
	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/signup", authHandler.SignupStart)
	auth.Post("/verify-email", authHandler.VerifyEmail)
	auth.Post("/create-password", authHandler.CreatePassword)
	auth.Post("/login", authHandler.Login)
	auth.Post("/google", authHandler.GoogleLogin)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/forgot-password", resetHandler.ForgotPassword)
	auth.Post("/verify-reset-code", resetHandler.VerifyResetCode)
	auth.Post("/reset-password", resetHandler.ResetPassword)

	// Public reads are registered before the authed group so its middleware
	// does not intercept them.
	api.Get("/products/:id/reviews", reviewHandler.ListReviews)

	authed := api.Group("", middleware.AuthMiddleware(cfg))
	authed.Post("/profile/complete", profileHandler.CompleteProfile)

	completed := authed.Group("", middleware.RequireCompletedOnboarding())
	completed.Get("/profile", profileHandler.GetProfile)
	completed.Get("/profile/addresses", profileHandler.ListAddresses)
	completed.Post("/profile/addresses", profileHandler.CreateAddress)
	completed.Put("/profile/addresses/:id", profileHandler.UpdateAddress)
	completed.Delete("/profile/addresses/:id", profileHandler.DeleteAddress)
	completed.Get("/cart", cartHandler.GetCart)
	completed.Post("/cart/items", cartHandler.AddItem)
	completed.Put("/cart/items/:id", cartHandler.UpdateItem)
	completed.Delete("/cart/items/:id", cartHandler.RemoveItem)
	completed.Get("/wishlist", wishlistHandler.ListItems)
	completed.Post("/wishlist", wishlistHandler.AddItem)
	completed.Delete("/wishlist/:productId", wishlistHandler.RemoveItem)
	completed.Post("/orders", orderHandler.CreateOrder)
	completed.Get("/orders", orderHandler.ListOrders)
	completed.Get("/orders/:id/track", orderHandler.TrackOrder)
	completed.Post("/products/:id/reviews", reviewHandler.CreateReview)

	admin := api.Group("/admin", middleware.AuthMiddleware(cfg), middleware.AdminOnly(cfg))
	admin.Get("/dashboard", adminHandler.DashboardStats)

	return app, db, cfg, clock
}

func jsonRequest(t *testing.T, app *fiber.App, method, path string, payload interface{}, token string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	defer resp.Body.Close()
	out := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createUser(t *testing.T, db *gorm.DB, cfg *config.Config, email, password, stage string) models.User {
	t.Helper()

	user := models.User{
		Email:           email,
		AuthProvider:    models.ProviderEmail,
		OnboardingStage: stage,
		EmailVerified:   true,
		Role:            models.RoleCustomer,
		Status:          models.StatusActive,
	}
	if password != "" {
		hash, err := utils.HashPassword(password, cfg.BcryptCost)
		require.NoError(t, err)
		user.PasswordHash = hash
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func accessToken(t *testing.T, cfg *config.Config, user models.User) string {
	t.Helper()

	pair, err := utils.GenerateTokenPair(cfg.JWTSecret, user.ID, user.Email, user.Role, user.OnboardingStage,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	require.NoError(t, err)
	return pair.AccessToken
}
