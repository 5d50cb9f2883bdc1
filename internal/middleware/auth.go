package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/shopstreak/internal/config"
	"github.com/example/shopstreak/internal/models"
	"github.com/example/shopstreak/internal/utils"
)

const claimsContextKey = "currentClaims"

// AuthMiddleware validates bearer access tokens and loads the verified claims
// into the request context.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		claims, err := utils.ParseAccessToken(cfg.JWTSecret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(claimsContextKey, claims)
		return c.Next()
	}
}

// RequireCompletedOnboarding blocks everything except the onboarding endpoints
// until the identity's stage reaches completed.
func RequireCompletedOnboarding() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := GetCurrentClaims(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}

		if claims.OnboardingStage != models.StageCompleted {
			return fiber.NewError(fiber.StatusForbidden, "profile setup required")
		}

		return c.Next()
	}
}

// AdminOnly grants access only when the verified token's email is on the
// configured allow-list. The stored role field is never consulted.
func AdminOnly(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := GetCurrentClaims(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}

		if !cfg.IsAdminEmail(claims.Email) {
			return fiber.NewError(fiber.StatusForbidden, "admin access required")
		}

		return c.Next()
	}
}

// GetCurrentClaims extracts the authenticated claims from context.
func GetCurrentClaims(c *fiber.Ctx) (*utils.AccessClaims, bool) {
	value := c.Locals(claimsContextKey)
	if value == nil {
		return nil, false
	}

	claims, ok := value.(*utils.AccessClaims)
	return claims, ok
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	claims, ok := GetCurrentClaims(c)
	if !ok {
		return uuid.Nil, false
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, false
	}

	return id, true
}
