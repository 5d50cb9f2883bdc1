package routes

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/shopstreak/internal/config"
	"github.com/example/shopstreak/internal/handlers"
	"github.com/example/shopstreak/internal/middleware"
	"github.com/example/shopstreak/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, log *zap.Logger) {
	otpService := services.NewOTPService(db, log, cfg.OTPExpiry, cfg.OTPResendAfter, cfg.OTPMaxAttempts)
	mailer := services.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, log)
	orderService := services.NewOrderService(db, log, cfg.PaymentProcessingDelay)
	googleVerifier := services.NewGoogleTokenVerifier()

	authHandler := handlers.NewAuthHandler(db, cfg, otpService, mailer, googleVerifier, log)
	resetHandler := handlers.NewPasswordResetHandler(db, cfg, otpService, mailer)
	profileHandler := handlers.NewProfileHandler(db)
	catalogHandler := handlers.NewCatalogHandler(db)
	productHandler := handlers.NewProductHandler(db)
	cartHandler := handlers.NewCartHandler(db)
	wishlistHandler := handlers.NewWishlistHandler(db)
	reviewHandler := handlers.NewReviewHandler(db)
	orderHandler := handlers.NewOrderHandler(db, orderService)
	adminHandler := handlers.NewAdminHandler(db)

	api := app.Group("/api")

	// Auth and onboarding
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

	// Public catalog reads
	api.Get("/categories", catalogHandler.ListCategories)
	api.Get("/categories/:id", catalogHandler.GetCategory)
	api.Get("/products", productHandler.ListProducts)
	api.Get("/products/:id", productHandler.GetProduct)
	api.Get("/products/:id/reviews", reviewHandler.ListReviews)

	// Authenticated routes. Profile completion is reachable before the
	// onboarding gate; everything else requires a completed stage.
	authed := api.Group("", middleware.AuthMiddleware(cfg))
	authed.Post("/profile/complete", profileHandler.CompleteProfile)

	completed := authed.Group("", middleware.RequireCompletedOnboarding())
	completed.Get("/profile", profileHandler.GetProfile)
	completed.Put("/profile", profileHandler.UpdateProfile)
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
	completed.Get("/orders/:id", orderHandler.GetOrder)
	completed.Get("/orders/:id/track", orderHandler.TrackOrder)

	completed.Post("/products/:id/reviews", reviewHandler.CreateReview)

	// Admin console, gated by the email allow-list.
	admin := api.Group("/admin", middleware.AuthMiddleware(cfg), middleware.AdminOnly(cfg))
	admin.Get("/dashboard", adminHandler.DashboardStats)
	admin.Get("/analytics", adminHandler.Analytics)
	admin.Get("/orders", adminHandler.ListAllOrders)
	admin.Get("/orders/:id", adminHandler.GetOrder)
	admin.Put("/orders/:id", adminHandler.UpdateOrder)
	admin.Get("/customers", adminHandler.ListCustomers)
	admin.Get("/customers/:id", adminHandler.GetCustomer)
	admin.Post("/categories", catalogHandler.CreateCategory)
	admin.Put("/categories/:id", catalogHandler.UpdateCategory)
	admin.Delete("/categories/:id", catalogHandler.DeleteCategory)
	admin.Post("/products", productHandler.CreateProduct)
	admin.Put("/products/:id", productHandler.UpdateProduct)
	admin.Delete("/products/:id", productHandler.DeleteProduct)
}
