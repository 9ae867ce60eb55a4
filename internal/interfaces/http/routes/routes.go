// internal/interfaces/http/routes/routes.go
package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/checkout-engine/internal/config"
	"github.com/your-org/checkout-engine/internal/domain/checkout"
	"github.com/your-org/checkout-engine/internal/domain/order"
	"github.com/your-org/checkout-engine/internal/domain/payment"
	"github.com/your-org/checkout-engine/internal/domain/pricing"
	"github.com/your-org/checkout-engine/internal/interfaces/http/handlers"
	"github.com/your-org/checkout-engine/internal/interfaces/http/middleware"
	"github.com/your-org/checkout-engine/internal/pkg/audit"
	"gorm.io/gorm"
)

// SetupRoutes wires the full dependency graph and registers every route
func SetupRoutes(rg *gin.RouterGroup, db *gorm.DB, redisClient *redis.Client, cfg *config.Config, logger *logrus.Logger) {
	auditSink := audit.NewLogSink(logger)

	tierSource := pricing.NewCachedTierSource(pricing.NewTierRepository(db), redisClient, 5*time.Minute)
	codeSource := pricing.NewCodeRepository(db)
	settingsResolver := config.NewSettingsResolver(cfg, redisClient)

	calculator := pricing.NewCalculator(tierSource, codeSource, settingsResolver, logger)
	verifier := pricing.NewVerifier(calculator, auditSink, logger, cfg.Verification.LineEpsilon, cfg.Verification.TotalsEpsilon)

	snapshots := checkout.NewSnapshotStore(redisClient, cfg.Checkout.SnapshotTTL, logger)
	orderService := order.NewService(db, cfg.Pricing.Currency, logger)
	reconciler := payment.NewReconciler(snapshots, orderService, auditSink, logger, cfg.Payment.AmountEpsilon)

	adapterRegistry := payment.NewAdapterRegistry(
		payment.NewRazorpayAdapter(cfg.Payment.RazorpayKeySecret),
		payment.NewStripeAdapter(),
		payment.NewCodAdapter(),
	)

	pricingHandler := handlers.NewPricingHandler(calculator, verifier, cfg)
	checkoutHandler := handlers.NewCheckoutHandler(snapshots, calculator, verifier, cfg)
	paymentHandler := handlers.NewPaymentHandler(adapterRegistry, reconciler, orderService, cfg)
	adminHandler := handlers.NewAdminHandler(settingsResolver)

	// Quoting and verification work for guests as well as signed-in users
	pricingGroup := rg.Group("/pricing")
	pricingGroup.Use(middleware.OptionalAuthMiddleware(cfg))
	{
		pricingGroup.POST("/quote", pricingHandler.Quote)
		pricingGroup.POST("/verify", pricingHandler.Verify)
	}

	// Checkout sessions require authentication
	checkoutGroup := rg.Group("/checkout")
	checkoutGroup.Use(middleware.AuthMiddleware(cfg))
	{
		checkoutGroup.POST("/session", checkoutHandler.CreateSession)
		checkoutGroup.GET("/session/:session_id", checkoutHandler.GetSession)
		checkoutGroup.DELETE("/session/:session_id", checkoutHandler.CancelSession)
	}

	ordersGroup := rg.Group("/orders")
	ordersGroup.Use(middleware.AuthMiddleware(cfg))
	{
		ordersGroup.GET("/:id", paymentHandler.GetOrder)
		ordersGroup.GET("/session/:session_id", paymentHandler.GetOrderBySession)
	}

	// Provider callbacks authenticate through adapter signature checks, not
	// bearer tokens
	webhooks := rg.Group("/webhooks")
	{
		webhooks.POST("/payment/:provider", paymentHandler.Webhook)
	}

	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(cfg))
	admin.Use(middleware.AdminMiddleware())
	{
		admin.GET("/pricing/settings", adminHandler.GetSettings)
		admin.PUT("/pricing/settings/:name", adminHandler.SetSetting)
		admin.DELETE("/pricing/settings/:name", adminHandler.ClearSetting)
	}
}
