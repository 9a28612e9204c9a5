package handler

import (
	"ride-ledger/internal/adapter/http/middleware"
	redisStore "ride-ledger/internal/adapter/storage/redis"
	"ride-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	PaymentSvc     ports.BookingPaymentService
	RefundSvc      ports.RefundService
	WithdrawalSvc  ports.WithdrawalService
	CommissionSvc  ports.CommissionService
	ReportingSvc   ports.ReportingService
	EventSvc       ports.GatewayEventService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep: verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()

	// rl returns the group's limiter, or a no-op when Redis is not wired.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Gateway callbacks (signature-authenticated) ---
	webhookHandler := NewWebhookHandler(deps.EventSvc)
	v1.POST("/webhooks/gateway", rl("gateway_webhooks"), webhookHandler.Receive)

	// --- Riders and drivers (JWT) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.WalletSvc)
	paymentHandler := NewPaymentHandler(deps.PaymentSvc, deps.RefundSvc)
	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc)
	adminHandler := NewAdminHandler(deps.CommissionSvc, deps.ReportingSvc, deps.WalletSvc)

	authed := v1.Group("", jwtAuth)
	{
		authed.GET("/wallet", walletHandler.GetBalance)
		authed.GET("/wallet/transactions", walletHandler.ListTransactions)
		authed.POST("/wallet/recharge", rl("wallet_recharge"), walletHandler.Recharge)

		authed.POST("/bookings/:id/payments", rl("booking_payments"), paymentHandler.PayBooking)
		authed.GET("/bookings/:id/payments", paymentHandler.ListBookingPayments)
		authed.GET("/payments/:id", paymentHandler.GetPayment)

		authed.POST("/withdrawals", rl("withdrawals"), withdrawalHandler.Create)
		authed.GET("/withdrawals", withdrawalHandler.List)
		authed.GET("/withdrawals/:id", withdrawalHandler.Get)
		authed.POST("/withdrawals/:id/cancel", withdrawalHandler.Cancel)

		authed.GET("/withdrawal-methods", withdrawalHandler.ListMethods)
		authed.POST("/withdrawal-methods", withdrawalHandler.AddMethod)
		authed.DELETE("/withdrawal-methods/:id", withdrawalHandler.DeleteMethod)

		authed.GET("/commissions/:type", adminHandler.ActiveCommission)
	}

	// --- Operators (JWT + admin role) ---
	admin := v1.Group("/admin", jwtAuth, middleware.RequireRole(ports.RoleAdmin), rl("admin"))
	{
		admin.POST("/payments/:id/refund", rl("refunds"), paymentHandler.Refund)

		admin.GET("/withdrawals", withdrawalHandler.AdminList)
		admin.GET("/withdrawals/queue", withdrawalHandler.Queue)
		admin.POST("/withdrawals/:id/approve", withdrawalHandler.Approve)
		admin.POST("/withdrawals/:id/reject", withdrawalHandler.Reject)
		admin.POST("/withdrawals/:id/retry", withdrawalHandler.Retry)

		admin.POST("/commissions", adminHandler.ActivateCommission)
		admin.GET("/commissions/:type/history", adminHandler.CommissionHistory)

		admin.POST("/reports", adminHandler.GenerateReport)
		admin.GET("/reports", adminHandler.ListReports)
		admin.GET("/reports/:date", adminHandler.GetReport)
		admin.GET("/reconciliation", adminHandler.Reconcile)

		admin.GET("/wallets/:id", adminHandler.GetWallet)
		admin.GET("/wallets/:id/transactions", adminHandler.WalletTransactions)
		admin.GET("/wallets/:id/verify", adminHandler.VerifyWallet)
		admin.PUT("/wallets/:id/limits", adminHandler.UpdateLimits)
		admin.PUT("/wallets/:id/status", adminHandler.SetStatus)
		admin.POST("/users/:id/bonus", adminHandler.GrantBonus)
	}

	return r
}
