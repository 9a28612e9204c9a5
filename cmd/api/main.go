package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ride-ledger/config"
	"ride-ledger/internal/adapter/gateway"
	httpHandler "ride-ledger/internal/adapter/http/handler"
	"ride-ledger/internal/adapter/messaging/kafka"
	redisStorage "ride-ledger/internal/adapter/storage/redis"
	"ride-ledger/internal/core/ports"
	"ride-ledger/internal/service"
	"ride-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Driver).
		Msg("Starting ride ledger")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize crypto services
	encSvc, err := service.NewAESEncryptionService(cfg.Crypto.Secret, cfg.Crypto.Salt)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	// Initialize storage
	var repos *repositories
	switch cfg.Database.Driver {
	case "memory":
		repos = openMemory()
		log.Warn().Msg("Using in-memory storage, balances are lost on restart")
	default:
		repos, err = openPostgres(ctx, cfg.Database, encSvc, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		log.Info().Msg("PostgreSQL connected")
	}
	defer repos.close()
	healthCheckers := []ports.HealthChecker{repos.health}

	// Initialize Redis stores. The in-memory setup runs without Redis.
	var (
		commissionCache ports.CommissionCache
		deduper         ports.EventDeduper
		rateLimitStore  *redisStorage.RateLimitStore
	)
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	switch {
	case err == nil:
		defer rdb.Close()
		commissionCache = redisStorage.NewCommissionCache(rdb)
		deduper = redisStorage.NewEventDeduper(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
		log.Info().Msg("Redis connected")
	case cfg.Database.Driver == "memory":
		log.Warn().Err(err).Msg("Redis unavailable, running without cache, dedupe and rate limits")
	default:
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}

	// Initialize event publisher
	var publisher ports.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = kafka.NewPublisher(kafka.NewWriter(cfg.Kafka, log), log)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka publisher ready")
	} else {
		publisher = kafka.NewLogPublisher(log)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close event publisher")
		}
	}()

	// Initialize payment and payout rails
	var payGateway ports.PaymentGateway
	if cfg.Gateway.Mode == "http" {
		payGateway = gateway.NewPaymentGateway(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, gateway.NewHTTPClient(cfg.Gateway.Timeout), log)
	} else {
		payGateway = gateway.NewSandboxPaymentGateway(log)
	}
	var rail ports.PayoutGateway
	if cfg.Payout.Mode == "http" {
		rail = gateway.NewPayoutGateway(cfg.Payout.BaseURL, cfg.Payout.APIKey, gateway.NewHTTPClient(cfg.Payout.Timeout), log)
	} else {
		rail = gateway.NewSandboxPayoutGateway(log)
	}
	log.Info().Str("payments", cfg.Gateway.Mode).Str("payouts", rail.Name()).Msg("Rails configured")

	// Initialize business services
	limits := service.NewLimitEnforcer(repos.wallets, repos.walletTxs)
	ledger := service.NewLedgerService(repos.wallets, repos.walletTxs, limits, repos.transactor, publisher, logger.Component(log, "ledger"))
	walletSvc := service.NewWalletService(repos.wallets, repos.walletTxs, ledger, cfg.Wallet, logger.Component(log, "wallet"))
	commissionSvc := service.NewCommissionService(repos.settings, commissionCache, cfg.Commission.CacheTTL, repos.transactor, logger.Component(log, "commission"))
	paymentSvc := service.NewBookingPaymentService(
		repos.bookings,
		repos.payments,
		repos.commissionTxs,
		commissionSvc,
		walletSvc,
		ledger,
		payGateway,
		repos.transactor,
		publisher,
		logger.Component(log, "booking_payment"),
	)
	refundSvc := service.NewRefundService(
		repos.bookings,
		repos.payments,
		repos.commissionTxs,
		walletSvc,
		ledger,
		payGateway,
		repos.transactor,
		publisher,
		logger.Component(log, "refund"),
	)
	withdrawalSvc := service.NewWithdrawalService(
		repos.withdrawals,
		repos.methods,
		repos.payouts,
		repos.jobs,
		repos.commissionTxs,
		repos.wallets,
		commissionSvc,
		walletSvc,
		ledger,
		rail,
		repos.transactor,
		publisher,
		service.NewWithdrawalLimits(cfg.Withdrawal),
		service.NewFeeSchedule(cfg.Payout.Fees),
		logger.Component(log, "withdrawal"),
	)
	reportingSvc := service.NewReportingService(repos.reports, repos.wallets, repos.walletTxs, logger.Component(log, "reporting"))
	eventSvc := service.NewGatewayEventService(
		sigSvc,
		cfg.Gateway.WebhookSecret,
		cfg.Gateway.WebhookTolerance,
		deduper,
		repos.events,
		repos.payments,
		paymentSvc,
		withdrawalSvc,
		repos.transactor,
		publisher,
		logger.Component(log, "gateway_events"),
	)
	auditSvc := service.NewAuditService(repos.audit, logger.Component(log, "audit"))

	// Start the settlement worker
	var wg sync.WaitGroup
	if cfg.Worker.Enabled {
		worker := service.NewSettlementWorker(repos.jobs, withdrawalSvc, rail, reportingSvc, repos.transactor, service.WorkerSettings{
			PollInterval:  cfg.Worker.PollInterval,
			BatchSize:     cfg.Worker.BatchSize,
			Lease:         cfg.Worker.Lease,
			ConfirmWindow: cfg.Worker.ConfirmWindow,
			MaxAttempts:   cfg.Payout.MaxAttempts,
			Currency:      cfg.Wallet.Currency,
		}, logger.Component(log, "settlement_worker"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		PaymentSvc:     paymentSvc,
		RefundSvc:      refundSvc,
		WithdrawalSvc:  withdrawalSvc,
		CommissionSvc:  commissionSvc,
		ReportingSvc:   reportingSvc,
		EventSvc:       eventSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		AuditSvc:       auditSvc,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the worker and wait for in-flight jobs before closing storage.
	stop()
	wg.Wait()

	log.Info().Msg("Server exited")
}
