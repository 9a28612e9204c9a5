package main

import (
	"context"

	"ride-ledger/config"
	"ride-ledger/internal/adapter/storage/memory"
	pgStorage "ride-ledger/internal/adapter/storage/postgres"
	"ride-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// repositories is the storage side of the ledger, backed by either PostgreSQL
// or the in-process store.
type repositories struct {
	wallets       ports.WalletRepository
	walletTxs     ports.WalletTransactionRepository
	bookings      ports.BookingRepository
	payments      ports.BookingPaymentRepository
	settings      ports.CommissionSettingRepository
	commissionTxs ports.CommissionTransactionRepository
	withdrawals   ports.WithdrawalRepository
	methods       ports.WithdrawalMethodRepository
	payouts       ports.PayoutRepository
	jobs          ports.SettlementJobRepository
	reports       ports.ReportRepository
	events        ports.GatewayEventRepository
	audit         ports.AuditRepository
	transactor    ports.DBTransactor
	health        ports.HealthChecker
	close         func()
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, enc ports.EncryptionService, log zerolog.Logger) (*repositories, error) {
	pool, err := pgStorage.NewPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := pgStorage.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &repositories{
		wallets:       pgStorage.NewWalletRepo(pool),
		walletTxs:     pgStorage.NewWalletTransactionRepo(pool),
		bookings:      pgStorage.NewBookingRepo(pool),
		payments:      pgStorage.NewBookingPaymentRepo(pool),
		settings:      pgStorage.NewCommissionSettingRepo(pool),
		commissionTxs: pgStorage.NewCommissionTransactionRepo(pool),
		withdrawals:   pgStorage.NewWithdrawalRepo(pool, enc),
		methods:       pgStorage.NewWithdrawalMethodRepo(pool, enc),
		payouts:       pgStorage.NewPayoutRepo(pool),
		jobs:          pgStorage.NewSettlementJobRepo(pool),
		reports:       pgStorage.NewReportRepo(pool),
		events:        pgStorage.NewGatewayEventRepo(pool),
		audit:         pgStorage.NewAuditRepo(pool),
		transactor:    pgStorage.NewTransactor(pool),
		health:        pgStorage.NewHealthCheck(pool),
		close:         pool.Close,
	}, nil
}

func openMemory() *repositories {
	s := memory.NewStore()
	return &repositories{
		wallets:       memory.NewWalletRepo(s),
		walletTxs:     memory.NewWalletTransactionRepo(s),
		bookings:      memory.NewBookingRepo(s),
		payments:      memory.NewBookingPaymentRepo(s),
		settings:      memory.NewCommissionSettingRepo(s),
		commissionTxs: memory.NewCommissionTransactionRepo(s),
		withdrawals:   memory.NewWithdrawalRepo(s),
		methods:       memory.NewWithdrawalMethodRepo(s),
		payouts:       memory.NewPayoutRepo(s),
		jobs:          memory.NewSettlementJobRepo(s),
		reports:       memory.NewReportRepo(s),
		events:        memory.NewGatewayEventRepo(s),
		audit:         memory.NewAuditRepo(s),
		transactor:    memory.NewTransactor(s),
		health:        memory.NewHealthCheck(),
		close:         func() {},
	}
}
