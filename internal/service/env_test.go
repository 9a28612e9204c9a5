package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ride-ledger/config"
	"ride-ledger/internal/adapter/gateway"
	"ride-ledger/internal/adapter/storage/memory"
	"ride-ledger/internal/core/domain"
	"ride-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test"

// ledgerEnv wires every service over one in-memory store.
type ledgerEnv struct {
	store      *memory.Store
	transactor *memory.Transactor

	walletRepo     *memory.WalletRepo
	walletTxRepo   *memory.WalletTransactionRepo
	bookingRepo    *memory.BookingRepo
	paymentRepo    *memory.BookingPaymentRepo
	settingRepo    *memory.CommissionSettingRepo
	commissionRepo *memory.CommissionTransactionRepo
	withdrawalRepo *memory.WithdrawalRepo
	methodRepo     *memory.WithdrawalMethodRepo
	payoutRepo     *memory.PayoutRepo
	jobRepo        *memory.SettlementJobRepo
	reportRepo     *memory.ReportRepo
	eventRepo      *memory.GatewayEventRepo

	payGateway *gateway.SandboxPaymentGateway
	rail       ports.PayoutGateway

	ledger      *LedgerService
	limits      *LimitEnforcer
	wallets     *WalletServiceImpl
	commissions *CommissionServiceImpl
	payments    *BookingPaymentServiceImpl
	refunds     *RefundServiceImpl
	withdrawals *WithdrawalServiceImpl
	reports     ports.ReportingService
	events      *GatewayEventServiceImpl
	signer      *HMACSignatureService
}

type envOptions struct {
	rail      ports.PayoutGateway
	cache     ports.CommissionCache
	deduper   ports.EventDeduper
	publisher ports.EventPublisher
	limits    WithdrawalLimits
	fees      FeeSchedule
}

type envOption func(*envOptions)

func withRail(r ports.PayoutGateway) envOption {
	return func(o *envOptions) { o.rail = r }
}

func withCommissionCache(c ports.CommissionCache) envOption {
	return func(o *envOptions) { o.cache = c }
}

func withDeduper(d ports.EventDeduper) envOption {
	return func(o *envOptions) { o.deduper = d }
}

func withPublisher(p ports.EventPublisher) envOption {
	return func(o *envOptions) { o.publisher = p }
}

func withWithdrawalLimits(l WithdrawalLimits) envOption {
	return func(o *envOptions) { o.limits = l }
}

func withFees(f FeeSchedule) envOption {
	return func(o *envOptions) { o.fees = f }
}

func newLedgerEnv(t *testing.T, opts ...envOption) *ledgerEnv {
	t.Helper()
	log := zerolog.Nop()

	o := envOptions{
		rail:   gateway.NewSandboxPayoutGateway(log),
		limits: WithdrawalLimits{Min: dec("10"), Max: dec("5000")},
		fees:   FeeSchedule{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := memory.NewStore()
	e := &ledgerEnv{
		store:          s,
		transactor:     memory.NewTransactor(s),
		walletRepo:     memory.NewWalletRepo(s),
		walletTxRepo:   memory.NewWalletTransactionRepo(s),
		bookingRepo:    memory.NewBookingRepo(s),
		paymentRepo:    memory.NewBookingPaymentRepo(s),
		settingRepo:    memory.NewCommissionSettingRepo(s),
		commissionRepo: memory.NewCommissionTransactionRepo(s),
		withdrawalRepo: memory.NewWithdrawalRepo(s),
		methodRepo:     memory.NewWithdrawalMethodRepo(s),
		payoutRepo:     memory.NewPayoutRepo(s),
		jobRepo:        memory.NewSettlementJobRepo(s),
		reportRepo:     memory.NewReportRepo(s),
		eventRepo:      memory.NewGatewayEventRepo(s),
		payGateway:     gateway.NewSandboxPaymentGateway(log),
		rail:           o.rail,
		signer:         NewHMACSignatureService(),
	}

	e.limits = NewLimitEnforcer(e.walletRepo, e.walletTxRepo)
	e.ledger = NewLedgerService(e.walletRepo, e.walletTxRepo, e.limits, e.transactor, o.publisher, log)
	e.wallets = NewWalletService(e.walletRepo, e.walletTxRepo, e.ledger, config.WalletConfig{Currency: "usd"}, log)
	e.commissions = NewCommissionService(e.settingRepo, o.cache, time.Minute, e.transactor, log)
	e.payments = NewBookingPaymentService(
		e.bookingRepo, e.paymentRepo, e.commissionRepo, e.commissions, e.wallets,
		e.ledger, e.payGateway, e.transactor, o.publisher, log,
	)
	e.refunds = NewRefundService(
		e.bookingRepo, e.paymentRepo, e.commissionRepo, e.wallets,
		e.ledger, e.payGateway, e.transactor, o.publisher, log,
	)
	e.withdrawals = NewWithdrawalService(
		e.withdrawalRepo, e.methodRepo, e.payoutRepo, e.jobRepo, e.commissionRepo, e.walletRepo,
		e.commissions, e.wallets, e.ledger, e.rail, e.transactor, o.publisher,
		o.limits, o.fees, log,
	)
	e.reports = NewReportingService(e.reportRepo, e.walletRepo, e.walletTxRepo, log)
	e.events = NewGatewayEventService(
		e.signer, testWebhookSecret, 5*time.Minute, o.deduper, e.eventRepo, e.paymentRepo,
		e.payments, e.withdrawals, e.transactor, o.publisher, log,
	)
	return e
}

func (e *ledgerEnv) newWorker(maxAttempts int) *SettlementWorker {
	return NewSettlementWorker(e.jobRepo, e.withdrawals, e.rail, nil, e.transactor, WorkerSettings{
		BatchSize:   10,
		MaxAttempts: maxAttempts,
		Currency:    "USD",
	}, zerolog.Nop())
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fund creates the user's wallet and recharges it with amount.
func (e *ledgerEnv) fund(t *testing.T, userID uuid.UUID, amount string) *domain.Wallet {
	t.Helper()
	ctx := context.Background()
	if dec(amount).IsPositive() {
		_, err := e.wallets.Recharge(ctx, userID, dec(amount), "ch_"+uuid.NewString())
		require.NoError(t, err)
	}
	w, err := e.wallets.GetBalance(ctx, userID)
	require.NoError(t, err)
	return w
}

func (e *ledgerEnv) balance(t *testing.T, walletID uuid.UUID) decimal.Decimal {
	t.Helper()
	w, err := e.wallets.GetWallet(context.Background(), walletID)
	require.NoError(t, err)
	return w.Balance
}

func (e *ledgerEnv) booking(userID uuid.UUID, total string) domain.Booking {
	driver := uuid.New()
	b := domain.Booking{
		ID:            uuid.New(),
		UserID:        userID,
		DriverID:      &driver,
		TotalAmount:   dec(total),
		Currency:      "USD",
		PaymentStatus: domain.BookingUnpaid,
		UpdatedAt:     time.Now().UTC(),
	}
	e.store.PutBooking(b)
	return b
}

func (e *ledgerEnv) activateBooking(t *testing.T, pct string) {
	t.Helper()
	_, err := e.commissions.Activate(context.Background(), ports.ActivateCommissionInput{
		Type:       domain.CommissionTypeBooking,
		Percentage: dec(pct),
	})
	require.NoError(t, err)
}

func bankDetails() domain.BankTransferDetails {
	return domain.BankTransferDetails{
		AccountHolder: "Dana Driver",
		AccountNumber: "000123456789",
		BankName:      "First Test Bank",
		RoutingNumber: "021000021",
	}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	if !dec(want).Equal(got) {
		require.Fail(t, fmt.Sprintf("want %s, got %s", want, got.StringFixed(2)), msgAndArgs...)
	}
}
