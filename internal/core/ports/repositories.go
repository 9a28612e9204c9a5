package ports

import (
	"context"
	"time"

	"ride-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Methods accepting pgx.Tx run inside the caller's unit of work. Where a read
// documents "tx may be nil" it falls back to a snapshot read on the pool.

// WalletRepository defines persistence operations for wallets.
type WalletRepository interface {
	// GetOrCreate inserts w unless the user already owns a wallet, and returns the stored row.
	GetOrCreate(ctx context.Context, w *domain.Wallet) (*domain.Wallet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error
	SetActive(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, active bool) error
	UpdateLimits(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, daily, monthly decimal.Decimal) error
}

// WalletTransactionRepository stores the append-only wallet ledger.
type WalletTransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, t *domain.WalletTransaction) error
	ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error)
	// ListChain returns every row of the wallet in ledger order.
	ListChain(ctx context.Context, walletID uuid.UUID) ([]domain.WalletTransaction, error)
	// SumCompletedDebits sums completed debits in [from, to). tx may be nil.
	SumCompletedDebits(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
}

// BookingRepository reads and updates the payment status of ride bookings.
type BookingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Booking, error)
	UpdatePaymentStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.BookingPaymentStatus) error
}

// BookingPaymentRepository stores charges and refunds against bookings.
type BookingPaymentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, p *domain.BookingPayment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BookingPayment, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.BookingPayment, error)
	GetByGatewayIntentForUpdate(ctx context.Context, tx pgx.Tx, intentID string) (*domain.BookingPayment, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingPayment, error)
	Update(ctx context.Context, tx pgx.Tx, p *domain.BookingPayment) error
}

// CommissionSettingRepository stores effective-dated commission schedules.
type CommissionSettingRepository interface {
	GetActive(ctx context.Context, t domain.CommissionType) (*domain.CommissionSetting, error)
	ListByType(ctx context.Context, t domain.CommissionType) ([]domain.CommissionSetting, error)
	DeactivateAll(ctx context.Context, tx pgx.Tx, t domain.CommissionType) error
	Create(ctx context.Context, tx pgx.Tx, s *domain.CommissionSetting) error
}

// CommissionTransactionRepository stores commission lines.
type CommissionTransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, c *domain.CommissionTransaction) error
	ListByBookingPayment(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) ([]domain.CommissionTransaction, error)
	GetByReference(ctx context.Context, tx pgx.Tx, ref domain.Reference, t domain.CommissionTransactionType) (*domain.CommissionTransaction, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.CommissionStatus) error
}

// WithdrawalRepository stores withdrawal requests.
type WithdrawalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error)
	Update(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error
	ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WithdrawalRequest, int64, error)
	// ListByStatus pages through requests in status, oldest first. An empty status lists all.
	ListByStatus(ctx context.Context, status domain.WithdrawalStatus, page, pageSize int) ([]domain.WithdrawalRequest, int64, error)
	// CountInFlight counts the user's pending, approved and processing requests. tx may be nil.
	CountInFlight(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int, error)
	// SumRequested sums amounts of non-rejected, non-cancelled requests created in [from, to). tx may be nil.
	SumRequested(ctx context.Context, tx pgx.Tx, userID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
	// ListAwaitingOperator returns approved requests whose latest payout failed.
	ListAwaitingOperator(ctx context.Context) ([]domain.WithdrawalRequest, error)
}

// WithdrawalMethodRepository stores saved payout destinations.
type WithdrawalMethodRepository interface {
	Create(ctx context.Context, tx pgx.Tx, m *domain.WithdrawalMethod) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalMethod, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalMethod, error)
	ClearDefault(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error
	Deactivate(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// PayoutRepository stores settlement attempts.
type PayoutRepository interface {
	Create(ctx context.Context, tx pgx.Tx, p *domain.PayoutTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutTransaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutTransaction, error)
	// GetLatestByWithdrawal returns the newest payout of a withdrawal. tx may be nil.
	GetLatestByWithdrawal(ctx context.Context, tx pgx.Tx, withdrawalID uuid.UUID) (*domain.PayoutTransaction, error)
	ListByWithdrawal(ctx context.Context, withdrawalID uuid.UUID) ([]domain.PayoutTransaction, error)
	Update(ctx context.Context, tx pgx.Tx, p *domain.PayoutTransaction) error
}

// SettlementJobRepository is the durable payout outbox.
type SettlementJobRepository interface {
	Create(ctx context.Context, tx pgx.Tx, j *domain.SettlementJob) error
	// ClaimDue leases up to limit due jobs, skipping rows locked by other workers.
	ClaimDue(ctx context.Context, tx pgx.Tx, now time.Time, limit int, lease time.Duration) ([]domain.SettlementJob, error)
	GetByPayoutID(ctx context.Context, tx pgx.Tx, payoutID uuid.UUID) (*domain.SettlementJob, error)
	Update(ctx context.Context, tx pgx.Tx, j *domain.SettlementJob) error
}

// ReportRepository persists daily commission reports and computes their aggregates.
type ReportRepository interface {
	// Create inserts r unless a report for the date exists. Returns false on conflict.
	Create(ctx context.Context, r *domain.CommissionReport) (bool, error)
	GetByDate(ctx context.Context, date time.Time) (*domain.CommissionReport, error)
	List(ctx context.Context, from, to time.Time) ([]domain.CommissionReport, error)
	// ComputeTotals aggregates completed flows in [from, to) without persisting.
	ComputeTotals(ctx context.Context, from, to time.Time) (domain.ReportTotals, error)
}

// GatewayEventRepository is the durable dedupe log of inbound gateway events.
type GatewayEventRepository interface {
	// Insert records e. Returns false when the event id was already recorded.
	Insert(ctx context.Context, tx pgx.Tx, e *domain.GatewayEvent) (bool, error)
	// Exists reports whether the event id has a committed record.
	Exists(ctx context.Context, eventID string) (bool, error)
}

// AuditRepository persists the operator audit trail.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
