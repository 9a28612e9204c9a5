package ports

import (
	"context"
	"time"

	"ride-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService verifies signed gateway webhooks.
type SignatureService interface {
	Sign(secret string, timestamp int64, payload []byte) string
	// VerifyHeader checks a "t=<unix>,v1=<hex>" header against payload within tolerance.
	VerifyHeader(secret string, header string, payload []byte, tolerance time.Duration, now time.Time) error
}

// Caller roles carried in the access token.
const (
	RoleRider  = "rider"
	RoleDriver = "driver"
	RoleAdmin  = "admin"
)

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, role string, ttl time.Duration) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the caller identity parsed from a JWT.
type TokenClaims struct {
	UserID uuid.UUID
	Role   string
}

// --- Service Ports (Business Logic) ---

// LedgerRequest is one credit or debit against a wallet.
type LedgerRequest struct {
	WalletID      uuid.UUID
	Amount        decimal.Decimal
	Category      domain.TransactionCategory
	Reference     domain.Reference
	Description   string
	EnforceLimits bool // debit only: apply daily/monthly wallet limits under the lock
}

// WalletService exposes balance queries and wallet administration.
type WalletService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetWallet(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error)
	Recharge(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, externalRef string) (*domain.WalletTransaction, error)
	GrantBonus(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, note string) (*domain.WalletTransaction, error)
	SetActive(ctx context.Context, walletID uuid.UUID, active bool) (*domain.Wallet, error)
	UpdateLimits(ctx context.Context, walletID uuid.UUID, daily, monthly decimal.Decimal) (*domain.Wallet, error)
}

// BookingPaymentRequest holds validated input for charging a booking.
type BookingPaymentRequest struct {
	BookingID uuid.UUID
	UserID    uuid.UUID
	Amount    decimal.Decimal
	Method    domain.PaymentMethod
	Pricing   *domain.PricingBreakdown
}

// BookingPaymentResult is the stored payment plus, for gateway methods, the intent to confirm.
type BookingPaymentResult struct {
	Payment *domain.BookingPayment
	Intent  *PaymentIntent
}

// BookingPaymentService charges bookings.
type BookingPaymentService interface {
	ProcessBookingPayment(ctx context.Context, req BookingPaymentRequest) (*BookingPaymentResult, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.BookingPayment, error)
	ListBookingPayments(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingPayment, error)
}

// RefundRequest holds validated input for refund processing.
type RefundRequest struct {
	PaymentID   uuid.UUID
	Amount      *decimal.Decimal // nil = full refund
	Reason      string
	RequestedBy uuid.UUID
}

// RefundService reverses completed booking payments.
type RefundService interface {
	ProcessRefund(ctx context.Context, req RefundRequest) (*domain.BookingPayment, error)
}

// CreateWithdrawalRequest holds validated input for a withdrawal. Exactly one of
// AccountDetails or MethodID is set.
type CreateWithdrawalRequest struct {
	UserID         uuid.UUID
	Amount         decimal.Decimal
	Method         domain.WithdrawalMethodType
	AccountDetails domain.AccountDetails
	MethodID       *uuid.UUID
}

// AddWithdrawalMethodRequest saves a payout destination.
type AddWithdrawalMethodRequest struct {
	UserID    uuid.UUID
	Details   domain.AccountDetails
	IsDefault bool
}

// WithdrawalService drives the withdrawal state machine.
type WithdrawalService interface {
	CreateWithdrawal(ctx context.Context, req CreateWithdrawalRequest) (*domain.WithdrawalRequest, error)
	ApproveWithdrawal(ctx context.Context, id, reviewerID uuid.UUID, notes string) (*domain.WithdrawalRequest, *domain.PayoutTransaction, error)
	RejectWithdrawal(ctx context.Context, id, reviewerID uuid.UUID, notes string) (*domain.WithdrawalRequest, error)
	CancelWithdrawal(ctx context.Context, id, userID uuid.UUID, notes string) (*domain.WithdrawalRequest, error)
	RetryPayout(ctx context.Context, id, reviewerID uuid.UUID) (*domain.PayoutTransaction, error)
	CompletePayout(ctx context.Context, result domain.PayoutResult) (*domain.WithdrawalRequest, error)
	GetWithdrawal(ctx context.Context, id, callerID uuid.UUID, isAdmin bool) (*domain.WithdrawalRequest, error)
	ListUserWithdrawals(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WithdrawalRequest, int64, error)
	ListWithdrawals(ctx context.Context, status domain.WithdrawalStatus, page, pageSize int) ([]domain.WithdrawalRequest, int64, error)
	ListOperatorQueue(ctx context.Context) ([]domain.WithdrawalRequest, error)
	AddMethod(ctx context.Context, req AddWithdrawalMethodRequest) (*domain.WithdrawalMethod, error)
	ListMethods(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalMethod, error)
	DeleteMethod(ctx context.Context, id, userID uuid.UUID) error
}

// ActivateCommissionInput describes a new commission schedule.
type ActivateCommissionInput struct {
	Type        domain.CommissionType
	Percentage  decimal.Decimal
	FixedAmount decimal.Decimal
	MinAmount   *decimal.Decimal
	MaxAmount   *decimal.Decimal
}

// CommissionService reads and swaps commission schedules.
type CommissionService interface {
	Active(ctx context.Context, t domain.CommissionType) (*domain.CommissionSetting, error)
	Activate(ctx context.Context, in ActivateCommissionInput) (*domain.CommissionSetting, error)
	History(ctx context.Context, t domain.CommissionType) ([]domain.CommissionSetting, error)
}

// ReportingService produces daily commission reports and reconciliation views.
type ReportingService interface {
	GenerateCommissionReport(ctx context.Context, date time.Time) (*domain.CommissionReport, error)
	GetCommissionReport(ctx context.Context, date time.Time) (*domain.CommissionReport, error)
	ListCommissionReports(ctx context.Context, from, to time.Time) ([]domain.CommissionReport, error)
	Reconcile(ctx context.Context, from, to time.Time) ([]domain.ReconciliationLine, error)
	VerifyWallet(ctx context.Context, walletID uuid.UUID) (*domain.WalletVerification, error)
}

// GatewayEventService consumes signed webhooks from the payment and payout rails.
type GatewayEventService interface {
	HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error
}

// AuditService records operator actions. Log never blocks the request.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
