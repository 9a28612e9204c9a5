package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ride-ledger/internal/core/domain"
	"ride-ledger/internal/core/ports"
	"ride-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RefundServiceImpl implements ports.RefundService.
type RefundServiceImpl struct {
	bookingRepo    ports.BookingRepository
	paymentRepo    ports.BookingPaymentRepository
	commissionRepo ports.CommissionTransactionRepository
	wallets        ports.WalletService
	ledger         *LedgerService
	gateway        ports.PaymentGateway
	transactor     ports.DBTransactor
	publisher      ports.EventPublisher
	log            zerolog.Logger
}

// NewRefundService creates a new RefundServiceImpl.
func NewRefundService(
	bookingRepo ports.BookingRepository,
	paymentRepo ports.BookingPaymentRepository,
	commissionRepo ports.CommissionTransactionRepository,
	wallets ports.WalletService,
	ledger *LedgerService,
	gateway ports.PaymentGateway,
	transactor ports.DBTransactor,
	publisher ports.EventPublisher,
	log zerolog.Logger,
) *RefundServiceImpl {
	return &RefundServiceImpl{
		bookingRepo:    bookingRepo,
		paymentRepo:    paymentRepo,
		commissionRepo: commissionRepo,
		wallets:        wallets,
		ledger:         ledger,
		gateway:        gateway,
		transactor:     transactor,
		publisher:      publisher,
		log:            log,
	}
}

// ProcessRefund reverses all or part of a completed booking payment. The
// commission is reversed in proportion to the refunded share, using the
// booking schedule the original charge was priced with.
func (s *RefundServiceImpl) ProcessRefund(ctx context.Context, req ports.RefundRequest) (*domain.BookingPayment, error) {
	original, err := s.paymentRepo.GetByID(ctx, req.PaymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get booking payment: %w", err))
	}
	amount, err := refundAmount(original, req.Amount)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "requested_by_customer"
	}

	// Resolve the payer wallet before locking anything.
	var walletID uuid.UUID
	if original.Method == domain.PaymentMethodWallet {
		wallet, err := s.wallets.GetBalance(ctx, original.UserID)
		if err != nil {
			return nil, err
		}
		walletID = wallet.ID
	}

	if original.Method.UsesGateway() {
		if err := s.refundAtGateway(ctx, original, amount, reason); err != nil {
			return nil, err
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	original, err = s.paymentRepo.GetByIDForUpdate(ctx, dbTx, req.PaymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock booking payment: %w", err))
	}
	if _, err := refundAmount(original, &amount); err != nil {
		return nil, err
	}
	if _, err := s.bookingRepo.GetByIDForUpdate(ctx, dbTx, original.BookingID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock booking: %w", err))
	}

	full := amount.Equal(original.Amount)
	refundCommission := domain.ProportionalShare(original.AdminCommissionAmount, amount, original.Amount)

	now := time.Now().UTC()
	originalID := original.ID
	refund := &domain.BookingPayment{
		ID:                    uuid.New(),
		BookingID:             original.BookingID,
		UserID:                original.UserID,
		Kind:                  domain.PaymentKindRefund,
		OriginalPaymentID:     &originalID,
		Amount:                amount,
		Currency:              original.Currency,
		Method:                original.Method,
		Status:                domain.PaymentStatusCompleted,
		AdminCommissionAmount: refundCommission,
		DriverEarningAmount:   amount.Sub(refundCommission),
		RefundReason:          &reason,
		CompletedAt:           &now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.paymentRepo.Create(ctx, dbTx, refund); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create refund record: %w", err))
	}

	original.Status = domain.PaymentStatusRefunded
	original.RefundReason = &reason
	original.UpdatedAt = now
	if err := s.paymentRepo.Update(ctx, dbTx, original); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark payment refunded: %w", err))
	}
	if full {
		if err := s.bookingRepo.UpdatePaymentStatus(ctx, dbTx, original.BookingID, domain.BookingRefunded); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("mark booking refunded: %w", err))
		}
	}

	if err := s.reverseCommission(ctx, dbTx, original, refund, full); err != nil {
		return nil, err
	}

	events := []domain.LedgerEvent{PaymentEvent(refund)}
	credit := amount.Sub(refundCommission)
	if original.Method == domain.PaymentMethodWallet && credit.IsPositive() {
		txn, err := s.ledger.CreditTx(ctx, dbTx, ports.LedgerRequest{
			WalletID:    walletID,
			Amount:      credit,
			Category:    domain.CategoryRefund,
			Reference:   domain.RefundRef(refund.ID),
			Description: fmt.Sprintf("Refund for booking %s", original.BookingID),
		})
		if err != nil {
			return nil, err
		}
		events = append(events, TransactionEvent(txn))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	publishBestEffort(ctx, s.publisher, s.log, events...)

	s.log.Info().
		Str("refund_id", refund.ID.String()).
		Str("payment_id", original.ID.String()).
		Str("amount", amount.StringFixed(2)).
		Str("commission_reversed", refundCommission.StringFixed(2)).
		Str("requested_by", req.RequestedBy.String()).
		Bool("full", full).
		Msg("refund processed")

	return refund, nil
}

func (s *RefundServiceImpl) refundAtGateway(ctx context.Context, original *domain.BookingPayment, amount decimal.Decimal, reason string) error {
	if original.GatewayIntentID == nil {
		return apperror.ErrInvalidState("payment has no gateway intent to refund")
	}
	_, err := s.gateway.Refund(ctx, ports.GatewayRefundRequest{
		IdempotencyKey: "refund-" + original.ID.String(),
		IntentID:       *original.GatewayIntentID,
		Amount:         amount,
		Currency:       original.Currency,
		Reason:         reason,
	})
	if err != nil {
		s.log.Error().Err(err).Str("payment_id", original.ID.String()).Msg("gateway refund failed")
		return apperror.ErrGateway(err)
	}
	return nil
}

// reverseCommission marks the linked booking commission refunded on a full
// refund, or records the refunded share as its own row on a partial one.
func (s *RefundServiceImpl) reverseCommission(ctx context.Context, tx pgx.Tx, original, refund *domain.BookingPayment, full bool) error {
	if full {
		rows, err := s.commissionRepo.ListByBookingPayment(ctx, tx, original.ID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("list commission transactions: %w", err))
		}
		for _, c := range rows {
			if c.TransactionType != domain.CommissionBooking || c.Status == domain.CommissionRefunded {
				continue
			}
			if err := s.commissionRepo.UpdateStatus(ctx, tx, c.ID, domain.CommissionRefunded); err != nil {
				return apperror.InternalError(fmt.Errorf("refund commission: %w", err))
			}
		}
		return nil
	}

	if !refund.AdminCommissionAmount.IsPositive() {
		return nil
	}
	originalID := original.ID
	c := &domain.CommissionTransaction{
		ID:                   uuid.New(),
		BookingPaymentID:     &originalID,
		Reference:            domain.RefundRef(refund.ID),
		TransactionType:      domain.CommissionBooking,
		BaseAmount:           refund.Amount,
		CommissionAmount:     refund.AdminCommissionAmount,
		CommissionPercentage: refund.AdminCommissionAmount.Mul(decimal.NewFromInt(100)).DivRound(refund.Amount, 4),
		Status:               domain.CommissionRefunded,
		CreatedAt:            refund.CreatedAt,
		UpdatedAt:            refund.CreatedAt,
	}
	if err := s.commissionRepo.Create(ctx, tx, c); err != nil {
		return apperror.InternalError(fmt.Errorf("create refunded commission: %w", err))
	}
	return nil
}

// refundAmount validates the refund against the original payment and resolves a full refund.
func refundAmount(original *domain.BookingPayment, requested *decimal.Decimal) (decimal.Decimal, error) {
	if original == nil {
		return decimal.Zero, apperror.ErrNotFound("payment")
	}
	if original.Kind != domain.PaymentKindPayment {
		return decimal.Zero, apperror.ErrInvalidState("refund records cannot be refunded")
	}
	if original.Status == domain.PaymentStatusRefunded {
		return decimal.Zero, apperror.ErrInvalidState("payment is already refunded")
	}
	if !original.IsRefundable() {
		return decimal.Zero, apperror.ErrInvalidState(fmt.Sprintf("cannot refund a %s payment", original.Status))
	}
	if requested == nil {
		return original.Amount, nil
	}
	amount := domain.RoundMoney(*requested)
	if !amount.IsPositive() {
		return decimal.Zero, apperror.Validation("refund amount must be greater than zero")
	}
	if amount.GreaterThan(original.Amount) {
		return decimal.Zero, apperror.Validation("refund amount exceeds the original payment")
	}
	return amount, nil
}
