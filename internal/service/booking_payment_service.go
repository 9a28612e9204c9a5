package service

import (
	"context"
	"fmt"
	"time"

	"ride-ledger/internal/core/domain"
	"ride-ledger/internal/core/ports"
	"ride-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// BookingPaymentServiceImpl implements ports.BookingPaymentService.
type BookingPaymentServiceImpl struct {
	bookingRepo    ports.BookingRepository
	paymentRepo    ports.BookingPaymentRepository
	commissionRepo ports.CommissionTransactionRepository
	commissions    ports.CommissionService
	wallets        ports.WalletService
	ledger         *LedgerService
	gateway        ports.PaymentGateway
	transactor     ports.DBTransactor
	publisher      ports.EventPublisher
	log            zerolog.Logger
}

// NewBookingPaymentService creates a new BookingPaymentServiceImpl.
func NewBookingPaymentService(
	bookingRepo ports.BookingRepository,
	paymentRepo ports.BookingPaymentRepository,
	commissionRepo ports.CommissionTransactionRepository,
	commissions ports.CommissionService,
	wallets ports.WalletService,
	ledger *LedgerService,
	gateway ports.PaymentGateway,
	transactor ports.DBTransactor,
	publisher ports.EventPublisher,
	log zerolog.Logger,
) *BookingPaymentServiceImpl {
	return &BookingPaymentServiceImpl{
		bookingRepo:    bookingRepo,
		paymentRepo:    paymentRepo,
		commissionRepo: commissionRepo,
		commissions:    commissions,
		wallets:        wallets,
		ledger:         ledger,
		gateway:        gateway,
		transactor:     transactor,
		publisher:      publisher,
		log:            log,
	}
}

// ProcessBookingPayment charges a booking. Wallet payments settle synchronously;
// card and PayPal payments stay processing until the gateway confirms them.
func (s *BookingPaymentServiceImpl) ProcessBookingPayment(ctx context.Context, req ports.BookingPaymentRequest) (*ports.BookingPaymentResult, error) {
	amount := domain.RoundMoney(req.Amount)
	if !amount.IsPositive() {
		return nil, apperror.Validation("amount must be greater than zero")
	}
	if !req.Method.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unsupported payment method %q", req.Method))
	}

	booking, err := s.bookingRepo.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get booking: %w", err))
	}
	if err := checkPayable(booking, req.UserID, amount); err != nil {
		return nil, err
	}
	if req.Pricing != nil && !domain.WithinEpsilon(req.Pricing.Total(), amount) {
		return nil, apperror.ErrAmountMismatch()
	}

	setting, err := s.commissions.Active(ctx, domain.CommissionTypeBooking)
	if err != nil {
		return nil, err
	}
	quote := setting.Calculate(amount)

	now := time.Now().UTC()
	payment := &domain.BookingPayment{
		ID:                    uuid.New(),
		BookingID:             booking.ID,
		UserID:                req.UserID,
		Kind:                  domain.PaymentKindPayment,
		Amount:                amount,
		Currency:              booking.Currency,
		Method:                req.Method,
		Status:                domain.PaymentStatusProcessing,
		AdminCommissionAmount: quote.Amount,
		DriverEarningAmount:   amount.Sub(quote.Amount),
		Pricing:               req.Pricing,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if req.Method.UsesGateway() {
		return s.payThroughGateway(ctx, payment, quote)
	}
	return s.payFromWallet(ctx, payment, quote)
}

func (s *BookingPaymentServiceImpl) payFromWallet(ctx context.Context, payment *domain.BookingPayment, quote domain.CommissionQuote) (*ports.BookingPaymentResult, error) {
	wallet, err := s.wallets.GetBalance(ctx, payment.UserID)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	booking, err := s.bookingRepo.GetByIDForUpdate(ctx, dbTx, payment.BookingID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock booking: %w", err))
	}
	if err := checkPayable(booking, payment.UserID, payment.Amount); err != nil {
		return nil, err
	}

	if err := s.paymentRepo.Create(ctx, dbTx, payment); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create booking payment: %w", err))
	}

	txn, err := s.ledger.DebitTx(ctx, dbTx, ports.LedgerRequest{
		WalletID:      wallet.ID,
		Amount:        payment.Amount,
		Category:      domain.CategoryRidePayment,
		Reference:     domain.BookingPaymentRef(payment.ID),
		Description:   fmt.Sprintf("Payment for booking %s", payment.BookingID),
		EnforceLimits: true,
	})
	if err != nil {
		return nil, err
	}

	if quote.Amount.IsPositive() {
		if err := s.createCommission(ctx, dbTx, payment, quote, domain.CommissionCollected); err != nil {
			return nil, err
		}
	}

	completedAt := time.Now().UTC()
	payment.Status = domain.PaymentStatusCompleted
	payment.CompletedAt = &completedAt
	payment.UpdatedAt = completedAt
	if err := s.paymentRepo.Update(ctx, dbTx, payment); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("complete booking payment: %w", err))
	}
	if err := s.bookingRepo.UpdatePaymentStatus(ctx, dbTx, payment.BookingID, domain.BookingPaid); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark booking paid: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.publish(ctx, TransactionEvent(txn), PaymentEvent(payment))

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("booking_id", payment.BookingID.String()).
		Str("amount", payment.Amount.StringFixed(2)).
		Str("commission", payment.AdminCommissionAmount.StringFixed(2)).
		Msg("booking paid from wallet")

	return &ports.BookingPaymentResult{Payment: payment}, nil
}

func (s *BookingPaymentServiceImpl) payThroughGateway(ctx context.Context, payment *domain.BookingPayment, quote domain.CommissionQuote) (*ports.BookingPaymentResult, error) {
	intent, err := s.gateway.CreateIntent(ctx, ports.PaymentIntentRequest{
		IdempotencyKey: payment.ID.String(),
		PaymentID:      payment.ID,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		Method:         payment.Method,
		CustomerID:     payment.UserID,
	})
	if err != nil {
		s.log.Error().Err(err).Str("payment_id", payment.ID.String()).Msg("create payment intent failed")
		return nil, apperror.ErrGateway(err)
	}
	payment.GatewayIntentID = &intent.ID

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	booking, err := s.bookingRepo.GetByIDForUpdate(ctx, dbTx, payment.BookingID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock booking: %w", err))
	}
	if err := checkPayable(booking, payment.UserID, payment.Amount); err != nil {
		return nil, err
	}

	if err := s.paymentRepo.Create(ctx, dbTx, payment); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create booking payment: %w", err))
	}
	if quote.Amount.IsPositive() {
		if err := s.createCommission(ctx, dbTx, payment, quote, domain.CommissionPending); err != nil {
			return nil, err
		}
	}
	if err := s.bookingRepo.UpdatePaymentStatus(ctx, dbTx, payment.BookingID, domain.BookingPending); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark booking pending: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("intent_id", intent.ID).
		Str("method", string(payment.Method)).
		Msg("payment intent created")

	return &ports.BookingPaymentResult{Payment: payment, Intent: intent}, nil
}

// CompleteGatewayPayment settles a processing gateway payment inside tx.
func (s *BookingPaymentServiceImpl) CompleteGatewayPayment(ctx context.Context, tx pgx.Tx, p *domain.BookingPayment) error {
	if p.Status != domain.PaymentStatusProcessing {
		return apperror.ErrAlreadyProcessed()
	}

	now := time.Now().UTC()
	p.Status = domain.PaymentStatusCompleted
	p.CompletedAt = &now
	p.UpdatedAt = now
	if err := s.paymentRepo.Update(ctx, tx, p); err != nil {
		return apperror.InternalError(fmt.Errorf("complete booking payment: %w", err))
	}
	if err := s.setCommissionStatus(ctx, tx, p.ID, domain.CommissionPending, domain.CommissionCollected); err != nil {
		return err
	}
	if err := s.bookingRepo.UpdatePaymentStatus(ctx, tx, p.BookingID, domain.BookingPaid); err != nil {
		return apperror.InternalError(fmt.Errorf("mark booking paid: %w", err))
	}
	return nil
}

// FailGatewayPayment records a declined gateway payment inside tx and reopens the booking.
func (s *BookingPaymentServiceImpl) FailGatewayPayment(ctx context.Context, tx pgx.Tx, p *domain.BookingPayment, reason string) error {
	if p.Status != domain.PaymentStatusProcessing {
		return apperror.ErrAlreadyProcessed()
	}

	if reason == "" {
		reason = "payment declined"
	}
	p.Status = domain.PaymentStatusFailed
	p.FailureReason = &reason
	p.UpdatedAt = time.Now().UTC()
	if err := s.paymentRepo.Update(ctx, tx, p); err != nil {
		return apperror.InternalError(fmt.Errorf("fail booking payment: %w", err))
	}
	if err := s.setCommissionStatus(ctx, tx, p.ID, domain.CommissionPending, domain.CommissionRefunded); err != nil {
		return err
	}
	if err := s.bookingRepo.UpdatePaymentStatus(ctx, tx, p.BookingID, domain.BookingUnpaid); err != nil {
		return apperror.InternalError(fmt.Errorf("reopen booking: %w", err))
	}
	return nil
}

func (s *BookingPaymentServiceImpl) GetPayment(ctx context.Context, id uuid.UUID) (*domain.BookingPayment, error) {
	p, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get booking payment: %w", err))
	}
	if p == nil {
		return nil, apperror.ErrNotFound("payment")
	}
	return p, nil
}

func (s *BookingPaymentServiceImpl) ListBookingPayments(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingPayment, error) {
	payments, err := s.paymentRepo.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list booking payments: %w", err))
	}
	return payments, nil
}

func (s *BookingPaymentServiceImpl) createCommission(ctx context.Context, tx pgx.Tx, p *domain.BookingPayment, quote domain.CommissionQuote, status domain.CommissionStatus) error {
	now := time.Now().UTC()
	paymentID := p.ID
	c := &domain.CommissionTransaction{
		ID:                   uuid.New(),
		BookingPaymentID:     &paymentID,
		Reference:            domain.BookingPaymentRef(p.ID),
		TransactionType:      domain.CommissionBooking,
		BaseAmount:           p.Amount,
		CommissionAmount:     quote.Amount,
		CommissionPercentage: quote.Percentage,
		Status:               status,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.commissionRepo.Create(ctx, tx, c); err != nil {
		return apperror.InternalError(fmt.Errorf("create commission transaction: %w", err))
	}
	return nil
}

func (s *BookingPaymentServiceImpl) setCommissionStatus(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID, from, to domain.CommissionStatus) error {
	rows, err := s.commissionRepo.ListByBookingPayment(ctx, tx, paymentID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("list commission transactions: %w", err))
	}
	for _, c := range rows {
		if c.Status != from {
			continue
		}
		if err := s.commissionRepo.UpdateStatus(ctx, tx, c.ID, to); err != nil {
			return apperror.InternalError(fmt.Errorf("update commission status: %w", err))
		}
	}
	return nil
}

func (s *BookingPaymentServiceImpl) publish(ctx context.Context, events ...domain.LedgerEvent) {
	publishBestEffort(ctx, s.publisher, s.log, events...)
}

// checkPayable validates the booking before any mutation.
func checkPayable(b *domain.Booking, userID uuid.UUID, amount decimal.Decimal) error {
	if b == nil {
		return apperror.ErrNotFound("booking")
	}
	if b.UserID != userID {
		return apperror.ErrNotAuthorized()
	}
	switch b.PaymentStatus {
	case domain.BookingPaid:
		return apperror.ErrAlreadyPaid()
	case domain.BookingPending:
		return apperror.ErrInvalidState("a payment for this booking is already in progress")
	case domain.BookingRefunded:
		return apperror.ErrInvalidState("booking has been refunded")
	}
	if !domain.WithinEpsilon(amount, b.TotalAmount) {
		return apperror.ErrAmountMismatch()
	}
	return nil
}

// PaymentEvent builds the outbound notification for a booking payment state change.
func PaymentEvent(p *domain.BookingPayment) domain.LedgerEvent {
	t := domain.LedgerPaymentCompleted
	switch p.Status {
	case domain.PaymentStatusFailed:
		t = domain.LedgerPaymentFailed
	case domain.PaymentStatusRefunded:
		t = domain.LedgerPaymentRefunded
	}
	if p.Kind == domain.PaymentKindRefund {
		t = domain.LedgerPaymentRefunded
	}
	return domain.NewLedgerEvent(t, p.ID, p.UserID, p.Amount, string(p.Status))
}
