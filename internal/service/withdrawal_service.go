package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ride-ledger/config"
	"ride-ledger/internal/core/domain"
	"ride-ledger/internal/core/ports"
	"ride-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// FeeSchedule maps each payout rail to its fee rule.
type FeeSchedule map[domain.WithdrawalMethodType]domain.FeeRule

// NewFeeSchedule converts the configured payout fees.
func NewFeeSchedule(cfg config.FeeSchedule) FeeSchedule {
	rule := func(r config.FeeRule) domain.FeeRule {
		return domain.FeeRule{
			Percentage: decimal.NewFromFloat(r.Percentage),
			Fixed:      domain.MoneyFromFloat(r.Fixed),
		}
	}
	return FeeSchedule{
		domain.WithdrawalBankTransfer: rule(cfg.BankTransfer),
		domain.WithdrawalPayPal:       rule(cfg.PayPal),
		domain.WithdrawalCard:         rule(cfg.Card),
	}
}

// WithdrawalLimits bounds a single withdrawal and the user's daily and monthly totals.
// A zero value disables the corresponding check.
type WithdrawalLimits struct {
	Min     decimal.Decimal
	Max     decimal.Decimal
	Daily   decimal.Decimal
	Monthly decimal.Decimal
}

// NewWithdrawalLimits converts the configured withdrawal limits.
func NewWithdrawalLimits(cfg config.WithdrawalConfig) WithdrawalLimits {
	return WithdrawalLimits{
		Min:     domain.MoneyFromFloat(cfg.MinAmount),
		Max:     domain.MoneyFromFloat(cfg.MaxAmount),
		Daily:   domain.MoneyFromFloat(cfg.DailyLimit),
		Monthly: domain.MoneyFromFloat(cfg.MonthlyLimit),
	}
}

// WithdrawalServiceImpl implements ports.WithdrawalService.
type WithdrawalServiceImpl struct {
	withdrawalRepo ports.WithdrawalRepository
	methodRepo     ports.WithdrawalMethodRepository
	payoutRepo     ports.PayoutRepository
	jobRepo        ports.SettlementJobRepository
	commissionRepo ports.CommissionTransactionRepository
	walletRepo     ports.WalletRepository
	commissions    ports.CommissionService
	wallets        ports.WalletService
	ledger         *LedgerService
	rail           ports.PayoutGateway
	transactor     ports.DBTransactor
	publisher      ports.EventPublisher
	limits         WithdrawalLimits
	fees           FeeSchedule
	log            zerolog.Logger
	now            func() time.Time
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	withdrawalRepo ports.WithdrawalRepository,
	methodRepo ports.WithdrawalMethodRepository,
	payoutRepo ports.PayoutRepository,
	jobRepo ports.SettlementJobRepository,
	commissionRepo ports.CommissionTransactionRepository,
	walletRepo ports.WalletRepository,
	commissions ports.CommissionService,
	wallets ports.WalletService,
	ledger *LedgerService,
	rail ports.PayoutGateway,
	transactor ports.DBTransactor,
	publisher ports.EventPublisher,
	limits WithdrawalLimits,
	fees FeeSchedule,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		withdrawalRepo: withdrawalRepo,
		methodRepo:     methodRepo,
		payoutRepo:     payoutRepo,
		jobRepo:        jobRepo,
		commissionRepo: commissionRepo,
		walletRepo:     walletRepo,
		commissions:    commissions,
		wallets:        wallets,
		ledger:         ledger,
		rail:           rail,
		transactor:     transactor,
		publisher:      publisher,
		limits:         limits,
		fees:           fees,
		log:            log,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// CreateWithdrawal reserves funds with an immediate debit and opens a pending request.
func (s *WithdrawalServiceImpl) CreateWithdrawal(ctx context.Context, req ports.CreateWithdrawalRequest) (*domain.WithdrawalRequest, error) {
	amount := domain.RoundMoney(req.Amount)
	if !amount.IsPositive() {
		return nil, apperror.Validation("amount must be greater than zero")
	}
	if s.limits.Min.IsPositive() && amount.LessThan(s.limits.Min) {
		return nil, apperror.Validation(fmt.Sprintf("minimum withdrawal is %s", s.limits.Min.StringFixed(2)))
	}
	if s.limits.Max.IsPositive() && amount.GreaterThan(s.limits.Max) {
		return nil, apperror.Validation(fmt.Sprintf("maximum withdrawal is %s", s.limits.Max.StringFixed(2)))
	}

	details, err := s.resolveDetails(ctx, req)
	if err != nil {
		return nil, err
	}

	wallet, err := s.wallets.GetBalance(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	setting, err := s.commissions.Active(ctx, domain.CommissionTypeWithdrawal)
	if err != nil {
		return nil, err
	}
	fee := setting.Calculate(amount)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// The wallet lock serializes concurrent withdrawals of the same user.
	locked, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	inFlight, err := s.withdrawalRepo.CountInFlight(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count in-flight withdrawals: %w", err))
	}
	if inFlight > 0 {
		return nil, apperror.ErrInvalidState("another withdrawal is still in progress")
	}
	if err := s.checkTotals(ctx, dbTx, req.UserID, amount); err != nil {
		return nil, err
	}
	if !locked.CanDebit(amount) {
		return nil, apperror.ErrInsufficientBalance()
	}

	now := s.now()
	w := &domain.WithdrawalRequest{
		ID:             uuid.New(),
		UserID:         req.UserID,
		WalletID:       wallet.ID,
		Amount:         amount,
		FeeAmount:      fee.Amount,
		Method:         details.Method(),
		AccountDetails: details,
		Status:         domain.WithdrawalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.withdrawalRepo.Create(ctx, dbTx, w); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create withdrawal: %w", err))
	}

	txn, err := s.ledger.DebitTx(ctx, dbTx, ports.LedgerRequest{
		WalletID:    wallet.ID,
		Amount:      amount,
		Category:    domain.CategoryWithdrawal,
		Reference:   domain.WithdrawalRef(w.ID),
		Description: fmt.Sprintf("Withdrawal via %s", w.Method),
	})
	if err != nil {
		return nil, err
	}

	if fee.Amount.IsPositive() {
		c := &domain.CommissionTransaction{
			ID:                   uuid.New(),
			Reference:            domain.WithdrawalRef(w.ID),
			TransactionType:      domain.CommissionWithdrawalFee,
			BaseAmount:           amount,
			CommissionAmount:     fee.Amount,
			CommissionPercentage: fee.Percentage,
			Status:               domain.CommissionPending,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := s.commissionRepo.Create(ctx, dbTx, c); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create withdrawal fee: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.publish(ctx, TransactionEvent(txn), WithdrawalEvent(w))

	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("user_id", w.UserID.String()).
		Str("amount", amount.StringFixed(2)).
		Str("method", string(w.Method)).
		Msg("withdrawal requested")

	return w.Masked(), nil
}

// ApproveWithdrawal schedules settlement: it creates the payout and its outbox job together.
func (s *WithdrawalServiceImpl) ApproveWithdrawal(ctx context.Context, id, reviewerID uuid.UUID, notes string) (*domain.WithdrawalRequest, *domain.PayoutTransaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, err := s.lockWithdrawal(ctx, dbTx, id)
	if err != nil {
		return nil, nil, err
	}
	if w.Status != domain.WithdrawalPending {
		return nil, nil, apperror.ErrInvalidState(fmt.Sprintf("cannot approve a %s withdrawal", w.Status))
	}

	payout, err := s.schedulePayout(ctx, dbTx, w)
	if err != nil {
		return nil, nil, err
	}

	w.Status = domain.WithdrawalApproved
	w.ReviewedBy = &reviewerID
	if n := notesPtr(notes); n != nil {
		w.AdminNotes = n
	}
	w.UpdatedAt = s.now()
	if err := s.withdrawalRepo.Update(ctx, dbTx, w); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("approve withdrawal: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.publish(ctx, WithdrawalEvent(w))

	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("payout_id", payout.ID.String()).
		Str("reviewer_id", reviewerID.String()).
		Str("net_amount", payout.NetAmount.StringFixed(2)).
		Msg("withdrawal approved")

	return w.Masked(), payout, nil
}

// RejectWithdrawal closes a pending request, or an approved one whose payout failed,
// and returns the reserved funds.
func (s *WithdrawalServiceImpl) RejectWithdrawal(ctx context.Context, id, reviewerID uuid.UUID, notes string) (*domain.WithdrawalRequest, error) {
	return s.release(ctx, id, domain.WithdrawalRejected, notes, func(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
		switch w.Status {
		case domain.WithdrawalPending:
		case domain.WithdrawalApproved:
			payout, err := s.payoutRepo.GetLatestByWithdrawal(ctx, tx, w.ID)
			if err != nil {
				return apperror.InternalError(fmt.Errorf("get latest payout: %w", err))
			}
			if payout == nil || payout.Status != domain.PayoutFailed {
				return apperror.ErrInvalidState("only withdrawals with a failed payout can be rejected after approval")
			}
		default:
			return apperror.ErrInvalidState(fmt.Sprintf("cannot reject a %s withdrawal", w.Status))
		}
		w.ReviewedBy = &reviewerID
		return nil
	})
}

// CancelWithdrawal lets the owner withdraw a request before its payout is in flight.
func (s *WithdrawalServiceImpl) CancelWithdrawal(ctx context.Context, id, userID uuid.UUID, notes string) (*domain.WithdrawalRequest, error) {
	return s.release(ctx, id, domain.WithdrawalCancelled, notes, func(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
		if w.UserID != userID {
			return apperror.ErrNotAuthorized()
		}
		if !w.Status.CanTransitionTo(domain.WithdrawalCancelled) {
			return apperror.ErrInvalidState(fmt.Sprintf("cannot cancel a %s withdrawal", w.Status))
		}
		if w.Status == domain.WithdrawalApproved {
			payout, err := s.payoutRepo.GetLatestByWithdrawal(ctx, tx, w.ID)
			if err != nil {
				return apperror.InternalError(fmt.Errorf("get latest payout: %w", err))
			}
			if payout != nil && payout.Status.Active() {
				return apperror.ErrInvalidState("payout is already scheduled")
			}
		}
		return nil
	})
}

// release moves the request to a terminal refusal state and credits the reserved amount back.
func (s *WithdrawalServiceImpl) release(
	ctx context.Context,
	id uuid.UUID,
	to domain.WithdrawalStatus,
	notes string,
	guard func(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error,
) (*domain.WithdrawalRequest, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, err := s.lockWithdrawal(ctx, dbTx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(ctx, dbTx, w); err != nil {
		return nil, err
	}

	txn, err := s.ledger.CreditTx(ctx, dbTx, ports.LedgerRequest{
		WalletID:    w.WalletID,
		Amount:      w.Amount,
		Category:    domain.CategoryRefund,
		Reference:   domain.WithdrawalRef(w.ID),
		Description: fmt.Sprintf("Withdrawal %s", to),
	})
	if err != nil {
		return nil, err
	}
	if err := s.setFeeStatus(ctx, dbTx, w.ID, domain.CommissionRefunded); err != nil {
		return nil, err
	}

	w.Status = to
	if n := notesPtr(notes); n != nil {
		w.AdminNotes = n
	}
	w.UpdatedAt = s.now()
	if err := s.withdrawalRepo.Update(ctx, dbTx, w); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update withdrawal: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.publish(ctx, TransactionEvent(txn), WithdrawalEvent(w))

	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("status", string(to)).
		Str("amount", w.Amount.StringFixed(2)).
		Msg("withdrawal released")

	return w.Masked(), nil
}

// RetryPayout schedules a fresh payout for an approved request whose last payout failed.
func (s *WithdrawalServiceImpl) RetryPayout(ctx context.Context, id, reviewerID uuid.UUID) (*domain.PayoutTransaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, err := s.lockWithdrawal(ctx, dbTx, id)
	if err != nil {
		return nil, err
	}
	if w.Status != domain.WithdrawalApproved {
		return nil, apperror.ErrInvalidState(fmt.Sprintf("cannot retry a %s withdrawal", w.Status))
	}
	last, err := s.payoutRepo.GetLatestByWithdrawal(ctx, dbTx, w.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get latest payout: %w", err))
	}
	if last == nil || last.Status != domain.PayoutFailed {
		return nil, apperror.ErrInvalidState("the latest payout has not failed")
	}

	payout, err := s.schedulePayout(ctx, dbTx, w)
	if err != nil {
		return nil, err
	}
	w.ReviewedBy = &reviewerID
	w.UpdatedAt = s.now()
	if err := s.withdrawalRepo.Update(ctx, dbTx, w); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update withdrawal: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("payout_id", payout.ID.String()).
		Str("previous_payout_id", last.ID.String()).
		Msg("payout retry scheduled")

	return payout, nil
}

// StartSettlement marks a payout and its withdrawal as processing before the rail is called.
// It returns the withdrawal with decrypted account details.
func (s *WithdrawalServiceImpl) StartSettlement(ctx context.Context, payoutID uuid.UUID) (*domain.PayoutTransaction, *domain.WithdrawalRequest, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payout, err := s.payoutRepo.GetByIDForUpdate(ctx, dbTx, payoutID)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lock payout: %w", err))
	}
	if payout == nil {
		return nil, nil, apperror.ErrNotFound("payout")
	}
	if !payout.Status.Active() {
		return nil, nil, apperror.ErrAlreadyProcessed()
	}
	w, err := s.lockWithdrawal(ctx, dbTx, payout.WithdrawalRequestID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	if payout.Status == domain.PayoutPending {
		payout.Status = domain.PayoutProcessing
		payout.UpdatedAt = now
		if err := s.payoutRepo.Update(ctx, dbTx, payout); err != nil {
			return nil, nil, apperror.InternalError(fmt.Errorf("mark payout processing: %w", err))
		}
	}
	if w.Status.CanTransitionTo(domain.WithdrawalProcessing) {
		w.Status = domain.WithdrawalProcessing
		w.UpdatedAt = now
		if err := s.withdrawalRepo.Update(ctx, dbTx, w); err != nil {
			return nil, nil, apperror.InternalError(fmt.Errorf("mark withdrawal processing: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return payout, w, nil
}

// RecordPayoutReference stores the rail's payout id on a payout that is still settling.
func (s *WithdrawalServiceImpl) RecordPayoutReference(ctx context.Context, payoutID uuid.UUID, externalID string) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payout, err := s.payoutRepo.GetByIDForUpdate(ctx, dbTx, payoutID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock payout: %w", err))
	}
	if payout == nil {
		return apperror.ErrNotFound("payout")
	}
	if !payout.Status.Active() || externalID == "" {
		return nil
	}
	payout.ExternalPayoutID = &externalID
	payout.UpdatedAt = s.now()
	if err := s.payoutRepo.Update(ctx, dbTx, payout); err != nil {
		return apperror.InternalError(fmt.Errorf("update payout: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// CompletePayout applies the rail's final answer for a payout in its own unit of work.
func (s *WithdrawalServiceImpl) CompletePayout(ctx context.Context, result domain.PayoutResult) (*domain.WithdrawalRequest, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, events, err := s.CompletePayoutTx(ctx, dbTx, result)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.publish(ctx, events...)
	return w, nil
}

// CompletePayoutTx applies a payout result inside tx. Success completes the withdrawal
// and collects the fee. Failure parks the withdrawal as approved in the operator queue.
// The caller commits and publishes the returned events.
func (s *WithdrawalServiceImpl) CompletePayoutTx(ctx context.Context, tx pgx.Tx, result domain.PayoutResult) (*domain.WithdrawalRequest, []domain.LedgerEvent, error) {
	payout, err := s.payoutRepo.GetByIDForUpdate(ctx, tx, result.PayoutID)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lock payout: %w", err))
	}
	if payout == nil {
		return nil, nil, apperror.ErrNotFound("payout")
	}
	// A success for a payout already handed to the operator still counts while
	// nobody has retried or released the withdrawal.
	late := result.Succeeded && payout.Status == domain.PayoutFailed
	if !payout.Status.Active() && !late {
		return nil, nil, apperror.ErrAlreadyProcessed()
	}
	w, err := s.lockWithdrawal(ctx, tx, payout.WithdrawalRequestID)
	if err != nil {
		return nil, nil, err
	}
	if late {
		latest, err := s.payoutRepo.GetLatestByWithdrawal(ctx, tx, w.ID)
		if err != nil {
			return nil, nil, apperror.InternalError(fmt.Errorf("get latest payout: %w", err))
		}
		if w.Status != domain.WithdrawalApproved || latest == nil || latest.ID != payout.ID {
			return nil, nil, apperror.ErrAlreadyProcessed()
		}
		s.log.Warn().
			Str("withdrawal_id", w.ID.String()).
			Str("payout_id", payout.ID.String()).
			Msg("late payout confirmation, completing withdrawal")
		payout.FailureReason = nil
	}

	now := s.now()
	if result.ExternalPayoutID != "" {
		ext := result.ExternalPayoutID
		payout.ExternalPayoutID = &ext
	}
	payout.UpdatedAt = now
	w.UpdatedAt = now
	jobStatus := domain.JobDone

	if result.Succeeded {
		payout.Status = domain.PayoutCompleted
		w.Status = domain.WithdrawalCompleted
		w.ProcessedAt = &now
		if err := s.setFeeStatus(ctx, tx, w.ID, domain.CommissionCollected); err != nil {
			return nil, nil, err
		}
	} else {
		reason := strings.TrimSpace(result.FailureReason)
		if reason == "" {
			reason = "payout failed"
		}
		payout.Status = domain.PayoutFailed
		payout.FailureReason = &reason
		w.Status = domain.WithdrawalApproved
		jobStatus = domain.JobFailed
	}

	if err := s.payoutRepo.Update(ctx, tx, payout); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("update payout: %w", err))
	}
	if err := s.withdrawalRepo.Update(ctx, tx, w); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("update withdrawal: %w", err))
	}
	if err := s.closeJob(ctx, tx, payout.ID, jobStatus, payout.FailureReason); err != nil {
		return nil, nil, err
	}

	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("payout_id", payout.ID.String()).
		Str("status", string(payout.Status)).
		Msg("payout settled")

	events := []domain.LedgerEvent{
		domain.NewLedgerEvent(domain.LedgerPayoutSettled, payout.ID, w.UserID, payout.NetAmount, string(payout.Status)),
		WithdrawalEvent(w),
	}
	return w.Masked(), events, nil
}

func (s *WithdrawalServiceImpl) GetWithdrawal(ctx context.Context, id, callerID uuid.UUID, isAdmin bool) (*domain.WithdrawalRequest, error) {
	w, err := s.withdrawalRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get withdrawal: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrNotFound("withdrawal")
	}
	if !isAdmin && w.UserID != callerID {
		return nil, apperror.ErrNotAuthorized()
	}
	return w.Masked(), nil
}

// ListWithdrawals is the admin view across all users, filtered by status.
func (s *WithdrawalServiceImpl) ListWithdrawals(ctx context.Context, status domain.WithdrawalStatus, page, pageSize int) ([]domain.WithdrawalRequest, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperror.Validation(fmt.Sprintf("unknown withdrawal status %q", status))
	}
	page, pageSize = normalizePage(page, pageSize)
	list, total, err := s.withdrawalRepo.ListByStatus(ctx, status, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list withdrawals: %w", err))
	}
	return maskAll(list), total, nil
}

func (s *WithdrawalServiceImpl) ListUserWithdrawals(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WithdrawalRequest, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	list, total, err := s.withdrawalRepo.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list withdrawals: %w", err))
	}
	return maskAll(list), total, nil
}

// ListOperatorQueue returns approved withdrawals whose latest payout failed.
func (s *WithdrawalServiceImpl) ListOperatorQueue(ctx context.Context) ([]domain.WithdrawalRequest, error) {
	list, err := s.withdrawalRepo.ListAwaitingOperator(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list operator queue: %w", err))
	}
	return maskAll(list), nil
}

// AddMethod saves a payout destination. The first saved method becomes the default.
func (s *WithdrawalServiceImpl) AddMethod(ctx context.Context, req ports.AddWithdrawalMethodRequest) (*domain.WithdrawalMethod, error) {
	if req.Details == nil {
		return nil, apperror.Validation("account details are required")
	}
	if err := req.Details.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	existing, err := s.methodRepo.ListActiveByUser(ctx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list withdrawal methods: %w", err))
	}

	now := s.now()
	m := &domain.WithdrawalMethod{
		ID:        uuid.New(),
		UserID:    req.UserID,
		Method:    req.Details.Method(),
		Details:   req.Details,
		IsDefault: req.IsDefault || len(existing) == 0,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if m.IsDefault {
		if err := s.methodRepo.ClearDefault(ctx, dbTx, req.UserID); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("clear default method: %w", err))
		}
	}
	if err := s.methodRepo.Create(ctx, dbTx, m); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create withdrawal method: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return m.Masked(), nil
}

func (s *WithdrawalServiceImpl) ListMethods(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalMethod, error) {
	methods, err := s.methodRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list withdrawal methods: %w", err))
	}
	out := make([]domain.WithdrawalMethod, 0, len(methods))
	for i := range methods {
		out = append(out, *methods[i].Masked())
	}
	return out, nil
}

// DeleteMethod soft-deletes a saved method owned by userID.
func (s *WithdrawalServiceImpl) DeleteMethod(ctx context.Context, id, userID uuid.UUID) error {
	m, err := s.methodRepo.GetByID(ctx, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get withdrawal method: %w", err))
	}
	if m == nil || !m.IsActive {
		return apperror.ErrNotFound("withdrawal method")
	}
	if m.UserID != userID {
		return apperror.ErrNotAuthorized()
	}
	if err := s.methodRepo.Deactivate(ctx, nil, id); err != nil {
		return apperror.InternalError(fmt.Errorf("deactivate withdrawal method: %w", err))
	}
	return nil
}

// resolveDetails returns the validated destination, either inline or from a saved method.
func (s *WithdrawalServiceImpl) resolveDetails(ctx context.Context, req ports.CreateWithdrawalRequest) (domain.AccountDetails, error) {
	details := req.AccountDetails
	if req.MethodID != nil {
		m, err := s.methodRepo.GetByID(ctx, *req.MethodID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get withdrawal method: %w", err))
		}
		if m == nil || !m.IsActive {
			return nil, apperror.ErrNotFound("withdrawal method")
		}
		if m.UserID != req.UserID {
			return nil, apperror.ErrNotAuthorized()
		}
		details = m.Details
	}
	if details == nil {
		return nil, apperror.Validation("account details are required")
	}
	if req.Method != "" && req.Method != details.Method() {
		return nil, apperror.Validation("account details do not match the withdrawal method")
	}
	if err := details.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	return details, nil
}

func (s *WithdrawalServiceImpl) checkTotals(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	now := s.now()
	check := func(limit decimal.Decimal, period string, from, to time.Time) error {
		if !limit.IsPositive() {
			return nil
		}
		sum, err := s.withdrawalRepo.SumRequested(ctx, tx, userID, from, to)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("sum withdrawals: %w", err))
		}
		if sum.Add(amount).GreaterThan(limit) {
			return apperror.ErrLimitExceeded(period + " withdrawal")
		}
		return nil
	}

	dayFrom, dayTo := domain.DayBounds(now)
	if err := check(s.limits.Daily, "daily", dayFrom, dayTo); err != nil {
		return err
	}
	monthFrom, monthTo := domain.MonthBounds(now)
	return check(s.limits.Monthly, "monthly", monthFrom, monthTo)
}

// schedulePayout creates a pending payout and its settlement job inside tx.
func (s *WithdrawalServiceImpl) schedulePayout(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) (*domain.PayoutTransaction, error) {
	fee := w.FeeAmount.Add(s.fees[w.Method].Fee(w.Amount))
	if fee.GreaterThan(w.Amount) {
		fee = w.Amount
	}

	now := s.now()
	payout := &domain.PayoutTransaction{
		ID:                  uuid.New(),
		WithdrawalRequestID: w.ID,
		Gateway:             s.rail.Name(),
		Amount:              w.Amount,
		FeeAmount:           fee,
		NetAmount:           w.Amount.Sub(fee),
		Status:              domain.PayoutPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.payoutRepo.Create(ctx, tx, payout); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payout: %w", err))
	}

	job := &domain.SettlementJob{
		ID:        uuid.New(),
		PayoutID:  payout.ID,
		Status:    domain.JobPending,
		NextRunAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.jobRepo.Create(ctx, tx, job); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create settlement job: %w", err))
	}
	return payout, nil
}

func (s *WithdrawalServiceImpl) closeJob(ctx context.Context, tx pgx.Tx, payoutID uuid.UUID, status domain.JobStatus, lastErr *string) error {
	job, err := s.jobRepo.GetByPayoutID(ctx, tx, payoutID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get settlement job: %w", err))
	}
	if job == nil || job.Status == domain.JobDone || job.Status == domain.JobFailed {
		return nil
	}
	job.Status = status
	job.LockedUntil = nil
	job.LastError = lastErr
	job.UpdatedAt = s.now()
	if err := s.jobRepo.Update(ctx, tx, job); err != nil {
		return apperror.InternalError(fmt.Errorf("close settlement job: %w", err))
	}
	return nil
}

func (s *WithdrawalServiceImpl) setFeeStatus(ctx context.Context, tx pgx.Tx, withdrawalID uuid.UUID, status domain.CommissionStatus) error {
	fee, err := s.commissionRepo.GetByReference(ctx, tx, domain.WithdrawalRef(withdrawalID), domain.CommissionWithdrawalFee)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get withdrawal fee: %w", err))
	}
	if fee == nil || fee.Status == status {
		return nil
	}
	if err := s.commissionRepo.UpdateStatus(ctx, tx, fee.ID, status); err != nil {
		return apperror.InternalError(fmt.Errorf("update withdrawal fee: %w", err))
	}
	return nil
}

func (s *WithdrawalServiceImpl) lockWithdrawal(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	w, err := s.withdrawalRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock withdrawal: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrNotFound("withdrawal")
	}
	return w, nil
}

func (s *WithdrawalServiceImpl) publish(ctx context.Context, events ...domain.LedgerEvent) {
	publishBestEffort(ctx, s.publisher, s.log, events...)
}

// WithdrawalEvent builds the outbound notification for a withdrawal status change.
func WithdrawalEvent(w *domain.WithdrawalRequest) domain.LedgerEvent {
	return domain.NewLedgerEvent(domain.LedgerWithdrawalUpdated, w.ID, w.UserID, w.Amount, string(w.Status))
}

func maskAll(list []domain.WithdrawalRequest) []domain.WithdrawalRequest {
	out := make([]domain.WithdrawalRequest, 0, len(list))
	for i := range list {
		out = append(out, *list[i].Masked())
	}
	return out
}

func notesPtr(notes string) *string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil
	}
	return &notes
}
