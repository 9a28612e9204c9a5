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

// LedgerService is the only writer of wallet balances. Every credit and debit
// locks the wallet row, appends one completed ledger entry and writes the new
// balance inside a single unit of work.
type LedgerService struct {
	walletRepo   ports.WalletRepository
	walletTxRepo ports.WalletTransactionRepository
	limits       *LimitEnforcer
	transactor   ports.DBTransactor
	publisher    ports.EventPublisher
	log          zerolog.Logger
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	walletTxRepo ports.WalletTransactionRepository,
	limits *LimitEnforcer,
	transactor ports.DBTransactor,
	publisher ports.EventPublisher,
	log zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		walletRepo:   walletRepo,
		walletTxRepo: walletTxRepo,
		limits:       limits,
		transactor:   transactor,
		publisher:    publisher,
		log:          log,
	}
}

// Credit adds req.Amount to the wallet in its own unit of work.
func (s *LedgerService) Credit(ctx context.Context, req ports.LedgerRequest) (*domain.WalletTransaction, error) {
	return s.run(ctx, domain.EntryCredit, req)
}

// Debit removes req.Amount from the wallet in its own unit of work.
func (s *LedgerService) Debit(ctx context.Context, req ports.LedgerRequest) (*domain.WalletTransaction, error) {
	return s.run(ctx, domain.EntryDebit, req)
}

// CreditTx credits inside the caller's unit of work. The caller commits and publishes.
func (s *LedgerService) CreditTx(ctx context.Context, tx pgx.Tx, req ports.LedgerRequest) (*domain.WalletTransaction, error) {
	return s.apply(ctx, tx, domain.EntryCredit, req)
}

// DebitTx debits inside the caller's unit of work. The caller commits and publishes.
func (s *LedgerService) DebitTx(ctx context.Context, tx pgx.Tx, req ports.LedgerRequest) (*domain.WalletTransaction, error) {
	return s.apply(ctx, tx, domain.EntryDebit, req)
}

func (s *LedgerService) run(ctx context.Context, entry domain.EntryType, req ports.LedgerRequest) (*domain.WalletTransaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.apply(ctx, dbTx, entry, req)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.publish(ctx, TransactionEvent(txn))
	return txn, nil
}

func (s *LedgerService) apply(ctx context.Context, tx pgx.Tx, entry domain.EntryType, req ports.LedgerRequest) (*domain.WalletTransaction, error) {
	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, tx, req.WalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	amount := domain.RoundMoney(req.Amount)
	if !amount.IsPositive() {
		return nil, apperror.Validation("amount must be greater than zero")
	}
	if !req.Category.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown transaction category %q", req.Category))
	}

	after := wallet.Balance.Add(amount)
	if entry == domain.EntryDebit {
		// A deactivated wallet is frozen for outflows only. Refunds and releases still land.
		if !wallet.IsActive {
			return nil, apperror.ErrInvalidState("wallet is inactive")
		}
		if !wallet.CanDebit(amount) {
			return nil, apperror.ErrInsufficientBalance()
		}
		if req.EnforceLimits && s.limits != nil {
			if err := s.limits.Enforce(ctx, tx, wallet, amount); err != nil {
				return nil, err
			}
		}
		after = wallet.Balance.Sub(amount)
	}

	txn := &domain.WalletTransaction{
		ID:            uuid.New(),
		WalletID:      wallet.ID,
		Type:          entry,
		Amount:        amount,
		BalanceBefore: wallet.Balance,
		BalanceAfter:  after,
		Category:      req.Category,
		Reference:     req.Reference,
		Description:   req.Description,
		Status:        domain.TransactionStatusCompleted,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.walletTxRepo.Create(ctx, tx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet transaction: %w", err))
	}
	if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, after); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	s.log.Debug().
		Str("wallet_id", wallet.ID.String()).
		Str("type", string(entry)).
		Str("category", string(req.Category)).
		Str("amount", amount.StringFixed(2)).
		Str("balance_after", after.StringFixed(2)).
		Msg("ledger entry applied")

	return txn, nil
}

func (s *LedgerService) publish(ctx context.Context, events ...domain.LedgerEvent) {
	publishBestEffort(ctx, s.publisher, s.log, events...)
}

// TransactionEvent builds the outbound notification for a committed ledger entry.
func TransactionEvent(t *domain.WalletTransaction) domain.LedgerEvent {
	return domain.NewLedgerEvent(domain.LedgerWalletTransaction, t.WalletID, uuid.Nil, t.Amount, string(t.Type))
}

// publishBestEffort sends events after commit. Failures are logged, never returned.
func publishBestEffort(ctx context.Context, p ports.EventPublisher, log zerolog.Logger, events ...domain.LedgerEvent) {
	if p == nil || len(events) == 0 {
		return
	}
	if err := p.Publish(ctx, events...); err != nil {
		log.Warn().Err(err).Int("events", len(events)).Msg("failed to publish ledger events")
	}
}

// LimitEnforcer checks wallet spending against the daily and monthly limits.
// A zero limit means unlimited.
type LimitEnforcer struct {
	walletRepo   ports.WalletRepository
	walletTxRepo ports.WalletTransactionRepository
	now          func() time.Time
}

// NewLimitEnforcer creates a new LimitEnforcer.
func NewLimitEnforcer(walletRepo ports.WalletRepository, walletTxRepo ports.WalletTransactionRepository) *LimitEnforcer {
	return &LimitEnforcer{
		walletRepo:   walletRepo,
		walletTxRepo: walletTxRepo,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CheckDailyLimit reports whether amount fits in today's remaining allowance.
// It reads a snapshot and holds no lock.
func (l *LimitEnforcer) CheckDailyLimit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (bool, error) {
	wallet, err := l.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return false, apperror.ErrNotFound("wallet")
	}
	from, to := domain.DayBounds(l.now())
	return l.fits(ctx, nil, wallet.ID, wallet.DailyLimit, amount, from, to)
}

// CheckMonthlyLimit reports whether amount fits in this month's remaining allowance.
func (l *LimitEnforcer) CheckMonthlyLimit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (bool, error) {
	wallet, err := l.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return false, apperror.ErrNotFound("wallet")
	}
	from, to := domain.MonthBounds(l.now())
	return l.fits(ctx, nil, wallet.ID, wallet.MonthlyLimit, amount, from, to)
}

// Enforce runs both checks inside tx, normally while the wallet row is locked.
func (l *LimitEnforcer) Enforce(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, amount decimal.Decimal) error {
	now := l.now()

	dayFrom, dayTo := domain.DayBounds(now)
	ok, err := l.fits(ctx, tx, wallet.ID, wallet.DailyLimit, amount, dayFrom, dayTo)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.ErrLimitExceeded("daily")
	}

	monthFrom, monthTo := domain.MonthBounds(now)
	ok, err = l.fits(ctx, tx, wallet.ID, wallet.MonthlyLimit, amount, monthFrom, monthTo)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.ErrLimitExceeded("monthly")
	}
	return nil
}

func (l *LimitEnforcer) fits(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, limit, amount decimal.Decimal, from, to time.Time) (bool, error) {
	if !limit.IsPositive() {
		return true, nil
	}
	spent, err := l.walletTxRepo.SumCompletedDebits(ctx, tx, walletID, from, to)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("sum debits: %w", err))
	}
	return spent.Add(amount).LessThanOrEqual(limit), nil
}
