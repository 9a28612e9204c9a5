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
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo   ports.WalletRepository
	walletTxRepo ports.WalletTransactionRepository
	ledger       *LedgerService
	cfg          config.WalletConfig
	log          zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	walletTxRepo ports.WalletTransactionRepository,
	ledger *LedgerService,
	cfg config.WalletConfig,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo:   walletRepo,
		walletTxRepo: walletTxRepo,
		ledger:       ledger,
		cfg:          cfg,
		log:          log,
	}
}

// GetBalance returns the user's wallet, creating it on first access.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	if userID == uuid.Nil {
		return nil, apperror.Validation("user id is required")
	}

	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	now := time.Now().UTC()
	wallet, err = s.walletRepo.GetOrCreate(ctx, &domain.Wallet{
		ID:           uuid.New(),
		UserID:       userID,
		Balance:      decimal.Zero,
		Currency:     strings.ToUpper(s.cfg.Currency),
		IsActive:     true,
		DailyLimit:   domain.MoneyFromFloat(s.cfg.DefaultDailyLimit),
		MonthlyLimit: domain.MoneyFromFloat(s.cfg.DefaultMonthlyLimit),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("user_id", userID.String()).
		Msg("wallet created")

	return wallet, nil
}

func (s *WalletServiceImpl) GetWallet(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// ListTransactions returns one page of the wallet's ledger, newest first.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	txs, total, err := s.walletTxRepo.ListByWallet(ctx, walletID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list wallet transactions: %w", err))
	}
	return txs, total, nil
}

// Recharge tops the wallet up from an external charge identified by externalRef.
func (s *WalletServiceImpl) Recharge(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, externalRef string) (*domain.WalletTransaction, error) {
	if strings.TrimSpace(externalRef) == "" {
		return nil, apperror.Validation("recharge reference is required")
	}
	wallet, err := s.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.ledger.Credit(ctx, ports.LedgerRequest{
		WalletID:    wallet.ID,
		Amount:      amount,
		Category:    domain.CategoryWalletRecharge,
		Reference:   domain.RechargeRef(externalRef),
		Description: "Wallet recharge",
	})
}

// GrantBonus credits a promotional amount.
func (s *WalletServiceImpl) GrantBonus(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, note string) (*domain.WalletTransaction, error) {
	wallet, err := s.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if note == "" {
		note = "Bonus"
	}

	return s.ledger.Credit(ctx, ports.LedgerRequest{
		WalletID:    wallet.ID,
		Amount:      amount,
		Category:    domain.CategoryBonus,
		Description: note,
	})
}

func (s *WalletServiceImpl) SetActive(ctx context.Context, walletID uuid.UUID, active bool) (*domain.Wallet, error) {
	if err := s.walletRepo.SetActive(ctx, nil, walletID, active); err != nil {
		if isRowNotFound(err) {
			return nil, apperror.ErrNotFound("wallet")
		}
		return nil, apperror.InternalError(fmt.Errorf("set wallet active: %w", err))
	}

	s.log.Info().
		Str("wallet_id", walletID.String()).
		Bool("active", active).
		Msg("wallet status changed")

	return s.GetWallet(ctx, walletID)
}

// UpdateLimits replaces the daily and monthly debit limits. Zero disables a limit.
func (s *WalletServiceImpl) UpdateLimits(ctx context.Context, walletID uuid.UUID, daily, monthly decimal.Decimal) (*domain.Wallet, error) {
	if daily.IsNegative() || monthly.IsNegative() {
		return nil, apperror.Validation("limits must not be negative")
	}
	daily, monthly = domain.RoundMoney(daily), domain.RoundMoney(monthly)
	if daily.IsPositive() && monthly.IsPositive() && daily.GreaterThan(monthly) {
		return nil, apperror.Validation("daily limit must not exceed monthly limit")
	}

	if err := s.walletRepo.UpdateLimits(ctx, nil, walletID, daily, monthly); err != nil {
		if isRowNotFound(err) {
			return nil, apperror.ErrNotFound("wallet")
		}
		return nil, apperror.InternalError(fmt.Errorf("update wallet limits: %w", err))
	}
	return s.GetWallet(ctx, walletID)
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// isRowNotFound matches the "... not found" errors the repositories return for
// updates that touched no row.
func isRowNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}
