package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"ride-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	s *Store
}

func NewWalletRepo(s *Store) *WalletRepo {
	return &WalletRepo{s: s}
}

func (r *WalletRepo) GetOrCreate(ctx context.Context, w *domain.Wallet) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.wallets {
		if existing.UserID == w.UserID {
			return &existing, nil
		}
	}
	r.s.wallets[w.ID] = *w
	cp := *w
	return &cp, nil
}

func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, w := range r.s.wallets {
		if w.UserID == userID {
			return &w, nil
		}
	}
	return nil, nil
}

func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r *WalletRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return fmt.Errorf("update wallet balance: balance %s violates wallets_balance_check", balance)
	}
	return r.update(tx, walletID, func(w *domain.Wallet) { w.Balance = balance })
}

func (r *WalletRepo) SetActive(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, active bool) error {
	return r.update(tx, walletID, func(w *domain.Wallet) { w.IsActive = active })
}

func (r *WalletRepo) UpdateLimits(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, daily, monthly decimal.Decimal) error {
	return r.update(tx, walletID, func(w *domain.Wallet) {
		w.DailyLimit = daily
		w.MonthlyLimit = monthly
	})
}

func (r *WalletRepo) update(tx pgx.Tx, id uuid.UUID, fn func(*domain.Wallet)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[id]
	if !ok {
		return fmt.Errorf("wallet not found: %s", id)
	}
	fn(&w)
	w.UpdatedAt = time.Now().UTC()
	put(tx, r.s.wallets, id, w)
	return nil
}

// WalletTransactionRepo implements ports.WalletTransactionRepository.
type WalletTransactionRepo struct {
	s *Store
}

func NewWalletTransactionRepo(s *Store) *WalletTransactionRepo {
	return &WalletTransactionRepo{s: s}
}

func (r *WalletTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.WalletTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.wallets[t.WalletID]; !ok {
		return fmt.Errorf("insert wallet transaction: wallet %s does not exist", t.WalletID)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("insert wallet transaction: amount %s violates wallet_transactions_amount_check", t.Amount)
	}
	r.s.seq++
	put(tx, r.s.walletTxs, t.ID, walletTxRow{seq: r.s.seq, t: *t})
	return nil
}

// ListByWallet returns one page of the wallet's ledger, newest first.
func (r *WalletTransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error) {
	chain := r.chain(walletID)
	slices.Reverse(chain)
	total := int64(len(chain))

	offset := (page - 1) * pageSize
	if offset < 0 || offset >= len(chain) {
		return nil, total, nil
	}
	end := min(offset+pageSize, len(chain))
	return chain[offset:end], total, nil
}

func (r *WalletTransactionRepo) ListChain(ctx context.Context, walletID uuid.UUID) ([]domain.WalletTransaction, error) {
	return r.chain(walletID), nil
}

func (r *WalletTransactionRepo) SumCompletedDebits(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum := decimal.Zero
	for _, row := range r.s.walletTxs {
		t := row.t
		if t.WalletID != walletID || t.Type != domain.EntryDebit || t.Status != domain.TransactionStatusCompleted {
			continue
		}
		if t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
			continue
		}
		sum = sum.Add(t.Amount)
	}
	return sum, nil
}

// chain returns the wallet's rows in insertion order.
func (r *WalletTransactionRepo) chain(walletID uuid.UUID) []domain.WalletTransaction {
	r.s.mu.RLock()
	rows := make([]walletTxRow, 0)
	for _, row := range r.s.walletTxs {
		if row.t.WalletID == walletID {
			rows = append(rows, row)
		}
	}
	r.s.mu.RUnlock()

	slices.SortFunc(rows, func(a, b walletTxRow) int {
		return cmp.Compare(a.seq, b.seq)
	})
	out := make([]domain.WalletTransaction, len(rows))
	for i, row := range rows {
		out[i] = row.t
	}
	return out
}
