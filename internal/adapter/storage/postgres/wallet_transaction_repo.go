package postgres

import (
	"context"
	"fmt"
	"time"

	"ride-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const walletTxColumns = `id, wallet_id, type, amount, balance_before, balance_after, category,
	reference_type, reference_id, description, status, created_at`

// WalletTransactionRepo implements ports.WalletTransactionRepository.
type WalletTransactionRepo struct {
	pool Pool
}

func NewWalletTransactionRepo(pool Pool) *WalletTransactionRepo {
	return &WalletTransactionRepo{pool: pool}
}

// Create appends a ledger row within the caller's transaction.
func (r *WalletTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.WalletTransaction) error {
	query := `INSERT INTO wallet_transactions (` + walletTxColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	refType, refID := t.Reference.Columns()
	_, err := tx.Exec(ctx, query,
		t.ID, t.WalletID, t.Type, t.Amount, t.BalanceBefore, t.BalanceAfter,
		t.Category, refType, refID, t.Description, t.Status, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}

// ListByWallet returns one page of the wallet's ledger, newest first.
func (r *WalletTransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_transactions WHERE wallet_id = $1`, walletID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count wallet transactions: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + walletTxColumns + ` FROM wallet_transactions
		WHERE wallet_id = $1 ORDER BY seq DESC LIMIT $2 OFFSET $3`

	txns, err := r.list(ctx, query, walletID, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// ListChain returns the wallet's full ledger in insertion order.
func (r *WalletTransactionRepo) ListChain(ctx context.Context, walletID uuid.UUID) ([]domain.WalletTransaction, error) {
	query := `SELECT ` + walletTxColumns + ` FROM wallet_transactions WHERE wallet_id = $1 ORDER BY seq ASC`
	return r.list(ctx, query, walletID)
}

// SumCompletedDebits sums completed debits in [from, to). tx may be nil.
func (r *WalletTransactionRepo) SumCompletedDebits(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions
		WHERE wallet_id = $1 AND type = 'debit' AND status = 'completed'
		AND created_at >= $2 AND created_at < $3`

	var sum decimal.Decimal
	if err := on(r.pool, tx).QueryRow(ctx, query, walletID, from, to).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum completed debits: %w", err)
	}
	return sum, nil
}

func (r *WalletTransactionRepo) list(ctx context.Context, query string, args ...any) ([]domain.WalletTransaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.WalletTransaction
	for rows.Next() {
		var (
			t              domain.WalletTransaction
			refType, refID *string
		)
		err := rows.Scan(
			&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.BalanceBefore, &t.BalanceAfter,
			&t.Category, &refType, &refID, &t.Description, &t.Status, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan wallet transaction row: %w", err)
		}
		if t.Reference, err = domain.ParseReference(refType, refID); err != nil {
			return nil, fmt.Errorf("wallet transaction %s: %w", t.ID, err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet transaction rows: %w", err)
	}
	return txns, nil
}
