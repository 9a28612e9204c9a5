package postgres

import (
	"context"
	"errors"
	"fmt"

	"ride-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const payoutColumns = `id, withdrawal_request_id, gateway, external_payout_id, amount, fee_amount,
	net_amount, status, failure_reason, created_at, updated_at`

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	pool Pool
}

func NewPayoutRepo(pool Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

func scanPayout(row pgx.Row) (*domain.PayoutTransaction, error) {
	p := &domain.PayoutTransaction{}
	err := row.Scan(&p.ID, &p.WithdrawalRequestID, &p.Gateway, &p.ExternalPayoutID, &p.Amount, &p.FeeAmount,
		&p.NetAmount, &p.Status, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func getPayout(row pgx.Row, op string) (*domain.PayoutTransaction, error) {
	p, err := scanPayout(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (r *PayoutRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PayoutTransaction) error {
	query := `INSERT INTO payout_transactions (` + payoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.Exec(ctx, query, p.ID, p.WithdrawalRequestID, p.Gateway, p.ExternalPayoutID, p.Amount, p.FeeAmount,
		p.NetAmount, p.Status, p.FailureReason, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

func (r *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutTransaction, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_transactions WHERE id = $1`
	return getPayout(r.pool.QueryRow(ctx, query, id), "get payout by id")
}

func (r *PayoutRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutTransaction, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_transactions WHERE id = $1 FOR UPDATE`
	return getPayout(tx.QueryRow(ctx, query, id), "get payout for update")
}

// GetLatestByWithdrawal returns the newest payout of the withdrawal. tx may be nil.
func (r *PayoutRepo) GetLatestByWithdrawal(ctx context.Context, tx pgx.Tx, withdrawalID uuid.UUID) (*domain.PayoutTransaction, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_transactions
		WHERE withdrawal_request_id = $1 ORDER BY created_at DESC LIMIT 1`
	return getPayout(on(r.pool, tx).QueryRow(ctx, query, withdrawalID), "get latest payout")
}

func (r *PayoutRepo) ListByWithdrawal(ctx context.Context, withdrawalID uuid.UUID) ([]domain.PayoutTransaction, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_transactions
		WHERE withdrawal_request_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, withdrawalID)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []domain.PayoutTransaction
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout row: %w", err)
		}
		payouts = append(payouts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payout rows: %w", err)
	}
	return payouts, nil
}

func (r *PayoutRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.PayoutTransaction) error {
	query := `UPDATE payout_transactions SET status = $1, external_payout_id = $2, failure_reason = $3, updated_at = $4
		WHERE id = $5`

	tag, err := tx.Exec(ctx, query, p.Status, p.ExternalPayoutID, p.FailureReason, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update payout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout not found: %s", p.ID)
	}
	return nil
}
