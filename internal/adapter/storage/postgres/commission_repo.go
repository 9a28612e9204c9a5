package postgres

import (
	"context"
	"errors"
	"fmt"

	"ride-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const commissionSettingColumns = `id, type, percentage, fixed_amount, min_amount, max_amount, is_active, effective_from, created_at`

// CommissionSettingRepo implements ports.CommissionSettingRepository.
type CommissionSettingRepo struct {
	pool Pool
}

func NewCommissionSettingRepo(pool Pool) *CommissionSettingRepo {
	return &CommissionSettingRepo{pool: pool}
}

func scanCommissionSetting(row pgx.Row) (*domain.CommissionSetting, error) {
	s := &domain.CommissionSetting{}
	err := row.Scan(&s.ID, &s.Type, &s.Percentage, &s.FixedAmount, &s.MinAmount, &s.MaxAmount,
		&s.IsActive, &s.EffectiveFrom, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetActive returns the active setting for t, or nil if none is configured.
func (r *CommissionSettingRepo) GetActive(ctx context.Context, t domain.CommissionType) (*domain.CommissionSetting, error) {
	query := `SELECT ` + commissionSettingColumns + ` FROM commission_settings WHERE type = $1 AND is_active`

	s, err := scanCommissionSetting(r.pool.QueryRow(ctx, query, t))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active commission setting: %w", err)
	}
	return s, nil
}

// ListByType returns every setting of t, newest first.
func (r *CommissionSettingRepo) ListByType(ctx context.Context, t domain.CommissionType) ([]domain.CommissionSetting, error) {
	query := `SELECT ` + commissionSettingColumns + ` FROM commission_settings WHERE type = $1 ORDER BY effective_from DESC`

	rows, err := r.pool.Query(ctx, query, t)
	if err != nil {
		return nil, fmt.Errorf("list commission settings: %w", err)
	}
	defer rows.Close()

	var settings []domain.CommissionSetting
	for rows.Next() {
		s, err := scanCommissionSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan commission setting row: %w", err)
		}
		settings = append(settings, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commission setting rows: %w", err)
	}
	return settings, nil
}

// DeactivateAll clears the active flag on every setting of t.
func (r *CommissionSettingRepo) DeactivateAll(ctx context.Context, tx pgx.Tx, t domain.CommissionType) error {
	if _, err := tx.Exec(ctx, `UPDATE commission_settings SET is_active = FALSE WHERE type = $1 AND is_active`, t); err != nil {
		return fmt.Errorf("deactivate commission settings: %w", err)
	}
	return nil
}

func (r *CommissionSettingRepo) Create(ctx context.Context, tx pgx.Tx, s *domain.CommissionSetting) error {
	query := `INSERT INTO commission_settings (` + commissionSettingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query, s.ID, s.Type, s.Percentage, s.FixedAmount, s.MinAmount, s.MaxAmount,
		s.IsActive, s.EffectiveFrom, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert commission setting: %w", err)
	}
	return nil
}

const commissionTxColumns = `id, booking_payment_id, reference_type, reference_id, transaction_type,
	base_amount, commission_amount, commission_percentage, status, created_at, updated_at`

// CommissionTransactionRepo implements ports.CommissionTransactionRepository.
type CommissionTransactionRepo struct {
	pool Pool
}

func NewCommissionTransactionRepo(pool Pool) *CommissionTransactionRepo {
	return &CommissionTransactionRepo{pool: pool}
}

func scanCommissionTx(row pgx.Row) (*domain.CommissionTransaction, error) {
	var (
		c              domain.CommissionTransaction
		refType, refID *string
	)
	err := row.Scan(&c.ID, &c.BookingPaymentID, &refType, &refID, &c.TransactionType,
		&c.BaseAmount, &c.CommissionAmount, &c.CommissionPercentage, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if c.Reference, err = domain.ParseReference(refType, refID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CommissionTransactionRepo) Create(ctx context.Context, tx pgx.Tx, c *domain.CommissionTransaction) error {
	query := `INSERT INTO commission_transactions (` + commissionTxColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	refType, refID := c.Reference.Columns()
	_, err := tx.Exec(ctx, query, c.ID, c.BookingPaymentID, refType, refID, c.TransactionType,
		c.BaseAmount, c.CommissionAmount, c.CommissionPercentage, c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert commission transaction: %w", err)
	}
	return nil
}

// ListByBookingPayment returns the commission lines of a payment. tx may be nil.
func (r *CommissionTransactionRepo) ListByBookingPayment(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) ([]domain.CommissionTransaction, error) {
	query := `SELECT ` + commissionTxColumns + ` FROM commission_transactions
		WHERE booking_payment_id = $1 ORDER BY created_at ASC`

	rows, err := on(r.pool, tx).Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list commission transactions: %w", err)
	}
	defer rows.Close()

	var lines []domain.CommissionTransaction
	for rows.Next() {
		c, err := scanCommissionTx(rows)
		if err != nil {
			return nil, fmt.Errorf("scan commission transaction row: %w", err)
		}
		lines = append(lines, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commission transaction rows: %w", err)
	}
	return lines, nil
}

// GetByReference finds the commission line of type t linked to ref. tx may be nil.
func (r *CommissionTransactionRepo) GetByReference(ctx context.Context, tx pgx.Tx, ref domain.Reference, t domain.CommissionTransactionType) (*domain.CommissionTransaction, error) {
	query := `SELECT ` + commissionTxColumns + ` FROM commission_transactions
		WHERE reference_type = $1 AND reference_id = $2 AND transaction_type = $3
		ORDER BY created_at DESC LIMIT 1`

	c, err := scanCommissionTx(on(r.pool, tx).QueryRow(ctx, query, string(ref.Kind), ref.ID, t))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get commission transaction by reference: %w", err)
	}
	return c, nil
}

func (r *CommissionTransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.CommissionStatus) error {
	query := `UPDATE commission_transactions SET status = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update commission transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("commission transaction not found: %s", id)
	}
	return nil
}
