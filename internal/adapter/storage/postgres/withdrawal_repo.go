package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-ledger/internal/core/domain"
	"ride-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const withdrawalColumns = `id, user_id, wallet_id, amount, fee_amount, method, account_details_enc,
	status, admin_notes, reviewed_by, processed_at, created_at, updated_at`

// WithdrawalRepo implements ports.WithdrawalRepository. Account details are stored encrypted.
type WithdrawalRepo struct {
	pool Pool
	enc  ports.EncryptionService
}

func NewWithdrawalRepo(pool Pool, enc ports.EncryptionService) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool, enc: enc}
}

func sealDetails(enc ports.EncryptionService, d domain.AccountDetails) (string, error) {
	raw, err := domain.MarshalAccountDetails(d)
	if err != nil {
		return "", err
	}
	sealed, err := enc.Encrypt(string(raw))
	if err != nil {
		return "", fmt.Errorf("encrypt account details: %w", err)
	}
	return sealed, nil
}

func openDetails(enc ports.EncryptionService, sealed string) (domain.AccountDetails, error) {
	raw, err := enc.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("decrypt account details: %w", err)
	}
	return domain.UnmarshalAccountDetails([]byte(raw))
}

func (r *WithdrawalRepo) scan(row pgx.Row) (*domain.WithdrawalRequest, error) {
	var (
		w      domain.WithdrawalRequest
		sealed string
	)
	err := row.Scan(&w.ID, &w.UserID, &w.WalletID, &w.Amount, &w.FeeAmount, &w.Method, &sealed,
		&w.Status, &w.AdminNotes, &w.ReviewedBy, &w.ProcessedAt, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if w.AccountDetails, err = openDetails(r.enc, sealed); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	sealed, err := sealDetails(r.enc, w.AccountDetails)
	if err != nil {
		return err
	}

	query := `INSERT INTO withdrawal_requests (` + withdrawalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = tx.Exec(ctx, query, w.ID, w.UserID, w.WalletID, w.Amount, w.FeeAmount, w.Method, sealed,
		w.Status, w.AdminNotes, w.ReviewedBy, w.ProcessedAt, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert withdrawal request: %w", err)
	}
	return nil
}

func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`
	return r.get(r.pool.QueryRow(ctx, query, id), "get withdrawal by id")
}

func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`
	return r.get(tx.QueryRow(ctx, query, id), "get withdrawal for update")
}

// Update writes the review and lifecycle fields of a request.
func (r *WithdrawalRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	query := `UPDATE withdrawal_requests SET status = $1, fee_amount = $2, admin_notes = $3, reviewed_by = $4,
		processed_at = $5, updated_at = $6 WHERE id = $7`

	tag, err := tx.Exec(ctx, query, w.Status, w.FeeAmount, w.AdminNotes, w.ReviewedBy, w.ProcessedAt, w.UpdatedAt, w.ID)
	if err != nil {
		return fmt.Errorf("update withdrawal request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal request not found: %s", w.ID)
	}
	return nil
}

func (r *WithdrawalRepo) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WithdrawalRequest, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawal_requests WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count withdrawal requests: %w", err)
	}

	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	list, err := r.list(ctx, query, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListByStatus pages through requests in status, oldest first. An empty status lists every request.
func (r *WithdrawalRepo) ListByStatus(ctx context.Context, status domain.WithdrawalStatus, page, pageSize int) ([]domain.WithdrawalRequest, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawal_requests WHERE ($1 = '' OR status = $1)`, string(status)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count withdrawal requests: %w", err)
	}

	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests
		WHERE ($1 = '' OR status = $1) ORDER BY created_at ASC LIMIT $2 OFFSET $3`

	list, err := r.list(ctx, query, string(status), pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// CountInFlight counts pending, approved and processing requests. tx may be nil.
func (r *WithdrawalRepo) CountInFlight(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM withdrawal_requests
		WHERE user_id = $1 AND status IN ('pending', 'approved', 'processing')`

	var n int
	if err := on(r.pool, tx).QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count in-flight withdrawals: %w", err)
	}
	return n, nil
}

// SumRequested sums requests created in [from, to) that still hold or moved money. tx may be nil.
func (r *WithdrawalRepo) SumRequested(ctx context.Context, tx pgx.Tx, userID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM withdrawal_requests
		WHERE user_id = $1 AND status NOT IN ('rejected', 'cancelled')
		AND created_at >= $2 AND created_at < $3`

	var sum decimal.Decimal
	if err := on(r.pool, tx).QueryRow(ctx, query, userID, from, to).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum requested withdrawals: %w", err)
	}
	return sum, nil
}

// ListAwaitingOperator returns approved requests whose newest payout failed.
func (r *WithdrawalRepo) ListAwaitingOperator(ctx context.Context) ([]domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests w
		WHERE w.status = 'approved' AND (
			SELECT p.status FROM payout_transactions p
			WHERE p.withdrawal_request_id = w.id
			ORDER BY p.created_at DESC LIMIT 1
		) = 'failed'
		ORDER BY w.updated_at ASC`
	return r.list(ctx, query)
}

func (r *WithdrawalRepo) list(ctx context.Context, query string, args ...any) ([]domain.WithdrawalRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list withdrawal requests: %w", err)
	}
	defer rows.Close()

	var list []domain.WithdrawalRequest
	for rows.Next() {
		w, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal request row: %w", err)
		}
		list = append(list, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdrawal request rows: %w", err)
	}
	return list, nil
}

func (r *WithdrawalRepo) get(row pgx.Row, op string) (*domain.WithdrawalRequest, error) {
	w, err := r.scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}

const withdrawalMethodColumns = `id, user_id, method, account_details_enc, is_default, is_active, created_at, updated_at`

// WithdrawalMethodRepo implements ports.WithdrawalMethodRepository.
type WithdrawalMethodRepo struct {
	pool Pool
	enc  ports.EncryptionService
}

func NewWithdrawalMethodRepo(pool Pool, enc ports.EncryptionService) *WithdrawalMethodRepo {
	return &WithdrawalMethodRepo{pool: pool, enc: enc}
}

func (r *WithdrawalMethodRepo) scan(row pgx.Row) (*domain.WithdrawalMethod, error) {
	var (
		m      domain.WithdrawalMethod
		sealed string
	)
	if err := row.Scan(&m.ID, &m.UserID, &m.Method, &sealed, &m.IsDefault, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	details, err := openDetails(r.enc, sealed)
	if err != nil {
		return nil, err
	}
	m.Details = details
	return &m, nil
}

func (r *WithdrawalMethodRepo) Create(ctx context.Context, tx pgx.Tx, m *domain.WithdrawalMethod) error {
	sealed, err := sealDetails(r.enc, m.Details)
	if err != nil {
		return err
	}

	query := `INSERT INTO withdrawal_methods (` + withdrawalMethodColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = tx.Exec(ctx, query, m.ID, m.UserID, m.Method, sealed, m.IsDefault, m.IsActive, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert withdrawal method: %w", err)
	}
	return nil
}

func (r *WithdrawalMethodRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalMethod, error) {
	query := `SELECT ` + withdrawalMethodColumns + ` FROM withdrawal_methods WHERE id = $1`

	m, err := r.scan(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get withdrawal method: %w", err)
	}
	return m, nil
}

func (r *WithdrawalMethodRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalMethod, error) {
	query := `SELECT ` + withdrawalMethodColumns + ` FROM withdrawal_methods
		WHERE user_id = $1 AND is_active ORDER BY is_default DESC, created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list withdrawal methods: %w", err)
	}
	defer rows.Close()

	var methods []domain.WithdrawalMethod
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal method row: %w", err)
		}
		methods = append(methods, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdrawal method rows: %w", err)
	}
	return methods, nil
}

func (r *WithdrawalMethodRepo) ClearDefault(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	query := `UPDATE withdrawal_methods SET is_default = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_default`
	if _, err := tx.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("clear default withdrawal method: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a saved method.
func (r *WithdrawalMethodRepo) Deactivate(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE withdrawal_methods SET is_active = FALSE, is_default = FALSE, updated_at = NOW() WHERE id = $1`

	tag, err := on(r.pool, tx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate withdrawal method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal method not found: %s", id)
	}
	return nil
}
