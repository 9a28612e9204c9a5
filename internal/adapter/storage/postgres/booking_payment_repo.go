package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ride-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const bookingPaymentColumns = `id, booking_id, user_id, kind, original_payment_id, amount, currency,
	payment_method, status, admin_commission_amount, driver_earning_amount, pricing,
	gateway_intent_id, failure_reason, refund_reason, completed_at, created_at, updated_at`

// BookingPaymentRepo implements ports.BookingPaymentRepository.
type BookingPaymentRepo struct {
	pool Pool
}

func NewBookingPaymentRepo(pool Pool) *BookingPaymentRepo {
	return &BookingPaymentRepo{pool: pool}
}

func encodePricing(p *domain.PricingBreakdown) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func scanBookingPayment(row pgx.Row) (*domain.BookingPayment, error) {
	var (
		p       domain.BookingPayment
		pricing []byte
	)
	err := row.Scan(
		&p.ID, &p.BookingID, &p.UserID, &p.Kind, &p.OriginalPaymentID, &p.Amount, &p.Currency,
		&p.Method, &p.Status, &p.AdminCommissionAmount, &p.DriverEarningAmount, &pricing,
		&p.GatewayIntentID, &p.FailureReason, &p.RefundReason, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(pricing) > 0 {
		p.Pricing = &domain.PricingBreakdown{}
		if err := json.Unmarshal(pricing, p.Pricing); err != nil {
			return nil, fmt.Errorf("decode pricing: %w", err)
		}
	}
	return &p, nil
}

func (r *BookingPaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.BookingPayment) error {
	pricing, err := encodePricing(p.Pricing)
	if err != nil {
		return fmt.Errorf("encode pricing: %w", err)
	}

	query := `INSERT INTO booking_payments (` + bookingPaymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = tx.Exec(ctx, query,
		p.ID, p.BookingID, p.UserID, p.Kind, p.OriginalPaymentID, p.Amount, p.Currency,
		p.Method, p.Status, p.AdminCommissionAmount, p.DriverEarningAmount, pricing,
		p.GatewayIntentID, p.FailureReason, p.RefundReason, p.CompletedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking payment: %w", err)
	}
	return nil
}

func (r *BookingPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BookingPayment, error) {
	query := `SELECT ` + bookingPaymentColumns + ` FROM booking_payments WHERE id = $1`
	return r.get(r.pool.QueryRow(ctx, query, id), "get booking payment by id")
}

func (r *BookingPaymentRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.BookingPayment, error) {
	query := `SELECT ` + bookingPaymentColumns + ` FROM booking_payments WHERE id = $1 FOR UPDATE`
	return r.get(tx.QueryRow(ctx, query, id), "get booking payment for update")
}

// GetByGatewayIntentForUpdate maps a gateway intent id back to its payment and locks it.
func (r *BookingPaymentRepo) GetByGatewayIntentForUpdate(ctx context.Context, tx pgx.Tx, intentID string) (*domain.BookingPayment, error) {
	query := `SELECT ` + bookingPaymentColumns + ` FROM booking_payments WHERE gateway_intent_id = $1 FOR UPDATE`
	return r.get(tx.QueryRow(ctx, query, intentID), "get booking payment by intent")
}

func (r *BookingPaymentRepo) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingPayment, error) {
	query := `SELECT ` + bookingPaymentColumns + ` FROM booking_payments WHERE booking_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list booking payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.BookingPayment
	for rows.Next() {
		p, err := scanBookingPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking payment row: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate booking payment rows: %w", err)
	}
	return payments, nil
}

// Update writes the mutable lifecycle fields of a payment.
func (r *BookingPaymentRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.BookingPayment) error {
	query := `UPDATE booking_payments SET status = $1, admin_commission_amount = $2, driver_earning_amount = $3,
		gateway_intent_id = $4, failure_reason = $5, refund_reason = $6, completed_at = $7, updated_at = $8
		WHERE id = $9`

	tag, err := tx.Exec(ctx, query,
		p.Status, p.AdminCommissionAmount, p.DriverEarningAmount,
		p.GatewayIntentID, p.FailureReason, p.RefundReason, p.CompletedAt, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update booking payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("booking payment not found: %s", p.ID)
	}
	return nil
}

func (r *BookingPaymentRepo) get(row pgx.Row, op string) (*domain.BookingPayment, error) {
	p, err := scanBookingPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}
