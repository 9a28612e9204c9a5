package postgres

import (
	"context"
	"errors"
	"fmt"

	"ride-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const bookingColumns = `id, user_id, driver_id, total_amount, currency, payment_status, updated_at`

// BookingRepo implements ports.BookingRepository over the ride domain's bookings table.
type BookingRepo struct {
	pool Pool
}

func NewBookingRepo(pool Pool) *BookingRepo {
	return &BookingRepo{pool: pool}
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	b := &domain.Booking{}
	if err := row.Scan(&b.ID, &b.UserID, &b.DriverID, &b.TotalAmount, &b.Currency, &b.PaymentStatus, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *BookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}
	return b, nil
}

// GetByIDForUpdate locks the booking row so two payments cannot race on it.
func (r *BookingRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`

	b, err := scanBooking(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking for update: %w", err)
	}
	return b, nil
}

func (r *BookingRepo) UpdatePaymentStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.BookingPaymentStatus) error {
	query := `UPDATE bookings SET payment_status = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update booking payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("booking not found: %s", id)
	}
	return nil
}
