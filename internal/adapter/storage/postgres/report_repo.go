package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const reportColumns = `id, report_date, total_bookings, total_booking_amount, total_commission_amount,
	total_refunded_commission, total_withdrawals, total_withdrawal_amount, total_withdrawal_fees,
	net_commission, created_at`

// ReportRepo implements ports.ReportRepository.
type ReportRepo struct {
	pool Pool
}

func NewReportRepo(pool Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

func scanReport(row pgx.Row) (*domain.CommissionReport, error) {
	r := &domain.CommissionReport{}
	err := row.Scan(&r.ID, &r.ReportDate, &r.TotalBookings, &r.TotalBookingAmount, &r.TotalCommissionAmount,
		&r.TotalRefundedCommission, &r.TotalWithdrawals, &r.TotalWithdrawalAmount, &r.TotalWithdrawalFees,
		&r.NetCommission, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Create inserts the report unless one exists for the date.
func (r *ReportRepo) Create(ctx context.Context, rep *domain.CommissionReport) (bool, error) {
	query := `INSERT INTO commission_reports (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (report_date) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query, rep.ID, rep.ReportDate, rep.TotalBookings, rep.TotalBookingAmount,
		rep.TotalCommissionAmount, rep.TotalRefundedCommission, rep.TotalWithdrawals, rep.TotalWithdrawalAmount,
		rep.TotalWithdrawalFees, rep.NetCommission, rep.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert commission report: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReportRepo) GetByDate(ctx context.Context, date time.Time) (*domain.CommissionReport, error) {
	day, _ := domain.DayBounds(date)
	query := `SELECT ` + reportColumns + ` FROM commission_reports WHERE report_date = $1`

	rep, err := scanReport(r.pool.QueryRow(ctx, query, day))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get commission report: %w", err)
	}
	return rep, nil
}

// List returns reports with from <= report_date < to, oldest first.
func (r *ReportRepo) List(ctx context.Context, from, to time.Time) ([]domain.CommissionReport, error) {
	query := `SELECT ` + reportColumns + ` FROM commission_reports
		WHERE report_date >= $1 AND report_date < $2 ORDER BY report_date ASC`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list commission reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.CommissionReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan commission report row: %w", err)
		}
		reports = append(reports, *rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commission report rows: %w", err)
	}
	return reports, nil
}

// ComputeTotals aggregates payments completed and withdrawals settled in [from, to).
// Refund rows carry the reversed commission in admin_commission_amount.
func (r *ReportRepo) ComputeTotals(ctx context.Context, from, to time.Time) (domain.ReportTotals, error) {
	var t domain.ReportTotals

	paymentQuery := `SELECT
		COUNT(*) FILTER (WHERE kind = 'payment'),
		COALESCE(SUM(amount) FILTER (WHERE kind = 'payment'), 0),
		COALESCE(SUM(admin_commission_amount) FILTER (WHERE kind = 'payment'), 0),
		COALESCE(SUM(admin_commission_amount) FILTER (WHERE kind = 'refund'), 0)
		FROM booking_payments
		WHERE status IN ('completed', 'refunded') AND completed_at >= $1 AND completed_at < $2`

	err := r.pool.QueryRow(ctx, paymentQuery, from, to).Scan(
		&t.TotalBookings, &t.TotalBookingAmount, &t.TotalCommissionAmount, &t.TotalRefundedCommission,
	)
	if err != nil {
		return t, fmt.Errorf("aggregate booking payments: %w", err)
	}

	withdrawalQuery := `SELECT COUNT(*), COALESCE(SUM(amount), 0), COALESCE(SUM(fee_amount), 0)
		FROM withdrawal_requests
		WHERE status = 'completed' AND processed_at >= $1 AND processed_at < $2`

	err = r.pool.QueryRow(ctx, withdrawalQuery, from, to).Scan(
		&t.TotalWithdrawals, &t.TotalWithdrawalAmount, &t.TotalWithdrawalFees,
	)
	if err != nil {
		return t, fmt.Errorf("aggregate withdrawals: %w", err)
	}
	return t, nil
}
