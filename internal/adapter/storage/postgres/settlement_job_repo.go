package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const settlementJobColumns = `id, payout_id, status, attempts, next_run_at, locked_until, last_error, created_at, updated_at`

// SettlementJobRepo implements ports.SettlementJobRepository.
type SettlementJobRepo struct {
	pool Pool
}

func NewSettlementJobRepo(pool Pool) *SettlementJobRepo {
	return &SettlementJobRepo{pool: pool}
}

func scanSettlementJob(row pgx.Row) (*domain.SettlementJob, error) {
	j := &domain.SettlementJob{}
	err := row.Scan(&j.ID, &j.PayoutID, &j.Status, &j.Attempts, &j.NextRunAt, &j.LockedUntil, &j.LastError,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (r *SettlementJobRepo) Create(ctx context.Context, tx pgx.Tx, j *domain.SettlementJob) error {
	query := `INSERT INTO settlement_jobs (` + settlementJobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query, j.ID, j.PayoutID, j.Status, j.Attempts, j.NextRunAt, j.LockedUntil, j.LastError,
		j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert settlement job: %w", err)
	}
	return nil
}

// ClaimDue leases due jobs and bumps their attempt counter. Rows locked by another
// worker are skipped; a job whose lease expired is reclaimed.
func (r *SettlementJobRepo) ClaimDue(ctx context.Context, tx pgx.Tx, now time.Time, limit int, lease time.Duration) ([]domain.SettlementJob, error) {
	query := `UPDATE settlement_jobs SET status = 'running', attempts = attempts + 1, locked_until = $2, updated_at = $1
		WHERE id IN (
			SELECT id FROM settlement_jobs
			WHERE status IN ('pending', 'running', 'awaiting') AND next_run_at <= $1
			AND (locked_until IS NULL OR locked_until < $1)
			ORDER BY next_run_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + settlementJobColumns

	rows, err := tx.Query(ctx, query, now, now.Add(lease), limit)
	if err != nil {
		return nil, fmt.Errorf("claim settlement jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.SettlementJob
	for rows.Next() {
		j, err := scanSettlementJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan settlement job row: %w", err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlement job rows: %w", err)
	}
	return jobs, nil
}

// GetByPayoutID returns the job driving a payout. tx may be nil.
func (r *SettlementJobRepo) GetByPayoutID(ctx context.Context, tx pgx.Tx, payoutID uuid.UUID) (*domain.SettlementJob, error) {
	query := `SELECT ` + settlementJobColumns + ` FROM settlement_jobs WHERE payout_id = $1`

	j, err := scanSettlementJob(on(r.pool, tx).QueryRow(ctx, query, payoutID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settlement job: %w", err)
	}
	return j, nil
}

func (r *SettlementJobRepo) Update(ctx context.Context, tx pgx.Tx, j *domain.SettlementJob) error {
	query := `UPDATE settlement_jobs SET status = $1, attempts = $2, next_run_at = $3, locked_until = $4,
		last_error = $5, updated_at = $6 WHERE id = $7`

	tag, err := on(r.pool, tx).Exec(ctx, query, j.Status, j.Attempts, j.NextRunAt, j.LockedUntil, j.LastError, j.UpdatedAt, j.ID)
	if err != nil {
		return fmt.Errorf("update settlement job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("settlement job not found: %s", j.ID)
	}
	return nil
}
