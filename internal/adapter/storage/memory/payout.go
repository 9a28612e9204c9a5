package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"ride-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	s *Store
}

func NewPayoutRepo(s *Store) *PayoutRepo {
	return &PayoutRepo{s: s}
}

func (r *PayoutRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PayoutTransaction) error {
	if !p.Amount.Sub(p.FeeAmount).Equal(p.NetAmount) {
		return fmt.Errorf("insert payout: net_amount %s violates payout_transactions_net_check", p.NetAmount)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.withdrawals[p.WithdrawalRequestID]; !ok {
		return fmt.Errorf("insert payout: withdrawal request %s does not exist", p.WithdrawalRequestID)
	}
	put(tx, r.s.payouts, p.ID, *p)
	return nil
}

func (r *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.payouts[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *PayoutRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutTransaction, error) {
	return r.GetByID(ctx, id)
}

func (r *PayoutRepo) GetLatestByWithdrawal(ctx context.Context, tx pgx.Tx, withdrawalID uuid.UUID) (*domain.PayoutTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return latestPayout(r.s, withdrawalID), nil
}

// ListByWithdrawal returns every attempt, oldest first.
func (r *PayoutRepo) ListByWithdrawal(ctx context.Context, withdrawalID uuid.UUID) ([]domain.PayoutTransaction, error) {
	r.s.mu.RLock()
	var list []domain.PayoutTransaction
	for _, p := range r.s.payouts {
		if p.WithdrawalRequestID == withdrawalID {
			list = append(list, p)
		}
	}
	r.s.mu.RUnlock()

	slices.SortFunc(list, func(a, b domain.PayoutTransaction) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return list, nil
}

func (r *PayoutRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.PayoutTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.payouts[p.ID]
	if !ok {
		return fmt.Errorf("payout not found: %s", p.ID)
	}
	cur.Status = p.Status
	cur.ExternalPayoutID = p.ExternalPayoutID
	cur.FailureReason = p.FailureReason
	cur.UpdatedAt = p.UpdatedAt
	put(tx, r.s.payouts, p.ID, cur)
	return nil
}

// latestPayout returns the newest payout of a withdrawal. Callers hold s.mu.
func latestPayout(s *Store, withdrawalID uuid.UUID) *domain.PayoutTransaction {
	var latest *domain.PayoutTransaction
	for _, p := range s.payouts {
		if p.WithdrawalRequestID != withdrawalID {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = &p
		}
	}
	return latest
}

// SettlementJobRepo implements ports.SettlementJobRepository.
type SettlementJobRepo struct {
	s *Store
}

func NewSettlementJobRepo(s *Store) *SettlementJobRepo {
	return &SettlementJobRepo{s: s}
}

func (r *SettlementJobRepo) Create(ctx context.Context, tx pgx.Tx, j *domain.SettlementJob) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.jobs {
		if existing.PayoutID == j.PayoutID {
			return fmt.Errorf("insert settlement job: payout %s already has a job", j.PayoutID)
		}
	}
	put(tx, r.s.jobs, j.ID, *j)
	return nil
}

// ClaimDue leases due jobs, oldest next_run_at first. Jobs under a live lease are skipped.
func (r *SettlementJobRepo) ClaimDue(ctx context.Context, tx pgx.Tx, now time.Time, limit int, lease time.Duration) ([]domain.SettlementJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var due []domain.SettlementJob
	for _, j := range r.s.jobs {
		switch j.Status {
		case domain.JobPending, domain.JobRunning, domain.JobAwaiting:
		default:
			continue
		}
		if j.NextRunAt.After(now) {
			continue
		}
		if j.LockedUntil != nil && !j.LockedUntil.Before(now) {
			continue
		}
		due = append(due, j)
	}
	slices.SortFunc(due, func(a, b domain.SettlementJob) int {
		return a.NextRunAt.Compare(b.NextRunAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	lockedUntil := now.Add(lease)
	for i := range due {
		due[i].Status = domain.JobRunning
		due[i].Attempts++
		due[i].LockedUntil = &lockedUntil
		due[i].UpdatedAt = now
		put(tx, r.s.jobs, due[i].ID, due[i])
	}
	return due, nil
}

func (r *SettlementJobRepo) GetByPayoutID(ctx context.Context, tx pgx.Tx, payoutID uuid.UUID) (*domain.SettlementJob, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, j := range r.s.jobs {
		if j.PayoutID == payoutID {
			return &j, nil
		}
	}
	return nil, nil
}

func (r *SettlementJobRepo) Update(ctx context.Context, tx pgx.Tx, j *domain.SettlementJob) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.jobs[j.ID]
	if !ok {
		return fmt.Errorf("settlement job not found: %s", j.ID)
	}
	cur.Status = j.Status
	cur.Attempts = j.Attempts
	cur.NextRunAt = j.NextRunAt
	cur.LockedUntil = j.LockedUntil
	cur.LastError = j.LastError
	cur.UpdatedAt = j.UpdatedAt
	put(tx, r.s.jobs, j.ID, cur)
	return nil
}
