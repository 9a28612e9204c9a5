package memory

import (
	"context"
	"slices"
	"time"

	"ride-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const dateKey = time.DateOnly

// ReportRepo implements ports.ReportRepository.
type ReportRepo struct {
	s *Store
}

func NewReportRepo(s *Store) *ReportRepo {
	return &ReportRepo{s: s}
}

func (r *ReportRepo) Create(ctx context.Context, rep *domain.CommissionReport) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := rep.ReportDate.UTC().Format(dateKey)
	if _, ok := r.s.reports[key]; ok {
		return false, nil
	}
	r.s.reports[key] = *rep
	return true, nil
}

func (r *ReportRepo) GetByDate(ctx context.Context, date time.Time) (*domain.CommissionReport, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rep, ok := r.s.reports[date.UTC().Format(dateKey)]
	if !ok {
		return nil, nil
	}
	return &rep, nil
}

func (r *ReportRepo) List(ctx context.Context, from, to time.Time) ([]domain.CommissionReport, error) {
	r.s.mu.RLock()
	var list []domain.CommissionReport
	for _, rep := range r.s.reports {
		if !rep.ReportDate.Before(from) && rep.ReportDate.Before(to) {
			list = append(list, rep)
		}
	}
	r.s.mu.RUnlock()

	slices.SortFunc(list, func(a, b domain.CommissionReport) int {
		return a.ReportDate.Compare(b.ReportDate)
	})
	return list, nil
}

// ComputeTotals aggregates payments completed and withdrawals settled in [from, to).
func (r *ReportRepo) ComputeTotals(ctx context.Context, from, to time.Time) (domain.ReportTotals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t := domain.ReportTotals{
		TotalBookingAmount:      decimal.Zero,
		TotalCommissionAmount:   decimal.Zero,
		TotalRefundedCommission: decimal.Zero,
		TotalWithdrawalAmount:   decimal.Zero,
		TotalWithdrawalFees:     decimal.Zero,
	}
	in := func(at *time.Time) bool {
		return at != nil && !at.Before(from) && at.Before(to)
	}

	for _, p := range r.s.payments {
		if p.Status != domain.PaymentStatusCompleted && p.Status != domain.PaymentStatusRefunded {
			continue
		}
		if !in(p.CompletedAt) {
			continue
		}
		switch p.Kind {
		case domain.PaymentKindPayment:
			t.TotalBookings++
			t.TotalBookingAmount = t.TotalBookingAmount.Add(p.Amount)
			t.TotalCommissionAmount = t.TotalCommissionAmount.Add(p.AdminCommissionAmount)
		case domain.PaymentKindRefund:
			t.TotalRefundedCommission = t.TotalRefundedCommission.Add(p.AdminCommissionAmount)
		}
	}

	for _, w := range r.s.withdrawals {
		if w.Status != domain.WithdrawalCompleted || !in(w.ProcessedAt) {
			continue
		}
		t.TotalWithdrawals++
		t.TotalWithdrawalAmount = t.TotalWithdrawalAmount.Add(w.Amount)
		t.TotalWithdrawalFees = t.TotalWithdrawalFees.Add(w.FeeAmount)
	}
	return t, nil
}

// GatewayEventRepo implements ports.GatewayEventRepository.
type GatewayEventRepo struct {
	s *Store
}

func NewGatewayEventRepo(s *Store) *GatewayEventRepo {
	return &GatewayEventRepo{s: s}
}

func (r *GatewayEventRepo) Insert(ctx context.Context, tx pgx.Tx, e *domain.GatewayEvent) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.events[e.EventID]; ok {
		return false, nil
	}
	put(tx, r.s.events, e.EventID, *e)
	return true, nil
}

// Exists waits for the running unit of work so only committed events are seen.
func (r *GatewayEventRepo) Exists(ctx context.Context, eventID string) (bool, error) {
	select {
	case r.s.sem <- struct{}{}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	defer func() { <-r.s.sem }()

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.events[eventID]
	return ok, nil
}

// AuditRepo implements ports.AuditRepository. Entries are append-only.
type AuditRepo struct {
	s *Store
}

func NewAuditRepo(s *Store) *AuditRepo {
	return &AuditRepo{s: s}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audits = append(r.s.audits, *log)
	return nil
}

// Entries returns the audit trail in insertion order.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return slices.Clone(r.s.audits)
}
