package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"ride-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WithdrawalRepo implements ports.WithdrawalRepository. Account details are kept
// in memory as decoded values.
type WithdrawalRepo struct {
	s *Store
}

func NewWithdrawalRepo(s *Store) *WithdrawalRepo {
	return &WithdrawalRepo{s: s}
}

func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if w.AccountDetails == nil {
		return fmt.Errorf("seal account details: %w", domain.ErrInvalidAccountDetails)
	}
	put(tx, r.s.withdrawals, w.ID, *w)
	return nil
}

func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.withdrawals[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *WithdrawalRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.withdrawals[w.ID]
	if !ok {
		return fmt.Errorf("withdrawal request not found: %s", w.ID)
	}
	cur.Status = w.Status
	cur.FeeAmount = w.FeeAmount
	cur.AdminNotes = w.AdminNotes
	cur.ReviewedBy = w.ReviewedBy
	cur.ProcessedAt = w.ProcessedAt
	cur.UpdatedAt = w.UpdatedAt
	put(tx, r.s.withdrawals, w.ID, cur)
	return nil
}

// ListByUser returns one page of the user's requests, newest first.
func (r *WithdrawalRepo) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WithdrawalRequest, int64, error) {
	list := r.filter(func(w domain.WithdrawalRequest) bool { return w.UserID == userID })
	slices.SortFunc(list, func(a, b domain.WithdrawalRequest) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	total := int64(len(list))

	offset := (page - 1) * pageSize
	if offset < 0 || offset >= len(list) {
		return nil, total, nil
	}
	return list[offset:min(offset+pageSize, len(list))], total, nil
}

func (r *WithdrawalRepo) ListByStatus(ctx context.Context, status domain.WithdrawalStatus, page, pageSize int) ([]domain.WithdrawalRequest, int64, error) {
	list := r.filter(func(w domain.WithdrawalRequest) bool { return status == "" || w.Status == status })
	slices.SortFunc(list, func(a, b domain.WithdrawalRequest) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	total := int64(len(list))

	offset := (page - 1) * pageSize
	if offset < 0 || offset >= len(list) {
		return nil, total, nil
	}
	return list[offset:min(offset+pageSize, len(list))], total, nil
}

func (r *WithdrawalRepo) CountInFlight(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int, error) {
	list := r.filter(func(w domain.WithdrawalRequest) bool {
		return w.UserID == userID && w.Status.InFlight()
	})
	return len(list), nil
}

func (r *WithdrawalRepo) SumRequested(ctx context.Context, tx pgx.Tx, userID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	list := r.filter(func(w domain.WithdrawalRequest) bool {
		return w.UserID == userID &&
			w.Status != domain.WithdrawalRejected && w.Status != domain.WithdrawalCancelled &&
			!w.CreatedAt.Before(from) && w.CreatedAt.Before(to)
	})
	sum := decimal.Zero
	for _, w := range list {
		sum = sum.Add(w.Amount)
	}
	return sum, nil
}

// ListAwaitingOperator returns approved requests whose newest payout failed, oldest update first.
func (r *WithdrawalRepo) ListAwaitingOperator(ctx context.Context) ([]domain.WithdrawalRequest, error) {
	r.s.mu.RLock()
	var list []domain.WithdrawalRequest
	for _, w := range r.s.withdrawals {
		if w.Status != domain.WithdrawalApproved {
			continue
		}
		if p := latestPayout(r.s, w.ID); p != nil && p.Status == domain.PayoutFailed {
			list = append(list, w)
		}
	}
	r.s.mu.RUnlock()

	slices.SortFunc(list, func(a, b domain.WithdrawalRequest) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})
	return list, nil
}

func (r *WithdrawalRepo) filter(keep func(domain.WithdrawalRequest) bool) []domain.WithdrawalRequest {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []domain.WithdrawalRequest
	for _, w := range r.s.withdrawals {
		if keep(w) {
			list = append(list, w)
		}
	}
	return list
}

// WithdrawalMethodRepo implements ports.WithdrawalMethodRepository.
type WithdrawalMethodRepo struct {
	s *Store
}

func NewWithdrawalMethodRepo(s *Store) *WithdrawalMethodRepo {
	return &WithdrawalMethodRepo{s: s}
}

func (r *WithdrawalMethodRepo) Create(ctx context.Context, tx pgx.Tx, m *domain.WithdrawalMethod) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	put(tx, r.s.methods, m.ID, *m)
	return nil
}

func (r *WithdrawalMethodRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalMethod, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.methods[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// ListActiveByUser returns the default method first, then newest.
func (r *WithdrawalMethodRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalMethod, error) {
	r.s.mu.RLock()
	var list []domain.WithdrawalMethod
	for _, m := range r.s.methods {
		if m.UserID == userID && m.IsActive {
			list = append(list, m)
		}
	}
	r.s.mu.RUnlock()

	slices.SortFunc(list, func(a, b domain.WithdrawalMethod) int {
		if a.IsDefault != b.IsDefault {
			if a.IsDefault {
				return -1
			}
			return 1
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return list, nil
}

func (r *WithdrawalMethodRepo) ClearDefault(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	for id, m := range r.s.methods {
		if m.UserID == userID && m.IsDefault {
			m.IsDefault = false
			m.UpdatedAt = now
			put(tx, r.s.methods, id, m)
		}
	}
	return nil
}

func (r *WithdrawalMethodRepo) Deactivate(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.methods[id]
	if !ok {
		return fmt.Errorf("withdrawal method not found: %s", id)
	}
	m.IsActive = false
	m.IsDefault = false
	m.UpdatedAt = time.Now().UTC()
	put(tx, r.s.methods, id, m)
	return nil
}
