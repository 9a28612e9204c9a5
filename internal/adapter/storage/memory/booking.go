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

// BookingRepo implements ports.BookingRepository.
type BookingRepo struct {
	s *Store
}

func NewBookingRepo(s *Store) *BookingRepo {
	return &BookingRepo{s: s}
}

func (r *BookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *BookingRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r *BookingRepo) UpdatePaymentStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.BookingPaymentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return fmt.Errorf("booking not found: %s", id)
	}
	b.PaymentStatus = status
	b.UpdatedAt = time.Now().UTC()
	put(tx, r.s.bookings, id, b)
	return nil
}

// BookingPaymentRepo implements ports.BookingPaymentRepository.
type BookingPaymentRepo struct {
	s *Store
}

func NewBookingPaymentRepo(s *Store) *BookingPaymentRepo {
	return &BookingPaymentRepo{s: s}
}

func (r *BookingPaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.BookingPayment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payments[p.ID]; ok {
		return fmt.Errorf("insert booking payment: duplicate id %s", p.ID)
	}
	if p.GatewayIntentID != nil && r.findByIntent(*p.GatewayIntentID) != nil {
		return fmt.Errorf("insert booking payment: duplicate gateway_intent_id %s", *p.GatewayIntentID)
	}
	put(tx, r.s.payments, p.ID, *p)
	return nil
}

func (r *BookingPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BookingPayment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *BookingPaymentRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.BookingPayment, error) {
	return r.GetByID(ctx, id)
}

func (r *BookingPaymentRepo) GetByGatewayIntentForUpdate(ctx context.Context, tx pgx.Tx, intentID string) (*domain.BookingPayment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.findByIntent(intentID), nil
}

func (r *BookingPaymentRepo) findByIntent(intentID string) *domain.BookingPayment {
	for _, p := range r.s.payments {
		if p.GatewayIntentID != nil && *p.GatewayIntentID == intentID {
			return &p
		}
	}
	return nil
}

func (r *BookingPaymentRepo) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingPayment, error) {
	r.s.mu.RLock()
	var list []domain.BookingPayment
	for _, p := range r.s.payments {
		if p.BookingID == bookingID {
			list = append(list, p)
		}
	}
	r.s.mu.RUnlock()

	slices.SortFunc(list, func(a, b domain.BookingPayment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return list, nil
}

func (r *BookingPaymentRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.BookingPayment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.payments[p.ID]
	if !ok {
		return fmt.Errorf("booking payment not found: %s", p.ID)
	}
	cur.Status = p.Status
	cur.AdminCommissionAmount = p.AdminCommissionAmount
	cur.DriverEarningAmount = p.DriverEarningAmount
	cur.GatewayIntentID = p.GatewayIntentID
	cur.FailureReason = p.FailureReason
	cur.RefundReason = p.RefundReason
	cur.CompletedAt = p.CompletedAt
	cur.UpdatedAt = p.UpdatedAt
	put(tx, r.s.payments, p.ID, cur)
	return nil
}

// CommissionSettingRepo implements ports.CommissionSettingRepository.
type CommissionSettingRepo struct {
	s *Store
}

func NewCommissionSettingRepo(s *Store) *CommissionSettingRepo {
	return &CommissionSettingRepo{s: s}
}

func (r *CommissionSettingRepo) GetActive(ctx context.Context, t domain.CommissionType) (*domain.CommissionSetting, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, cs := range r.s.settings {
		if cs.Type == t && cs.IsActive {
			return &cs, nil
		}
	}
	return nil, nil
}

// ListByType returns every schedule of t, newest first.
func (r *CommissionSettingRepo) ListByType(ctx context.Context, t domain.CommissionType) ([]domain.CommissionSetting, error) {
	r.s.mu.RLock()
	var list []domain.CommissionSetting
	for _, cs := range r.s.settings {
		if cs.Type == t {
			list = append(list, cs)
		}
	}
	r.s.mu.RUnlock()

	slices.SortFunc(list, func(a, b domain.CommissionSetting) int {
		return b.EffectiveFrom.Compare(a.EffectiveFrom)
	})
	return list, nil
}

func (r *CommissionSettingRepo) DeactivateAll(ctx context.Context, tx pgx.Tx, t domain.CommissionType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, cs := range r.s.settings {
		if cs.Type == t && cs.IsActive {
			cs.IsActive = false
			put(tx, r.s.settings, id, cs)
		}
	}
	return nil
}

func (r *CommissionSettingRepo) Create(ctx context.Context, tx pgx.Tx, cs *domain.CommissionSetting) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if cs.IsActive {
		for _, existing := range r.s.settings {
			if existing.Type == cs.Type && existing.IsActive {
				return fmt.Errorf("insert commission setting: %s already has an active schedule", cs.Type)
			}
		}
	}
	put(tx, r.s.settings, cs.ID, *cs)
	return nil
}

// CommissionTransactionRepo implements ports.CommissionTransactionRepository.
type CommissionTransactionRepo struct {
	s *Store
}

func NewCommissionTransactionRepo(s *Store) *CommissionTransactionRepo {
	return &CommissionTransactionRepo{s: s}
}

func (r *CommissionTransactionRepo) Create(ctx context.Context, tx pgx.Tx, c *domain.CommissionTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	put(tx, r.s.commissions, c.ID, *c)
	return nil
}

func (r *CommissionTransactionRepo) ListByBookingPayment(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) ([]domain.CommissionTransaction, error) {
	r.s.mu.RLock()
	var list []domain.CommissionTransaction
	for _, c := range r.s.commissions {
		if c.BookingPaymentID != nil && *c.BookingPaymentID == paymentID {
			list = append(list, c)
		}
	}
	r.s.mu.RUnlock()

	slices.SortFunc(list, func(a, b domain.CommissionTransaction) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return list, nil
}

// GetByReference returns the newest commission row of type t for ref.
func (r *CommissionTransactionRepo) GetByReference(ctx context.Context, tx pgx.Tx, ref domain.Reference, t domain.CommissionTransactionType) (*domain.CommissionTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var found *domain.CommissionTransaction
	for _, c := range r.s.commissions {
		if c.Reference != ref || c.TransactionType != t {
			continue
		}
		if found == nil || c.CreatedAt.After(found.CreatedAt) {
			found = &c
		}
	}
	return found, nil
}

func (r *CommissionTransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.CommissionStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.commissions[id]
	if !ok {
		return fmt.Errorf("commission transaction not found: %s", id)
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	put(tx, r.s.commissions, id, c)
	return nil
}
