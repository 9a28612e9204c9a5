// Package memory is a process-local ledger store for local runs and service tests.
// It implements the same repository ports as the postgres package.
package memory

import (
	"context"
	"errors"
	"sync"

	"ride-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrUnsupported is returned by the raw SQL methods of Tx.
var ErrUnsupported = errors.New("memory: raw SQL is not supported")

type walletTxRow struct {
	seq int64
	t   domain.WalletTransaction
}

// Store holds every table. Units of work are serialized: Begin blocks until the
// previous transaction commits or rolls back, so FOR UPDATE reads need no extra locks.
type Store struct {
	mu  sync.RWMutex
	sem chan struct{}
	seq int64

	wallets     map[uuid.UUID]domain.Wallet
	walletTxs   map[uuid.UUID]walletTxRow
	bookings    map[uuid.UUID]domain.Booking
	payments    map[uuid.UUID]domain.BookingPayment
	settings    map[uuid.UUID]domain.CommissionSetting
	commissions map[uuid.UUID]domain.CommissionTransaction
	withdrawals map[uuid.UUID]domain.WithdrawalRequest
	methods     map[uuid.UUID]domain.WithdrawalMethod
	payouts     map[uuid.UUID]domain.PayoutTransaction
	jobs        map[uuid.UUID]domain.SettlementJob
	reports     map[string]domain.CommissionReport
	events      map[string]domain.GatewayEvent
	audits      []domain.AuditLog
}

func NewStore() *Store {
	return &Store{
		sem:         make(chan struct{}, 1),
		wallets:     make(map[uuid.UUID]domain.Wallet),
		walletTxs:   make(map[uuid.UUID]walletTxRow),
		bookings:    make(map[uuid.UUID]domain.Booking),
		payments:    make(map[uuid.UUID]domain.BookingPayment),
		settings:    make(map[uuid.UUID]domain.CommissionSetting),
		commissions: make(map[uuid.UUID]domain.CommissionTransaction),
		withdrawals: make(map[uuid.UUID]domain.WithdrawalRequest),
		methods:     make(map[uuid.UUID]domain.WithdrawalMethod),
		payouts:     make(map[uuid.UUID]domain.PayoutTransaction),
		jobs:        make(map[uuid.UUID]domain.SettlementJob),
		reports:     make(map[string]domain.CommissionReport),
		events:      make(map[string]domain.GatewayEvent),
	}
}

// PutBooking seeds or replaces a booking. Bookings are owned by the ride domain.
func (s *Store) PutBooking(b domain.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = b
}

// put writes m[k] = v and, inside a unit of work, records how to undo it.
// Callers hold s.mu.
func put[K comparable, V any](tx pgx.Tx, m map[K]V, k K, v V) {
	old, existed := m[k]
	m[k] = v
	if t, ok := tx.(*Tx); ok {
		t.undo = append(t.undo, func() {
			if existed {
				m[k] = old
			} else {
				delete(m, k)
			}
		})
	}
}

// Transactor implements ports.DBTransactor.
type Transactor struct {
	s *Store
}

func NewTransactor(s *Store) *Transactor {
	return &Transactor{s: s}
}

// Begin waits for the running unit of work to finish.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case t.s.sem <- struct{}{}:
		return &Tx{s: t.s}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Tx is a pgx.Tx over the store. Writes apply immediately and are undone on Rollback.
type Tx struct {
	s      *Store
	undo   []func()
	closed bool
}

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, ErrUnsupported
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.undo = nil
	<-t.s.sem
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.s.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.s.mu.Unlock()
	t.undo = nil
	<-t.s.sem
	return nil
}

func (t *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, ErrUnsupported
}

func (t *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *Tx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }

func (t *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, ErrUnsupported
}

func (t *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), ErrUnsupported
}

func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, ErrUnsupported
}

func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{}
}

func (t *Tx) Conn() *pgx.Conn { return nil }

type errRow struct{}

func (errRow) Scan(dest ...any) error { return ErrUnsupported }

// HealthCheck implements ports.HealthChecker. The store is always reachable.
type HealthCheck struct{}

func NewHealthCheck() *HealthCheck { return &HealthCheck{} }

func (HealthCheck) Ping(ctx context.Context) error { return nil }
func (HealthCheck) Name() string                   { return "memory" }
