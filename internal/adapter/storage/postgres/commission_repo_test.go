package postgres

import (
	"context"
	"testing"
	"time"

	"ride-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commissionSettingCols() []string {
	return []string{"id", "type", "percentage", "fixed_amount", "min_amount", "max_amount", "is_active", "effective_from", "created_at"}
}

func newTestCommissionSetting() *domain.CommissionSetting {
	now := time.Now().UTC().Truncate(time.Microsecond)
	maxAmount := decimal.RequireFromString("50.00")
	return &domain.CommissionSetting{
		ID:            uuid.New(),
		Type:          domain.CommissionTypeBooking,
		Percentage:    decimal.RequireFromString("15"),
		FixedAmount:   decimal.Zero,
		MaxAmount:     &maxAmount,
		IsActive:      true,
		EffectiveFrom: now,
		CreatedAt:     now,
	}
}

func TestCommissionSettingRepo_GetActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionSettingRepo(mock)
	s := newTestCommissionSetting()

	mock.ExpectQuery("SELECT .+ FROM commission_settings WHERE type .+ AND is_active").
		WithArgs(domain.CommissionTypeBooking).
		WillReturnRows(pgxmock.NewRows(commissionSettingCols()).AddRow(
			s.ID, s.Type, s.Percentage, s.FixedAmount, s.MinAmount, s.MaxAmount, s.IsActive, s.EffectiveFrom, s.CreatedAt))

	result, err := repo.GetActive(context.Background(), domain.CommissionTypeBooking)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Nil(t, result.MinAmount)
	require.NotNil(t, result.MaxAmount)
	assert.True(t, result.MaxAmount.Equal(decimal.RequireFromString("50")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommissionSettingRepo_GetActive_None(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionSettingRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM commission_settings").
		WithArgs(domain.CommissionTypeWithdrawal).
		WillReturnRows(pgxmock.NewRows(commissionSettingCols()))

	result, err := repo.GetActive(context.Background(), domain.CommissionTypeWithdrawal)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestCommissionSettingRepo_SwapActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionSettingRepo(mock)
	s := newTestCommissionSetting()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE commission_settings SET is_active = FALSE").
		WithArgs(s.Type).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO commission_settings").
		WithArgs(s.ID, s.Type, s.Percentage, s.FixedAmount, s.MinAmount, s.MaxAmount, s.IsActive, s.EffectiveFrom, s.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.DeactivateAll(context.Background(), tx, s.Type))
	require.NoError(t, repo.Create(context.Background(), tx, s))
	require.NoError(t, tx.Commit(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func commissionTxCols() []string {
	return []string{"id", "booking_payment_id", "reference_type", "reference_id", "transaction_type",
		"base_amount", "commission_amount", "commission_percentage", "status", "created_at", "updated_at"}
}

func TestCommissionTransactionRepo_GetByReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionTransactionRepo(mock)
	withdrawalID := uuid.New()
	ref := domain.WithdrawalRef(withdrawalID)
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.New()
	refType, refID := ref.Columns()

	mock.ExpectQuery("SELECT .+ FROM commission_transactions WHERE reference_type").
		WithArgs("withdrawal", withdrawalID.String(), domain.CommissionWithdrawalFee).
		WillReturnRows(pgxmock.NewRows(commissionTxCols()).AddRow(
			id, (*uuid.UUID)(nil), refType, refID, domain.CommissionWithdrawalFee,
			decimal.RequireFromString("100.00"), decimal.RequireFromString("2.00"), decimal.RequireFromString("2.0000"),
			domain.CommissionPending, now, now))

	result, err := repo.GetByReference(context.Background(), nil, ref, domain.CommissionWithdrawalFee)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, id, result.ID)
	assert.Nil(t, result.BookingPaymentID)
	assert.Equal(t, ref, result.Reference)
	assert.Equal(t, domain.CommissionPending, result.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommissionTransactionRepo_ListByBookingPayment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionTransactionRepo(mock)
	paymentID := uuid.New()
	ref := domain.BookingPaymentRef(paymentID)
	refType, refID := ref.Columns()
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT .+ FROM commission_transactions WHERE booking_payment_id").
		WithArgs(paymentID).
		WillReturnRows(pgxmock.NewRows(commissionTxCols()).AddRow(
			uuid.New(), &paymentID, refType, refID, domain.CommissionBooking,
			decimal.RequireFromString("30.00"), decimal.RequireFromString("4.50"), decimal.RequireFromString("15.0000"),
			domain.CommissionCollected, now, now))

	lines, err := repo.ListByBookingPayment(context.Background(), nil, paymentID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, paymentID, *lines[0].BookingPaymentID)
	assert.Equal(t, "4.5", lines[0].CommissionAmount.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommissionTransactionRepo_UpdateStatus_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE commission_transactions SET status").
		WithArgs(domain.CommissionRefunded, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), tx, id, domain.CommissionRefunded)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "commission transaction not found")
}
