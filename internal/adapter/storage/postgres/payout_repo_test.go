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

func payoutCols() []string {
	return []string{"id", "withdrawal_request_id", "gateway", "external_payout_id", "amount", "fee_amount",
		"net_amount", "status", "failure_reason", "created_at", "updated_at"}
}

func newTestPayout(withdrawalID uuid.UUID) *domain.PayoutTransaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.PayoutTransaction{
		ID:                  uuid.New(),
		WithdrawalRequestID: withdrawalID,
		Gateway:             "sandbox",
		Amount:              decimal.RequireFromString("100.00"),
		FeeAmount:           decimal.RequireFromString("2.25"),
		NetAmount:           decimal.RequireFromString("97.75"),
		Status:              domain.PayoutPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func payoutRow(rows *pgxmock.Rows, p *domain.PayoutTransaction) *pgxmock.Rows {
	return rows.AddRow(p.ID, p.WithdrawalRequestID, p.Gateway, p.ExternalPayoutID, p.Amount, p.FeeAmount,
		p.NetAmount, p.Status, p.FailureReason, p.CreatedAt, p.UpdatedAt)
}

func TestPayoutRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPayoutRepo(mock)
	p := newTestPayout(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payout_transactions").
		WithArgs(p.ID, p.WithdrawalRequestID, p.Gateway, p.ExternalPayoutID, p.Amount, p.FeeAmount,
			p.NetAmount, p.Status, p.FailureReason, p.CreatedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayoutRepo_GetLatestByWithdrawal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPayoutRepo(mock)
	p := newTestPayout(uuid.New())
	p.Status = domain.PayoutFailed
	p.FailureReason = strPtr("account closed")

	mock.ExpectQuery("SELECT .+ FROM payout_transactions WHERE withdrawal_request_id .+ ORDER BY created_at DESC LIMIT 1").
		WithArgs(p.WithdrawalRequestID).
		WillReturnRows(payoutRow(pgxmock.NewRows(payoutCols()), p))

	result, err := repo.GetLatestByWithdrawal(context.Background(), nil, p.WithdrawalRequestID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, domain.PayoutFailed, result.Status)
	assert.Equal(t, "account closed", *result.FailureReason)
	assert.True(t, result.Amount.Sub(result.FeeAmount).Equal(result.NetAmount))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayoutRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPayoutRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM payout_transactions WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(payoutCols()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestPayoutRepo_ListByWithdrawal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPayoutRepo(mock)
	withdrawalID := uuid.New()
	failed := newTestPayout(withdrawalID)
	failed.Status = domain.PayoutFailed
	retry := newTestPayout(withdrawalID)

	rows := pgxmock.NewRows(payoutCols())
	payoutRow(rows, failed)
	payoutRow(rows, retry)
	mock.ExpectQuery("SELECT .+ FROM payout_transactions WHERE withdrawal_request_id .+ ORDER BY created_at ASC").
		WithArgs(withdrawalID).
		WillReturnRows(rows)

	payouts, err := repo.ListByWithdrawal(context.Background(), withdrawalID)
	require.NoError(t, err)
	require.Len(t, payouts, 2)
	assert.Equal(t, failed.ID, payouts[0].ID)
	assert.Equal(t, retry.ID, payouts[1].ID)
}

func TestPayoutRepo_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPayoutRepo(mock)
	p := newTestPayout(uuid.New())
	p.Status = domain.PayoutCompleted
	p.ExternalPayoutID = strPtr("po_123")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payout_transactions SET status").
		WithArgs(p.Status, p.ExternalPayoutID, p.FailureReason, p.UpdatedAt, p.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Update(context.Background(), tx, p))
	assert.NoError(t, mock.ExpectationsWereMet())
}
