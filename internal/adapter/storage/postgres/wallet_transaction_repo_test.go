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

func strPtr(s string) *string { return &s }

func newTestWalletTx(walletID uuid.UUID) *domain.WalletTransaction {
	return &domain.WalletTransaction{
		ID:            uuid.New(),
		WalletID:      walletID,
		Type:          domain.EntryDebit,
		Amount:        decimal.RequireFromString("30.00"),
		BalanceBefore: decimal.RequireFromString("100.00"),
		BalanceAfter:  decimal.RequireFromString("70.00"),
		Category:      domain.CategoryRidePayment,
		Reference:     domain.BookingPaymentRef(uuid.New()),
		Description:   "Ride payment",
		Status:        domain.TransactionStatusCompleted,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func walletTxCols() []string {
	return []string{"id", "wallet_id", "type", "amount", "balance_before", "balance_after", "category",
		"reference_type", "reference_id", "description", "status", "created_at"}
}

func walletTxRow(rows *pgxmock.Rows, t *domain.WalletTransaction) *pgxmock.Rows {
	refType, refID := t.Reference.Columns()
	return rows.AddRow(
		t.ID, t.WalletID, t.Type, t.Amount, t.BalanceBefore, t.BalanceAfter, t.Category,
		refType, refID, t.Description, t.Status, t.CreatedAt,
	)
}

func TestWalletTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletTransactionRepo(mock)
	txn := newTestWalletTx(uuid.New())
	refType, refID := txn.Reference.Columns()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO wallet_transactions").
		WithArgs(txn.ID, txn.WalletID, txn.Type, txn.Amount, txn.BalanceBefore, txn.BalanceAfter,
			txn.Category, refType, refID, txn.Description, txn.Status, txn.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletTransactionRepo_ListByWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletTransactionRepo(mock)
	walletID := uuid.New()
	first := newTestWalletTx(walletID)
	second := newTestWalletTx(walletID)
	second.Reference = domain.Reference{}

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM wallet_transactions WHERE wallet_id").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(12)))
	rows := pgxmock.NewRows(walletTxCols())
	walletTxRow(rows, first)
	walletTxRow(rows, second)
	mock.ExpectQuery("SELECT .+ FROM wallet_transactions WHERE wallet_id .+ ORDER BY seq DESC LIMIT").
		WithArgs(walletID, 2, 2).
		WillReturnRows(rows)

	txns, total, err := repo.ListByWallet(context.Background(), walletID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, txns, 2)
	assert.Equal(t, first.Reference, txns[0].Reference)
	assert.True(t, txns[1].Reference.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletTransactionRepo_ListChain_RejectsUnknownReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletTransactionRepo(mock)
	txn := newTestWalletTx(uuid.New())

	rows := pgxmock.NewRows(walletTxCols()).AddRow(
		txn.ID, txn.WalletID, txn.Type, txn.Amount, txn.BalanceBefore, txn.BalanceAfter, txn.Category,
		strPtr("mystery"), strPtr("x"), txn.Description, txn.Status, txn.CreatedAt,
	)
	mock.ExpectQuery("SELECT .+ FROM wallet_transactions WHERE wallet_id .+ ORDER BY seq ASC").
		WithArgs(txn.WalletID).
		WillReturnRows(rows)

	_, err = repo.ListChain(context.Background(), txn.WalletID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown reference kind")
}

func TestWalletTransactionRepo_SumCompletedDebits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletTransactionRepo(mock)
	walletID := uuid.New()
	from, to := domain.DayBounds(time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM wallet_transactions").
		WithArgs(walletID, from, to).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(decimal.RequireFromString("45.50")))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	sum, err := repo.SumCompletedDebits(context.Background(), tx, walletID, from, to)
	require.NoError(t, err)
	assert.Equal(t, "45.5", sum.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
