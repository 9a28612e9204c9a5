package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ride-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// prefixCipher is a reversible stand-in for the AES service.
type prefixCipher struct{}

func (prefixCipher) Encrypt(plaintext string) (string, error) { return "enc:" + plaintext, nil }

func (prefixCipher) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, "enc:") {
		return "", errors.New("cipher: message authentication failed")
	}
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}

func withdrawalCols() []string {
	return []string{"id", "user_id", "wallet_id", "amount", "fee_amount", "method", "account_details_enc",
		"status", "admin_notes", "reviewed_by", "processed_at", "created_at", "updated_at"}
}

func newTestWithdrawal() *domain.WithdrawalRequest {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.WithdrawalRequest{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		WalletID:  uuid.New(),
		Amount:    decimal.RequireFromString("100.00"),
		FeeAmount: decimal.RequireFromString("2.00"),
		Method:    domain.WithdrawalBankTransfer,
		AccountDetails: domain.BankTransferDetails{
			AccountHolder: "Jane Driver",
			AccountNumber: "000123456789",
			BankName:      "First Bank",
			RoutingNumber: "021000021",
		},
		Status:    domain.WithdrawalPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func sealedFor(t *testing.T, d domain.AccountDetails) string {
	sealed, err := sealDetails(prefixCipher{}, d)
	require.NoError(t, err)
	return sealed
}

func withdrawalRow(t *testing.T, rows *pgxmock.Rows, w *domain.WithdrawalRequest) *pgxmock.Rows {
	return rows.AddRow(w.ID, w.UserID, w.WalletID, w.Amount, w.FeeAmount, w.Method, sealedFor(t, w.AccountDetails),
		w.Status, w.AdminNotes, w.ReviewedBy, w.ProcessedAt, w.CreatedAt, w.UpdatedAt)
}

func TestWithdrawalRepo_Create_StoresEncryptedDetails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock, prefixCipher{})
	w := newTestWithdrawal()
	sealed := sealedFor(t, w.AccountDetails)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO withdrawal_requests").
		WithArgs(w.ID, w.UserID, w.WalletID, w.Amount, w.FeeAmount, w.Method, sealed,
			w.Status, w.AdminNotes, w.ReviewedBy, w.ProcessedAt, w.CreatedAt, w.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_GetByIDForUpdate_DecryptsDetails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock, prefixCipher{})
	w := newTestWithdrawal()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests WHERE id .+ FOR UPDATE").
		WithArgs(w.ID).
		WillReturnRows(withdrawalRow(t, pgxmock.NewRows(withdrawalCols()), w))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIDForUpdate(context.Background(), tx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.AccountDetails, result.AccountDetails)
	assert.Equal(t, domain.WithdrawalPending, result.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_GetByID_CorruptCiphertext(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock, prefixCipher{})
	w := newTestWithdrawal()

	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests WHERE id").
		WithArgs(w.ID).
		WillReturnRows(pgxmock.NewRows(withdrawalCols()).AddRow(
			w.ID, w.UserID, w.WalletID, w.Amount, w.FeeAmount, w.Method, "tampered",
			w.Status, w.AdminNotes, w.ReviewedBy, w.ProcessedAt, w.CreatedAt, w.UpdatedAt))

	_, err = repo.GetByID(context.Background(), w.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decrypt account details")
}

func TestWithdrawalRepo_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock, prefixCipher{})
	w := newTestWithdrawal()
	reviewer := uuid.New()
	w.Status = domain.WithdrawalApproved
	w.ReviewedBy = &reviewer
	w.AdminNotes = strPtr("looks good")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE withdrawal_requests SET status").
		WithArgs(w.Status, w.FeeAmount, w.AdminNotes, w.ReviewedBy, w.ProcessedAt, w.UpdatedAt, w.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Update(context.Background(), tx, w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_CountInFlight(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock, prefixCipher{})
	userID := uuid.New()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM withdrawal_requests .+ status IN").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	n, err := repo.CountInFlight(context.Background(), nil, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_SumRequested(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock, prefixCipher{})
	userID := uuid.New()
	from, to := domain.MonthBounds(time.Now())

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM withdrawal_requests .+ NOT IN").
		WithArgs(userID, from, to).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(decimal.RequireFromString("320.00")))

	sum, err := repo.SumRequested(context.Background(), nil, userID, from, to)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(320)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_ListAwaitingOperator(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock, prefixCipher{})
	w := newTestWithdrawal()
	w.Status = domain.WithdrawalApproved

	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests w WHERE w.status = 'approved' .+ = 'failed'").
		WillReturnRows(withdrawalRow(t, pgxmock.NewRows(withdrawalCols()), w))

	list, err := repo.ListAwaitingOperator(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, w.ID, list[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_ListByStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock, prefixCipher{})
	w := newTestWithdrawal()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM withdrawal_requests WHERE \(\$1 = '' OR status = \$1\)`).
		WithArgs("pending").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(11)))
	mock.ExpectQuery(`(?s)SELECT .+ FROM withdrawal_requests.+ORDER BY created_at ASC LIMIT \$2 OFFSET \$3`).
		WithArgs("pending", 10, 10).
		WillReturnRows(withdrawalRow(t, pgxmock.NewRows(withdrawalCols()), w))

	list, total, err := repo.ListByStatus(context.Background(), domain.WithdrawalPending, 2, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 11, total)
	require.Len(t, list, 1)
	assert.Equal(t, w.ID, list[0].ID)
	assert.Equal(t, "000123456789", list[0].AccountDetails.(domain.BankTransferDetails).AccountNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_ListByStatus_CountError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock, prefixCipher{})
	mock.ExpectQuery("SELECT COUNT").WithArgs("").WillReturnError(errors.New("connection reset"))

	_, _, err = repo.ListByStatus(context.Background(), "", 1, 20)
	assert.ErrorContains(t, err, "count withdrawal requests")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalMethodRepo_ListActiveByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalMethodRepo(mock, prefixCipher{})
	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)
	details := domain.PayPalDetails{Email: "driver@example.com"}

	mock.ExpectQuery("SELECT .+ FROM withdrawal_methods WHERE user_id .+ AND is_active").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "method", "account_details_enc", "is_default", "is_active", "created_at", "updated_at"}).
			AddRow(uuid.New(), userID, domain.WithdrawalPayPal, sealedFor(t, details), true, true, now, now))

	methods, err := repo.ListActiveByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, details, methods[0].Details)
	assert.True(t, methods[0].IsDefault)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalMethodRepo_Deactivate_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalMethodRepo(mock, prefixCipher{})
	id := uuid.New()

	mock.ExpectExec("UPDATE withdrawal_methods SET is_active = FALSE").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.Deactivate(context.Background(), nil, id)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "withdrawal method not found")
}
