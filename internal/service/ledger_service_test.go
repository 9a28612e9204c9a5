package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ride-ledger/internal/core/domain"
	"ride-ledger/internal/core/ports"
	"ride-ledger/internal/core/ports/mocks"
	"ride-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestLedgerService_CreditThenDebit(t *testing.T) {
	e := newLedgerEnv(t)
	ctx := context.Background()
	wallet := e.fund(t, uuid.New(), "100.00")

	txn, err := e.ledger.Debit(ctx, ports.LedgerRequest{
		WalletID: wallet.ID,
		Amount:   dec("30.00"),
		Category: domain.CategoryRidePayment,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.EntryDebit, txn.Type)
	assertMoney(t, "100.00", txn.BalanceBefore)
	assertMoney(t, "70.00", txn.BalanceAfter)
	assert.Equal(t, domain.TransactionStatusCompleted, txn.Status)
	assertMoney(t, "70.00", e.balance(t, wallet.ID))

	chain, err := e.walletTxRepo.ListChain(ctx, wallet.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, domain.EntryCredit, chain[0].Type)
	assert.True(t, chain[0].BalanceAfter.Equal(chain[1].BalanceBefore))
}

func TestLedgerService_Debit_InsufficientBalance(t *testing.T) {
	e := newLedgerEnv(t)
	ctx := context.Background()
	wallet := e.fund(t, uuid.New(), "20.00")

	_, err := e.ledger.Debit(ctx, ports.LedgerRequest{
		WalletID: wallet.ID,
		Amount:   dec("20.01"),
		Category: domain.CategoryRidePayment,
	})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInsufficientBalance, apperror.CodeOf(err))
	assertMoney(t, "20.00", e.balance(t, wallet.ID))

	chain, err := e.walletTxRepo.ListChain(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Len(t, chain, 1, "a rejected debit leaves no ledger entry")
}

func TestLedgerService_Debit_ExactBalance(t *testing.T) {
	e := newLedgerEnv(t)
	wallet := e.fund(t, uuid.New(), "42.50")

	_, err := e.ledger.Debit(context.Background(), ports.LedgerRequest{
		WalletID: wallet.ID,
		Amount:   dec("42.50"),
		Category: domain.CategoryRidePayment,
	})
	require.NoError(t, err)
	assertMoney(t, "0", e.balance(t, wallet.ID))
}

func TestLedgerService_ConcurrentDebits(t *testing.T) {
	e := newLedgerEnv(t)
	wallet := e.fund(t, uuid.New(), "100.00")

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		declined  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.ledger.Debit(context.Background(), ports.LedgerRequest{
				WalletID: wallet.ID,
				Amount:   dec("7.00"),
				Category: domain.CategoryRidePayment,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperror.CodeOf(err) == apperror.CodeInsufficientBalance:
				declined++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 14, succeeded)
	assert.Equal(t, workers-14, declined)
	assertMoney(t, "2.00", e.balance(t, wallet.ID))

	v, err := e.reports.VerifyWallet(context.Background(), wallet.ID)
	require.NoError(t, err)
	assert.True(t, v.Consistent())
	assert.Equal(t, 15, v.TransactionCount)
}

func TestLedgerService_RejectsBadInput(t *testing.T) {
	e := newLedgerEnv(t)
	ctx := context.Background()
	wallet := e.fund(t, uuid.New(), "10.00")

	tests := []struct {
		name string
		req  ports.LedgerRequest
		code string
	}{
		{"zero amount", ports.LedgerRequest{WalletID: wallet.ID, Amount: dec("0"), Category: domain.CategoryBonus}, apperror.CodeValidation},
		{"rounds to zero", ports.LedgerRequest{WalletID: wallet.ID, Amount: dec("0.004"), Category: domain.CategoryBonus}, apperror.CodeValidation},
		{"negative amount", ports.LedgerRequest{WalletID: wallet.ID, Amount: dec("-5"), Category: domain.CategoryBonus}, apperror.CodeValidation},
		{"unknown category", ports.LedgerRequest{WalletID: wallet.ID, Amount: dec("5"), Category: "tip"}, apperror.CodeValidation},
		{"unknown wallet", ports.LedgerRequest{WalletID: uuid.New(), Amount: dec("5"), Category: domain.CategoryBonus}, apperror.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ledger.Credit(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}
	assertMoney(t, "10.00", e.balance(t, wallet.ID))
}

func TestLedgerService_InactiveWallet(t *testing.T) {
	e := newLedgerEnv(t)
	ctx := context.Background()
	wallet := e.fund(t, uuid.New(), "10.00")

	_, err := e.wallets.SetActive(ctx, wallet.ID, false)
	require.NoError(t, err)

	_, err = e.ledger.Debit(ctx, ports.LedgerRequest{WalletID: wallet.ID, Amount: dec("1"), Category: domain.CategoryRidePayment})
	assert.Equal(t, apperror.CodeInvalidState, apperror.CodeOf(err))

	_, err = e.ledger.Credit(ctx, ports.LedgerRequest{WalletID: wallet.ID, Amount: dec("1"), Category: domain.CategoryRefund})
	require.NoError(t, err, "credits still land on a frozen wallet")
	assertMoney(t, "11.00", e.balance(t, wallet.ID))
}

func TestLedgerService_RoundsHalfAwayFromZero(t *testing.T) {
	e := newLedgerEnv(t)
	wallet := e.fund(t, uuid.New(), "0")

	txn, err := e.ledger.Credit(context.Background(), ports.LedgerRequest{
		WalletID: wallet.ID,
		Amount:   dec("10.005"),
		Category: domain.CategoryBonus,
	})
	require.NoError(t, err)
	assertMoney(t, "10.01", txn.Amount)
	assertMoney(t, "10.01", e.balance(t, wallet.ID))
}

func TestLedgerService_EnforcesLimitsOnRequest(t *testing.T) {
	e := newLedgerEnv(t)
	ctx := context.Background()
	wallet := e.fund(t, uuid.New(), "500.00")
	_, err := e.wallets.UpdateLimits(ctx, wallet.ID, dec("50.00"), dec("1000.00"))
	require.NoError(t, err)

	debit := func(amount string, enforce bool) error {
		_, err := e.ledger.Debit(ctx, ports.LedgerRequest{
			WalletID:      wallet.ID,
			Amount:        dec(amount),
			Category:      domain.CategoryRidePayment,
			EnforceLimits: enforce,
		})
		return err
	}

	require.NoError(t, debit("30.00", true))
	err = debit("30.00", true)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeLimitExceeded, apperror.CodeOf(err))
	assert.Contains(t, err.Error(), "daily")

	require.NoError(t, debit("20.00", true), "exactly reaching the limit is allowed")
	require.NoError(t, debit("30.00", false), "limits only apply when requested")
	assertMoney(t, "420.00", e.balance(t, wallet.ID))
}

func TestLimitEnforcer_Checks(t *testing.T) {
	e := newLedgerEnv(t)
	ctx := context.Background()
	wallet := e.fund(t, uuid.New(), "500.00")

	ok, err := e.limits.CheckDailyLimit(ctx, wallet.ID, dec("10000"))
	require.NoError(t, err)
	assert.True(t, ok, "zero limit means unlimited")

	_, err = e.wallets.UpdateLimits(ctx, wallet.ID, dec("100"), dec("150"))
	require.NoError(t, err)
	_, err = e.ledger.Debit(ctx, ports.LedgerRequest{WalletID: wallet.ID, Amount: dec("80"), Category: domain.CategoryRidePayment})
	require.NoError(t, err)

	ok, err = e.limits.CheckDailyLimit(ctx, wallet.ID, dec("20"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = e.limits.CheckDailyLimit(ctx, wallet.ID, dec("20.01"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.limits.CheckMonthlyLimit(ctx, wallet.ID, dec("70"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = e.limits.CheckMonthlyLimit(ctx, wallet.ID, dec("71"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.limits.CheckDailyLimit(ctx, uuid.New(), dec("1"))
	assert.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
}

func TestLedgerService_PublishFailureDoesNotFailCredit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pub := mocks.NewMockEventPublisher(ctrl)
	e := newLedgerEnv(t, withPublisher(pub))
	wallet := e.fund(t, uuid.New(), "0")

	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, events ...domain.LedgerEvent) error {
			require.Len(t, events, 1)
			assert.Equal(t, domain.LedgerWalletTransaction, events[0].Type)
			assert.Equal(t, wallet.ID, events[0].AggregateID)
			return errors.New("broker unavailable")
		})

	_, err := e.ledger.Credit(context.Background(), ports.LedgerRequest{
		WalletID: wallet.ID,
		Amount:   dec("15.00"),
		Category: domain.CategoryBonus,
	})
	require.NoError(t, err)
	assertMoney(t, "15.00", e.balance(t, wallet.ID))
}
