package service

import (
	"context"
	"testing"
	"time"

	"ride-ledger/internal/core/domain"
	"ride-ledger/internal/core/ports"
	"ride-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedDay books 50 at 10%, refunds 20 of it and settles a 200 withdrawal with a 2.00 fee.
func (e *ledgerEnv) seedDay(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	e.activateBooking(t, "10")
	_, err := e.commissions.Activate(ctx, ports.ActivateCommissionInput{
		Type:        domain.CommissionTypeWithdrawal,
		FixedAmount: dec("2.00"),
	})
	require.NoError(t, err)

	_, payment := e.paidBooking(t, "100.00", "50.00")
	part := dec("20.00")
	_, err = e.refunds.ProcessRefund(ctx, ports.RefundRequest{PaymentID: payment.ID, Amount: &part})
	require.NoError(t, err)

	e.approvedWithdrawal(t, "500.00", "200.00")
	_, err = e.newWorker(3).RunOnce(ctx)
	require.NoError(t, err)
}

func TestReportingService_GenerateCommissionReport(t *testing.T) {
	e := newLedgerEnv(t)
	ctx := context.Background()
	e.seedDay(t)

	today := time.Now().UTC()
	report, err := e.reports.GenerateCommissionReport(ctx, today)
	require.NoError(t, err)

	day, _ := domain.DayBounds(today)
	assert.True(t, report.ReportDate.Equal(day))
	assert.Equal(t, 1, report.TotalBookings)
	assertMoney(t, "50.00", report.TotalBookingAmount)
	assertMoney(t, "5.00", report.TotalCommissionAmount)
	assertMoney(t, "2.00", report.TotalRefundedCommission)
	assert.Equal(t, 1, report.TotalWithdrawals)
	assertMoney(t, "200.00", report.TotalWithdrawalAmount)
	assertMoney(t, "2.00", report.TotalWithdrawalFees)
	assertMoney(t, "5.00", report.NetCommission)

	again, err := e.reports.GenerateCommissionReport(ctx, today.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, report.ID, again.ID, "one report per day")

	got, err := e.reports.GetCommissionReport(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, report.ID, got.ID)

	list, err := e.reports.ListCommissionReports(ctx, today.AddDate(0, 0, -7), today)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = e.reports.GetCommissionReport(ctx, day.AddDate(0, 0, -1))
	assert.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
}

func TestReportingService_Reconcile(t *testing.T) {
	e := newLedgerEnv(t)
	ctx := context.Background()
	e.seedDay(t)

	today := time.Now().UTC()
	_, err := e.reports.GenerateCommissionReport(ctx, today)
	require.NoError(t, err)

	lines, err := e.reports.Reconcile(ctx, today.AddDate(0, 0, -1), today)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Nil(t, lines[0].Persisted, "no report was generated yesterday")
	assert.False(t, lines[0].Matches())
	assert.True(t, lines[1].Matches())

	// A payment completed after the report was written shows up as drift.
	e.paidBooking(t, "30.00", "30.00")

	lines, err = e.reports.Reconcile(ctx, today, today)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.False(t, lines[0].Matches())
	assert.ElementsMatch(t, []string{"total_bookings", "total_booking_amount", "total_commission_amount"}, lines[0].Mismatches)
	assertMoney(t, "8.00", lines[0].Computed.TotalCommissionAmount)
}

func TestReportingService_DayRangeValidation(t *testing.T) {
	e := newLedgerEnv(t)
	ctx := context.Background()
	today := time.Now().UTC()

	_, err := e.reports.Reconcile(ctx, today, today.AddDate(0, 0, -1))
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	_, err = e.reports.Reconcile(ctx, today.AddDate(0, 0, -92), today)
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	lines, err := e.reports.Reconcile(ctx, today.AddDate(0, 0, -91), today)
	require.NoError(t, err)
	assert.Len(t, lines, 92)

	_, err = e.reports.ListCommissionReports(ctx, today, today.AddDate(0, 0, -3))
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
}

func TestReportingService_VerifyWallet(t *testing.T) {
	e := newLedgerEnv(t)
	ctx := context.Background()
	wallet, _ := e.paidBooking(t, "100.00", "40.00")

	v, err := e.reports.VerifyWallet(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, v.Consistent())
	assert.Equal(t, 2, v.TransactionCount)
	assertMoney(t, "60.00", v.ComputedBalance)

	// Drift introduced behind the ledger's back is reported, not repaired.
	require.NoError(t, e.walletRepo.UpdateBalance(ctx, nil, wallet.ID, dec("75.00")))
	v, err = e.reports.VerifyWallet(ctx, wallet.ID)
	require.NoError(t, err)
	assert.False(t, v.Consistent())
	assertMoney(t, "75.00", v.Balance)
	assertMoney(t, "60.00", v.ComputedBalance)

	_, err = e.reports.VerifyWallet(ctx, uuid.New())
	assert.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
}
