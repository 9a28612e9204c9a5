package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReportTotals are the aggregates computed for one calendar day.
type ReportTotals struct {
	TotalBookings           int             `json:"total_bookings"`
	TotalBookingAmount      decimal.Decimal `json:"total_booking_amount"`
	TotalCommissionAmount   decimal.Decimal `json:"total_commission_amount"`
	TotalRefundedCommission decimal.Decimal `json:"total_refunded_commission"`
	TotalWithdrawals        int             `json:"total_withdrawals"`
	TotalWithdrawalAmount   decimal.Decimal `json:"total_withdrawal_amount"`
	TotalWithdrawalFees     decimal.Decimal `json:"total_withdrawal_fees"`
}

// NetCommission is booking commission plus withdrawal fees minus refunded commission.
func (t ReportTotals) NetCommission() decimal.Decimal {
	return t.TotalCommissionAmount.Add(t.TotalWithdrawalFees).Sub(t.TotalRefundedCommission)
}

// CommissionReport is the persisted daily aggregate. One row per date.
type CommissionReport struct {
	ID         uuid.UUID `json:"id"`
	ReportDate time.Time `json:"report_date"`
	ReportTotals
	NetCommission decimal.Decimal `json:"net_commission"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewCommissionReport builds a report row for date from computed totals.
func NewCommissionReport(date time.Time, totals ReportTotals) *CommissionReport {
	day, _ := DayBounds(date)
	return &CommissionReport{
		ID:            uuid.New(),
		ReportDate:    day,
		ReportTotals:  totals,
		NetCommission: totals.NetCommission(),
		CreatedAt:     time.Now().UTC(),
	}
}

// ReconciliationLine compares recomputed totals for one day with the persisted report.
type ReconciliationLine struct {
	Date       time.Time         `json:"date"`
	Computed   ReportTotals      `json:"computed"`
	Persisted  *CommissionReport `json:"persisted,omitempty"`
	Mismatches []string          `json:"mismatches,omitempty"`
}

func (l ReconciliationLine) Matches() bool {
	return l.Persisted != nil && len(l.Mismatches) == 0
}

// Diff lists the fields where the persisted report disagrees with the computed totals.
func (l *ReconciliationLine) Diff() {
	l.Mismatches = nil
	if l.Persisted == nil {
		return
	}
	p := l.Persisted.ReportTotals
	c := l.Computed
	check := func(name string, equal bool) {
		if !equal {
			l.Mismatches = append(l.Mismatches, name)
		}
	}
	check("total_bookings", p.TotalBookings == c.TotalBookings)
	check("total_booking_amount", p.TotalBookingAmount.Equal(c.TotalBookingAmount))
	check("total_commission_amount", p.TotalCommissionAmount.Equal(c.TotalCommissionAmount))
	check("total_refunded_commission", p.TotalRefundedCommission.Equal(c.TotalRefundedCommission))
	check("total_withdrawals", p.TotalWithdrawals == c.TotalWithdrawals)
	check("total_withdrawal_amount", p.TotalWithdrawalAmount.Equal(c.TotalWithdrawalAmount))
	check("total_withdrawal_fees", p.TotalWithdrawalFees.Equal(c.TotalWithdrawalFees))
}

// WalletVerification is the result of replaying a wallet's ledger.
type WalletVerification struct {
	WalletID         uuid.UUID       `json:"wallet_id"`
	Balance          decimal.Decimal `json:"balance"`
	ComputedBalance  decimal.Decimal `json:"computed_balance"`
	TransactionCount int             `json:"transaction_count"`
	ChainBreaks      []uuid.UUID     `json:"chain_breaks,omitempty"`
}

func (v WalletVerification) Consistent() bool {
	return v.Balance.Equal(v.ComputedBalance) && len(v.ChainBreaks) == 0
}
