package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds one user's balance. The balance only changes through the ledger service.
type Wallet struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Balance      decimal.Decimal `json:"balance"`
	Currency     string          `json:"currency"`
	IsActive     bool            `json:"is_active"`
	DailyLimit   decimal.Decimal `json:"daily_limit"`   // zero = unlimited
	MonthlyLimit decimal.Decimal `json:"monthly_limit"` // zero = unlimited
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CanDebit reports whether amount fits in the current balance.
func (w *Wallet) CanDebit(amount decimal.Decimal) bool {
	return amount.LessThanOrEqual(w.Balance)
}

// EntryType is the direction of a ledger entry.
type EntryType string

const (
	EntryCredit EntryType = "credit"
	EntryDebit  EntryType = "debit"
)

// TransactionCategory classifies why money moved.
type TransactionCategory string

const (
	CategoryRidePayment    TransactionCategory = "ride_payment"
	CategoryRideEarning    TransactionCategory = "ride_earning"
	CategoryWalletRecharge TransactionCategory = "wallet_recharge"
	CategoryWithdrawal     TransactionCategory = "withdrawal"
	CategoryRefund         TransactionCategory = "refund"
	CategoryCommission     TransactionCategory = "commission"
	CategoryBonus          TransactionCategory = "bonus"
)

func (c TransactionCategory) Valid() bool {
	switch c {
	case CategoryRidePayment, CategoryRideEarning, CategoryWalletRecharge, CategoryWithdrawal,
		CategoryRefund, CategoryCommission, CategoryBonus:
		return true
	}
	return false
}

// TransactionStatus is the state of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// WalletTransaction is an immutable ledger entry. Completed rows are never edited.
type WalletTransaction struct {
	ID            uuid.UUID           `json:"id"`
	WalletID      uuid.UUID           `json:"wallet_id"`
	Type          EntryType           `json:"type"`
	Amount        decimal.Decimal     `json:"amount"`
	BalanceBefore decimal.Decimal     `json:"balance_before"`
	BalanceAfter  decimal.Decimal     `json:"balance_after"`
	Category      TransactionCategory `json:"category"`
	Reference     Reference           `json:"reference"`
	Description   string              `json:"description,omitempty"`
	Status        TransactionStatus   `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Delta returns the signed effect of the entry on the balance.
func (t *WalletTransaction) Delta() decimal.Decimal {
	if t.Type == EntryDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Consistent checks balance_after against balance_before and the amount.
func (t *WalletTransaction) Consistent() bool {
	return t.BalanceBefore.Add(t.Delta()).Equal(t.BalanceAfter)
}
