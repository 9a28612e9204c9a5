package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CommissionType string

const (
	CommissionTypeBooking    CommissionType = "booking"
	CommissionTypeWithdrawal CommissionType = "withdrawal"
	CommissionTypePerKm      CommissionType = "per_km"
)

func (t CommissionType) Valid() bool {
	return t == CommissionTypeBooking || t == CommissionTypeWithdrawal || t == CommissionTypePerKm
}

var hundred = decimal.NewFromInt(100)

// CommissionSetting is one effective-dated commission schedule. Only one per type is active.
type CommissionSetting struct {
	ID            uuid.UUID        `json:"id"`
	Type          CommissionType   `json:"type"`
	Percentage    decimal.Decimal  `json:"percentage"`
	FixedAmount   decimal.Decimal  `json:"fixed_amount"`
	MinAmount     *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount     *decimal.Decimal `json:"max_amount,omitempty"`
	IsActive      bool             `json:"is_active"`
	EffectiveFrom time.Time        `json:"effective_from"`
	CreatedAt     time.Time        `json:"created_at"`
}

// CommissionQuote is the output of a commission calculation.
type CommissionQuote struct {
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"` // effective rate, 4 decimal places
}

// Calculate returns clamp(round(base*pct/100)+fixed, min, max), bounded to [0, base].
// A nil setting yields a zero commission.
func (s *CommissionSetting) Calculate(base decimal.Decimal) CommissionQuote {
	if s == nil || !base.IsPositive() {
		return CommissionQuote{Amount: decimal.Zero, Percentage: decimal.Zero}
	}
	amount := RoundMoney(base.Mul(s.Percentage).Div(hundred)).Add(s.FixedAmount)
	amount = s.clamp(amount)
	if amount.GreaterThan(base) {
		amount = base
	}
	return CommissionQuote{Amount: amount, Percentage: effectivePercentage(amount, base)}
}

// PerKm prices a distance against a per_km setting: fixed amount per km, clamped.
func (s *CommissionSetting) PerKm(distanceKm decimal.Decimal) decimal.Decimal {
	if s == nil || !distanceKm.IsPositive() {
		return decimal.Zero
	}
	return s.clamp(RoundMoney(s.FixedAmount.Mul(distanceKm)))
}

func (s *CommissionSetting) clamp(amount decimal.Decimal) decimal.Decimal {
	if s.MinAmount != nil && amount.LessThan(*s.MinAmount) {
		amount = *s.MinAmount
	}
	if s.MaxAmount != nil && amount.GreaterThan(*s.MaxAmount) {
		amount = *s.MaxAmount
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

func effectivePercentage(amount, base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(hundred).DivRound(base, 4)
}

// ProportionalShare returns round(total * part / whole), used for partial refunds.
func ProportionalShare(total, part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	if part.GreaterThanOrEqual(whole) {
		return total
	}
	return RoundMoney(total.Mul(part).Div(whole))
}

type CommissionTransactionType string

const (
	CommissionBooking       CommissionTransactionType = "booking_commission"
	CommissionWithdrawalFee CommissionTransactionType = "withdrawal_fee"
)

type CommissionStatus string

const (
	CommissionPending   CommissionStatus = "pending"
	CommissionCollected CommissionStatus = "collected"
	CommissionRefunded  CommissionStatus = "refunded"
)

// CommissionTransaction records the platform's cut of a booking payment or withdrawal.
type CommissionTransaction struct {
	ID                   uuid.UUID                 `json:"id"`
	BookingPaymentID     *uuid.UUID                `json:"booking_payment_id,omitempty"`
	Reference            Reference                 `json:"reference"`
	TransactionType      CommissionTransactionType `json:"transaction_type"`
	BaseAmount           decimal.Decimal           `json:"base_amount"`
	CommissionAmount     decimal.Decimal           `json:"commission_amount"`
	CommissionPercentage decimal.Decimal           `json:"commission_percentage"`
	Status               CommissionStatus          `json:"status"`
	CreatedAt            time.Time                 `json:"created_at"`
	UpdatedAt            time.Time                 `json:"updated_at"`
}
