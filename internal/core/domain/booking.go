package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingPaymentStatus is the payment state of a booking as seen by the ride domain.
type BookingPaymentStatus string

const (
	BookingUnpaid   BookingPaymentStatus = "unpaid"
	BookingPending  BookingPaymentStatus = "pending"
	BookingPaid     BookingPaymentStatus = "paid"
	BookingRefunded BookingPaymentStatus = "refunded"
)

// Booking is the slice of a ride booking the ledger reads and updates.
type Booking struct {
	ID            uuid.UUID            `json:"id"`
	UserID        uuid.UUID            `json:"user_id"`
	DriverID      *uuid.UUID           `json:"driver_id,omitempty"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	Currency      string               `json:"currency"`
	PaymentStatus BookingPaymentStatus `json:"payment_status"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

type PaymentMethod string

const (
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodPayPal PaymentMethod = "paypal"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodWallet || m == PaymentMethodCard || m == PaymentMethodPayPal
}

// UsesGateway reports whether the charge goes through the external payment gateway.
func (m PaymentMethod) UsesGateway() bool {
	return m == PaymentMethodCard || m == PaymentMethodPayPal
}

type PaymentKind string

const (
	PaymentKindPayment PaymentKind = "payment"
	PaymentKindRefund  PaymentKind = "refund"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// PricingBreakdown itemizes how a fare was built.
type PricingBreakdown struct {
	BaseFare     decimal.Decimal `json:"base_fare"`
	DistanceFare decimal.Decimal `json:"distance_fare"`
	TimeFare     decimal.Decimal `json:"time_fare"`
	Surcharge    decimal.Decimal `json:"surcharge"`
	Discount     decimal.Decimal `json:"discount"`
	Tax          decimal.Decimal `json:"tax"`
}

func (p PricingBreakdown) Total() decimal.Decimal {
	return RoundMoney(p.BaseFare.Add(p.DistanceFare).Add(p.TimeFare).Add(p.Surcharge).Add(p.Tax).Sub(p.Discount))
}

// BookingPayment is one charge or refund against a booking.
type BookingPayment struct {
	ID                    uuid.UUID         `json:"id"`
	BookingID             uuid.UUID         `json:"booking_id"`
	UserID                uuid.UUID         `json:"user_id"`
	Kind                  PaymentKind       `json:"kind"`
	OriginalPaymentID     *uuid.UUID        `json:"original_payment_id,omitempty"`
	Amount                decimal.Decimal   `json:"amount"`
	Currency              string            `json:"currency"`
	Method                PaymentMethod     `json:"payment_method"`
	Status                PaymentStatus     `json:"status"`
	AdminCommissionAmount decimal.Decimal   `json:"admin_commission_amount"`
	DriverEarningAmount   decimal.Decimal   `json:"driver_earning_amount"`
	Pricing               *PricingBreakdown `json:"pricing,omitempty"`
	GatewayIntentID       *string           `json:"gateway_intent_id,omitempty"`
	FailureReason         *string           `json:"failure_reason,omitempty"`
	RefundReason          *string           `json:"refund_reason,omitempty"`
	CompletedAt           *time.Time        `json:"completed_at,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// IsRefundable returns true for a completed charge.
func (p *BookingPayment) IsRefundable() bool {
	return p.Kind == PaymentKindPayment && p.Status == PaymentStatusCompleted
}

// IsTerminal returns true once the payment can no longer change by itself.
func (p *BookingPayment) IsTerminal() bool {
	return p.Status == PaymentStatusCompleted ||
		p.Status == PaymentStatusFailed ||
		p.Status == PaymentStatusRefunded
}

// SplitBalanced checks admin commission + driver earning == amount.
func (p *BookingPayment) SplitBalanced() bool {
	return p.AdminCommissionAmount.Add(p.DriverEarningAmount).Equal(p.Amount)
}
