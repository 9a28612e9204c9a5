package dto

import (
	"encoding/json"

	"ride-ledger/internal/core/domain"
	"ride-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PageQuery binds ?page=&page_size= on list endpoints.
type PageQuery struct {
	Page     int `form:"page,default=1" binding:"min=1"`
	PageSize int `form:"page_size,default=20" binding:"min=1,max=100"`
}

// DateRangeQuery binds ?from=&to= as YYYY-MM-DD days.
type DateRangeQuery struct {
	From string `form:"from" binding:"required,datetime=2006-01-02"`
	To   string `form:"to" binding:"required,datetime=2006-01-02"`
}

// RechargeRequest is the request body for a wallet recharge.
type RechargeRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required,money"`
	ExternalRef string          `json:"external_ref" binding:"required,max=128,safe_id"`
}

// BookingPaymentRequest is the request body for paying a booking.
type BookingPaymentRequest struct {
	Amount  decimal.Decimal          `json:"amount" binding:"required,money"`
	Method  string                   `json:"payment_method" binding:"required,oneof=wallet card paypal"`
	Pricing *domain.PricingBreakdown `json:"pricing,omitempty"`
}

// BookingPaymentResponse carries the stored payment and, for card and PayPal,
// the client secret the rider app confirms the intent with.
type BookingPaymentResponse struct {
	Payment      *domain.BookingPayment `json:"payment"`
	IntentID     string                 `json:"intent_id,omitempty"`
	ClientSecret string                 `json:"client_secret,omitempty"`
}

// NewBookingPaymentResponse flattens a service result.
func NewBookingPaymentResponse(r *ports.BookingPaymentResult) BookingPaymentResponse {
	resp := BookingPaymentResponse{Payment: r.Payment}
	if r.Intent != nil {
		resp.IntentID = r.Intent.ID
		resp.ClientSecret = r.Intent.ClientSecret
	}
	return resp
}

// RefundRequest is the request body for refund processing. A missing amount refunds in full.
type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty" binding:"omitempty,money"`
	Reason string           `json:"reason" binding:"max=255"`
}

// WithdrawalRequest is the request body for a withdrawal. Either method + account_details
// or a saved method_id is given.
type WithdrawalRequest struct {
	Amount         decimal.Decimal `json:"amount" binding:"required,money"`
	Method         string          `json:"method" binding:"omitempty,oneof=bank_transfer paypal card"`
	AccountDetails json.RawMessage `json:"account_details,omitempty"`
	MethodID       *uuid.UUID      `json:"method_id,omitempty"`
}

// WithdrawalMethodRequest saves a payout destination.
type WithdrawalMethodRequest struct {
	Method         string          `json:"method" binding:"required,oneof=bank_transfer paypal card"`
	AccountDetails json.RawMessage `json:"account_details" binding:"required"`
	IsDefault      bool            `json:"is_default"`
}

// NotesRequest carries optional operator or user notes on a state change.
type NotesRequest struct {
	Notes string `json:"notes" binding:"max=500"`
}

// ActivateCommissionRequest replaces the active schedule of a commission type.
type ActivateCommissionRequest struct {
	Type        string           `json:"type" binding:"required,oneof=booking withdrawal per_km"`
	Percentage  decimal.Decimal  `json:"percentage"`
	FixedAmount decimal.Decimal  `json:"fixed_amount"`
	MinAmount   *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount   *decimal.Decimal `json:"max_amount,omitempty"`
}

// WalletLimitsRequest sets debit limits. Zero means unlimited.
type WalletLimitsRequest struct {
	DailyLimit   decimal.Decimal `json:"daily_limit"`
	MonthlyLimit decimal.Decimal `json:"monthly_limit"`
}

// WalletStatusRequest activates or freezes a wallet.
type WalletStatusRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// BonusRequest grants a promotional credit.
type BonusRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required,money"`
	Note   string          `json:"note" binding:"max=255"`
}

// GenerateReportRequest asks for the commission report of one UTC day.
type GenerateReportRequest struct {
	Date string `json:"date" binding:"required,datetime=2006-01-02"`
}
