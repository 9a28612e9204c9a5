package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalApproved   WithdrawalStatus = "approved"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalRejected   WithdrawalStatus = "rejected"
	WithdrawalCancelled  WithdrawalStatus = "cancelled"
)

// withdrawalTransitions lists the legal next states. Payout-dependent guards live in the service.
var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalPending:    {WithdrawalApproved, WithdrawalRejected, WithdrawalCancelled},
	WithdrawalApproved:   {WithdrawalProcessing, WithdrawalRejected, WithdrawalCancelled},
	WithdrawalProcessing: {WithdrawalCompleted, WithdrawalApproved},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s WithdrawalStatus) CanTransitionTo(next WithdrawalStatus) bool {
	for _, allowed := range withdrawalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InFlight reports whether the request still holds reserved funds awaiting a decision or payout.
// Valid reports whether s is a known status.
func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalPending, WithdrawalApproved, WithdrawalProcessing,
		WithdrawalCompleted, WithdrawalRejected, WithdrawalCancelled:
		return true
	}
	return false
}

func (s WithdrawalStatus) InFlight() bool {
	return s == WithdrawalPending || s == WithdrawalApproved || s == WithdrawalProcessing
}

func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalCompleted || s == WithdrawalRejected || s == WithdrawalCancelled
}

// InFlightWithdrawalStatuses is the set checked by the one-in-flight rule.
var InFlightWithdrawalStatuses = []WithdrawalStatus{WithdrawalPending, WithdrawalApproved, WithdrawalProcessing}

// WithdrawalRequest moves reserved wallet funds out through a payout rail.
type WithdrawalRequest struct {
	ID             uuid.UUID            `json:"id"`
	UserID         uuid.UUID            `json:"user_id"`
	WalletID       uuid.UUID            `json:"wallet_id"`
	Amount         decimal.Decimal      `json:"amount"`
	FeeAmount      decimal.Decimal      `json:"fee_amount"`
	Method         WithdrawalMethodType `json:"method"`
	AccountDetails AccountDetails       `json:"account_details"`
	Status         WithdrawalStatus     `json:"status"`
	AdminNotes     *string              `json:"admin_notes,omitempty"`
	ReviewedBy     *uuid.UUID           `json:"reviewed_by,omitempty"`
	ProcessedAt    *time.Time           `json:"processed_at,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// Masked returns a copy safe to hand back to callers.
func (w *WithdrawalRequest) Masked() *WithdrawalRequest {
	cp := *w
	if cp.AccountDetails != nil {
		cp.AccountDetails = cp.AccountDetails.Masked()
	}
	return &cp
}

// WithdrawalMethod is a saved payout destination. Deleting only deactivates it.
type WithdrawalMethod struct {
	ID        uuid.UUID            `json:"id"`
	UserID    uuid.UUID            `json:"user_id"`
	Method    WithdrawalMethodType `json:"method"`
	Details   AccountDetails       `json:"details"`
	IsDefault bool                 `json:"is_default"`
	IsActive  bool                 `json:"is_active"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func (m *WithdrawalMethod) Masked() *WithdrawalMethod {
	cp := *m
	if cp.Details != nil {
		cp.Details = cp.Details.Masked()
	}
	return &cp
}
