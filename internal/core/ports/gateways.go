package ports

import (
	"context"
	"time"

	"ride-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=gateways.go -destination=mocks/mock_gateways.go -package=mocks

// PaymentIntentRequest asks the card gateway to start collecting a charge.
type PaymentIntentRequest struct {
	IdempotencyKey string
	PaymentID      uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	Method         domain.PaymentMethod
	CustomerID     uuid.UUID
}

// PaymentIntent is the gateway's handle for a pending charge.
type PaymentIntent struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// GatewayRefundRequest refunds part or all of a captured intent.
type GatewayRefundRequest struct {
	IdempotencyKey string
	IntentID       string
	Amount         decimal.Decimal
	Currency       string
	Reason         string
}

type GatewayRefund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// PaymentGateway is the external card/PayPal rail.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error)
	Refund(ctx context.Context, req GatewayRefundRequest) (*GatewayRefund, error)
}

// PayoutRequest sends money out for one payout transaction.
type PayoutRequest struct {
	IdempotencyKey string
	PayoutID       uuid.UUID
	Amount         decimal.Decimal // net amount that reaches the user
	Currency       string
	Method         domain.WithdrawalMethodType
	Details        domain.AccountDetails
}

// Payout receipt statuses.
const (
	PayoutReceiptPaid    = "paid"
	PayoutReceiptPending = "pending"
	PayoutReceiptFailed  = "failed"
)

// PayoutReceipt is the rail's answer. Pending receipts settle later through a payout event.
type PayoutReceipt struct {
	ExternalID    string `json:"id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// PayoutGateway is the external payout rail.
type PayoutGateway interface {
	Name() string
	SendPayout(ctx context.Context, req PayoutRequest) (*PayoutReceipt, error)
}

// EventPublisher fans committed ledger changes out to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.LedgerEvent) error
	Close() error
}

// EventDeduper is the fast-path duplicate filter for inbound gateway events.
type EventDeduper interface {
	// MarkSeen returns true if the event id was not seen before.
	MarkSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	// Forget removes the marker so a redelivery can be processed after a failure.
	Forget(ctx context.Context, eventID string) error
}

// CommissionCache caches the active setting per commission type. Entries are
// versioned: Invalidate bumps the version of t, so a fill carrying the version
// read before a concurrent activation is never served.
type CommissionCache interface {
	// Get returns nil on a miss, plus the current version for a following Set.
	Get(ctx context.Context, t domain.CommissionType) (*domain.CommissionSetting, int64, error)
	Set(ctx context.Context, s *domain.CommissionSetting, version int64, ttl time.Duration) error
	Invalidate(ctx context.Context, t domain.CommissionType) error
}
