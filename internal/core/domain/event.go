package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway event types consumed from the payment and payout rails.
const (
	EventPaymentSucceeded      = "payment_intent.succeeded"
	EventPaymentFailed         = "payment_intent.payment_failed"
	EventPaymentMethodAttached = "payment_method.attached"
	EventPaymentMethodDetached = "payment_method.detached"
	EventPayoutPaid            = "payout.paid"
	EventPayoutFailed          = "payout.failed"
	GatewayEventSourcePayments = "payments"
	GatewayEventSourcePayouts  = "payouts"
	GatewayEventSourceWorker   = "settlement_worker"
)

// GatewayEvent is the durable record of a processed inbound event, unique by EventID.
type GatewayEvent struct {
	EventID    string    `json:"event_id"`
	Source     string    `json:"source"`
	Type       string    `json:"type"`
	ObjectID   string    `json:"object_id"`
	ReceivedAt time.Time `json:"received_at"`
}

// LedgerEventType names an outbound notification published after commit.
type LedgerEventType string

const (
	LedgerWalletTransaction LedgerEventType = "wallet.transaction.completed"
	LedgerPaymentCompleted  LedgerEventType = "booking_payment.completed"
	LedgerPaymentFailed     LedgerEventType = "booking_payment.failed"
	LedgerPaymentRefunded   LedgerEventType = "booking_payment.refunded"
	LedgerWithdrawalUpdated LedgerEventType = "withdrawal.status_changed"
	LedgerPayoutSettled     LedgerEventType = "payout.settled"
)

// LedgerEvent is published to downstream consumers. Delivery is best effort.
type LedgerEvent struct {
	ID          uuid.UUID       `json:"id"`
	Type        LedgerEventType `json:"type"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	UserID      uuid.UUID       `json:"user_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

func NewLedgerEvent(t LedgerEventType, aggregateID, userID uuid.UUID, amount decimal.Decimal, status string) LedgerEvent {
	return LedgerEvent{
		ID:          uuid.New(),
		Type:        t,
		AggregateID: aggregateID,
		UserID:      userID,
		Amount:      amount,
		Status:      status,
		OccurredAt:  time.Now().UTC(),
	}
}
