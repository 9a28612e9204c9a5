package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
)

// Active reports whether the payout may still settle.
func (s PayoutStatus) Active() bool {
	return s == PayoutPending || s == PayoutProcessing
}

// PayoutTransaction is one settlement attempt for a withdrawal. NetAmount = Amount - FeeAmount.
type PayoutTransaction struct {
	ID                  uuid.UUID       `json:"id"`
	WithdrawalRequestID uuid.UUID       `json:"withdrawal_request_id"`
	Gateway             string          `json:"gateway"`
	ExternalPayoutID    *string         `json:"external_payout_id,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	FeeAmount           decimal.Decimal `json:"fee_amount"`
	NetAmount           decimal.Decimal `json:"net_amount"`
	Status              PayoutStatus    `json:"status"`
	FailureReason       *string         `json:"failure_reason,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// FeeRule is a payout rail's charge: percentage of the amount plus a fixed part.
type FeeRule struct {
	Percentage decimal.Decimal
	Fixed      decimal.Decimal
}

func (r FeeRule) Fee(amount decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(r.Percentage).Div(hundred)).Add(r.Fixed)
}

// PayoutResult is the outcome reported by the payout rail for one payout.
type PayoutResult struct {
	PayoutID         uuid.UUID `json:"payout_id"`
	ExternalPayoutID string    `json:"external_payout_id,omitempty"`
	Succeeded        bool      `json:"succeeded"`
	FailureReason    string    `json:"failure_reason,omitempty"`
}

type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobAwaiting JobStatus = "awaiting" // accepted by the rail, polled until confirmed
	JobDone     JobStatus = "done"
	JobFailed   JobStatus = "failed"
)

// ConfirmationPollInterval is how often an accepted payout is re-sent to the rail
// to read its status while no payout event has arrived.
const ConfirmationPollInterval = 15 * time.Minute

// SettlementJob is the durable outbox entry that drives a payout to the rail.
type SettlementJob struct {
	ID          uuid.UUID  `json:"id"`
	PayoutID    uuid.UUID  `json:"payout_id"`
	Status      JobStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	NextRunAt   time.Time  `json:"next_run_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// SettlementRetryIntervals is the backoff between payout attempts.
var SettlementRetryIntervals = []time.Duration{
	15 * time.Second,
	1 * time.Minute,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// RetryDelay returns the wait before attempt number attempts+1.
func RetryDelay(attempts int) time.Duration {
	if attempts <= 0 {
		return SettlementRetryIntervals[0]
	}
	if attempts > len(SettlementRetryIntervals) {
		return SettlementRetryIntervals[len(SettlementRetryIntervals)-1]
	}
	return SettlementRetryIntervals[attempts-1]
}
