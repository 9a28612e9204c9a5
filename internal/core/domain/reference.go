package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// ReferenceKind names the entity a ledger or commission row originates from.
type ReferenceKind string

const (
	ReferenceNone           ReferenceKind = ""
	ReferenceBookingPayment ReferenceKind = "booking_payment"
	ReferenceWithdrawal     ReferenceKind = "withdrawal"
	ReferenceRecharge       ReferenceKind = "recharge"
	ReferencePayout         ReferenceKind = "payout"
	ReferenceRefund         ReferenceKind = "refund"
)

// Reference links a row to the entity that caused it. The zero value means no reference.
type Reference struct {
	Kind ReferenceKind `json:"kind,omitempty"`
	ID   string        `json:"id,omitempty"`
}

func BookingPaymentRef(id uuid.UUID) Reference {
	return Reference{Kind: ReferenceBookingPayment, ID: id.String()}
}

func WithdrawalRef(id uuid.UUID) Reference {
	return Reference{Kind: ReferenceWithdrawal, ID: id.String()}
}

func PayoutRef(id uuid.UUID) Reference {
	return Reference{Kind: ReferencePayout, ID: id.String()}
}

func RefundRef(id uuid.UUID) Reference {
	return Reference{Kind: ReferenceRefund, ID: id.String()}
}

// RechargeRef references an external top-up, e.g. a gateway charge id.
func RechargeRef(externalID string) Reference {
	return Reference{Kind: ReferenceRecharge, ID: externalID}
}

func (r Reference) IsZero() bool {
	return r.Kind == ReferenceNone
}

// Columns returns the nullable (reference_type, reference_id) pair used for persistence.
func (r Reference) Columns() (*string, *string) {
	if r.IsZero() {
		return nil, nil
	}
	kind, id := string(r.Kind), r.ID
	return &kind, &id
}

// ParseReference rebuilds a Reference from its persisted columns.
func ParseReference(kind, id *string) (Reference, error) {
	if kind == nil || *kind == "" {
		return Reference{}, nil
	}
	k := ReferenceKind(*kind)
	switch k {
	case ReferenceBookingPayment, ReferenceWithdrawal, ReferenceRecharge, ReferencePayout, ReferenceRefund:
	default:
		return Reference{}, fmt.Errorf("unknown reference kind %q", *kind)
	}
	ref := Reference{Kind: k}
	if id != nil {
		ref.ID = *id
	}
	return ref, nil
}

func (r Reference) String() string {
	if r.IsZero() {
		return ""
	}
	return string(r.Kind) + ":" + r.ID
}
