package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
)

// WithdrawalMethodType is the payout rail a withdrawal goes out on.
type WithdrawalMethodType string

const (
	WithdrawalBankTransfer WithdrawalMethodType = "bank_transfer"
	WithdrawalPayPal       WithdrawalMethodType = "paypal"
	WithdrawalCard         WithdrawalMethodType = "card"
)

func (m WithdrawalMethodType) Valid() bool {
	return m == WithdrawalBankTransfer || m == WithdrawalPayPal || m == WithdrawalCard
}

// ErrInvalidAccountDetails is wrapped by every AccountDetails validation failure.
var ErrInvalidAccountDetails = errors.New("invalid account details")

// AccountDetails is the method-specific destination of a withdrawal.
type AccountDetails interface {
	Method() WithdrawalMethodType
	Validate() error
	Masked() AccountDetails
}

type BankTransferDetails struct {
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	RoutingNumber string `json:"routing_number"`
}

func (BankTransferDetails) Method() WithdrawalMethodType { return WithdrawalBankTransfer }

func (d BankTransferDetails) Validate() error {
	if err := required(map[string]string{
		"account_holder": d.AccountHolder,
		"account_number": d.AccountNumber,
		"bank_name":      d.BankName,
		"routing_number": d.RoutingNumber,
	}); err != nil {
		return err
	}
	if !digitsOnly(d.AccountNumber) || len(d.AccountNumber) < 4 || len(d.AccountNumber) > 34 {
		return fmt.Errorf("%w: account_number must be 4-34 digits", ErrInvalidAccountDetails)
	}
	return nil
}

func (d BankTransferDetails) Masked() AccountDetails {
	d.AccountNumber = maskTail(d.AccountNumber)
	d.RoutingNumber = maskTail(d.RoutingNumber)
	return d
}

type PayPalDetails struct {
	Email string `json:"email"`
}

func (PayPalDetails) Method() WithdrawalMethodType { return WithdrawalPayPal }

func (d PayPalDetails) Validate() error {
	if err := required(map[string]string{"email": d.Email}); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(d.Email); err != nil {
		return fmt.Errorf("%w: email is malformed", ErrInvalidAccountDetails)
	}
	return nil
}

func (d PayPalDetails) Masked() AccountDetails {
	at := strings.LastIndex(d.Email, "@")
	if at > 1 {
		d.Email = d.Email[:1] + strings.Repeat("*", at-1) + d.Email[at:]
	}
	return d
}

type CardDetails struct {
	CardholderName string `json:"cardholder_name"`
	CardToken      string `json:"card_token"`
	Last4          string `json:"last4"`
}

func (CardDetails) Method() WithdrawalMethodType { return WithdrawalCard }

func (d CardDetails) Validate() error {
	if err := required(map[string]string{
		"cardholder_name": d.CardholderName,
		"card_token":      d.CardToken,
		"last4":           d.Last4,
	}); err != nil {
		return err
	}
	if len(d.Last4) != 4 || !digitsOnly(d.Last4) {
		return fmt.Errorf("%w: last4 must be 4 digits", ErrInvalidAccountDetails)
	}
	return nil
}

func (d CardDetails) Masked() AccountDetails {
	d.CardToken = maskTail(d.CardToken)
	return d
}

type accountEnvelope struct {
	Method  WithdrawalMethodType `json:"method"`
	Details json.RawMessage      `json:"details"`
}

// MarshalAccountDetails encodes details as {"method": ..., "details": {...}}.
func MarshalAccountDetails(d AccountDetails) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: details are required", ErrInvalidAccountDetails)
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(accountEnvelope{Method: d.Method(), Details: raw})
}

// UnmarshalAccountDetails decodes the envelope written by MarshalAccountDetails.
func UnmarshalAccountDetails(b []byte) (AccountDetails, error) {
	var env accountEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode account details: %w", err)
	}
	return DecodeAccountDetails(env.Method, env.Details)
}

// DecodeAccountDetails decodes raw method-specific JSON into its typed variant.
func DecodeAccountDetails(method WithdrawalMethodType, raw []byte) (AccountDetails, error) {
	var (
		d   AccountDetails
		err error
	)
	switch method {
	case WithdrawalBankTransfer:
		var v BankTransferDetails
		err = json.Unmarshal(raw, &v)
		d = v
	case WithdrawalPayPal:
		var v PayPalDetails
		err = json.Unmarshal(raw, &v)
		d = v
	case WithdrawalCard:
		var v CardDetails
		err = json.Unmarshal(raw, &v)
		d = v
	default:
		return nil, fmt.Errorf("%w: unsupported method %q", ErrInvalidAccountDetails, method)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccountDetails, err)
	}
	return d, nil
}

func required(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("%w: %s required", ErrInvalidAccountDetails, strings.Join(missing, ", "))
}

func maskTail(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
