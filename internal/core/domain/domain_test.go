package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func TestRoundMoney_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "2.35", RoundMoney(d("2.345")).StringFixed(2))
	assert.Equal(t, "-2.35", RoundMoney(d("-2.345")).StringFixed(2))
	assert.Equal(t, "2.34", RoundMoney(d("2.3449")).StringFixed(2))
}

func TestWithinEpsilon(t *testing.T) {
	assert.True(t, WithinEpsilon(d("50.00"), d("50.01")))
	assert.True(t, WithinEpsilon(d("50.00"), d("49.99")))
	assert.False(t, WithinEpsilon(d("50.00"), d("50.02")))
}

func TestDayAndMonthBounds(t *testing.T) {
	ts := time.Date(2024, 2, 29, 23, 59, 0, 0, time.FixedZone("X", 3600))

	start, end := DayBounds(ts)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), end)

	mStart, mEnd := MonthBounds(ts)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), mStart)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), mEnd)
}

func TestCommissionSetting_Calculate(t *testing.T) {
	tests := []struct {
		name    string
		setting *CommissionSetting
		base    string
		amount  string
		pct     string
	}{
		{"ten percent", &CommissionSetting{Percentage: d("10")}, "50.00", "5.00", "10"},
		{"rounds half away", &CommissionSetting{Percentage: d("12.5")}, "10.03", "1.25", "12.4626"},
		{"fixed part", &CommissionSetting{Percentage: d("10"), FixedAmount: d("0.50")}, "20.00", "2.50", "12.5"},
		{"min clamp", &CommissionSetting{Percentage: d("5"), MinAmount: dp("2.00")}, "10.00", "2.00", "20"},
		{"max clamp", &CommissionSetting{Percentage: d("20"), MaxAmount: dp("15.00")}, "200.00", "15.00", "7.5"},
		{"never above base", &CommissionSetting{Percentage: d("5"), MinAmount: dp("3.00")}, "1.00", "1.00", "100"},
		{"nil setting", nil, "50.00", "0", "0"},
		{"zero base", &CommissionSetting{Percentage: d("10")}, "0", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.setting.Calculate(d(tt.base))
			assert.True(t, d(tt.amount).Equal(q.Amount), "amount: got %s", q.Amount)
			assert.True(t, d(tt.pct).Equal(q.Percentage), "percentage: got %s", q.Percentage)
		})
	}
}

func TestCommissionSetting_PerKm(t *testing.T) {
	s := &CommissionSetting{Type: CommissionTypePerKm, FixedAmount: d("0.15"), MaxAmount: dp("3.00")}

	assert.Equal(t, "1.88", s.PerKm(d("12.5")).StringFixed(2))
	assert.Equal(t, "3.00", s.PerKm(d("40")).StringFixed(2))
	assert.True(t, s.PerKm(d("0")).IsZero())
}

func TestProportionalShare(t *testing.T) {
	assert.Equal(t, "2.50", ProportionalShare(d("5.00"), d("25.00"), d("50.00")).StringFixed(2))
	assert.Equal(t, "5.00", ProportionalShare(d("5.00"), d("50.00"), d("50.00")).StringFixed(2))
	assert.Equal(t, "0.33", ProportionalShare(d("1.00"), d("1.00"), d("3.00")).StringFixed(2))
	assert.True(t, ProportionalShare(d("5.00"), d("1.00"), decimal.Zero).IsZero())
}

func TestWalletTransaction_Consistent(t *testing.T) {
	tx := &WalletTransaction{Type: EntryDebit, Amount: d("30.00"), BalanceBefore: d("100.00"), BalanceAfter: d("70.00")}
	assert.True(t, tx.Consistent())
	assert.True(t, d("-30.00").Equal(tx.Delta()))

	tx.Type = EntryCredit
	assert.False(t, tx.Consistent())
}

func TestReference_Columns(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	ref := WithdrawalRef(id)

	kind, rid := ref.Columns()
	require.NotNil(t, kind)
	assert.Equal(t, "withdrawal", *kind)
	assert.Equal(t, id.String(), *rid)

	back, err := ParseReference(kind, rid)
	require.NoError(t, err)
	assert.Equal(t, ref, back)

	k, i := Reference{}.Columns()
	assert.Nil(t, k)
	assert.Nil(t, i)

	none, err := ParseReference(nil, nil)
	require.NoError(t, err)
	assert.True(t, none.IsZero())

	bad := "ride"
	_, err = ParseReference(&bad, &bad)
	assert.Error(t, err)
}

func TestBookingPayment_IsRefundable(t *testing.T) {
	tests := []struct {
		name   string
		kind   PaymentKind
		status PaymentStatus
		want   bool
	}{
		{"completed payment", PaymentKindPayment, PaymentStatusCompleted, true},
		{"processing payment", PaymentKindPayment, PaymentStatusProcessing, false},
		{"refunded payment", PaymentKindPayment, PaymentStatusRefunded, false},
		{"completed refund", PaymentKindRefund, PaymentStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &BookingPayment{Kind: tt.kind, Status: tt.status}
			assert.Equal(t, tt.want, p.IsRefundable())
		})
	}
}

func TestPricingBreakdown_Total(t *testing.T) {
	p := PricingBreakdown{
		BaseFare:     d("3.00"),
		DistanceFare: d("12.40"),
		TimeFare:     d("4.10"),
		Surcharge:    d("1.50"),
		Discount:     d("2.00"),
		Tax:          d("1.00"),
	}
	assert.Equal(t, "20.00", p.Total().StringFixed(2))
}

func TestWithdrawalStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to WithdrawalStatus
		want     bool
	}{
		{WithdrawalPending, WithdrawalApproved, true},
		{WithdrawalPending, WithdrawalRejected, true},
		{WithdrawalPending, WithdrawalCancelled, true},
		{WithdrawalPending, WithdrawalCompleted, false},
		{WithdrawalApproved, WithdrawalCancelled, true},
		{WithdrawalApproved, WithdrawalProcessing, true},
		{WithdrawalProcessing, WithdrawalCompleted, true},
		{WithdrawalProcessing, WithdrawalCancelled, false},
		{WithdrawalRejected, WithdrawalApproved, false},
		{WithdrawalCompleted, WithdrawalRejected, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, WithdrawalApproved.InFlight())
	assert.False(t, WithdrawalCancelled.InFlight())
}

func TestAccountDetails_Validate(t *testing.T) {
	tests := []struct {
		name    string
		details AccountDetails
		wantErr bool
	}{
		{"bank ok", BankTransferDetails{AccountHolder: "A Driver", AccountNumber: "000123456789", BankName: "First", RoutingNumber: "021000021"}, false},
		{"bank missing routing", BankTransferDetails{AccountHolder: "A", AccountNumber: "1234", BankName: "B"}, true},
		{"bank letters", BankTransferDetails{AccountHolder: "A", AccountNumber: "12AB34", BankName: "B", RoutingNumber: "1"}, true},
		{"paypal ok", PayPalDetails{Email: "driver@example.com"}, false},
		{"paypal bad email", PayPalDetails{Email: "not-an-email"}, true},
		{"card ok", CardDetails{CardholderName: "A", CardToken: "tok_abc123", Last4: "4242"}, false},
		{"card bad last4", CardDetails{CardholderName: "A", CardToken: "tok", Last4: "42"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.details.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidAccountDetails))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAccountDetails_Masked(t *testing.T) {
	bank := BankTransferDetails{AccountHolder: "A", AccountNumber: "000123456789", BankName: "B", RoutingNumber: "021000021"}
	masked := bank.Masked().(BankTransferDetails)
	assert.Equal(t, "********6789", masked.AccountNumber)
	assert.Equal(t, "*****0021", masked.RoutingNumber)
	assert.Equal(t, "000123456789", bank.AccountNumber, "original must be untouched")

	pp := PayPalDetails{Email: "driver@example.com"}.Masked().(PayPalDetails)
	assert.Equal(t, "d*****@example.com", pp.Email)

	card := CardDetails{CardToken: "tok_abc123"}.Masked().(CardDetails)
	assert.Equal(t, "******c123", card.CardToken)
}

func TestAccountDetails_Envelope(t *testing.T) {
	in := PayPalDetails{Email: "driver@example.com"}

	b, err := MarshalAccountDetails(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"paypal","details":{"email":"driver@example.com"}}`, string(b))

	out, err := UnmarshalAccountDetails(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = DecodeAccountDetails("crypto", []byte(`{}`))
	assert.True(t, errors.Is(err, ErrInvalidAccountDetails))
}

func TestFeeRule_Fee(t *testing.T) {
	r := FeeRule{Percentage: d("1.5"), Fixed: d("0.25")}
	assert.Equal(t, "3.25", r.Fee(d("200.00")).StringFixed(2))
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 15*time.Second, RetryDelay(0))
	assert.Equal(t, 15*time.Second, RetryDelay(1))
	assert.Equal(t, time.Minute, RetryDelay(2))
	assert.Equal(t, 10*time.Minute, RetryDelay(5))
	assert.Equal(t, 10*time.Minute, RetryDelay(9))
}

func TestReconciliationLine_Diff(t *testing.T) {
	totals := ReportTotals{TotalBookings: 2, TotalBookingAmount: d("100.00"), TotalCommissionAmount: d("10.00")}
	report := NewCommissionReport(time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC), totals)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), report.ReportDate)
	assert.Equal(t, "10.00", report.NetCommission.StringFixed(2))

	line := ReconciliationLine{Computed: totals, Persisted: report}
	line.Diff()
	assert.True(t, line.Matches())

	line.Computed.TotalBookings = 3
	line.Diff()
	assert.False(t, line.Matches())
	assert.Equal(t, []string{"total_bookings"}, line.Mismatches)
}
