package integration

import (
	"net/http"
	"testing"
	"time"

	"ride-ledger/internal/core/domain"
	"ride-ledger/internal/core/ports"
	"ride-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idStatus struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)

	resp := app.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.status)

	app.redis.Close()
	resp = app.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.status)
}

func TestIntegration_WalletPaymentAndRefund(t *testing.T) {
	app := newTestApp(t)
	_, adminToken := app.login(t, ports.RoleAdmin)
	riderID, riderToken := app.login(t, ports.RoleRider)

	resp := app.call(t, http.MethodPost, "/api/v1/admin/commissions", adminToken, map[string]string{
		"type":       "booking",
		"percentage": "10",
	})
	require.Equal(t, http.StatusCreated, resp.status)

	resp = app.call(t, http.MethodPost, "/api/v1/wallet/recharge", riderToken, map[string]string{
		"amount":       "100.00",
		"external_ref": "ch_rider_1",
	})
	require.Equal(t, http.StatusCreated, resp.status)

	bookingID := app.booking(riderID, "40.00")
	resp = app.call(t, http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/payments", riderToken, map[string]interface{}{
		"amount":         "40.00",
		"payment_method": "wallet",
	})
	require.Equal(t, http.StatusCreated, resp.status)
	var paid struct {
		Payment domain.BookingPayment `json:"payment"`
	}
	decode(t, resp, &paid)
	assert.Equal(t, domain.PaymentStatusCompleted, paid.Payment.Status)
	assertMoney(t, "4.00", paid.Payment.AdminCommissionAmount)
	assertMoney(t, "36.00", paid.Payment.DriverEarningAmount)
	assertMoney(t, "60.00", app.balance(t, riderToken))

	// A second payment for the same booking is refused.
	resp = app.call(t, http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/payments", riderToken, map[string]interface{}{
		"amount":         "40.00",
		"payment_method": "wallet",
	})
	assert.Equal(t, http.StatusConflict, resp.status)
	assert.Equal(t, apperror.CodeAlreadyPaid, resp.ErrorCode)

	// Riders cannot refund themselves.
	refundPath := "/api/v1/admin/payments/" + paid.Payment.ID.String() + "/refund"
	resp = app.call(t, http.MethodPost, refundPath, riderToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = app.call(t, http.MethodPost, refundPath, adminToken, map[string]string{"amount": "15.00", "reason": "detour"})
	require.Equal(t, http.StatusCreated, resp.status)
	// 15.00 back minus the 1.50 commission share kept on the refunded part.
	assertMoney(t, "73.50", app.balance(t, riderToken))

	resp = app.call(t, http.MethodPost, refundPath, adminToken, map[string]string{"amount": "5.00"})
	assert.Equal(t, http.StatusConflict, resp.status, "a payment is refunded once")

	resp = app.call(t, http.MethodGet, "/api/v1/wallet/transactions", riderToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	var page struct {
		Items []domain.WalletTransaction `json:"items"`
		Total int64                      `json:"total"`
	}
	decode(t, resp, &page)
	assert.EqualValues(t, 3, page.Total)

	require.Eventually(t, func() bool {
		return len(app.audit.Entries()) == 2
	}, 2*time.Second, 10*time.Millisecond, "commission activation and refund are audited")
	actions := map[domain.AuditAction]string{}
	for _, e := range app.audit.Entries() {
		actions[e.Action] = e.ResourceID
	}
	assert.Equal(t, paid.Payment.ID.String(), actions[domain.AuditActionRefund])
	assert.Contains(t, actions, domain.AuditActionCommissionActivate)
}

func TestIntegration_CardPaymentSettledByWebhook(t *testing.T) {
	app := newTestApp(t)
	riderID, riderToken := app.login(t, ports.RoleRider)
	bookingID := app.booking(riderID, "25.00")

	resp := app.call(t, http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/payments", riderToken, map[string]interface{}{
		"amount":         "25.00",
		"payment_method": "card",
	})
	require.Equal(t, http.StatusCreated, resp.status)
	var created struct {
		Payment      domain.BookingPayment `json:"payment"`
		IntentID     string                `json:"intent_id"`
		ClientSecret string                `json:"client_secret"`
	}
	decode(t, resp, &created)
	assert.Equal(t, domain.PaymentStatusProcessing, created.Payment.Status)
	require.NotEmpty(t, created.IntentID)
	assert.NotEmpty(t, created.ClientSecret)

	object := map[string]string{"id": created.IntentID}
	resp = app.sendEvent(t, "evt_card_1", domain.EventPaymentSucceeded, object)
	require.Equal(t, http.StatusOK, resp.status)

	resp = app.sendEvent(t, "evt_card_1", domain.EventPaymentSucceeded, object)
	require.Equal(t, http.StatusOK, resp.status)
	var ack map[string]bool
	decode(t, resp, &ack)
	assert.True(t, ack["duplicate"])

	resp = app.call(t, http.MethodGet, "/api/v1/payments/"+created.Payment.ID.String(), riderToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	var payment domain.BookingPayment
	decode(t, resp, &payment)
	assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	assert.NotNil(t, payment.CompletedAt)

	// Card payments never touch the wallet.
	assertMoney(t, "0", app.balance(t, riderToken))
}

func TestIntegration_UnsignedWebhookRejected(t *testing.T) {
	app := newTestApp(t)
	resp := app.call(t, http.MethodPost, "/api/v1/webhooks/gateway", "", map[string]string{"id": "evt_x", "type": domain.EventPaymentSucceeded})
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, apperror.CodeInvalidSignature, resp.ErrorCode)
}

func TestIntegration_DriverWithdrawalLifecycle(t *testing.T) {
	app := newTestApp(t)
	_, adminToken := app.login(t, ports.RoleAdmin)
	driverID, driverToken := app.login(t, ports.RoleDriver)

	resp := app.call(t, http.MethodPost, "/api/v1/admin/users/"+driverID.String()+"/bonus", adminToken, map[string]string{
		"amount": "300.00",
		"note":   "weekly earnings",
	})
	require.Equal(t, http.StatusCreated, resp.status)

	resp = app.call(t, http.MethodPost, "/api/v1/withdrawal-methods", driverToken, map[string]interface{}{
		"method":          "paypal",
		"account_details": map[string]string{"email": "driver@example.com"},
		"is_default":      true,
	})
	require.Equal(t, http.StatusCreated, resp.status)
	var method idStatus
	decode(t, resp, &method)

	resp = app.call(t, http.MethodPost, "/api/v1/withdrawals", driverToken, map[string]interface{}{
		"amount":    "120.00",
		"method_id": method.ID,
	})
	require.Equal(t, http.StatusCreated, resp.status)
	var w idStatus
	decode(t, resp, &w)
	assert.Equal(t, string(domain.WithdrawalPending), w.Status)
	assertMoney(t, "180.00", app.balance(t, driverToken))

	resp = app.call(t, http.MethodPost, "/api/v1/withdrawals", driverToken, map[string]interface{}{
		"amount":    "20.00",
		"method_id": method.ID,
	})
	assert.Equal(t, http.StatusConflict, resp.status, "one withdrawal in flight at a time")

	resp = app.call(t, http.MethodGet, "/api/v1/admin/withdrawals?status=pending", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	var pending struct {
		Items []idStatus `json:"items"`
		Total int64      `json:"total"`
	}
	decode(t, resp, &pending)
	require.EqualValues(t, 1, pending.Total)
	require.Len(t, pending.Items, 1)
	assert.Equal(t, w.ID, pending.Items[0].ID)

	resp = app.call(t, http.MethodPost, "/api/v1/admin/withdrawals/"+w.ID.String()+"/approve", adminToken, map[string]string{"notes": "ok"})
	require.Equal(t, http.StatusOK, resp.status)

	n, err := app.worker.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	resp = app.call(t, http.MethodGet, "/api/v1/withdrawals/"+w.ID.String(), driverToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	decode(t, resp, &w)
	assert.Equal(t, string(domain.WithdrawalCompleted), w.Status)
	assertMoney(t, "180.00", app.balance(t, driverToken))

	// Other drivers cannot see it.
	_, otherToken := app.login(t, ports.RoleDriver)
	resp = app.call(t, http.MethodGet, "/api/v1/withdrawals/"+w.ID.String(), otherToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.status)
}

func TestIntegration_CancelReleasesFunds(t *testing.T) {
	app := newTestApp(t)
	_, adminToken := app.login(t, ports.RoleAdmin)
	driverID, driverToken := app.login(t, ports.RoleDriver)

	resp := app.call(t, http.MethodPost, "/api/v1/admin/users/"+driverID.String()+"/bonus", adminToken, map[string]string{"amount": "50.00"})
	require.Equal(t, http.StatusCreated, resp.status)

	resp = app.call(t, http.MethodPost, "/api/v1/withdrawals", driverToken, map[string]interface{}{
		"amount": "50.00",
		"method": "bank_transfer",
		"account_details": map[string]string{
			"account_holder": "Dana Driver",
			"account_number": "000123456789",
			"bank_name":      "First Bank",
			"routing_number": "021000021",
		},
	})
	require.Equal(t, http.StatusCreated, resp.status)
	var w idStatus
	decode(t, resp, &w)
	assertMoney(t, "0", app.balance(t, driverToken))

	resp = app.call(t, http.MethodPost, "/api/v1/withdrawals/"+w.ID.String()+"/cancel", driverToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assertMoney(t, "50.00", app.balance(t, driverToken))
}

func TestIntegration_AdminSurface(t *testing.T) {
	app := newTestApp(t)
	_, adminToken := app.login(t, ports.RoleAdmin)
	riderID, riderToken := app.login(t, ports.RoleRider)

	resp := app.call(t, http.MethodGet, "/api/v1/admin/withdrawals/queue", riderToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = app.call(t, http.MethodPost, "/api/v1/wallet/recharge", riderToken, map[string]string{"amount": "20.00", "external_ref": "ch_admin_1"})
	require.Equal(t, http.StatusCreated, resp.status)
	var wallet domain.Wallet
	decode(t, app.call(t, http.MethodGet, "/api/v1/wallet", riderToken, nil), &wallet)
	assert.Equal(t, riderID, wallet.UserID)

	resp = app.call(t, http.MethodGet, "/api/v1/admin/wallets/"+wallet.ID.String()+"/verify", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	var verify struct {
		Consistent bool `json:"consistent"`
	}
	decode(t, resp, &verify)
	assert.True(t, verify.Consistent)

	resp = app.call(t, http.MethodPut, "/api/v1/admin/wallets/"+wallet.ID.String()+"/status", adminToken, map[string]bool{"active": false})
	require.Equal(t, http.StatusOK, resp.status)

	bookingID := app.booking(riderID, "10.00")
	resp = app.call(t, http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/payments", riderToken, map[string]interface{}{
		"amount":         "10.00",
		"payment_method": "wallet",
	})
	assert.Equal(t, http.StatusConflict, resp.status, "inactive wallets cannot pay")

	today := time.Now().UTC().Format(time.DateOnly)
	resp = app.call(t, http.MethodPost, "/api/v1/admin/reports", adminToken, map[string]string{"date": today})
	require.Equal(t, http.StatusOK, resp.status)
	resp = app.call(t, http.MethodGet, "/api/v1/admin/reports/"+today, adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.status)
	resp = app.call(t, http.MethodGet, "/api/v1/admin/reconciliation?from="+today+"&to="+today, adminToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	var lines []domain.ReconciliationLine
	decode(t, resp, &lines)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Matches())
}
