package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ride-ledger/config"
	"ride-ledger/internal/adapter/gateway"
	httpHandler "ride-ledger/internal/adapter/http/handler"
	"ride-ledger/internal/adapter/messaging/kafka"
	"ride-ledger/internal/adapter/storage/memory"
	redisStorage "ride-ledger/internal/adapter/storage/redis"
	"ride-ledger/internal/core/domain"
	"ride-ledger/internal/core/ports"
	"ride-ledger/internal/service"
	"ride-ledger/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "whsec_integration"

func init() {
	gin.SetMode(gin.TestMode)
}

// testApp is the full stack over the in-process store, miniredis and the
// sandbox rails, served by a real HTTP server.
type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
	store  *memory.Store
	audit  *memory.AuditRepo
	tokens *service.JWTTokenService
	sigSvc *service.HMACSignatureService
	worker *service.SettlementWorker
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	log := logger.New("error", false)
	store := memory.NewStore()
	transactor := memory.NewTransactor(store)
	walletRepo := memory.NewWalletRepo(store)
	walletTxRepo := memory.NewWalletTransactionRepo(store)
	bookingRepo := memory.NewBookingRepo(store)
	paymentRepo := memory.NewBookingPaymentRepo(store)
	commissionRepo := memory.NewCommissionTransactionRepo(store)
	jobRepo := memory.NewSettlementJobRepo(store)
	auditRepo := memory.NewAuditRepo(store)

	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService("integration-jwt-secret-32-bytes!!", "ride-platform")

	publisher := kafka.NewLogPublisher(log)
	payGateway := gateway.NewSandboxPaymentGateway(log)
	rail := gateway.NewSandboxPayoutGateway(log)

	limits := service.NewLimitEnforcer(walletRepo, walletTxRepo)
	ledger := service.NewLedgerService(walletRepo, walletTxRepo, limits, transactor, publisher, log)
	walletSvc := service.NewWalletService(walletRepo, walletTxRepo, ledger, config.WalletConfig{
		Currency:            "USD",
		DefaultDailyLimit:   1000,
		DefaultMonthlyLimit: 10000,
	}, log)
	commissionSvc := service.NewCommissionService(memory.NewCommissionSettingRepo(store), redisStorage.NewCommissionCache(rdb), time.Minute, transactor, log)
	paymentSvc := service.NewBookingPaymentService(bookingRepo, paymentRepo, commissionRepo, commissionSvc, walletSvc, ledger, payGateway, transactor, publisher, log)
	refundSvc := service.NewRefundService(bookingRepo, paymentRepo, commissionRepo, walletSvc, ledger, payGateway, transactor, publisher, log)
	withdrawalSvc := service.NewWithdrawalService(
		memory.NewWithdrawalRepo(store),
		memory.NewWithdrawalMethodRepo(store),
		memory.NewPayoutRepo(store),
		jobRepo,
		commissionRepo,
		walletRepo,
		commissionSvc,
		walletSvc,
		ledger,
		rail,
		transactor,
		publisher,
		service.NewWithdrawalLimits(config.WithdrawalConfig{MinAmount: 10, MaxAmount: 5000, DailyLimit: 5000, MonthlyLimit: 20000}),
		service.NewFeeSchedule(config.FeeSchedule{}),
		log,
	)
	reportingSvc := service.NewReportingService(memory.NewReportRepo(store), walletRepo, walletTxRepo, log)
	eventSvc := service.NewGatewayEventService(
		sigSvc,
		webhookSecret,
		5*time.Minute,
		redisStorage.NewEventDeduper(rdb),
		memory.NewGatewayEventRepo(store),
		paymentRepo,
		paymentSvc,
		withdrawalSvc,
		transactor,
		publisher,
		log,
	)
	worker := service.NewSettlementWorker(jobRepo, withdrawalSvc, rail, reportingSvc, transactor, service.WorkerSettings{
		MaxAttempts: 3,
		Currency:    "USD",
	}, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		PaymentSvc:     paymentSvc,
		RefundSvc:      refundSvc,
		WithdrawalSvc:  withdrawalSvc,
		CommissionSvc:  commissionSvc,
		ReportingSvc:   reportingSvc,
		EventSvc:       eventSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		HealthCheckers: []ports.HealthChecker{memory.NewHealthCheck(), redisStorage.NewHealthCheck(rdb)},
		AuditSvc:       service.NewAuditService(auditRepo, log),
		Logger:         log,
	})

	app := &testApp{
		server: httptest.NewServer(router),
		redis:  mr,
		store:  store,
		audit:  auditRepo,
		tokens: tokenSvc,
		sigSvc: sigSvc,
		worker: worker,
	}
	t.Cleanup(app.close)
	return app
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

// login mints a token for a new user with role.
func (a *testApp) login(t *testing.T, role string) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	token, _, err := a.tokens.Generate(id, role, time.Hour)
	require.NoError(t, err)
	return id, token
}

// booking registers an unpaid booking owned by riderID.
func (a *testApp) booking(riderID uuid.UUID, total string) uuid.UUID {
	driverID := uuid.New()
	b := domain.Booking{
		ID:            uuid.New(),
		UserID:        riderID,
		DriverID:      &driverID,
		TotalAmount:   decimal.RequireFromString(total),
		Currency:      "USD",
		PaymentStatus: domain.BookingUnpaid,
		UpdatedAt:     time.Now().UTC(),
	}
	a.store.PutBooking(b)
	return b.ID
}

type apiResponse struct {
	status    int
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
}

func (a *testApp) call(t *testing.T, method, path, token string, body interface{}) apiResponse {
	t.Helper()
	resp, err := a.do(method, path, token, body)
	require.NoError(t, err)
	return resp
}

// do is call without assertions so it can run on worker goroutines.
func (a *testApp) do(method, path, token string, body interface{}) (apiResponse, error) {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return apiResponse{}, err
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, a.server.URL+path, r)
	if err != nil {
		return apiResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	httpResp, err := http.DefaultClient.Do(req)
	if err != nil {
		return apiResponse{}, err
	}
	defer httpResp.Body.Close()

	var out apiResponse
	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return apiResponse{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return apiResponse{}, err
		}
	}
	out.status = httpResp.StatusCode
	return out, nil
}

// postEvent posts a signed gateway event.
func (a *testApp) postEvent(eventID, eventType string, object map[string]string) (apiResponse, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"id":      eventID,
		"type":    eventType,
		"created": time.Now().Unix(),
		"data":    map[string]interface{}{"object": object},
	})
	if err != nil {
		return apiResponse{}, err
	}

	req, err := http.NewRequest(http.MethodPost, a.server.URL+"/api/v1/webhooks/gateway", bytes.NewReader(payload))
	if err != nil {
		return apiResponse{}, err
	}
	req.Header.Set(httpHandler.HeaderGatewaySignature, a.sigSvc.Header(webhookSecret, time.Now().Unix(), payload))
	httpResp, err := http.DefaultClient.Do(req)
	if err != nil {
		return apiResponse{}, err
	}
	defer httpResp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return apiResponse{}, err
	}
	out.status = httpResp.StatusCode
	return out, nil
}

func (a *testApp) sendEvent(t *testing.T, eventID, eventType string, object map[string]string) apiResponse {
	t.Helper()
	resp, err := a.postEvent(eventID, eventType, object)
	require.NoError(t, err)
	return resp
}

func unmarshal(resp apiResponse, v interface{}) error {
	return json.Unmarshal(resp.Data, v)
}

func decode(t *testing.T, resp apiResponse, v interface{}) {
	t.Helper()
	require.NoError(t, unmarshal(resp, v))
}

func (a *testApp) balance(t *testing.T, token string) decimal.Decimal {
	t.Helper()
	resp := a.call(t, http.MethodGet, "/api/v1/wallet", token, nil)
	require.Equal(t, http.StatusOK, resp.status)
	var w domain.Wallet
	decode(t, resp, &w)
	return w.Balance
}
