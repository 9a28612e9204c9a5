package gateway

import (
	"context"

	"ride-ledger/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PaymentGateway implements ports.PaymentGateway over the card rail's REST API.
type PaymentGateway struct {
	api apiClient
}

func NewPaymentGateway(baseURL, apiKey string, client HTTPClient, log zerolog.Logger) *PaymentGateway {
	return &PaymentGateway{api: apiClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    client,
		log:     log.With().Str("rail", "payments").Logger(),
	}}
}

type intentBody struct {
	Amount   decimal.Decimal   `json:"amount"`
	Currency string            `json:"currency"`
	Method   string            `json:"payment_method_type"`
	Customer string            `json:"customer"`
	Metadata map[string]string `json:"metadata"`
}

func (g *PaymentGateway) CreateIntent(ctx context.Context, req ports.PaymentIntentRequest) (*ports.PaymentIntent, error) {
	body := intentBody{
		Amount:   req.Amount,
		Currency: req.Currency,
		Method:   string(req.Method),
		Customer: req.CustomerID.String(),
		Metadata: map[string]string{"payment_id": req.PaymentID.String()},
	}
	var intent ports.PaymentIntent
	if err := g.api.post(ctx, "/v1/payment_intents", req.IdempotencyKey, body, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

type refundBody struct {
	PaymentIntent string          `json:"payment_intent"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reason        string          `json:"reason,omitempty"`
}

func (g *PaymentGateway) Refund(ctx context.Context, req ports.GatewayRefundRequest) (*ports.GatewayRefund, error) {
	body := refundBody{
		PaymentIntent: req.IntentID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Reason:        req.Reason,
	}
	var refund ports.GatewayRefund
	if err := g.api.post(ctx, "/v1/refunds", req.IdempotencyKey, body, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}
