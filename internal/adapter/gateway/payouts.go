package gateway

import (
	"context"
	"encoding/json"

	"ride-ledger/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PayoutGateway implements ports.PayoutGateway over the payout rail's REST API.
type PayoutGateway struct {
	api apiClient
}

func NewPayoutGateway(baseURL, apiKey string, client HTTPClient, log zerolog.Logger) *PayoutGateway {
	return &PayoutGateway{api: apiClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    client,
		log:     log.With().Str("rail", "payouts").Logger(),
	}}
}

func (g *PayoutGateway) Name() string { return "payouts-api" }

type payoutBody struct {
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Method      string          `json:"method"`
	Destination json.RawMessage `json:"destination"`
}

func (g *PayoutGateway) SendPayout(ctx context.Context, req ports.PayoutRequest) (*ports.PayoutReceipt, error) {
	dest, err := json.Marshal(req.Details)
	if err != nil {
		return nil, err
	}
	body := payoutBody{
		Reference:   req.PayoutID.String(),
		Amount:      req.Amount,
		Currency:    req.Currency,
		Method:      string(req.Method),
		Destination: dest,
	}
	var receipt ports.PayoutReceipt
	if err := g.api.post(ctx, "/v1/payouts", req.IdempotencyKey, body, &receipt); err != nil {
		return nil, err
	}
	if receipt.Status == "" {
		receipt.Status = ports.PayoutReceiptPending
	}
	return &receipt, nil
}
