package gateway

import (
	"context"
	"strings"
	"sync"

	"ride-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SandboxPaymentGateway answers locally. Intents stay open until a signed event
// settles them; refunds succeed. Repeated idempotency keys replay the first answer.
type SandboxPaymentGateway struct {
	mu      sync.Mutex
	intents map[string]ports.PaymentIntent
	refunds map[string]ports.GatewayRefund
	log     zerolog.Logger
}

func NewSandboxPaymentGateway(log zerolog.Logger) *SandboxPaymentGateway {
	return &SandboxPaymentGateway{
		intents: make(map[string]ports.PaymentIntent),
		refunds: make(map[string]ports.GatewayRefund),
		log:     log.With().Str("rail", "payments-sandbox").Logger(),
	}
}

func (g *SandboxPaymentGateway) CreateIntent(ctx context.Context, req ports.PaymentIntentRequest) (*ports.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if intent, ok := g.intents[req.IdempotencyKey]; ok {
		return &intent, nil
	}
	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	intent := ports.PaymentIntent{
		ID:           id,
		Status:       "requires_confirmation",
		ClientSecret: id + "_secret",
	}
	g.intents[req.IdempotencyKey] = intent
	g.log.Info().Str("intent_id", id).Str("amount", req.Amount.StringFixed(2)).Msg("sandbox intent created")
	return &intent, nil
}

func (g *SandboxPaymentGateway) Refund(ctx context.Context, req ports.GatewayRefundRequest) (*ports.GatewayRefund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if refund, ok := g.refunds[req.IdempotencyKey]; ok {
		return &refund, nil
	}
	refund := ports.GatewayRefund{
		ID:     "re_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Status: "succeeded",
	}
	g.refunds[req.IdempotencyKey] = refund
	g.log.Info().Str("intent_id", req.IntentID).Str("amount", req.Amount.StringFixed(2)).Msg("sandbox refund issued")
	return &refund, nil
}

// SandboxPayoutGateway pays every payout immediately.
type SandboxPayoutGateway struct {
	mu       sync.Mutex
	receipts map[string]ports.PayoutReceipt
	log      zerolog.Logger
}

func NewSandboxPayoutGateway(log zerolog.Logger) *SandboxPayoutGateway {
	return &SandboxPayoutGateway{
		receipts: make(map[string]ports.PayoutReceipt),
		log:      log.With().Str("rail", "payouts-sandbox").Logger(),
	}
}

func (g *SandboxPayoutGateway) Name() string { return "sandbox" }

func (g *SandboxPayoutGateway) SendPayout(ctx context.Context, req ports.PayoutRequest) (*ports.PayoutReceipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if receipt, ok := g.receipts[req.IdempotencyKey]; ok {
		return &receipt, nil
	}
	receipt := ports.PayoutReceipt{
		ExternalID: "po_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Status:     ports.PayoutReceiptPaid,
	}
	g.receipts[req.IdempotencyKey] = receipt
	g.log.Info().
		Str("payout_id", req.PayoutID.String()).
		Str("method", string(req.Method)).
		Str("amount", req.Amount.StringFixed(2)).
		Msg("sandbox payout paid")
	return &receipt, nil
}
