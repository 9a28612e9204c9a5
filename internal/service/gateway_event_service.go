package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ride-ledger/internal/core/domain"
	"ride-ledger/internal/core/ports"
	"ride-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// eventDedupeTTL covers the redelivery window of both rails.
const eventDedupeTTL = 72 * time.Hour

// GatewayEventPayload is the signed body the payment and payout rails post.
type GatewayEventPayload struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object GatewayEventObject `json:"object"`
	} `json:"data"`
}

// GatewayEventObject is the subset of the event object the ledger reads.
type GatewayEventObject struct {
	ID               string `json:"id"`
	Reference        string `json:"reference,omitempty"`
	FailureReason    string `json:"failure_reason,omitempty"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error,omitempty"`
}

// GatewayEventServiceImpl implements ports.GatewayEventService.
type GatewayEventServiceImpl struct {
	sigSvc      ports.SignatureService
	secret      string
	tolerance   time.Duration
	deduper     ports.EventDeduper
	eventRepo   ports.GatewayEventRepository
	paymentRepo ports.BookingPaymentRepository
	payments    *BookingPaymentServiceImpl
	withdrawals *WithdrawalServiceImpl
	transactor  ports.DBTransactor
	publisher   ports.EventPublisher
	log         zerolog.Logger
	now         func() time.Time
}

// NewGatewayEventService creates a new GatewayEventServiceImpl.
func NewGatewayEventService(
	sigSvc ports.SignatureService,
	secret string,
	tolerance time.Duration,
	deduper ports.EventDeduper,
	eventRepo ports.GatewayEventRepository,
	paymentRepo ports.BookingPaymentRepository,
	payments *BookingPaymentServiceImpl,
	withdrawals *WithdrawalServiceImpl,
	transactor ports.DBTransactor,
	publisher ports.EventPublisher,
	log zerolog.Logger,
) *GatewayEventServiceImpl {
	return &GatewayEventServiceImpl{
		sigSvc:      sigSvc,
		secret:      secret,
		tolerance:   tolerance,
		deduper:     deduper,
		eventRepo:   eventRepo,
		paymentRepo: paymentRepo,
		payments:    payments,
		withdrawals: withdrawals,
		transactor:  transactor,
		publisher:   publisher,
		log:         log,
		now:         time.Now,
	}
}

// HandleEvent verifies, deduplicates and applies one gateway event. Each event id
// takes effect exactly once; redeliveries of a committed event return AlreadyProcessed.
func (s *GatewayEventServiceImpl) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	if err := s.sigSvc.VerifyHeader(s.secret, signatureHeader, payload, s.tolerance, s.now()); err != nil {
		s.log.Warn().Err(err).Msg("gateway event signature rejected")
		return apperror.ErrInvalidSignature()
	}

	var evt GatewayEventPayload
	if err := json.Unmarshal(payload, &evt); err != nil {
		return apperror.Validation("malformed event payload")
	}
	if evt.ID == "" || evt.Type == "" {
		return apperror.Validation("event id and type are required")
	}

	log := s.log.With().Str("event_id", evt.ID).Str("event_type", evt.Type).Logger()

	source, known := eventSource(evt.Type)
	if !known {
		log.Debug().Msg("ignoring unsupported gateway event")
		return nil
	}

	// Layer 1: Redis. A marker is only a hint; the committed event row decides.
	if s.deduper != nil {
		fresh, err := s.deduper.MarkSeen(ctx, evt.ID, eventDedupeTTL)
		if err != nil {
			log.Warn().Err(err).Msg("redis dedupe failed, falling through to DB")
		} else if !fresh {
			recorded, err := s.eventRepo.Exists(ctx, evt.ID)
			if err != nil {
				return apperror.InternalError(fmt.Errorf("lookup gateway event: %w", err))
			}
			if recorded {
				return apperror.ErrAlreadyProcessed()
			}
			log.Warn().Msg("event marker has no committed record, applying")
		}
	}

	events, err := s.apply(ctx, evt, source)
	if err != nil {
		if apperror.CodeOf(err) != apperror.CodeAlreadyProcessed {
			s.forget(ctx, evt.ID)
			log.Error().Err(err).Msg("gateway event failed")
		}
		return err
	}

	publishBestEffort(ctx, s.publisher, s.log, events...)
	log.Info().Str("object_id", evt.Data.Object.ID).Msg("gateway event applied")
	return nil
}

func (s *GatewayEventServiceImpl) apply(ctx context.Context, evt GatewayEventPayload, source string) ([]domain.LedgerEvent, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Layer 2: DB
	inserted, err := s.eventRepo.Insert(ctx, dbTx, &domain.GatewayEvent{
		EventID:    evt.ID,
		Source:     source,
		Type:       evt.Type,
		ObjectID:   evt.Data.Object.ID,
		ReceivedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record gateway event: %w", err))
	}
	if !inserted {
		return nil, apperror.ErrAlreadyProcessed()
	}

	events, err := s.dispatch(ctx, dbTx, evt)
	if err != nil {
		if apperror.CodeOf(err) != apperror.CodeAlreadyProcessed {
			return nil, err
		}
		// The object already reached a final state; keep the event record only.
		s.log.Info().Str("event_id", evt.ID).Msg("gateway event arrived after final state")
		events = nil
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return events, nil
}

func (s *GatewayEventServiceImpl) dispatch(ctx context.Context, tx pgx.Tx, evt GatewayEventPayload) ([]domain.LedgerEvent, error) {
	obj := evt.Data.Object

	switch evt.Type {
	case domain.EventPaymentSucceeded, domain.EventPaymentFailed:
		p, err := s.paymentRepo.GetByGatewayIntentForUpdate(ctx, tx, obj.ID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock payment by intent: %w", err))
		}
		if p == nil {
			return nil, apperror.ErrNotFound("payment")
		}
		if evt.Type == domain.EventPaymentSucceeded {
			err = s.payments.CompleteGatewayPayment(ctx, tx, p)
		} else {
			err = s.payments.FailGatewayPayment(ctx, tx, p, obj.failureReason())
		}
		if err != nil {
			return nil, err
		}
		return []domain.LedgerEvent{PaymentEvent(p)}, nil

	case domain.EventPayoutPaid, domain.EventPayoutFailed:
		payoutID, err := uuid.Parse(obj.Reference)
		if err != nil {
			return nil, apperror.Validation("payout event has no valid reference")
		}
		_, events, err := s.withdrawals.CompletePayoutTx(ctx, tx, domain.PayoutResult{
			PayoutID:         payoutID,
			ExternalPayoutID: obj.ID,
			Succeeded:        evt.Type == domain.EventPayoutPaid,
			FailureReason:    obj.failureReason(),
		})
		return events, err
	}

	// payment_method.attached / detached are recorded only.
	return nil, nil
}

func (s *GatewayEventServiceImpl) forget(ctx context.Context, eventID string) {
	if s.deduper == nil {
		return
	}
	if err := s.deduper.Forget(ctx, eventID); err != nil {
		s.log.Warn().Err(err).Str("event_id", eventID).Msg("failed to clear event marker")
	}
}

func (o GatewayEventObject) failureReason() string {
	if o.FailureReason != "" {
		return o.FailureReason
	}
	if o.LastPaymentError != nil {
		return o.LastPaymentError.Message
	}
	return ""
}

func eventSource(eventType string) (string, bool) {
	switch eventType {
	case domain.EventPaymentSucceeded, domain.EventPaymentFailed,
		domain.EventPaymentMethodAttached, domain.EventPaymentMethodDetached:
		return domain.GatewayEventSourcePayments, true
	case domain.EventPayoutPaid, domain.EventPayoutFailed:
		return domain.GatewayEventSourcePayouts, true
	}
	return "", false
}
