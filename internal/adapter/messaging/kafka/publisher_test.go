package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"ride-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublisher_Publish_KeysByAggregate(t *testing.T) {
	w := &fakeWriter{}
	pub := NewPublisher(w, zerolog.Nop())
	walletID := uuid.New()

	e := domain.NewLedgerEvent(domain.LedgerWalletTransaction, walletID, uuid.New(), decimal.RequireFromString("12.50"), "completed")
	require.NoError(t, pub.Publish(context.Background(), e))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, walletID.String(), string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "wallet.transaction.completed", string(msg.Headers[0].Value))

	var decoded domain.LedgerEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.True(t, decoded.Amount.Equal(e.Amount))

	require.NoError(t, pub.Close())
	assert.True(t, w.closed)
}

func TestPublisher_Publish_Empty(t *testing.T) {
	w := &fakeWriter{err: errors.New("must not be called")}
	assert.NoError(t, NewPublisher(w, zerolog.Nop()).Publish(context.Background()))
}

func TestPublisher_Publish_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	pub := NewPublisher(w, zerolog.Nop())

	err := pub.Publish(context.Background(), domain.NewLedgerEvent(domain.LedgerPayoutSettled, uuid.New(), uuid.New(), decimal.NewFromInt(1), "completed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestLogPublisher_Publish(t *testing.T) {
	var buf bytes.Buffer
	pub := NewLogPublisher(zerolog.New(&buf))

	e := domain.NewLedgerEvent(domain.LedgerWithdrawalUpdated, uuid.New(), uuid.New(), decimal.RequireFromString("40"), "approved")
	require.NoError(t, pub.Publish(context.Background(), e))

	assert.Contains(t, buf.String(), `"event_type":"withdrawal.status_changed"`)
	assert.Contains(t, buf.String(), `"amount":"40.00"`)
	assert.NoError(t, pub.Close())
}
