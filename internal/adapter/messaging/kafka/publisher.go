// Package kafka publishes committed ledger changes to downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ride-ledger/config"
	"ride-ledger/internal/core/domain"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher implements ports.EventPublisher on a Kafka topic. Messages are keyed
// by aggregate id so one wallet or withdrawal stays ordered within a partition.
type Publisher struct {
	writer messageWriter
	log    zerolog.Logger
}

// NewWriter builds the kafka-go writer for cfg.
func NewWriter(cfg config.KafkaConfig, log zerolog.Logger) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		MaxAttempts:  3,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Compression:  kafkago.Snappy,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			log.Warn().Str("component", "kafka").Msg(fmt.Sprintf(msg, args...))
		}),
	}
}

func NewPublisher(writer messageWriter, log zerolog.Logger) *Publisher {
	return &Publisher{writer: writer, log: log}
}

func (p *Publisher) Publish(ctx context.Context, events ...domain.LedgerEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode ledger event: %w", err)
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(e.AggregateID.String()),
			Value: value,
			Time:  e.OccurredAt,
			Headers: []kafkago.Header{
				{Key: "event_type", Value: []byte(e.Type)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write ledger events: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// LogPublisher implements ports.EventPublisher by logging each event. Used when
// no brokers are configured.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, events ...domain.LedgerEvent) error {
	for _, e := range events {
		p.log.Info().
			Str("event_id", e.ID.String()).
			Str("event_type", string(e.Type)).
			Str("aggregate_id", e.AggregateID.String()).
			Str("amount", e.Amount.StringFixed(2)).
			Str("status", e.Status).
			Msg("ledger event")
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }
