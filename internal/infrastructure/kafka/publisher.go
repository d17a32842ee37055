package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ignatzorin/escrow-backend/internal/domain/port"
)

// messageWriter — часть kafka.Writer, которой пользуется издатель.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EscrowEventPublisher публикует события сделок в Kafka. Ключ сообщения — id сделки,
// поэтому события одной сделки попадают в одну партицию и сохраняют порядок.
type EscrowEventPublisher struct {
	writer messageWriter
}

func NewEscrowEventPublisher(brokers []string, topic string) *EscrowEventPublisher {
	return &EscrowEventPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

var _ port.Notifier = (*EscrowEventPublisher)(nil)

func (p *EscrowEventPublisher) Notify(ctx context.Context, event port.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.TransactionID.String()),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *EscrowEventPublisher) Close() error {
	return p.writer.Close()
}
