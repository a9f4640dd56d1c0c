package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/baraholka/storefront/internal/models"
)

// Producer publishes audit records of operator actions to Kafka. Emission is
// best-effort at call sites; the producer itself reports errors so they can
// be logged.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
		},
	}
}

func (p *Producer) Emit(ctx context.Context, rec models.AuditRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: marshal record: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.Actor),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("audit: publish %s: %w", rec.Action, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
