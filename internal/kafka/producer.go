package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// PurchaseEvent is the payload published to the notifications topic when an
// admin decision lands. The worker turns purchase_approved events into
// buyer emails.
type PurchaseEvent struct {
	Type          string   `json:"type"`
	PurchaseID    int64    `json:"purchase_id"`
	Reference     string   `json:"reference"`
	EventID       int64    `json:"event_id"`
	FullName      string   `json:"full_name"`
	Email         string   `json:"email"`
	Method        string   `json:"method"`
	PriceCents    int64    `json:"price_cents"`
	MaskedNumbers []string `json:"masked_numbers"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
