package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/segmentio/kafka-go"
)

const EventOrderPlaced = "order.placed"

// Publisher announces completed placements. Delivery is best effort.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, order *domain.OrderRecord) error
	Close() error
}

type OrderPlacedEvent struct {
	OrderID       string               `json:"order_id"`
	UserID        string               `json:"user_id"`
	Items         int                  `json:"items"`
	FinalAmount   string               `json:"final_amount"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	PlacedAt      time.Time            `json:"placed_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishOrderPlaced(ctx context.Context, order *domain.OrderRecord) error {
	payload, err := json.Marshal(OrderPlacedEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		Items:         len(order.Items),
		FinalAmount:   order.FinalAmount,
		PaymentMethod: order.PaymentMethod,
		PlacedAt:      order.OrderDate,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.ID), // order_id for ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderPlaced)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type NopPublisher struct{}

func (NopPublisher) PublishOrderPlaced(context.Context, *domain.OrderRecord) error { return nil }
func (NopPublisher) Close() error                                                  { return nil }
