// Package poller consumes order events from Kafka so every storefront
// instance drops stale hand-off bundles and refreshes open history views,
// including for orders placed through another instance.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fjod/go_cart/storefront/internal/history"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const readBackoff = time.Second

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type HandoffInvalidator interface {
	Delete(ctx context.Context, userID string) error
}

type ViewRefresher interface {
	Refresh(userID string) error
}

type Poller struct {
	reader   messageReader
	handoffs HandoffInvalidator
	views    ViewRefresher
	log      *zap.Logger
}

func NewPoller(topic, groupID string, brokers []string, handoffs HandoffInvalidator, views ViewRefresher, log *zap.Logger) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
		MaxBytes:    10e6, // 10MB
	})
	return newPoller(reader, handoffs, views, log)
}

func newPoller(reader messageReader, handoffs HandoffInvalidator, views ViewRefresher, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{reader: reader, handoffs: handoffs, views: views, log: log}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.next(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn("read order event failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(readBackoff):
			}
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Warn("close order event reader", zap.Error(err))
	}
}

// next handles one message. Only read failures are returned; a bad message
// is logged and skipped.
func (p *Poller) next(ctx context.Context) error {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}
	if eventType(m) != orders.EventOrderPlaced {
		return nil
	}

	var event orders.OrderPlacedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.log.Warn("malformed order event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if event.UserID == "" {
		p.log.Warn("order event without user_id", zap.String("order_id", event.OrderID))
		return nil
	}

	log := p.log.With(zap.String("user_id", event.UserID), zap.String("order_id", event.OrderID))
	if err := p.handoffs.Delete(ctx, event.UserID); err != nil {
		log.Warn("drop hand-off after order event", zap.Error(err))
	}

	err = p.views.Refresh(event.UserID)
	switch {
	case err == nil:
		log.Debug("history refreshed after order event")
	case errors.Is(err, history.ErrNoView), errors.Is(err, history.ErrRateLimited):
	default:
		log.Warn("refresh history after order event", zap.Error(err))
	}
	return nil
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
