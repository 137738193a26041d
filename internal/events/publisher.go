// Package events publishes order lifecycle events to Kafka so downstream
// consumers (notification, reconciliation) can follow order state without
// polling.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/cinetick/cinetick/internal/domain"
	"github.com/cinetick/cinetick/pkg/logger"
)

const (
	TypeOrderCreated   = "order.created"
	TypeVoucherBound   = "order.voucher_bound"
	TypeOrderPaid      = "order.paid"
	TypeOrderCancelled = "order.cancelled"
	TypeOrderExpired   = "order.expired"
)

// Event is the wire shape written to the order events topic. Events are keyed
// by order id so one order's events land on one partition in order.
type Event struct {
	ID                string             `json:"id"`
	Type              string             `json:"type"`
	OccurredAt        time.Time          `json:"occurred_at"`
	TenantID          string             `json:"tenant_id"`
	AccountRef        string             `json:"account_ref"`
	CinemaID          string             `json:"cinema_id"`
	OrderID           string             `json:"order_id"`
	Status            domain.OrderStatus `json:"status"`
	VoucherCodeMask   string             `json:"voucher_code_mask,omitempty"`
	PayablePriceCents int64              `json:"payable_price_cents,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type kafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	l        logger.Logger
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string, l logger.Logger) Publisher {
	return &kafkaPublisher{producer: producer, topic: topic, l: l}
}

func (p *kafkaPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.OrderID),
		Value: sarama.ByteEncoder(value),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.l.Errorf(ctx, "publish %s for order %s failed: %v", ev.Type, ev.OrderID, err)
		return err
	}
	p.l.Debugf(ctx, "published %s for order %s to %s[%d]@%d", ev.Type, ev.OrderID, p.topic, partition, offset)
	return nil
}

type nopPublisher struct{}

// NewNopPublisher returns a publisher that drops every event. Used when Kafka
// is disabled in config.
func NewNopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, Event) error { return nil }
