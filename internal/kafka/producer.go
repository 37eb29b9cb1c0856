// Package kafka streams payment lifecycle events to the host platform's
// message broker.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-payments/internal/config"
	"ms-payments/internal/logger"
	"ms-payments/internal/models"
)

// Event types carried in PaymentEvent payloads.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
)

// Producer publishes payment events, one topic per outcome.
type Producer struct {
	writer *kafka.Writer
	topics config.TopicConfig
	log    *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{writer: writer, topics: topics, log: log}
}

// PublishPaymentSucceeded streams a successful charge.
func (p *Producer) PublishPaymentSucceeded(order *models.Order, provider, reference string) error {
	return p.publish(p.topics.PaymentSuccess, models.PaymentEvent{
		Type:      EventPaymentSucceeded,
		OrderID:   order.OrderID,
		EventID:   order.EventID,
		Provider:  provider,
		Reference: reference,
		Timestamp: time.Now().UTC(),
	})
}

// PublishPaymentFailed streams a declined or faulted charge attempt.
func (p *Producer) PublishPaymentFailed(order *models.Order, provider, message string) error {
	return p.publish(p.topics.PaymentFailed, models.PaymentEvent{
		Type:      EventPaymentFailed,
		OrderID:   order.OrderID,
		EventID:   order.EventID,
		Provider:  provider,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// PublishPaymentRefunded streams a completed refund or void.
func (p *Producer) PublishPaymentRefunded(order *models.Order, provider string) error {
	return p.publish(p.topics.PaymentRefunded, models.PaymentEvent{
		Type:      EventPaymentRefunded,
		OrderID:   order.OrderID,
		EventID:   order.EventID,
		Provider:  provider,
		Timestamp: time.Now().UTC(),
	})
}

func (p *Producer) publish(topic string, event models.PaymentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshal %s event: %w", event.Type, err)
	}

	p.log.Info("KAFKA", fmt.Sprintf("Publishing %s for order %s to %s", event.Type, event.OrderID, topic))
	return p.writer.WriteMessages(context.Background(), kafka.Message{
		Topic: topic,
		Key:   []byte(event.OrderID),
		Value: payload,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
