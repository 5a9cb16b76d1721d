package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pear/internal/models"
	"pear/pkg/logging"

	"github.com/google/uuid"
)

// EventPublisher delivers order events to the outside world.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

// Broker sends an encoded message under a key. Both the RabbitMQ client
// (key = routing key) and the Kafka producer (key = record key) fit.
type Broker interface {
	Publish(ctx context.Context, key string, body []byte) error
}

// BrokerPublisher encodes events as JSON and hands them to a Broker.
type BrokerPublisher struct {
	broker Broker
	key    func(models.OrderEvent) string
}

// NewBrokerPublisher creates a BrokerPublisher. key picks the broker key of
// each event.
func NewBrokerPublisher(broker Broker, key func(models.OrderEvent) string) *BrokerPublisher {
	return &BrokerPublisher{broker: broker, key: key}
}

// RouteByType keys events by their type, for topic exchanges.
func RouteByType(event models.OrderEvent) string { return event.Type }

// KeyByOrder keys events by order id so one order stays on one partition.
func KeyByOrder(event models.OrderEvent) string { return event.OrderID }

func (p *BrokerPublisher) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}
	return p.broker.Publish(ctx, p.key(event), body)
}

// NewOrderEvent builds the envelope for order. update is nil for
// order.created.
func NewOrderEvent(eventType string, order *models.Order, update *models.StatusUpdate) models.OrderEvent {
	event := models.OrderEvent{
		EventID:        uuid.New().String(),
		Type:           eventType,
		OrderID:        order.ID,
		Total:          order.TotalPrice,
		Mode:           order.Mode,
		DeliveryOption: order.DeliveryOption,
		CreatedAt:      time.Now().UTC(),
	}
	if update != nil {
		event.Status = update.Status.String()
		event.Message = update.Message
	}
	return event
}

// HandleOrderEvent decodes a consumed event and records it in the log as a
// customer notification.
func HandleOrderEvent(body []byte) error {
	var event models.OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("failed to decode order event: %w", err)
	}
	if event.Type == "" || event.OrderID == "" {
		return fmt.Errorf("order event %q is missing type or order id", event.EventID)
	}
	logging.Log(logging.Fields{
		Service: "notifications",
		OrderID: event.OrderID,
		EventID: event.EventID,
		Step:    event.Type,
		Status:  event.Status,
		Message: event.Message,
	})
	return nil
}
