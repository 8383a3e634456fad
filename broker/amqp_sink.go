package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yeremiapane/food-delivery/services"
	"github.com/yeremiapane/food-delivery/utils"
)

const OrderEventsExchange = "order_events"

// Channel is the part of *amqp.Channel the sink needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink forwards order events to a fanout exchange for consumers outside the API.
type AMQPSink struct {
	conn    *amqp.Connection
	channel Channel
	timeout time.Duration
}

// Dial connects and declares the exchange.
func Dial(url string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	sink, err := NewAMQPSink(ch)
	if err != nil {
		conn.Close()
		return nil, err
	}
	sink.conn = conn
	return sink, nil
}

func NewAMQPSink(ch Channel) (*AMQPSink, error) {
	err := ch.ExchangeDeclare(
		OrderEventsExchange, // name
		"fanout",            // type
		true,                // durable
		false,               // auto-deleted
		false,               // internal
		false,               // no-wait
		nil,                 // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &AMQPSink{channel: ch, timeout: 5 * time.Second}, nil
}

// EncodeEvent builds the message for an order event. MessageId is stable per
// (order, kind, status) so consumers can drop redeliveries.
func EncodeEvent(ev services.OrderEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("%d:%s:%s", ev.OrderID, ev.Kind, ev.NewStatus),
		Type:         string(ev.Kind),
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}, nil
}

func (s *AMQPSink) HandleOrderEvent(ctx context.Context, ev services.OrderEvent) error {
	msg, err := EncodeEvent(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.channel.PublishWithContext(ctx, OrderEventsExchange, "", false, false, msg); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	if err := s.channel.Close(); err != nil {
		utils.ErrorLogger.Printf("Error closing AMQP channel: %v", err)
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
