package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/yeremiapane/food-delivery/services"
)

const DefaultOrderEventsTopic = "food-delivery.order-events"

// Producer is the part of *kgo.Client the sink needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaSink writes order events to a topic keyed by order id, so one order's
// events stay ordered within a partition.
type KafkaSink struct {
	producer Producer
	topic    string
	timeout  time.Duration
}

func DialKafka(brokers []string, topic string) (*KafkaSink, error) {
	if topic == "" {
		topic = DefaultOrderEventsTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return NewKafkaSink(client, topic), nil
}

func NewKafkaSink(p Producer, topic string) *KafkaSink {
	if topic == "" {
		topic = DefaultOrderEventsTopic
	}
	return &KafkaSink{producer: p, topic: topic, timeout: 5 * time.Second}
}

func (s *KafkaSink) HandleOrderEvent(ctx context.Context, ev services.OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	rec := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(strconv.FormatUint(uint64(ev.OrderID), 10)),
		Value: body,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(ev.Kind)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce order event: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() {
	s.producer.Close()
}
