package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/food-delivery/metrics"
	"github.com/yeremiapane/food-delivery/models"
	"github.com/yeremiapane/food-delivery/utils"
)

type EventKind string

const (
	EventStatusChanged    EventKind = "status_changed"
	EventDeliveryAssigned EventKind = "delivery_assigned"
)

// OrderEvent is the canonical record handed to every subscriber.
type OrderEvent struct {
	Kind              EventKind          `json:"kind"`
	OrderID           uint               `json:"order_id"`
	ClientID          uint               `json:"client_id"`
	RestaurantID      uint               `json:"restaurant_id"`
	OperatorIDs       []uint             `json:"operator_ids"`
	DeliveryPartnerID *uint              `json:"delivery_partner_id,omitempty"`
	OldStatus         models.OrderStatus `json:"old_status"`
	NewStatus         models.OrderStatus `json:"new_status"`
	Order             models.Order       `json:"order"`
	OccurredAt        time.Time          `json:"occurred_at"`
}

// Recipients returns the affected user ids without duplicates.
// A delivery-assigned event only goes to the client.
func (e OrderEvent) Recipients() []uint {
	seen := make(map[uint]struct{})
	var out []uint
	add := func(id uint) {
		if id == 0 {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	add(e.ClientID)
	if e.Kind == EventDeliveryAssigned {
		return out
	}
	for _, op := range e.OperatorIDs {
		add(op)
	}
	if e.DeliveryPartnerID != nil {
		add(*e.DeliveryPartnerID)
	}
	return out
}

type EventSubscriber interface {
	HandleOrderEvent(ctx context.Context, ev OrderEvent) error
}

type namedSubscriber struct {
	name string
	sub  EventSubscriber
}

// StatusEventPublisher fans a committed order change in to its subscribers.
// Subscriber failures are logged and never reach the caller.
type StatusEventPublisher struct {
	mu          sync.RWMutex
	subscribers []namedSubscriber
}

func NewStatusEventPublisher() *StatusEventPublisher {
	return &StatusEventPublisher{}
}

func (p *StatusEventPublisher) Subscribe(name string, sub EventSubscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, namedSubscriber{name: name, sub: sub})
}

// Publish emits a status change. It returns how many subscribers failed, for logging and tests.
func (p *StatusEventPublisher) Publish(ctx context.Context, order models.Order, oldStatus, newStatus models.OrderStatus) int {
	return p.dispatch(ctx, newEvent(EventStatusChanged, order, oldStatus, newStatus))
}

func (p *StatusEventPublisher) PublishAssigned(ctx context.Context, order models.Order) int {
	return p.dispatch(ctx, newEvent(EventDeliveryAssigned, order, order.Status, order.Status))
}

func newEvent(kind EventKind, order models.Order, oldStatus, newStatus models.OrderStatus) OrderEvent {
	ev := OrderEvent{
		Kind:              kind,
		OrderID:           order.ID,
		ClientID:          order.ClientID,
		RestaurantID:      order.RestaurantID,
		DeliveryPartnerID: order.DeliveryPartnerID,
		OldStatus:         oldStatus,
		NewStatus:         newStatus,
		Order:             order,
		OccurredAt:        order.UpdatedAt,
	}
	if order.Restaurant.OperatorID != 0 {
		ev.OperatorIDs = []uint{order.Restaurant.OperatorID}
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	return ev
}

func (p *StatusEventPublisher) dispatch(ctx context.Context, ev OrderEvent) int {
	p.mu.RLock()
	subs := make([]namedSubscriber, len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.RUnlock()

	metrics.OrderEventsPublished.WithLabelValues(string(ev.Kind)).Inc()

	failed := 0
	for _, s := range subs {
		if err := s.sub.HandleOrderEvent(ctx, ev); err != nil {
			failed++
			metrics.OrderEventFailures.WithLabelValues(s.name).Inc()
			utils.ErrorLogger.WithFields(logrus.Fields{
				"subscriber": s.name,
				"order_id":   ev.OrderID,
				"kind":       ev.Kind,
				"new_status": ev.NewStatus,
			}).Errorf("order event delivery failed: %v", err)
		}
	}
	return failed
}
