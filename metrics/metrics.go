package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OrderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Order status transition attempts by target status and result",
		},
		[]string{"to", "result"},
	)

	DeliveryClaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_claims_total",
			Help: "Delivery claim attempts by result",
		},
		[]string{"result"},
	)

	OrderEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_events_published_total",
			Help: "Order events handed to subscribers",
		},
		[]string{"kind"},
	)

	OrderEventFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_event_failures_total",
			Help: "Subscriber failures while handling an order event",
		},
		[]string{"subscriber"},
	)

	NotificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Notification rows created by type",
		},
		[]string{"type"},
	)

	NotificationsDeduplicated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_deduplicated_total",
			Help: "Notification writes skipped because the idempotency key already existed",
		},
	)

	PushesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "live_pushes_delivered_total",
			Help: "Messages queued to a live connection",
		},
	)

	PushesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "live_pushes_dropped_total",
			Help: "Messages dropped because a live connection was too slow",
		},
	)

	LiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_connections",
			Help: "Authenticated live connections on this instance",
		},
	)

	SessionsRevoked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_revoked_total",
			Help: "Session tokens revoked by reason",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		OrderTransitions,
		DeliveryClaims,
		OrderEventsPublished,
		OrderEventFailures,
		NotificationsCreated,
		NotificationsDeduplicated,
		PushesDelivered,
		PushesDropped,
		LiveConnections,
		SessionsRevoked,
	)
}
