package hub

import "github.com/yeremiapane/food-delivery/models"

// Message types on the live channel.
const (
	TypeAuthenticate  = "authenticate"
	TypeAuthenticated = "authenticated"
	TypeError         = "error"

	EventStatusUpdated    = "status_updated"
	EventOrderConfirmed   = "order_confirmed"
	EventDeliveryAssigned = "delivery_assigned"
)

// Error codes sent before the server closes a connection.
const (
	CodeBadHandshake = "bad_handshake"
	CodeUnauthorized = "unauthorized"
	CodeTokenRevoked = "token_revoked"
	CodeUnavailable  = "unavailable"
)

// Close codes in the application range.
const (
	CloseTokenRevoked = 4001
	CloseUnauthorized = 4003
)

// AuthRequest is the first frame a client must send.
type AuthRequest struct {
	Type   string `json:"type"`
	UserID uint   `json:"userId"`
	Token  string `json:"token"`
}

type Message struct {
	Type string      `json:"type"`
	Code string      `json:"code,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// EventFor names the live event carrying a notification of the given type.
func EventFor(t models.NotificationType) string {
	switch t {
	case models.NotificationOrderConfirmed:
		return EventOrderConfirmed
	case models.NotificationDeliveryAssigned:
		return EventDeliveryAssigned
	default:
		return EventStatusUpdated
	}
}
