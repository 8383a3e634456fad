// Package feed keeps a client's notification feed in step with the server: live
// pushes, periodic pulls and a cache that survives restarts are merged into one
// deduplicated newest-first list.
package feed

import (
	"errors"
	"fmt"
	"time"
)

// MaxItems bounds the feed, matching the server's pull limit.
const MaxItems = 50

var (
	ErrUnauthorized   = errors.New("feed: not signed in")
	ErrSessionRevoked = errors.New("feed: session revoked")
	ErrNotSignedIn    = errors.New("feed: no active session")
)

// Notification mirrors the server's notification shape.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	OrderID   uint      `json:"orderId"`
	Message   string    `json:"message"`
	OldStatus string    `json:"oldStatus,omitempty"`
	NewStatus string    `json:"newStatus,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	// Local marks an id synthesized on this device because the push carried none.
	Local bool `json:"local,omitempty"`
}

// contentKey identifies the event a notification describes, independent of its id.
func (n Notification) contentKey() string {
	return fmt.Sprintf("%d|%s|%s", n.OrderID, n.Type, n.NewStatus)
}

// Session is what sign-in hands back.
type Session struct {
	Token     string    `json:"token"`
	UserID    uint      `json:"user_id"`
	Role      string    `json:"user_role"`
	ExpiresAt time.Time `json:"expires_at"`
}
