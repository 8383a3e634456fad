package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/food-delivery/metrics"
	"github.com/yeremiapane/food-delivery/models"
	"github.com/yeremiapane/food-delivery/services"
	"github.com/yeremiapane/food-delivery/utils"
)

// Authenticator validates the handshake token and re-checks it while the channel is open.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*utils.CustomClaims, error)
	Revalidate(ctx context.Context, userID uint, tokenID string) error
}

type Options struct {
	HandshakeTimeout   time.Duration
	RevalidateInterval time.Duration
	PingInterval       time.Duration
	WriteWait          time.Duration
	SendBuffer         int
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.RevalidateInterval <= 0 {
		o.RevalidateInterval = time.Minute
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	return o
}

// Hub tracks authenticated live connections per user on this instance.
type Hub struct {
	auth Authenticator
	opts Options

	mu      sync.RWMutex
	clients map[uint]map[*Client]struct{}
}

func New(auth Authenticator, opts Options) *Hub {
	return &Hub{
		auth:    auth,
		opts:    opts.withDefaults(),
		clients: make(map[uint]map[*Client]struct{}),
	}
}

// ServeConn runs the handshake and then pumps the connection until it closes.
func (h *Hub) ServeConn(ctx context.Context, conn *websocket.Conn) {
	claims, err := h.handshake(ctx, conn)
	if err != nil {
		utils.InfoLogger.Printf("Live handshake rejected: %v", err)
		conn.Close()
		return
	}

	c := newClient(h, conn, claims.UserID, claims.TokenID())
	h.register(c)
	defer h.unregister(c)

	if err := c.writeJSON(Message{Type: TypeAuthenticated}); err != nil {
		c.close()
		return
	}

	go c.writePump()
	c.readPump()
}

func (h *Hub) handshake(ctx context.Context, conn *websocket.Conn) (*utils.CustomClaims, error) {
	deadline := time.Now().Add(h.opts.HandshakeTimeout)
	conn.SetReadDeadline(deadline)

	var req AuthRequest
	if err := conn.ReadJSON(&req); err != nil {
		h.reject(conn, CodeBadHandshake, CloseUnauthorized)
		return nil, err
	}
	if req.Type != TypeAuthenticate || req.Token == "" {
		h.reject(conn, CodeBadHandshake, CloseUnauthorized)
		return nil, errors.New("first frame is not an authenticate request")
	}

	claims, err := h.auth.Authenticate(ctx, req.Token)
	if err != nil {
		code, closeCode := errorCode(err)
		h.reject(conn, code, closeCode)
		return nil, err
	}
	if req.UserID != claims.UserID {
		h.reject(conn, CodeUnauthorized, CloseUnauthorized)
		return nil, errors.New("handshake user id does not match token")
	}

	conn.SetReadDeadline(time.Time{})
	return claims, nil
}

func (h *Hub) reject(conn *websocket.Conn, code string, closeCode int) {
	conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
	conn.WriteJSON(Message{Type: TypeError, Code: code})
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeCode, code),
		time.Now().Add(h.opts.WriteWait))
}

func errorCode(err error) (string, int) {
	switch {
	case errors.Is(err, services.ErrTokenRevoked):
		return CodeTokenRevoked, CloseTokenRevoked
	case errors.Is(err, services.ErrStoreUnavailable):
		return CodeUnavailable, websocket.CloseTryAgainLater
	default:
		return CodeUnauthorized, CloseUnauthorized
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	metrics.LiveConnections.Inc()
	utils.InfoLogger.WithFields(logrus.Fields{"user_id": c.userID}).Info("live channel opened")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	removed := false
	if set, ok := h.clients[c.userID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			removed = true
		}
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()

	c.close()
	if removed {
		metrics.LiveConnections.Dec()
		utils.InfoLogger.WithFields(logrus.Fields{"user_id": c.userID}).Info("live channel closed")
	}
}

func (h *Hub) snapshot(userID uint) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.clients[userID]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Connections reports how many live channels a user has on this instance.
func (h *Hub) Connections(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Push queues msg on every connection of the user without blocking. It returns how
// many connections accepted it; full buffers drop the message.
func (h *Hub) Push(userID uint, msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Printf("Error marshaling live message: %v", err)
		return 0
	}

	queued := 0
	for _, c := range h.snapshot(userID) {
		if c.enqueue(data) {
			queued++
			metrics.PushesDelivered.Inc()
		} else {
			metrics.PushesDropped.Inc()
		}
	}
	return queued
}

// PushNotification delivers a stored notification to this instance's connections.
func (h *Hub) PushNotification(_ context.Context, recipientID uint, n models.Notification) error {
	h.Push(recipientID, Message{Type: EventFor(n.Type), Data: n})
	return nil
}

// DisconnectToken force-closes every connection opened with the token.
func (h *Hub) DisconnectToken(userID uint, tokenID string) int {
	closed := 0
	for _, c := range h.snapshot(userID) {
		if c.tokenID == tokenID {
			c.kick(CodeTokenRevoked)
			closed++
		}
	}
	return closed
}

func (h *Hub) DisconnectUser(userID uint) int {
	clients := h.snapshot(userID)
	for _, c := range clients {
		c.kick(CodeTokenRevoked)
	}
	return len(clients)
}

// HandleRevocation closes channels that a revocation invalidates.
func (h *Hub) HandleRevocation(rev services.Revocation) {
	var closed int
	if rev.TokenID == "" {
		closed = h.DisconnectUser(rev.UserID)
	} else {
		closed = h.DisconnectToken(rev.UserID, rev.TokenID)
	}
	if closed > 0 {
		utils.InfoLogger.WithFields(logrus.Fields{
			"user_id":  rev.UserID,
			"token_id": rev.TokenID,
			"closed":   closed,
		}).Info("closed revoked live channels")
	}
}
