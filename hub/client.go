package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/food-delivery/services"
	"github.com/yeremiapane/food-delivery/utils"
)

const maxInboundMessage = 4096

// Client is one authenticated connection. Only writePump writes data frames
// once the handshake is done.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	userID  uint
	tokenID string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, userID uint, tokenID string) *Client {
	return &Client{
		hub:     h,
		conn:    conn,
		userID:  userID,
		tokenID: tokenID,
		send:    make(chan []byte, h.opts.SendBuffer),
		done:    make(chan struct{}),
	}
}

func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) writeJSON(v interface{}) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
	return c.conn.WriteJSON(v)
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// kick sends a close frame with the reason and drops the connection.
func (c *Client) kick(code string) {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(CloseTokenRevoked, code),
		time.Now().Add(c.hub.opts.WriteWait))
	c.close()
}

func (c *Client) writePump() {
	ping := time.NewTicker(c.hub.opts.PingInterval)
	revalidate := time.NewTicker(c.hub.opts.RevalidateInterval)
	defer func() {
		ping.Stop()
		revalidate.Stop()
		c.close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-revalidate.C:
			if !c.stillValid() {
				c.kick(CodeTokenRevoked)
				return
			}
		case <-c.done:
			return
		}
	}
}

// stillValid keeps the channel open when the store is briefly unreachable.
func (c *Client) stillValid() bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.hub.opts.WriteWait)
	defer cancel()

	err := c.hub.auth.Revalidate(ctx, c.userID, c.tokenID)
	if err == nil {
		return true
	}
	if errors.Is(err, services.ErrStoreUnavailable) {
		utils.ErrorLogger.WithFields(logrus.Fields{"user_id": c.userID}).Errorf("live revalidation skipped: %v", err)
		return true
	}
	return false
}

func (c *Client) readPump() {
	pongWait := c.hub.opts.PingInterval * 2
	c.conn.SetReadLimit(maxInboundMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		// Inbound frames after the handshake carry nothing; they only keep the deadline fresh.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}
