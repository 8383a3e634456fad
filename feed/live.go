package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const closeTokenRevoked = 4001

// LiveConn yields pushed notifications until the channel drops.
type LiveConn interface {
	Next() (Notification, error)
	Close() error
}

type LiveDialer interface {
	Dial(ctx context.Context, s Session) (LiveConn, error)
}

// WSDialer opens the server's websocket channel and performs the handshake.
type WSDialer struct {
	URL              string
	HandshakeTimeout time.Duration
	// ReadTimeout bounds the silence between frames. Server pings extend it, so it
	// should be about twice the server's ping interval.
	ReadTimeout time.Duration
}

type wireMessage struct {
	Type string          `json:"type"`
	Code string          `json:"code,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (d WSDialer) Dial(ctx context.Context, s Session) (LiveConn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	conn, resp, err := dialer.DialContext(ctx, d.URL, http.Header{})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("feed: dial live channel: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(timeout))
	if err := conn.WriteJSON(map[string]interface{}{
		"type":   "authenticate",
		"userId": s.UserID,
		"token":  s.Token,
	}); err != nil {
		conn.Close()
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(timeout))
	var reply wireMessage
	if err := conn.ReadJSON(&reply); err != nil {
		conn.Close()
		return nil, fmt.Errorf("feed: live handshake: %w", err)
	}
	switch reply.Type {
	case "authenticated":
	case "error":
		conn.Close()
		if reply.Code == "token_revoked" {
			return nil, ErrSessionRevoked
		}
		if reply.Code == "unauthorized" || reply.Code == "bad_handshake" {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("feed: live handshake refused: %s", reply.Code)
	default:
		conn.Close()
		return nil, fmt.Errorf("feed: unexpected handshake reply %q", reply.Type)
	}

	readTimeout := d.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 60 * time.Second
	}
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(timeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	return &wsConn{conn: conn, readTimeout: readTimeout}, nil
}

type wsConn struct {
	conn        *websocket.Conn
	readTimeout time.Duration
}

func (c *wsConn) Next() (Notification, error) {
	for {
		var msg wireMessage
		err := c.conn.ReadJSON(&msg)
		if err == nil {
			c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == closeTokenRevoked {
				return Notification{}, ErrSessionRevoked
			}
			return Notification{}, err
		}

		switch msg.Type {
		case "status_updated", "order_confirmed", "delivery_assigned":
			var n Notification
			if err := json.Unmarshal(msg.Data, &n); err != nil {
				continue
			}
			return n, nil
		}
	}
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
