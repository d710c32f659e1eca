package server

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Client is one admitted WebSocket connection bound to a verified user id.
// It owns the read and write pumps for the connection and implements Session
// for the registry.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	userID   string
	relay    *Relay
	registry *Registry
	limiter  *rateLimiter
	log      *slog.Logger

	closeOnce sync.Once
}

// NewClient wraps an upgraded connection for userID. The caller must
// Register the client and start both pumps.
func NewClient(conn *websocket.Conn, userID string, relay *Relay, registry *Registry, cfg *Config, log *slog.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	return &Client{
		conn:     conn,
		send:     make(chan []byte, cfg.SendBufferSize),
		done:     make(chan struct{}),
		userID:   userID,
		relay:    relay,
		registry: registry,
		limiter:  newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		log:      log.With("user", userID),
	}
}

// TrySend offers a payload for delivery without blocking. A closing client
// or a full queue rejects the payload.
func (c *Client) TrySend(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// teardown is the single cleanup path for every way a connection can end:
// client close, transport error, malformed frame, persistence failure, or
// server shutdown. It runs at most once; the registry entry is released only
// if it still belongs to this client.
func (c *Client) teardown() {
	c.closeOnce.Do(func() {
		c.registry.Release(c.userID, c)
		close(c.done)
		c.log.Info("connection closed")
	})
}

// readPump runs the receive loop: one frame in, one relay pass. Any relay
// error aborts the connection; the deferred teardown keeps disconnect
// idempotent under concurrent failure signals.
func (c *Client) readPump() {
	defer func() {
		c.teardown()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug("close after read loop", "error", err)
		}
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.limiter.allow() {
			c.log.Warn("rate limit exceeded, discarding frame")
			continue
		}

		if _, err := c.relay.HandleInbound(c.userID, raw); err != nil {
			if errors.Is(err, ErrMalformedFrame) {
				c.log.Warn("aborting connection on malformed frame", "error", err)
			} else {
				c.log.Error("aborting connection on persistence failure", "error", err)
			}
			return
		}
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.teardown()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug("close after write loop", "error", err)
		}
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
			return

		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					c.log.Debug("write failed", "error", err)
				}
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// logReadError classifies read-loop termination for the logs.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("frame exceeded maximum size")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Debug("client disconnected", "error", err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.log.Debug("transport closed", "error", err)
	default:
		c.log.Warn("read error", "error", err)
	}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close sent") ||
		strings.Contains(msg, "broken pipe")
}
