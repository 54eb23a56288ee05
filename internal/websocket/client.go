package websocket

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"taskflow/internal/config"
	"taskflow/internal/models"
)

const maxMessageSize = 64 * 1024

// Client is one authenticated websocket connection. Its identity is resolved
// once at handshake and never refreshed.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	user *models.User
	cfg  config.WebSocketConfig
	log  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// Guarded by hub.mu.
	rooms       map[string]struct{}
	closed      bool
	closeCode   int
	closeReason string
}

func NewClient(hub *Hub, conn *websocket.Conn, user *models.User, cfg config.WebSocketConfig) *Client {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, cfg.SendBuffer),
		user:   user,
		cfg:    cfg,
		log:    hub.log.With().Str("conn_id", id).Int64("user_id", user.ID).Logger(),
		ctx:    ctx,
		cancel: cancel,
		rooms:  make(map[string]struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// ReadPump reads frames until the connection fails, handing each one to the
// router in order. It deregisters the client on exit.
func (c *Client) ReadPump(router *Router) {
	defer func() {
		c.hub.Disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
		router.Handle(c.ctx, c, message)
	}
}

// WritePump drains the send queue and pings the peer. A closed queue means
// the hub detached the client; a close frame is sent and the socket closed,
// which in turn ends ReadPump.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, c.closeMessage())
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug().Err(err).Msg("websocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) closeMessage() []byte {
	c.hub.mu.RLock()
	code, reason := c.closeCode, c.closeReason
	c.hub.mu.RUnlock()
	if code == 0 {
		code = websocket.CloseNormalClosure
	}
	return websocket.FormatCloseMessage(code, reason)
}

// Send queues an event for this client only.
func (c *Client) Send(event models.EventName, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		c.log.Error().Err(err).Str("event", string(event)).Msg("failed to encode event")
		return
	}
	c.hub.sendTo(c, data)
}

// sendError delivers a scoped error event.
func (c *Client) sendError(event models.EventName, code, message string) {
	c.Send(models.EventError, models.ErrorPayload{Message: message, Code: code, Event: event})
}
