// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

package realtime

import (
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/teamup-chat/teamup/internal/config"
	"github.com/teamup-chat/teamup/internal/logging"
	"github.com/teamup-chat/teamup/internal/metrics"
)

const writeWait = 10 * time.Second

// clientIDCounter generates unique, monotonically increasing IDs so
// fan-out can iterate members in a consistent order.
var clientIDCounter atomic.Uint64

// Client is the server-side end of one websocket connection. It pumps
// frames between the connection and the hub; all room state lives in
// the hub, not here, so the disconnect sweep is a single hub operation.
type Client struct {
	id     uint64
	hub    *Hub
	conn   *websocket.Conn
	send   chan Event
	userID string

	limiter        *rate.Limiter
	pongWait       time.Duration
	pingPeriod     time.Duration
	maxMessageSize int64
}

// NewClient wraps an upgraded connection. userID is the authenticated
// identity attached by the HTTP layer; the hub itself makes no
// authorization decisions.
func NewClient(hub *Hub, conn *websocket.Conn, userID string, cfg *config.RealtimeConfig) *Client {
	var limiter *rate.Limiter
	if cfg.InboundRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.InboundRate), cfg.InboundBurst)
	}

	return &Client{
		id:             clientIDCounter.Add(1),
		hub:            hub,
		conn:           conn,
		send:           make(chan Event, cfg.SendBuffer),
		userID:         userID,
		limiter:        limiter,
		pongWait:       cfg.PongTimeout,
		pingPeriod:     cfg.PingInterval,
		maxMessageSize: cfg.MaxMessageSize,
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// UserID returns the authenticated identity bound to this connection.
func (c *Client) UserID() string {
	return c.userID
}

// Start begins the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump pumps inbound events from the connection to the hub. It
// exits on any read error, which triggers unregistration and the
// disconnect sweep exactly once per connection lifetime.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		var event Event
		err := c.conn.ReadJSON(&event)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.WSErrors.WithLabelValues("unexpected_close").Inc()
				logging.Error().Err(err).Msg("unexpected websocket close error")
			}
			break
		}

		if c.limiter != nil && !c.limiter.Allow() {
			metrics.WSEventsDropped.WithLabelValues("rate_limited").Inc()
			continue
		}

		c.handleEvent(event)
	}
}

// handleEvent dispatches one inbound event. Unrecognized event types
// and malformed payloads are ignored, not errors; the protocol is
// permissive by design.
func (c *Client) handleEvent(event Event) {
	metrics.WSEventsReceived.WithLabelValues(event.Type).Inc()

	switch event.Type {
	case EventJoinRoom:
		var roomID string
		if err := json.Unmarshal(event.Data, &roomID); err != nil || roomID == "" {
			c.logMalformed(event.Type, err)
			return
		}
		c.hub.JoinRoom(c, roomID)

	case EventLeaveRoom:
		var roomID string
		if err := json.Unmarshal(event.Data, &roomID); err != nil || roomID == "" {
			c.logMalformed(event.Type, err)
			return
		}
		c.hub.LeaveRoom(c, roomID)

	case EventMessage:
		var payload MessagePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil || payload.RoomID == "" {
			c.logMalformed(event.Type, err)
			return
		}
		c.hub.RouteMessage(payload)

	case EventTyping:
		var payload TypingPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil || payload.RoomID == "" {
			c.logMalformed(event.Type, err)
			return
		}
		c.hub.RouteTyping(payload.RoomID, payload.UserID, c)

	case EventStopTyping:
		var payload TypingPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil || payload.RoomID == "" {
			c.logMalformed(event.Type, err)
			return
		}
		c.hub.RouteStopTyping(payload.RoomID, payload.UserID, c)

	default:
		logging.Debug().
			Str("event_type", event.Type).
			Msg("ignoring unrecognized websocket event")
	}
}

func (c *Client) logMalformed(eventType string, err error) {
	metrics.WSEventsDropped.WithLabelValues("malformed").Inc()
	logging.Debug().
		Err(err).
		Str("event_type", eventType).
		Msg("ignoring malformed websocket event")
}

// writePump pumps events from the hub to the connection and keeps the
// heartbeat alive. One writer per connection; gorilla/websocket allows
// at most one concurrent writer.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Debug().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteJSON(event); err != nil {
				logging.Error().Err(err).Msg("failed to write websocket event")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
