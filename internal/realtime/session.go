// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

package realtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/teamup-chat/teamup/internal/logging"
)

// DisconnectReason is a closed enumeration of why a session lost its
// connection. Transport-reported reasons are mapped into this set
// rather than matched as free text.
type DisconnectReason string

const (
	// DisconnectServerInitiated means the server sent a close frame.
	DisconnectServerInitiated DisconnectReason = "server_initiated"

	// DisconnectTransportClosed means the connection dropped without a
	// clean close handshake.
	DisconnectTransportClosed DisconnectReason = "transport_closed"

	// DisconnectClientInitiated means this session called Close.
	DisconnectClientInitiated DisconnectReason = "client_initiated"

	// DisconnectTimeout means a read deadline expired.
	DisconnectTimeout DisconnectReason = "timeout"

	// DisconnectOther covers everything else.
	DisconnectOther DisconnectReason = "other"
)

// RequiresExplicitReconnect reports whether the session must reconnect
// itself for this reason. Exactly server_initiated and transport_closed
// qualify; automatic retry policies do not always cover those two.
func (r DisconnectReason) RequiresExplicitReconnect() bool {
	return r == DisconnectServerInitiated || r == DisconnectTransportClosed
}

// SessionConfig configures one client session.
type SessionConfig struct {
	// URL is the fully-formed websocket URL of the upgrade endpoint.
	// No trailing slash is appended.
	URL string

	// Header is sent with the upgrade request (authentication tokens,
	// origin).
	Header http.Header

	// MaxReconnectAttempts is the reconnection ceiling. After this many
	// consecutive failures the session is permanently down until an
	// explicit Connect call.
	MaxReconnectAttempts int

	// InitialReconnectDelay is the floor delay before the first retry.
	// Subsequent delays grow exponentially.
	InitialReconnectDelay time.Duration

	// HandshakeTimeout bounds the upgrade handshake.
	HandshakeTimeout time.Duration
}

func (c *SessionConfig) applyDefaults() {
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.InitialReconnectDelay == 0 {
		c.InitialReconnectDelay = time.Second
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 20 * time.Second
	}
}

// SessionCallbacks is the typed event surface a session exposes. All
// callbacks are optional and are invoked from the session's internal
// goroutines.
type SessionCallbacks struct {
	// OnConnect fires when a connection is established, initial or
	// after a reconnect. Joins may be issued from this point on.
	OnConnect func()

	// OnConnectError fires when a connection attempt fails. Not
	// terminal by itself; the reconnection policy keeps retrying up to
	// the ceiling.
	OnConnectError func(err error)

	// OnRoomJoined acknowledges that a join was processed server-side.
	// Leave and typing have no acknowledgement.
	OnRoomJoined func(roomID string)

	// OnMessage delivers a fanned-out chat message, including the echo
	// of this session's own sends.
	OnMessage func(payload MessagePayload)

	// OnTyping and OnStopTyping deliver presence signals from other
	// room members.
	OnTyping     func(userID string)
	OnStopTyping func(userID string)

	// OnDisconnect fires once per lost connection with the mapped
	// reason.
	OnDisconnect func(reason DisconnectReason)

	// Reconnection observability hooks. Attempt numbers start at 1.
	OnReconnect        func(attempt int)
	OnReconnectAttempt func(attempt int)
	OnReconnectError   func(attempt int, err error)

	// OnReconnectFailed fires when the attempt ceiling is exhausted.
	// The session stops retrying; recovery requires an explicit
	// Connect call.
	OnReconnectFailed func()
}

// Session owns exactly one client-side connection and recovers it
// transparently from transient network failure.
type Session struct {
	cfg       SessionConfig
	callbacks SessionCallbacks

	conn      *websocket.Conn
	connMu    sync.RWMutex
	writeMu   sync.Mutex
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	callbkMu  sync.RWMutex
}

// NewSession creates a session. It does not connect; call Connect.
func NewSession(cfg SessionConfig) *Session {
	cfg.applyDefaults()
	return &Session{
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

// SetCallbacks registers the event surface. Safe to call before
// Connect; replacing callbacks mid-session is also safe.
func (s *Session) SetCallbacks(cb SessionCallbacks) {
	s.callbkMu.Lock()
	s.callbacks = cb
	s.callbkMu.Unlock()
}

func (s *Session) getCallbacks() SessionCallbacks {
	s.callbkMu.RLock()
	defer s.callbkMu.RUnlock()
	return s.callbacks
}

// Connect establishes the connection and starts the read loop. On
// failure it fires OnConnectError and hands recovery to the
// reconnection policy in the background, so the caller does not need
// to retry itself.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.dial(ctx); err != nil {
		if cb := s.getCallbacks().OnConnectError; cb != nil {
			cb(err)
		}
		s.wg.Add(1)
		go s.reconnectLoop(ctx)
		return err
	}
	return nil
}

// dial performs one connection attempt and, on success, starts the
// read loop for the new connection.
func (s *Session) dial(ctx context.Context) error {
	s.connMu.Lock()
	if s.conn != nil {
		s.connMu.Unlock()
		return nil
	}
	s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout:  s.cfg.HandshakeTimeout,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(ctx, s.cfg.URL, s.cfg.Header)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	logging.Debug().Str("url", s.cfg.URL).Msg("session connected")

	if cb := s.getCallbacks().OnConnect; cb != nil {
		cb()
	}

	s.wg.Add(1)
	go s.readLoop(ctx, conn)
	return nil
}

// readLoop reads events until the connection fails, then classifies
// the failure and triggers recovery.
func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer s.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleDisconnect(ctx, err)
			return
		}
		s.handleEvent(data)
	}
}

// handleDisconnect maps the read error to a DisconnectReason, cleans
// up, and decides whether to reconnect.
func (s *Session) handleDisconnect(ctx context.Context, err error) {
	reason := classifyDisconnect(err)

	select {
	case <-s.stopChan:
		reason = DisconnectClientInitiated
	default:
	}
	if ctx.Err() != nil {
		reason = DisconnectClientInitiated
	}

	s.closeConnection()

	logging.Debug().
		Str("reason", string(reason)).
		Err(err).
		Msg("session disconnected")

	if cb := s.getCallbacks().OnDisconnect; cb != nil {
		cb(reason)
	}

	if reason == DisconnectClientInitiated {
		return
	}

	// server_initiated and transport_closed require the session to
	// reconnect itself; the remaining reasons ride the same policy, so
	// every non-client disconnect enters the loop.
	s.wg.Add(1)
	go s.reconnectLoop(ctx)
}

// classifyDisconnect maps transport errors into the closed reason set.
func classifyDisconnect(err error) DisconnectReason {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseServiceRestart:
			return DisconnectServerInitiated
		case websocket.CloseAbnormalClosure:
			return DisconnectTransportClosed
		default:
			return DisconnectOther
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return DisconnectTimeout
	}

	// EOF and reset-by-peer style failures: the transport closed
	// without a close handshake.
	return DisconnectTransportClosed
}

// newReconnectBackOff builds the retry schedule for reconnectLoop.
// NewExponentialBackOff latches its current interval at construction,
// so the configured floor only takes effect after a Reset.
func newReconnectBackOff(initial time.Duration) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// reconnectLoop retries the connection with exponential backoff up to
// the configured ceiling.
func (s *Session) reconnectLoop(ctx context.Context) {
	defer s.wg.Done()

	bo := newReconnectBackOff(s.cfg.InitialReconnectDelay)

	cb := s.getCallbacks()

	for attempt := 1; attempt <= s.cfg.MaxReconnectAttempts; attempt++ {
		delay := bo.NextBackOff()
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if cb.OnReconnectAttempt != nil {
			cb.OnReconnectAttempt(attempt)
		}

		err := s.dial(ctx)
		if err == nil {
			logging.Debug().Int("attempt", attempt).Msg("session reconnected")
			if cb.OnReconnect != nil {
				cb.OnReconnect(attempt)
			}
			return
		}

		logging.Debug().Err(err).Int("attempt", attempt).Msg("session reconnect attempt failed")
		if cb.OnReconnectError != nil {
			cb.OnReconnectError(attempt, err)
		}
	}

	logging.Warn().
		Int("attempts", s.cfg.MaxReconnectAttempts).
		Msg("session reconnect ceiling exhausted")
	if cb.OnReconnectFailed != nil {
		cb.OnReconnectFailed()
	}
}

// handleEvent dispatches one inbound event to the callback surface.
// Unrecognized types are ignored.
func (s *Session) handleEvent(data []byte) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		logging.Debug().Err(err).Msg("session ignoring malformed event")
		return
	}

	cb := s.getCallbacks()

	switch event.Type {
	case EventRoomJoined:
		var payload RoomJoinedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return
		}
		if cb.OnRoomJoined != nil {
			cb.OnRoomJoined(payload.RoomID)
		}

	case EventMessage:
		var payload MessagePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return
		}
		if cb.OnMessage != nil {
			cb.OnMessage(payload)
		}

	case EventUserTyping:
		var payload UserTypingPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return
		}
		if cb.OnTyping != nil {
			cb.OnTyping(payload.UserID)
		}

	case EventUserStopTyping:
		var payload UserTypingPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return
		}
		if cb.OnStopTyping != nil {
			cb.OnStopTyping(payload.UserID)
		}

	default:
		logging.Debug().Str("event_type", event.Type).Msg("session ignoring unrecognized event")
	}
}

// emit writes one event under the write lock. gorilla permits at most
// one concurrent writer per connection.
func (s *Session) emit(eventType string, payload interface{}) error {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		return err
	}

	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()
	if conn == nil {
		return fmt.Errorf("emit %s: not connected", eventType)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("emit %s: %w", eventType, err)
	}
	if err := conn.WriteJSON(event); err != nil {
		return fmt.Errorf("emit %s: %w", eventType, err)
	}
	return nil
}

// JoinRoom asks the server to subscribe this session to a room. The
// server answers with room-joined.
func (s *Session) JoinRoom(roomID string) error {
	return s.emit(EventJoinRoom, roomID)
}

// LeaveRoom unsubscribes from a room. No acknowledgement.
func (s *Session) LeaveRoom(roomID string) error {
	return s.emit(EventLeaveRoom, roomID)
}

// SendMessage emits a chat message to a room.
func (s *Session) SendMessage(roomID, text, senderID string) error {
	return s.emit(EventMessage, MessagePayload{RoomID: roomID, Text: text, SenderID: senderID})
}

// SendTyping signals that the user started typing in a room.
func (s *Session) SendTyping(roomID, userID string) error {
	return s.emit(EventTyping, TypingPayload{RoomID: roomID, UserID: userID})
}

// SendStopTyping signals that the user stopped typing in a room.
func (s *Session) SendStopTyping(roomID, userID string) error {
	return s.emit(EventStopTyping, TypingPayload{RoomID: roomID, UserID: userID})
}

// IsConnected reports whether the session currently has a live
// connection.
func (s *Session) IsConnected() bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.conn != nil
}

// closeConnection tears down the current connection if any.
func (s *Session) closeConnection() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn != nil {
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Close shuts the session down and stops any reconnection in flight.
// Safe to call more than once.
func (s *Session) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.closeConnection()
	s.wg.Wait()
	return nil
}
