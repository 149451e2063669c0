// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

package realtime

import (
	"context"
	"sort"
	"sync"

	"github.com/teamup-chat/teamup/internal/logging"
	"github.com/teamup-chat/teamup/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown
	// path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was
	// exceeded, which may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// roomEvent is one fan-out request queued for the hub loop.
type roomEvent struct {
	roomID string
	event  Event

	// exclude suppresses delivery to one member. Typing signals never
	// echo to their own origin; chat messages set this to nil so the
	// sender receives its own message back.
	exclude *Client
}

// Hub is the room router: it owns the mapping from room identifiers to
// member connections and fans events out to exactly the members of the
// targeted room.
//
// Rooms have no explicit lifecycle. A room exists while it has members;
// an absent key routes to nobody. The memberships reverse index makes
// the disconnect sweep a single lookup instead of a scan over every
// room.
type Hub struct {
	rooms       map[string]map[*Client]struct{}
	memberships map[*Client]map[string]struct{}
	clients     map[*Client]bool
	broadcast   chan roomEvent
	Register    chan *Client
	Unregister  chan *Client
	mu          sync.RWMutex
}

// NewHub creates a hub with empty routing state. Call RunWithContext to
// start processing.
func NewHub() *Hub {
	return &Hub{
		rooms:       make(map[string]map[*Client]struct{}),
		memberships: make(map[*Client]map[string]struct{}),
		clients:     make(map[*Client]bool),
		broadcast:   make(chan roomEvent, 256),
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
	}
}

// RunWithContext runs the hub loop until the context is canceled. It is
// designed for suture supervision: cancellation closes every client and
// returns ctx.Err() so the supervisor can restart with clean state.
//
// DETERMINISM: Go's select picks randomly among ready channels, so the
// loop uses priority-based selection instead:
// - Priority 1: context cancellation (shutdown)
// - Priority 2: client lifecycle events (Register/Unregister)
// - Priority 3: room fan-out
// Lifecycle before fan-out keeps membership consistent with the events
// being routed.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: check for shutdown (non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: client lifecycle events (non-blocking check)
		select {
		case client := <-h.Register:
			h.registerClient(client)
			continue
		case client := <-h.Unregister:
			h.unregisterClient(client)
			continue
		default:
		}

		// Priority 3: fan-out, or block until anything arrives
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case ev := <-h.broadcast:
			h.fanOut(ev)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().
		Str("user_id", client.userID).
		Int("total_clients", total).
		Msg("websocket client connected")
}

// unregisterClient runs the disconnect sweep: the client leaves every
// room it was a member of, however many that was.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	rooms := 0
	if _, ok := h.clients[client]; ok {
		rooms = len(h.memberships[client])
		h.removeClientLocked(client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().
		Str("user_id", client.userID).
		Int("rooms_left", rooms).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

// removeClientLocked strips a client from all routing state. Caller
// holds h.mu.
func (h *Hub) removeClientLocked(client *Client) {
	for roomID := range h.memberships[client] {
		delete(h.rooms[roomID], client)
		if len(h.rooms[roomID]) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(h.memberships, client)
	delete(h.clients, client)
	metrics.WSRooms.Set(float64(len(h.rooms)))
}

// JoinRoom subscribes a client to a room and acknowledges with a
// room-joined event. Idempotent: joining twice leaves membership
// identical to joining once, and each join is acknowledged.
//
// INVARIANT: client.send is closed only while h.mu is held, immediately
// after the client leaves h.clients. Checking membership and sending
// under the same lock is what makes this send race-free against the
// slow-client drop and shutdown paths; a client the hub no longer owns
// is a no-op here, never a re-insert.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	ack, err := NewEvent(EventRoomJoined, RoomJoinedPayload{RoomID: roomID})
	if err != nil {
		logging.Error().Err(err).Msg("failed to build room-joined ack")
		return
	}

	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][client] = struct{}{}
	if h.memberships[client] == nil {
		h.memberships[client] = make(map[string]struct{})
	}
	h.memberships[client][roomID] = struct{}{}
	metrics.WSRooms.Set(float64(len(h.rooms)))

	select {
	case client.send <- ack:
	default:
		metrics.WSEventsDropped.WithLabelValues("client_buffer_full").Inc()
	}
	h.mu.Unlock()

	logging.Debug().
		Str("room_id", roomID).
		Str("user_id", client.userID).
		Msg("client joined room")
}

// LeaveRoom unsubscribes a client from a room. No-op if the client is
// not a member. There is no acknowledgement for leave.
func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID][client]; !ok {
		return
	}
	delete(h.rooms[roomID], client)
	if len(h.rooms[roomID]) == 0 {
		delete(h.rooms, roomID)
	}
	delete(h.memberships[client], roomID)
	metrics.WSRooms.Set(float64(len(h.rooms)))
}

// RouteMessage fans a chat message out to every member of its room,
// including the sender. Self-delivery is intentional; deduplication is
// a UI concern.
func (h *Hub) RouteMessage(payload MessagePayload) {
	event, err := NewEvent(EventMessage, payload)
	if err != nil {
		logging.Error().Err(err).Msg("failed to build message event")
		return
	}
	h.enqueue(roomEvent{roomID: payload.RoomID, event: event})
}

// RouteTyping notifies every other member of a room that a user started
// typing. The sender is excluded; the signal has no meaning reflected
// back to its origin.
func (h *Hub) RouteTyping(roomID, userID string, sender *Client) {
	event, err := NewEvent(EventUserTyping, UserTypingPayload{UserID: userID})
	if err != nil {
		logging.Error().Err(err).Msg("failed to build user-typing event")
		return
	}
	h.enqueue(roomEvent{roomID: roomID, event: event, exclude: sender})
}

// RouteStopTyping is the counterpart of RouteTyping.
func (h *Hub) RouteStopTyping(roomID, userID string, sender *Client) {
	event, err := NewEvent(EventUserStopTyping, UserTypingPayload{UserID: userID})
	if err != nil {
		logging.Error().Err(err).Msg("failed to build user-stop-typing event")
		return
	}
	h.enqueue(roomEvent{roomID: roomID, event: event, exclude: sender})
}

// Emit fans an already-built event out to a room. Used by server-side
// triggers outside any live connection's handler stack.
func (h *Hub) Emit(roomID string, event Event) {
	h.enqueue(roomEvent{roomID: roomID, event: event})
}

func (h *Hub) enqueue(ev roomEvent) {
	select {
	case h.broadcast <- ev:
	default:
		metrics.WSEventsDropped.WithLabelValues("broadcast_full").Inc()
		logging.Warn().
			Str("event_type", ev.event.Type).
			Str("room_id", ev.roomID).
			Msg("broadcast channel full, dropping event")
	}
}

// fanOut delivers one event to every current member of its room and
// only those. A full per-client buffer marks that client for removal
// rather than blocking the loop.
//
// DETERMINISM: members are sorted by client ID so delivery order is
// reproducible within a room.
func (h *Hub) fanOut(ev roomEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := make([]*Client, 0, len(h.rooms[ev.roomID]))
	for client := range h.rooms[ev.roomID] {
		members = append(members, client)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].id < members[j].id
	})

	var toRemove []*Client
	delivered := 0

	for _, client := range members {
		if client == ev.exclude {
			continue
		}
		select {
		case client.send <- ev.event:
			delivered++
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		if _, ok := h.clients[client]; ok {
			h.removeClientLocked(client)
			close(client.send)
			metrics.WSEventsDropped.WithLabelValues("client_buffer_full").Inc()
			logging.Warn().
				Str("user_id", client.userID).
				Msg("dropping slow websocket client")
		}
	}

	metrics.WSEventsSent.WithLabelValues(ev.event.Type).Add(float64(delivered))
}

// logGracefulShutdown closes every client and logs the shutdown.
// ctx.Err() is not logged as an error; cancellation is expected
// behavior during graceful shutdown.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.closeAllClients()

	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}

	logging.Info().
		Str("component", "realtime-hub").
		Str("reason", string(reason)).
		Int("clients_closed", clientCount).
		Msg("realtime hub stopped")
}

// closeAllClients tears down every connection in ID order for a
// consistent shutdown sequence. Returns the number closed.
func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		h.removeClientLocked(client)
		close(client.send)
	}
	metrics.WSConnections.Set(0)
	return len(clients)
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomMemberCount returns the current member count of a room. An
// unknown room has zero members.
func (h *Hub) RoomMemberCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// RoomCount returns the number of rooms with at least one member.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
